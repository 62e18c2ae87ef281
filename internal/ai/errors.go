package ai

import "fmt"

// Kind classifies gateway failures.
type Kind int

const (
	KindMissingCredential Kind = iota + 1
	KindFileNotFound
	KindFileTooLarge
	KindTransport
	KindAPI
	KindMalformedReply
	KindEmptyReply
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing credential"
	case KindFileNotFound:
		return "file not found"
	case KindFileTooLarge:
		return "file too large"
	case KindTransport:
		return "transport error"
	case KindAPI:
		return "api error"
	case KindMalformedReply:
		return "malformed reply"
	case KindEmptyReply:
		return "empty reply"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

const (
	msgMissingKey     = "Gemini API Key is missing. Please configure it with `mediameta key set`."
	msgEmptyKey       = "API Key is empty."
	msgFileNotFound   = "Image file not found."
	msgFileTooLarge   = "Image exceeds 10MB limit."
	msgQuota          = "Quota exceeded. Please check your Google Cloud billing or wait."
	msgBadRequest     = "Bad Request. Please check your API key and input."
	msgPermission     = "Permission denied. API Key may be invalid or restricted."
	msgMalformedReply = "Failed to parse AI response. The model may have returned unstructured text."
	msgEmptyReply     = "Gemini returned an empty response."
)

// Error is the single failure type returned by the gateway. Message is
// safe to show to the user as is.
type Error struct {
	Kind    Kind
	Code    int // HTTP status for KindAPI
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Code when the target sets one, so callers can
// write errors.Is(err, ai.ErrFileNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == 0 || t.Code == e.Code)
}

var (
	ErrMissingCredential = &Error{Kind: KindMissingCredential}
	ErrFileNotFound      = &Error{Kind: KindFileNotFound}
	ErrFileTooLarge      = &Error{Kind: KindFileTooLarge}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrAPI               = &Error{Kind: KindAPI}
	ErrMalformedReply    = &Error{Kind: KindMalformedReply}
	ErrEmptyReply        = &Error{Kind: KindEmptyReply}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
