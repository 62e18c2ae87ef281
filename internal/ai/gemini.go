package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-flash-latest:generateContent"
	DefaultTimeout  = 30 * time.Second

	maxReplyBytes = 4 << 20
)

// ClientOptions configures the Gemini REST client. Zero values pick the
// defaults.
type ClientOptions struct {
	Endpoint string
	Timeout  time.Duration
	// ProxyURL routes outbound calls through an HTTP proxy (e.g. http://127.0.0.1:7890).
	ProxyURL string
	// RateLimit is the number of calls per second allowed; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// Client sends generateContent requests. It holds no credentials; the key
// is passed per call.
type Client struct {
	endpoint string
	httpc    *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a Gemini client, optionally configured with a proxy.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if _, err := url.Parse(opts.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	c := &Client{
		endpoint: opts.Endpoint,
		httpc:    &http.Client{Transport: transport, Timeout: opts.Timeout},
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c, nil
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

// generateRequest is the request body for generateContent.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// firstText returns candidates[0].content.parts[0].text, or "".
func (r generateResponse) firstText() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// send posts body with the key as a query parameter and returns the reply
// body of a 200 response. Any other status becomes a KindAPI *Error.
func (c *Client) send(ctx context.Context, apiKey string, body generateRequest) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newError(KindTransport, "Request to Gemini was not sent: "+err.Error(), err)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("could not marshal gemini request: %w", err)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("could not create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		err = redactKey(err)
		return nil, newError(KindTransport, "Request to Gemini failed: "+err.Error(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, newError(KindTransport, "Could not read Gemini response: "+err.Error(), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, raw)
	}
	return raw, nil
}

// apiError maps a non-200 reply to the message shown to the user. The
// common statuses get fixed messages whatever the body says.
func apiError(code int, body []byte) *Error {
	e := &Error{Kind: KindAPI, Code: code}
	switch code {
	case http.StatusTooManyRequests:
		e.Message = msgQuota
	case http.StatusBadRequest:
		e.Message = msgBadRequest
	case http.StatusForbidden:
		e.Message = msgPermission
	default:
		e.Message = fmt.Sprintf("Gemini API Error (%d)", code)
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
			e.Message += ": " + er.Error.Message
		}
	}
	return e
}

// redactKey strips the query string from URL errors so the API key never
// reaches logs or the UI.
func redactKey(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	if u, perr := url.Parse(ue.URL); perr == nil {
		u.RawQuery = ""
		ue.URL = u.String()
	}
	return ue
}
