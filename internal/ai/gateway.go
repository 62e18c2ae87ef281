package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"media-meta/internal/db"
)

const (
	// DefaultMaxFileSize is the largest image sent inline.
	DefaultMaxFileSize = 10 * 1024 * 1024

	fallbackMIME = "image/jpeg"
)

// Gateway turns an attachment into generated alt text, title and description.
type Gateway struct {
	creds       CredentialSource
	attachments AttachmentSource
	client      *Client
	maxFileSize int64
	log         *slog.Logger
}

type Option func(*Gateway)

// WithMaxFileSize lowers the size limit. Values above DefaultMaxFileSize
// are ignored.
func WithMaxFileSize(n int64) Option {
	return func(g *Gateway) {
		if n > 0 && n <= DefaultMaxFileSize {
			g.maxFileSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGateway wires the gateway to its credential source, the attachment
// store and a Gemini client.
func NewGateway(creds CredentialSource, attachments AttachmentSource, client *Client, opts ...Option) (*Gateway, error) {
	if creds == nil {
		return nil, errors.New("credential source is required")
	}
	if attachments == nil {
		return nil, errors.New("attachment source is required")
	}
	if client == nil {
		return nil, errors.New("gemini client is required")
	}
	g := &Gateway{
		creds:       creds,
		attachments: attachments,
		client:      client,
		maxFileSize: DefaultMaxFileSize,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate reads the attachment's image, asks Gemini for the three fields
// and returns them sanitized. The API key is read fresh on every call.
func (g *Gateway) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	apiKey := g.creds.APIKey()
	if apiKey == "" {
		return nil, newError(KindMissingCredential, msgMissingKey, nil)
	}

	path, mime, err := g.resolveImage(ctx, req.AttachmentID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, newError(KindFileNotFound, msgFileNotFound, err)
	}
	if info.Size() > g.maxFileSize {
		return nil, newError(KindFileTooLarge, msgFileTooLarge, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindFileNotFound, msgFileNotFound, err)
	}

	body := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: BuildPrompt(req)},
				{InlineData: &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}},
			},
		}},
		GenerationConfig: &generationConfig{ResponseMimeType: "application/json"},
	}

	g.log.DebugContext(ctx, "sending generation request",
		slog.Int64("attachment_id", req.AttachmentID),
		slog.String("mime", mime),
		slog.Int("bytes", len(data)))

	raw, err := g.client.send(ctx, apiKey, body)
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, newError(KindEmptyReply, msgEmptyReply, err)
	}
	text := resp.firstText()
	if text == "" {
		return nil, newError(KindEmptyReply, msgEmptyReply, nil)
	}

	return parseGeneration(text)
}

// resolveImage returns the file path and MIME type for id. The stored type
// wins; otherwise the file is sniffed, falling back to image/jpeg.
func (g *Gateway) resolveImage(ctx context.Context, id int64) (string, string, error) {
	a, err := g.attachments.GetAttachment(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return "", "", newError(KindFileNotFound, msgFileNotFound, err)
	}
	if err != nil {
		return "", "", fmt.Errorf("could not load attachment %d: %w", id, err)
	}
	if a.FilePath == "" {
		return "", "", newError(KindFileNotFound, msgFileNotFound, nil)
	}

	mime := a.MimeType
	if mime == "" {
		mime = sniffMIME(a.FilePath)
	}
	return a.FilePath, mime, nil
}

func sniffMIME(path string) string {
	m, err := mimetype.DetectFile(path)
	if err != nil || m.Is("application/octet-stream") {
		return fallbackMIME
	}
	return m.String()
}

// TestConnection sends a text-only request with apiKey. Only a 200 counts as
// success; the key is never stored.
func (g *Gateway) TestConnection(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return newError(KindMissingCredential, msgEmptyKey, nil)
	}
	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: connectionCheck}}}},
	}
	_, err := g.client.send(ctx, apiKey, body)
	return err
}
