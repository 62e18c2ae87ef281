package ai

import (
	"context"

	"media-meta/internal/db"
)

// CredentialSource yields the Gemini API key. Implementations should read
// their backing store on every call.
type CredentialSource interface {
	APIKey() string
}

// AttachmentSource resolves attachment records. It returns db.ErrNotFound
// for unknown ids.
type AttachmentSource interface {
	GetAttachment(ctx context.Context, id int64) (*db.Attachment, error)
}

// GenerationRequest is one click on the generate button.
type GenerationRequest struct {
	AttachmentID         int64
	Keywords             string
	IncludeInAlt         bool
	IncludeInTitle       bool
	IncludeInDescription bool
}

// GenerationResult holds the fields the model returned. A nil field means
// the reply did not contain that key.
type GenerationResult struct {
	AltText     *string `json:"alt_text,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Update converts the result for the persistence bridge.
func (r GenerationResult) Update() db.MetaUpdate {
	return db.MetaUpdate{AltText: r.AltText, Title: r.Title, Description: r.Description}
}
