package ai

import (
	"encoding/json"
	"strings"

	"media-meta/internal/sanitize"
)

const connectionCheck = `Hello. Reply with "OK".`

// BuildPrompt assembles the instruction text sent with the image. Each
// field's clause asks for the keywords only when its flag is set and there
// are keywords to use.
func BuildPrompt(req GenerationRequest) string {
	keywords := sanitize.TextField(req.Keywords)
	withKeywords := func(clause string, include bool, target string) string {
		if !include || keywords == "" {
			return clause
		}
		return clause + " Ensure the keywords '" + keywords + "' are integrated into this " + target + "."
	}

	parts := []string{
		"Analyze this image.",
		withKeywords("Provide a concise, Answer Engine and SEO-friendly alternative text (max 15 words) suitable for screen readers.", req.IncludeInAlt, "text"),
		withKeywords("Provide a short, catchy title for this image (max 5 words).", req.IncludeInTitle, "title"),
		withKeywords("Provide a detailed visual description of this image (max 50 words).", req.IncludeInDescription, "description"),
	}
	return strings.Join(parts, " ") +
		" Return the result strictly as a JSON object with keys: 'alt_text', 'title', 'description'."
}

// parseGeneration decodes the model's JSON text. Keys that are missing or
// not strings stay nil; anything that is not a JSON object is malformed.
func parseGeneration(text string) (*GenerationResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fields); err != nil || fields == nil {
		return nil, newError(KindMalformedReply, msgMalformedReply, err)
	}

	pick := func(key string, clean func(string) string) *string {
		raw, ok := fields[key]
		if !ok {
			return nil
		}
		// null and non-string values count as absent.
		var v any
		if json.Unmarshal(raw, &v) != nil {
			return nil
		}
		s, ok := v.(string)
		if !ok {
			return nil
		}
		s = clean(s)
		return &s
	}

	return &GenerationResult{
		AltText:     pick("alt_text", sanitize.TextField),
		Title:       pick("title", sanitize.TextField),
		Description: pick("description", sanitize.TextareaField),
	}, nil
}
