package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"media-meta/internal/ai"
	"media-meta/internal/augmenter"
	"media-meta/internal/logging"
	"media-meta/internal/sanitize"
)

const (
	msgPermissionDenied  = "Permission denied."
	msgInvalidAttachment = "Invalid Attachment ID."
	msgBadNonce          = "Security check failed. Please reload the page and try again."
	msgTooManyRequests   = "Too many requests. Please wait a moment and try again."
	msgGenerateFailed    = "Could not generate metadata."
	msgSaveFailed        = "Could not save the generated metadata."
	msgConnectionOK      = "Connection successful! The API key works."
)

// formBool parses a boolean form value the way PHP's FILTER_VALIDATE_BOOLEAN
// does: 1, true, on and yes are true, anything else is false.
func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// formInt reads the leading integer of v, 0 when there is none.
func formInt(v string) int64 {
	v = strings.TrimSpace(v)
	end := 0
	for end < len(v) && (v[end] >= '0' && v[end] <= '9' || end == 0 && (v[end] == '-' || v[end] == '+')) {
		end++
	}
	n, err := strconv.ParseInt(v[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// checkAjax validates method, nonce and capability. It writes the failure
// response itself and reports whether the handler may continue.
func (s *Server) checkAjax(w http.ResponseWriter, r *http.Request, action, capability string) (*User, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return nil, false
	}
	if err := r.ParseForm(); err != nil {
		sendFailure(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	u := userFrom(r.Context())
	if !s.auth.VerifyNonce(r.PostForm.Get("nonce"), action, u.Name) {
		sendFailure(w, http.StatusForbidden, msgBadNonce)
		return nil, false
	}
	if !u.Can(capability) {
		sendFailure(w, http.StatusOK, msgPermissionDenied)
		return nil, false
	}
	return u, true
}

// userMessage returns the text to show for a gateway failure. Only gateway
// errors carry a message meant for users.
func userMessage(err error) string {
	var aerr *ai.Error
	if errors.As(err, &aerr) {
		return aerr.Error()
	}
	return msgGenerateFailed
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.checkAjax(w, r, augmenter.MediaNonceAction, CapUploadFiles); !ok {
		return
	}
	log := logging.FromContext(r.Context())

	req := ai.GenerationRequest{
		AttachmentID:         formInt(r.PostForm.Get("attachment_id")),
		Keywords:             sanitize.TextField(r.PostForm.Get("keywords")),
		IncludeInAlt:         formBool(r.PostForm.Get("include_keywords_in_alt")),
		IncludeInTitle:       formBool(r.PostForm.Get("include_keywords_in_title")),
		IncludeInDescription: formBool(r.PostForm.Get("include_keywords_in_description")),
	}
	if req.AttachmentID == 0 {
		sendFailure(w, http.StatusOK, msgInvalidAttachment)
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		sendFailure(w, http.StatusTooManyRequests, msgTooManyRequests)
		return
	}

	res, err := s.gateway.Generate(r.Context(), req)
	if err != nil {
		log.Warn("generation failed", slog.Int64("attachment_id", req.AttachmentID), slog.Any("err", err))
		sendFailure(w, http.StatusOK, userMessage(err))
		return
	}

	if err := s.store.ApplyUpdate(r.Context(), req.AttachmentID, res.Update()); err != nil {
		log.Error("could not persist generated metadata", slog.Int64("attachment_id", req.AttachmentID), slog.Any("err", err))
		sendFailure(w, http.StatusOK, msgSaveFailed)
		return
	}

	log.Info("metadata generated", slog.Int64("attachment_id", req.AttachmentID))
	sendSuccess(w, res)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.checkAjax(w, r, AdminNonceAction, CapManageOptions); !ok {
		return
	}

	apiKey := sanitize.TextField(r.PostForm.Get("api_key"))
	if err := s.gateway.TestConnection(r.Context(), apiKey); err != nil {
		logging.FromContext(r.Context()).Info("connection test failed", slog.Any("err", err))
		sendFailure(w, http.StatusOK, userMessage(err))
		return
	}
	sendSuccess(w, messageData{Message: msgConnectionOK})
}

// handleNonce issues a nonce for the calling user.
func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}
	action := r.URL.Query().Get("action")
	if action != augmenter.MediaNonceAction && action != AdminNonceAction {
		sendFailure(w, http.StatusBadRequest, "Unknown nonce action.")
		return
	}
	u := userFrom(r.Context())
	sendSuccess(w, map[string]string{"nonce": s.auth.CreateNonce(action, u.Name)})
}
