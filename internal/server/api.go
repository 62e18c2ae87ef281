package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"media-meta/internal/db"
	"media-meta/internal/logging"
	"media-meta/internal/sanitize"
)

type saveFieldsRequest struct {
	AltText     string `json:"alt"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid attachment ID")
		return
	}
	if !userFrom(r.Context()).Can(CapUploadFiles) {
		writeError(w, http.StatusForbidden, msgPermissionDenied)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetAttachment(w, r, id)
	case http.MethodPut:
		s.handleSaveAttachment(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request, id int64) {
	a, err := s.store.GetAttachment(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Attachment not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("could not load attachment", slog.Int64("id", id), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "Error fetching attachment")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleSaveAttachment stores all three text fields as sent, the way the
// media modal saves its model.
func (s *Server) handleSaveAttachment(w http.ResponseWriter, r *http.Request, id int64) {
	var req saveFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := s.store.SaveFields(r.Context(), id,
		sanitize.TextField(req.AltText),
		sanitize.TextField(req.Title),
		sanitize.TextareaField(req.Description))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Attachment not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("could not save attachment", slog.Int64("id", id), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "Failed to save attachment")
		return
	}
	s.handleGetAttachment(w, r, id)
}
