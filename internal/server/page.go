package server

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"media-meta/internal/augmenter"
	"media-meta/internal/db"
	"media-meta/internal/logging"
)

// viewModes maps the ?mode= values to the host view class that renders them.
var viewModes = map[string]string{
	"grid":     "Details",
	"lightbox": "TwoColumn",
	"edit":     "EditScreen",
}

var pageShell = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"/><title>{{.Title}}</title></head>
<body>{{if .Modal}}<div class="media-modal"><div class="media-frame-content" id="media-root"></div></div>{{else}}<div id="media-root"></div>{{end}}</body></html>`))

// The three host layouts: grid keeps fields in .settings, lightbox puts
// them in .attachment-info, the edit screen wraps .attachment-details.
var hostTemplates = template.Must(template.New("host").Parse(`
{{define "Details"}}<div class="attachment-details" data-id="{{.ID}}">
	<div class="attachment-info"><div class="filename"><strong>File name:</strong> {{.Filename}}</div></div>
	<div class="settings">
		<span class="setting" data-setting="alt"><label>Alternative Text</label><textarea>{{.Alt}}</textarea></span>
		<span class="setting" data-setting="title"><label>Title</label><input type="text" value="{{.Title}}"/></span>
		<span class="setting" data-setting="description"><label>Description</label><textarea>{{.Description}}</textarea></span>
	</div>
</div>{{end}}
{{define "TwoColumn"}}<div class="attachment-media-view"><div class="thumbnail"></div></div>
<div class="attachment-info">
	<div class="details"><div class="filename"><strong>File name:</strong> {{.Filename}}</div></div>
	<span class="setting" data-setting="alt"><label>Alternative Text</label><textarea>{{.Alt}}</textarea></span>
	<span class="setting" data-setting="title"><label>Title</label><input type="text" value="{{.Title}}"/></span>
	<span class="setting" data-setting="description"><label>Description</label><textarea>{{.Description}}</textarea></span>
</div>{{end}}
{{define "EditScreen"}}<div class="wrap">
	<h1>Edit Media</h1>
	<div class="attachment-details">
		<p><label>Alternative Text<input type="text" data-setting="alt" value="{{.Alt}}"/></label></p>
		<p><label>Title<input type="text" data-setting="title" value="{{.Title}}"/></label></p>
		<p><label>Description<textarea data-setting="description">{{.Description}}</textarea></label></p>
	</div>
</div>{{end}}`))

type hostData struct {
	ID, Filename, Alt, Title, Description string
}

func hostClass(name string) *augmenter.Class {
	return augmenter.NewClass(name, func(v *augmenter.View) error {
		data := hostData{
			ID:          v.Model.Get(augmenter.KeyID),
			Filename:    v.Model.Get(augmenter.KeyFilename),
			Alt:         v.Model.Get(augmenter.KeyAlt),
			Title:       v.Model.Get(augmenter.KeyTitle),
			Description: v.Model.Get(augmenter.KeyDescription),
		}
		var b bytes.Buffer
		if err := hostTemplates.ExecuteTemplate(&b, name, data); err != nil {
			return err
		}
		v.Root.SetHtml(b.String())
		return nil
	})
}

func hostViews() *augmenter.Registry {
	return augmenter.NewRegistry(hostClass("Details"), hostClass("TwoColumn"), hostClass("EditScreen"))
}

func attachmentModel(a *db.Attachment) *augmenter.FieldModel {
	return augmenter.NewFieldModel(map[string]string{
		augmenter.KeyID:          strconv.FormatInt(a.ID, 10),
		augmenter.KeyFilename:    a.Filename,
		augmenter.KeyAlt:         a.AltText,
		augmenter.KeyTitle:       a.Title,
		augmenter.KeyDescription: a.Description,
	}, nil)
}

// handleMediaPage renders the media-details view for an attachment with the
// generator panel injected.
func (s *Server) handleMediaPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid attachment ID")
		return
	}
	if !userFrom(r.Context()).Can(CapUploadFiles) {
		writeError(w, http.StatusForbidden, msgPermissionDenied)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "grid"
	}
	class, ok := viewModes[mode]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown view mode")
		return
	}

	a, err := s.store.GetAttachment(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Attachment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching attachment")
		return
	}

	page, err := s.renderMedia(class, mode != "edit", a)
	if err != nil {
		logging.FromContext(r.Context()).Error("could not render media view", slog.Int64("id", id), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "Error rendering media view")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (s *Server) renderMedia(class string, modal bool, a *db.Attachment) (string, error) {
	var shell bytes.Buffer
	if err := pageShell.Execute(&shell, struct {
		Title string
		Modal bool
	}{Title: "Edit " + a.Filename, Modal: modal}); err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(&shell)
	if err != nil {
		return "", err
	}
	v := &augmenter.View{Root: doc.Find("#media-root"), Document: doc, Model: attachmentModel(a)}
	if err := s.views.Render(class, v); err != nil {
		return "", err
	}
	return doc.Html()
}
