package augmenter

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"media-meta/internal/ai"
)

var (
	// ErrInvalidFileType is returned when the attachment is not an image
	// type the model accepts. No request is sent.
	ErrInvalidFileType = errors.New("invalid file type")

	ErrNoGenerator = errors.New("no generator configured")
	// ErrBusy is returned when the panel's button is still locked by an
	// earlier click.
	ErrBusy = errors.New("generation already in progress")
)

var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true, "avif": true, "gif": true,
}

// extension returns the lower-cased text after the last dot, or "" when
// the name has no extension (including dotfiles such as ".png").
func extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// AllowedFile reports whether filename has an accepted image extension.
func AllowedFile(filename string) bool {
	return allowedExtensions[extension(filename)]
}

// Generate runs the generate button's click flow on v: validate the file,
// lock the button, ask the generator, then write the returned fields into
// the model and the form and save the model.
func (a *Augmenter) Generate(ctx context.Context, v *View) error {
	btn := v.Root.Find(buttonSelector)
	a.dom.Lock()
	busy := btn.Is("[disabled]")
	a.dom.Unlock()
	if busy {
		return ErrBusy
	}

	if !AllowedFile(v.Model.Get(KeyFilename)) {
		a.notifier.Alert(a.strings.InvalidFileType)
		return ErrInvalidFileType
	}
	if a.generator == nil {
		return ErrNoGenerator
	}

	// A missing or bad id goes through as 0 and is rejected server side.
	id, _ := strconv.ParseInt(v.Model.Get(KeyID), 10, 64)

	a.dom.Lock()
	// Checked again under the lock that sets the mark.
	if btn.Is("[disabled]") {
		a.dom.Unlock()
		return ErrBusy
	}
	req := ai.GenerationRequest{
		AttachmentID:         id,
		Keywords:             v.Root.Find(keywordsSelector).AttrOr("value", ""),
		IncludeInAlt:         checked(v.Root.Find(includeAltSelector)),
		IncludeInTitle:       checked(v.Root.Find(includeTitleSelector)),
		IncludeInDescription: checked(v.Root.Find(includeDescriptionSelector)),
	}
	spinner := v.Root.Find(spinnerSelector)
	btn.SetAttr("disabled", "disabled")
	btn.SetText(a.strings.Generating)
	spinner.AddClass("is-active")
	a.dom.Unlock()

	res, err := a.generator.Generate(ctx, req)

	defer func() {
		a.dom.Lock()
		spinner.RemoveClass("is-active")
		a.dom.Unlock()
	}()

	if err != nil {
		a.fail(btn, err)
		return err
	}

	a.apply(v, res)

	if err := v.Model.Save(ctx); err != nil {
		a.fail(btn, err)
		return err
	}

	a.dom.Lock()
	btn.SetText(a.strings.Success)
	a.dom.Unlock()
	a.schedule(successResetDelay, func() { a.resetButton(btn) })
	return nil
}

func (a *Augmenter) fail(btn *goquery.Selection, err error) {
	msg := err.Error()
	if msg == "" {
		msg = a.strings.UnknownError
	}
	a.notifier.Alert(a.strings.Error + msg)
	a.resetButton(btn)
}

func (a *Augmenter) resetButton(btn *goquery.Selection) {
	a.dom.Lock()
	defer a.dom.Unlock()
	btn.RemoveAttr("disabled")
	btn.SetText(a.strings.Generate)
}

// apply writes each non-empty field to the model and to its form field.
func (a *Augmenter) apply(v *View, res *ai.GenerationResult) {
	if res == nil {
		return
	}
	fields := []struct {
		key   string
		value *string
	}{
		{KeyAlt, res.AltText},
		{KeyTitle, res.Title},
		{KeyDescription, res.Description},
	}

	for _, f := range fields {
		if f.value == nil || *f.value == "" {
			continue
		}
		v.Model.Set(f.key, *f.value)

		a.dom.Lock()
		field := locateField(v, f.key)
		if field.Length() > 0 {
			setValue(field, *f.value)
		}
		a.dom.Unlock()

		if field.Length() > 0 && v.OnChange != nil {
			v.OnChange(f.key, field)
		}
	}
}

// locateField finds the form control for setting, first inside the view and
// then anywhere inside a .media-modal of the document.
func locateField(v *View, setting string) *goquery.Selection {
	sel := `[data-setting="` + setting + `"]`
	field := toInput(v.Root.Find(sel))
	if field.Length() == 0 && v.Document != nil {
		field = toInput(v.Document.Find(".media-modal " + sel))
	}
	return field
}

// toInput descends into s when it is a container rather than a control.
func toInput(s *goquery.Selection) *goquery.Selection {
	if s.Length() > 0 && !s.Is("input, textarea, select, button") {
		return s.Find("input, textarea")
	}
	return s
}

func setValue(field *goquery.Selection, value string) {
	field.Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "textarea" {
			s.SetText(value)
			return
		}
		s.SetAttr("value", value)
	})
}

func checked(s *goquery.Selection) bool {
	_, ok := s.Attr("checked")
	return ok
}
