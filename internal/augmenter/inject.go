package augmenter

import (
	"fmt"
	"html"

	"github.com/PuerkitoBio/goquery"
)

const (
	controlsSelector = ".media-meta-generator-controls"
	keywordsSelector = ".media-meta-generator-keywords"
	buttonSelector   = ".media-meta-generator-generate-btn"
	spinnerSelector  = ".media-meta-generator-controls .spinner"

	includeAltSelector         = ".media-meta-generator-include-keywords-alt"
	includeTitleSelector       = ".media-meta-generator-include-keywords-title"
	includeDescriptionSelector = ".media-meta-generator-include-keywords-description"
)

const panelTemplate = `<div class="media-meta-generator-controls">
	<h3><span class="media-meta-generator-title">Image Metadata Generator</span> <br/>Instantly populate the alt text, title, and description fields below.</h3>
	<details>
		<summary><span class="details-summary">Context Keywords</span></summary>
		<label class="setting">
			<p>Add specific keywords to guide the AI and include in the generated text. Separate keywords with commas.</p>
			<input type="text" class="media-meta-generator-keywords" value="" placeholder="e.g. sunset, happy, logo"/>
		</label>
		<div class="media-meta-generator-include-keywords">
			<p>Include the keywords in the generated:</p>
			<div class="include-keywords-checkboxes">
				<span class="setting-include-keywords">
					<input type="checkbox" id="media-meta-generator-include-keywords-alt" class="media-meta-generator-include-keywords-alt" checked/>
					<label for="media-meta-generator-include-keywords-alt">Alt Text</label>
				</span>
				<span class="setting-include-keywords">
					<input type="checkbox" id="media-meta-generator-include-keywords-title" class="media-meta-generator-include-keywords-title"/>
					<label for="media-meta-generator-include-keywords-title">Title</label>
				</span>
				<span class="setting-include-keywords">
					<input type="checkbox" id="media-meta-generator-include-keywords-description" class="media-meta-generator-include-keywords-description" checked/>
					<label for="media-meta-generator-include-keywords-description">Description</label>
				</span>
			</div>
		</div>
	</details>
	<div class="actions">
		<button type="button" class="button button-secondary media-meta-generator-generate-btn">%s</button>
		<span class="spinner"></span>
	</div>
</div>`

// PanelHTML returns the control panel markup.
func (a *Augmenter) PanelHTML() string {
	return fmt.Sprintf(panelTemplate, html.EscapeString(a.strings.Generate))
}

// Inject adds the control panel to v unless it already has one. The host
// may still be writing the view, so the insert runs after a short delay
// and checks again before writing.
func (a *Augmenter) Inject(v *View) {
	a.dom.Lock()
	exists := v.Root.Find(controlsSelector).Length() > 0
	a.dom.Unlock()
	if exists {
		return
	}
	a.schedule(injectDelay, func() { a.injectNow(v) })
}

func (a *Augmenter) injectNow(v *View) {
	a.dom.Lock()
	defer a.dom.Unlock()

	if v.Root.Find(controlsSelector).Length() > 0 {
		return
	}
	panel := a.PanelHTML()

	// Grid, lightbox and edit screens each render a different shape.
	if t := v.Root.Find(".settings"); t.Length() > 0 {
		t.First().BeforeHtml(panel)
		return
	}
	if t := v.Root.Find(".attachment-info"); t.Length() > 0 {
		t.First().AfterHtml(panel)
		return
	}
	if t := v.Root.Find(".attachment-details"); t.Length() > 0 {
		t.First().PrependHtml(panel)
		return
	}
	// Covers a root that is itself .attachment-details.
	v.Root.PrependHtml(panel)
}

// Panel returns the injected panel in v, if any.
func Panel(v *View) *goquery.Selection {
	return v.Root.Find(controlsSelector)
}
