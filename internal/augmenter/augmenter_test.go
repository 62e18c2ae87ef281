package augmenter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-meta/internal/ai"
)

type manualScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	queue  []func()
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.queue = append(m.queue, f)
}

// runAll fires queued callbacks, including ones queued while running.
func (m *manualScheduler) runAll() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		f := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		f()
	}
}

type recordingGenerator struct {
	mu    sync.Mutex
	calls []ai.GenerationRequest
	res   *ai.GenerationResult
	err   error
}

func (g *recordingGenerator) Generate(_ context.Context, req ai.GenerationRequest) (*ai.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	return g.res, g.err
}

type alerts struct {
	mu   sync.Mutex
	msgs []string
}

func (a *alerts) Alert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
}

func str(s string) *string { return &s }

const gridHTML = `<html><body><div class="media-modal"><div id="view" class="attachment-details">
<div class="attachment-info"><div class="filename">cat.jpg</div></div>
<div class="settings">
<span class="setting" data-setting="alt"><label>Alternative Text</label><textarea></textarea></span>
<span class="setting" data-setting="title"><label>Title</label><input type="text" value="old title"/></span>
<span class="setting" data-setting="description"><label>Description</label><textarea>old desc</textarea></span>
</div>
</div></div></body></html>`

func newView(t *testing.T, doc string, fields map[string]string, save func(context.Context, map[string]string) error) *View {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	require.NoError(t, err)
	root := d.Find("#view")
	require.Equal(t, 1, root.Length())
	return &View{Root: root, Document: d, Model: NewFieldModel(fields, save)}
}

func TestInjectIsIdempotent(t *testing.T) {
	a := New(Options{Scheduler: Immediate{}})
	v := newView(t, gridHTML, nil, nil)

	a.Inject(v)
	a.Inject(v)
	assert.Equal(t, 1, Panel(v).Length())
}

func TestInjectRechecksWhenDeferred(t *testing.T) {
	s := &manualScheduler{}
	a := New(Options{Scheduler: s})
	v := newView(t, gridHTML, nil, nil)

	a.Inject(v)
	a.Inject(v)
	assert.Equal(t, 0, Panel(v).Length(), "injection waits for the scheduler")
	assert.Equal(t, []time.Duration{injectDelay, injectDelay}, s.delays)

	s.runAll()
	assert.Equal(t, 1, Panel(v).Length())
}

func TestInjectTargets(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		check func(t *testing.T, v *View)
	}{
		{
			name: "before settings",
			doc:  gridHTML,
			check: func(t *testing.T, v *View) {
				assert.True(t, v.Root.Find(".settings").Prev().Is(controlsSelector))
			},
		},
		{
			name: "after attachment info",
			doc: `<div id="view"><div class="attachment-media-view"></div>
				<div class="attachment-info"><span class="setting" data-setting="alt"><textarea></textarea></span></div></div>`,
			check: func(t *testing.T, v *View) {
				assert.True(t, v.Root.Find(".attachment-info").Next().Is(controlsSelector))
			},
		},
		{
			name: "inside descendant attachment details",
			doc:  `<div id="view" class="wrap"><h1>Edit Media</h1><div class="attachment-details"><input data-setting="alt"/></div></div>`,
			check: func(t *testing.T, v *View) {
				assert.True(t, v.Root.Find(".attachment-details").Children().First().Is(controlsSelector))
				assert.True(t, v.Root.Children().First().Is("h1"))
			},
		},
		{
			name: "root is attachment details",
			doc:  `<div id="view" class="attachment-details"><p>preview</p></div>`,
			check: func(t *testing.T, v *View) {
				assert.True(t, v.Root.Children().First().Is(controlsSelector))
			},
		},
		{
			name: "fallback to root",
			doc:  `<div id="view"><p>preview</p></div>`,
			check: func(t *testing.T, v *View) {
				assert.True(t, v.Root.Children().First().Is(controlsSelector))
			},
		},
		{
			name: "first of several settings",
			doc:  `<div id="view"><div class="settings" id="one"></div><div class="settings" id="two"></div></div>`,
			check: func(t *testing.T, v *View) {
				assert.True(t, v.Root.Find("#one").Prev().Is(controlsSelector))
				assert.False(t, v.Root.Find("#two").Prev().Is(controlsSelector))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(Options{Scheduler: Immediate{}})
			v := newView(t, tt.doc, nil, nil)
			a.Inject(v)
			require.Equal(t, 1, Panel(v).Length())
			tt.check(t, v)
		})
	}
}

func TestPanelDefaults(t *testing.T) {
	a := New(Options{Scheduler: Immediate{}})
	v := newView(t, gridHTML, nil, nil)
	a.Inject(v)

	p := Panel(v)
	assert.True(t, checked(p.Find(includeAltSelector)))
	assert.False(t, checked(p.Find(includeTitleSelector)))
	assert.True(t, checked(p.Find(includeDescriptionSelector)))
	assert.Equal(t, "Generate Alt, Title, and Description", p.Find(buttonSelector).Text())
	assert.Equal(t, 1, p.Find(".spinner").Length())
	assert.Equal(t, 1, p.Find(keywordsSelector).Length())
}

func TestExtend(t *testing.T) {
	s := &manualScheduler{}
	a := New(Options{Scheduler: s})

	renders := 0
	details := NewClass("Details", func(v *View) error {
		renders++
		return nil
	})
	reg := NewRegistry(details)

	assert.Equal(t, 1, a.Extend(reg))
	assert.True(t, a.Patched("Details"))
	assert.Equal(t, 0, a.Extend(reg), "already patched classes are skipped")

	v := newView(t, gridHTML, nil, nil)
	require.NoError(t, reg.Render("Details", v))
	assert.Equal(t, 1, renders, "parent render still runs")
	s.runAll()
	assert.Equal(t, 1, Panel(v).Length())

	t.Run("lazily defined class is picked up on modal open", func(t *testing.T) {
		reg.Define(NewClass("TwoColumn", nil))
		assert.False(t, a.Patched("TwoColumn"))

		a.ModalOpened(reg)
		assert.Equal(t, modalOpenDelay, s.delays[len(s.delays)-1])
		s.runAll()
		assert.True(t, a.Patched("TwoColumn"))

		a.ModalClicked(reg)
		assert.Equal(t, modalClickDelay, s.delays[len(s.delays)-1])
		s.runAll()

		c, ok := reg.Lookup("TwoColumn")
		require.True(t, ok)
		_, wrapped := c.(*patchedClass)
		assert.True(t, wrapped)
		_, doubled := c.(*patchedClass).parent.(*patchedClass)
		assert.False(t, doubled, "a class is wrapped once")
	})

	t.Run("patched names are never forgotten", func(t *testing.T) {
		reg.Define(NewClass("Details", nil))
		assert.Equal(t, 0, a.Extend(reg))
	})
}

func TestRegistryRenderUnknown(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Render("Missing", &View{}))
}

func TestGenerateRejectsFileType(t *testing.T) {
	for _, name := range []string{"doc.pdf", "noext", "vector.svg", "photo.jpg.exe", ".png", ""} {
		t.Run(name, func(t *testing.T) {
			gen := &recordingGenerator{}
			al := &alerts{}
			a := New(Options{Scheduler: Immediate{}, Generator: gen, Notifier: al})
			v := newView(t, gridHTML, map[string]string{KeyID: "5", KeyFilename: name}, nil)
			a.Inject(v)

			err := a.Generate(context.Background(), v)
			assert.ErrorIs(t, err, ErrInvalidFileType)
			assert.Empty(t, gen.calls)
			require.Len(t, al.msgs, 1)
			assert.Contains(t, al.msgs[0], ".jpg, .jpeg, .png, .webp, .avif, .gif")
		})
	}
}

func TestAllowedFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "B.JPEG", "c.Png", "d.webp", "e.AVIF", "f.gif", "my.photo.jpg"} {
		assert.True(t, AllowedFile(name), name)
	}
}

func TestGenerateSuccess(t *testing.T) {
	s := &manualScheduler{}
	gen := &recordingGenerator{res: &ai.GenerationResult{AltText: str("A"), Title: str("B"), Description: str("C")}}
	al := &alerts{}
	a := New(Options{Scheduler: s, Generator: gen, Notifier: al})

	var saved map[string]string
	v := newView(t, gridHTML, map[string]string{KeyID: "42", KeyFilename: "Cat.JPG"}, func(_ context.Context, f map[string]string) error {
		saved = f
		return nil
	})
	var changed []string
	v.OnChange = func(setting string, _ *goquery.Selection) { changed = append(changed, setting) }

	a.Inject(v)
	s.runAll()
	Panel(v).Find(keywordsSelector).SetAttr("value", "red fox")

	require.NoError(t, a.Generate(context.Background(), v))

	require.Len(t, gen.calls, 1)
	assert.Equal(t, ai.GenerationRequest{
		AttachmentID:         42,
		Keywords:             "red fox",
		IncludeInAlt:         true,
		IncludeInTitle:       false,
		IncludeInDescription: true,
	}, gen.calls[0])

	assert.Equal(t, "A", v.Model.Get(KeyAlt))
	assert.Equal(t, "B", v.Model.Get(KeyTitle))
	assert.Equal(t, "C", v.Model.Get(KeyDescription))

	assert.Equal(t, "A", v.Root.Find(`[data-setting="alt"] textarea`).Text())
	assert.Equal(t, "B", v.Root.Find(`[data-setting="title"] input`).AttrOr("value", ""))
	assert.Equal(t, "C", v.Root.Find(`[data-setting="description"] textarea`).Text())
	assert.Equal(t, []string{KeyAlt, KeyTitle, KeyDescription}, changed)

	require.NotNil(t, saved)
	assert.Equal(t, "A", saved[KeyAlt])
	assert.Empty(t, al.msgs)

	btn := Panel(v).Find(buttonSelector)
	spinner := Panel(v).Find(".spinner")
	assert.Equal(t, "Success!", btn.Text())
	assert.True(t, btn.Is("[disabled]"))
	assert.False(t, spinner.HasClass("is-active"))

	assert.Equal(t, successResetDelay, s.delays[len(s.delays)-1])
	s.runAll()
	assert.Equal(t, "Generate Alt, Title, and Description", btn.Text())
	assert.False(t, btn.Is("[disabled]"))
}

func TestGenerateSkipsAbsentFields(t *testing.T) {
	gen := &recordingGenerator{res: &ai.GenerationResult{AltText: str("A"), Description: str("")}}
	a := New(Options{Scheduler: Immediate{}, Generator: gen})
	v := newView(t, gridHTML, map[string]string{KeyID: "1", KeyFilename: "a.png", KeyTitle: "Keep"}, nil)
	a.Inject(v)

	require.NoError(t, a.Generate(context.Background(), v))
	assert.Equal(t, "Keep", v.Model.Get(KeyTitle))
	assert.Equal(t, "old title", v.Root.Find(`[data-setting="title"] input`).AttrOr("value", ""))
	assert.Equal(t, "old desc", v.Root.Find(`[data-setting="description"] textarea`).Text())
}

func TestGenerateFallsBackToModalScope(t *testing.T) {
	doc := `<html><body>
		<div class="media-modal"><label data-setting="alt"><input type="text"/></label><textarea data-setting="description"></textarea></div>
		<div id="view"><div class="attachment-info"></div></div>
	</body></html>`
	gen := &recordingGenerator{res: &ai.GenerationResult{AltText: str("A"), Description: str("C")}}
	a := New(Options{Scheduler: Immediate{}, Generator: gen})
	v := newView(t, doc, map[string]string{KeyID: "1", KeyFilename: "a.webp"}, nil)
	a.Inject(v)

	require.NoError(t, a.Generate(context.Background(), v))
	assert.Equal(t, "A", v.Document.Find(`.media-modal [data-setting="alt"] input`).AttrOr("value", ""))
	assert.Equal(t, "C", v.Document.Find(`.media-modal textarea[data-setting="description"]`).Text())
}

func TestGenerateFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"gateway message", &ai.Error{Kind: ai.KindAPI, Code: 429, Message: "Quota exceeded. Please check your Google Cloud billing or wait."}, "Error: Quota exceeded. Please check your Google Cloud billing or wait."},
		{"no message", errors.New(""), "Error: Unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &recordingGenerator{err: tt.err}
			al := &alerts{}
			a := New(Options{Scheduler: Immediate{}, Generator: gen, Notifier: al})
			saves := 0
			v := newView(t, gridHTML, map[string]string{KeyID: "1", KeyFilename: "a.gif"}, func(context.Context, map[string]string) error {
				saves++
				return nil
			})
			a.Inject(v)

			err := a.Generate(context.Background(), v)
			require.Error(t, err)
			assert.Equal(t, []string{tt.want}, al.msgs)
			assert.Zero(t, saves)

			btn := Panel(v).Find(buttonSelector)
			assert.Equal(t, "Generate Alt, Title, and Description", btn.Text())
			assert.False(t, btn.Is("[disabled]"))
			assert.False(t, Panel(v).Find(".spinner").HasClass("is-active"))
		})
	}
}

func TestGenerateSaveFailure(t *testing.T) {
	gen := &recordingGenerator{res: &ai.GenerationResult{AltText: str("A")}}
	al := &alerts{}
	a := New(Options{Scheduler: Immediate{}, Generator: gen, Notifier: al})
	v := newView(t, gridHTML, map[string]string{KeyID: "1", KeyFilename: "a.jpg"}, func(context.Context, map[string]string) error {
		return errors.New("disk full")
	})
	a.Inject(v)

	require.Error(t, a.Generate(context.Background(), v))
	assert.Equal(t, []string{"Error: disk full"}, al.msgs)
	assert.False(t, Panel(v).Find(buttonSelector).Is("[disabled]"))
}

func TestTimerSchedulerWait(t *testing.T) {
	a := New(Options{})
	v := newView(t, gridHTML, nil, nil)

	a.Inject(v)
	a.Wait()

	a.dom.Lock()
	defer a.dom.Unlock()
	assert.Equal(t, 1, Panel(v).Length())
}

type blockingGenerator struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	res     *ai.GenerationResult
}

func (g *blockingGenerator) Generate(ctx context.Context, _ ai.GenerationRequest) (*ai.GenerationResult, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
		return g.res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestGenerateOneRequestPerPanel(t *testing.T) {
	s := &manualScheduler{}
	gen := &blockingGenerator{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		res:     &ai.GenerationResult{AltText: str("A")},
	}
	al := &alerts{}
	a := New(Options{Scheduler: s, Generator: gen, Notifier: al})
	v := newView(t, gridHTML, map[string]string{KeyID: "1", KeyFilename: "a.png"}, nil)
	a.Inject(v)
	s.runAll()

	first := make(chan error, 1)
	go func() { first <- a.Generate(context.Background(), v) }()
	<-gen.started

	assert.ErrorIs(t, a.Generate(context.Background(), v), ErrBusy)
	assert.Equal(t, int32(1), gen.calls.Load())

	close(gen.release)
	require.NoError(t, <-first)

	// Still locked while showing the success label.
	assert.ErrorIs(t, a.Generate(context.Background(), v), ErrBusy)

	s.runAll()
	gen.release = make(chan struct{})
	close(gen.release)
	require.NoError(t, a.Generate(context.Background(), v))
	assert.Equal(t, int32(2), gen.calls.Load())
	assert.Empty(t, al.msgs)
}
