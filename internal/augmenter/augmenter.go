package augmenter

import (
	"context"
	"sync"
	"time"

	"media-meta/internal/ai"
)

const (
	injectDelay       = 50 * time.Millisecond
	modalOpenDelay    = 10 * time.Millisecond
	modalClickDelay   = 100 * time.Millisecond
	successResetDelay = 2 * time.Second
)

// Generator performs one generation round trip. *ai.Gateway and
// *RemoteGenerator both satisfy it.
type Generator interface {
	Generate(ctx context.Context, req ai.GenerationRequest) (*ai.GenerationResult, error)
}

// Notifier shows a message to the user.
type Notifier interface {
	Alert(msg string)
}

type NotifierFunc func(msg string)

func (f NotifierFunc) Alert(msg string) { f(msg) }

// Strings are the user-visible labels.
type Strings struct {
	Generate        string
	Generating      string
	Error           string
	InvalidFileType string
	Success         string
	UnknownError    string
}

func DefaultStrings() Strings {
	return Strings{
		Generate:        "Generate Alt, Title, and Description",
		Generating:      "Just a sec...",
		Error:           "Error: ",
		InvalidFileType: "Metadata can only be generated for images with these filetypes: .jpg, .jpeg, .png, .webp, .avif, .gif",
		Success:         "Success!",
		UnknownError:    "Unknown error",
	}
}

type Options struct {
	Scheduler Scheduler
	Generator Generator
	Notifier  Notifier
	Strings   *Strings
}

// Augmenter owns the patched-class set and every piece of state the panel
// needs.
type Augmenter struct {
	mu      sync.Mutex
	patched map[string]bool

	// dom serializes writes to documents, which may come from timer goroutines.
	dom sync.Mutex

	pending   sync.WaitGroup
	scheduler Scheduler
	generator Generator
	notifier  Notifier
	strings   Strings
}

func New(opts Options) *Augmenter {
	a := &Augmenter{
		patched:   make(map[string]bool),
		scheduler: opts.Scheduler,
		generator: opts.Generator,
		notifier:  opts.Notifier,
		strings:   DefaultStrings(),
	}
	if a.scheduler == nil {
		a.scheduler = TimerScheduler{}
	}
	if a.notifier == nil {
		a.notifier = NotifierFunc(func(string) {})
	}
	if opts.Strings != nil {
		a.strings = *opts.Strings
	}
	return a
}

// schedule runs f through the scheduler and tracks it for Wait.
func (a *Augmenter) schedule(d time.Duration, f func()) {
	a.pending.Add(1)
	a.scheduler.AfterFunc(d, func() {
		defer a.pending.Done()
		f()
	})
}

// Wait blocks until every scheduled callback has run.
func (a *Augmenter) Wait() { a.pending.Wait() }

// patchedClass renders its parent, then injects the panel.
type patchedClass struct {
	parent ViewClass
	aug    *Augmenter
}

func (p *patchedClass) Name() string { return p.parent.Name() }

func (p *patchedClass) Render(v *View) error {
	if err := p.parent.Render(v); err != nil {
		return err
	}
	p.aug.Inject(v)
	return nil
}

// Extend wraps every class in t that has not been patched yet and returns
// how many it wrapped. A patched name stays patched even if the host later
// redefines the class.
func (a *Augmenter) Extend(t ClassTable) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, c := range t.Classes() {
		if a.patched[c.Name()] {
			continue
		}
		t.Replace(&patchedClass{parent: c, aug: a})
		a.patched[c.Name()] = true
		n++
	}
	return n
}

// Patched reports whether the class called name has been wrapped.
func (a *Augmenter) Patched(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.patched[name]
}

// ModalOpened re-extends t shortly after a media frame opens, when the
// host may have defined new classes.
func (a *Augmenter) ModalOpened(t ClassTable) {
	a.schedule(modalOpenDelay, func() { a.Extend(t) })
}

func (a *Augmenter) ModalClicked(t ClassTable) {
	a.schedule(modalClickDelay, func() { a.Extend(t) })
}
