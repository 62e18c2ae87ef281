// Package augmenter injects the metadata generator panel into rendered
// media-details views and drives the generate button.
//
// The host UI is modelled as a table of named view classes. Extend wraps
// each class once so that every render is followed by Inject.
package augmenter

import (
	"context"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Model keys shared with the host's attachment record.
const (
	KeyID          = "id"
	KeyFilename    = "filename"
	KeyAlt         = "alt"
	KeyTitle       = "title"
	KeyDescription = "description"
)

// Model is the view's in-memory attachment record.
type Model interface {
	Get(key string) string
	Set(key, value string)
	Save(ctx context.Context) error
}

// View is one rendered view instance.
type View struct {
	Root     *goquery.Selection
	Document *goquery.Document
	Model    Model
	// OnChange, when set, is called after a field's value is written.
	OnChange func(setting string, field *goquery.Selection)
}

// ViewClass is a kind of host view and its render hook.
type ViewClass interface {
	Name() string
	Render(v *View) error
}

// ClassTable is the host's registry of view classes. Classes may appear
// at any time.
type ClassTable interface {
	Classes() []ViewClass
	Replace(c ViewClass)
}

// Class adapts a render function to ViewClass.
type Class struct {
	name   string
	render func(v *View) error
}

func NewClass(name string, render func(v *View) error) *Class {
	return &Class{name: name, render: render}
}

func (c *Class) Name() string { return c.name }

func (c *Class) Render(v *View) error {
	if c.render == nil {
		return nil
	}
	return c.render(v)
}

// Registry is a ClassTable keyed by class name, kept in definition order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	classes map[string]ViewClass
}

func NewRegistry(classes ...ViewClass) *Registry {
	r := &Registry{classes: make(map[string]ViewClass)}
	for _, c := range classes {
		r.Define(c)
	}
	return r
}

// Define adds c, or redefines the class with the same name.
func (r *Registry) Define(c ViewClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[c.Name()]; !ok {
		r.order = append(r.order, c.Name())
	}
	r.classes[c.Name()] = c
}

func (r *Registry) Replace(c ViewClass) { r.Define(c) }

func (r *Registry) Lookup(name string) (ViewClass, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

func (r *Registry) Classes() []ViewClass {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ViewClass, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.classes[name])
	}
	return out
}

// Render renders v with the class currently registered under name.
func (r *Registry) Render(name string, v *View) error {
	c, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown view class %q", name)
	}
	return c.Render(v)
}

// FieldModel is a Model over a string map. Save hands a snapshot of the
// fields to the save function.
type FieldModel struct {
	mu     sync.Mutex
	fields map[string]string
	save   func(ctx context.Context, fields map[string]string) error
}

func NewFieldModel(fields map[string]string, save func(ctx context.Context, fields map[string]string) error) *FieldModel {
	m := &FieldModel{fields: make(map[string]string, len(fields)), save: save}
	for k, v := range fields {
		m.fields[k] = v
	}
	return m
}

func (m *FieldModel) Get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields[key]
}

func (m *FieldModel) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[key] = value
}

func (m *FieldModel) Save(ctx context.Context) error {
	if m.save == nil {
		return nil
	}
	m.mu.Lock()
	snapshot := make(map[string]string, len(m.fields))
	for k, v := range m.fields {
		snapshot[k] = v
	}
	m.mu.Unlock()
	return m.save(ctx, snapshot)
}
