// Package render defines the template renderer contract consumed by the
// scheduler and a text/template-backed implementation.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"text/template"
)

// ErrTemplateNotFound indicates an unregistered template reference.
var ErrTemplateNotFound = errors.New("template not found")

// Rendered is the output of a template render: an opaque payload for the
// queue plus the category used for preference checks.
type Rendered struct {
	Payload  json.RawMessage
	Category string
}

// Renderer resolves a template reference and renders it with the given
// context data.
type Renderer interface {
	Render(ctx context.Context, templateRef string, data map[string]any) (*Rendered, error)
}

// Template is the source form of a registered notification template.
type Template struct {
	Category string
	Title    string
	Body     string
}

type compiledTemplate struct {
	category string
	title    *template.Template
	body     *template.Template
}

// TemplateSet is an in-memory Renderer over registered text/template
// sources.
type TemplateSet struct {
	mu        sync.RWMutex
	templates map[string]*compiledTemplate
}

// NewTemplateSet creates an empty template set.
func NewTemplateSet() *TemplateSet {
	return &TemplateSet{
		templates: make(map[string]*compiledTemplate),
	}
}

// Register parses and stores a template under the given reference,
// replacing any previous registration.
func (ts *TemplateSet) Register(ref string, tpl Template) error {
	title, err := template.New(ref + ":title").Parse(tpl.Title)
	if err != nil {
		return fmt.Errorf("parse title template %q: %w", ref, err)
	}
	body, err := template.New(ref + ":body").Parse(tpl.Body)
	if err != nil {
		return fmt.Errorf("parse body template %q: %w", ref, err)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.templates[ref] = &compiledTemplate{
		category: tpl.Category,
		title:    title,
		body:     body,
	}
	return nil
}

func (ts *TemplateSet) Render(ctx context.Context, templateRef string, data map[string]any) (*Rendered, error) {
	ts.mu.RLock()
	tpl, ok := ts.templates[templateRef]
	ts.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateRef)
	}

	var title, body bytes.Buffer
	if err := tpl.title.Execute(&title, data); err != nil {
		return nil, fmt.Errorf("render title %q: %w", templateRef, err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render body %q: %w", templateRef, err)
	}

	payload, err := json.Marshal(map[string]string{
		"title":    title.String(),
		"body":     body.String(),
		"template": templateRef,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Rendered{
		Payload:  payload,
		Category: tpl.category,
	}, nil
}
