package render

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestTemplateSet_Render(t *testing.T) {
	ts := NewTemplateSet()
	if err := ts.Register("welcome", Template{
		Category: "onboarding",
		Title:    "Welcome {{.name}}",
		Body:     "Hello {{.name}}, glad you joined.",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	out, err := ts.Render(context.Background(), "welcome", map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.Category != "onboarding" {
		t.Errorf("expected category onboarding, got %q", out.Category)
	}

	var payload map[string]string
	if err := json.Unmarshal(out.Payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload["title"] != "Welcome Ada" {
		t.Errorf("unexpected title %q", payload["title"])
	}
	if payload["body"] != "Hello Ada, glad you joined." {
		t.Errorf("unexpected body %q", payload["body"])
	}
	if payload["template"] != "welcome" {
		t.Errorf("unexpected template ref %q", payload["template"])
	}
}

func TestTemplateSet_UnknownReference(t *testing.T) {
	ts := NewTemplateSet()
	if _, err := ts.Render(context.Background(), "missing", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestTemplateSet_RegisterRejectsBadSyntax(t *testing.T) {
	ts := NewTemplateSet()
	if err := ts.Register("broken", Template{Title: "{{.name"}); err == nil {
		t.Error("expected parse error for malformed title")
	}
	if err := ts.Register("broken", Template{Body: "{{range}}"}); err == nil {
		t.Error("expected parse error for malformed body")
	}
}

func TestTemplateSet_RegisterReplaces(t *testing.T) {
	ts := NewTemplateSet()
	ctx := context.Background()

	_ = ts.Register("tip", Template{Category: "tips", Title: "v1", Body: "first"})
	_ = ts.Register("tip", Template{Category: "tips", Title: "v2", Body: "second"})

	out, err := ts.Render(ctx, "tip", nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var payload map[string]string
	_ = json.Unmarshal(out.Payload, &payload)
	if payload["title"] != "v2" || payload["body"] != "second" {
		t.Errorf("registration did not replace: %v", payload)
	}
}
