package render

import (
	"strings"
	"testing"

	"newsroom/internal/domain/newsletter"
)

// TestNewsletterRenderer_AllLayouts verifies every template constant has a layout.
func TestNewsletterRenderer_AllLayouts(t *testing.T) {
	r, err := NewNewsletterRenderer()
	if err != nil {
		t.Fatalf("NewNewsletterRenderer: %v", err)
	}
	data := NewsletterData{
		Title:           "March issue",
		Content:         "<p>Big <strong>news</strong></p>",
		SubscriberName:  "Ada",
		SubscriberEmail: "ada@example.com",
		Year:            2026,
	}
	for _, layout := range newsletter.ValidTemplates {
		out, err := r.Render(layout, data)
		if err != nil {
			t.Fatalf("%s: %v", layout, err)
		}
		if !strings.Contains(out, "<strong>news</strong>") {
			t.Errorf("%s: content HTML must be emitted unescaped", layout)
		}
		if !strings.Contains(out, "ada@example.com") {
			t.Errorf("%s: missing subscriber email", layout)
		}
	}
}

// TestNewsletterRenderer_EscapesSubscriberName verifies recipient fields are escaped.
func TestNewsletterRenderer_EscapesSubscriberName(t *testing.T) {
	r, err := NewNewsletterRenderer()
	if err != nil {
		t.Fatalf("NewNewsletterRenderer: %v", err)
	}
	out, err := r.Render(newsletter.TemplateDefault, NewsletterData{
		Title:          "x",
		Content:        "y",
		SubscriberName: "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Error("subscriber name must be HTML-escaped")
	}
}

// TestNewsletterRenderer_UnknownLayout verifies an error for unknown names.
func TestNewsletterRenderer_UnknownLayout(t *testing.T) {
	r, _ := NewNewsletterRenderer()
	if _, err := r.Render("FANCY", NewsletterData{}); err == nil {
		t.Error("expected error for unknown layout")
	}
}

// TestMarkdown verifies rendering and raw HTML suppression.
func TestMarkdown(t *testing.T) {
	out, err := Markdown("# Title\n\nSome *text*\n\n<script>alert(1)</script>")
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if !strings.Contains(out, "<h1>Title</h1>") || !strings.Contains(out, "<em>text</em>") {
		t.Errorf("unexpected output: %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Error("raw HTML must not be emitted")
	}
}
