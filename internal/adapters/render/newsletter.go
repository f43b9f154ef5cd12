package render

import (
	"embed"
	"fmt"
	"strings"

	"github.com/osteele/liquid"

	"newsroom/internal/domain/newsletter"
)

//go:embed layouts/*.liquid
var layoutFS embed.FS

// NewsletterData is the per-recipient binding set for a layout.
type NewsletterData struct {
	Title           string
	Content         string // trusted HTML from the editor
	SubscriberName  string
	SubscriberEmail string
	Year            int
}

func (d NewsletterData) bindings() map[string]any {
	return map[string]any{
		"title":            d.Title,
		"content":          d.Content,
		"subscriber_name":  d.SubscriberName,
		"subscriber_email": d.SubscriberEmail,
		"year":             d.Year,
	}
}

// NewsletterRenderer renders newsletters through precompiled Liquid layouts.
// Safe for concurrent use once constructed.
type NewsletterRenderer struct {
	layouts map[string]*liquid.Template
}

// NewNewsletterRenderer parses every layout named by newsletter.ValidTemplates.
// PRE: layouts/<name>.liquid exists for each template constant
// POST: Returns a renderer or the first parse error
func NewNewsletterRenderer() (*NewsletterRenderer, error) {
	engine := liquid.NewEngine()
	r := &NewsletterRenderer{layouts: make(map[string]*liquid.Template, len(newsletter.ValidTemplates))}

	for _, name := range newsletter.ValidTemplates {
		src, err := layoutFS.ReadFile("layouts/" + strings.ToLower(name) + ".liquid")
		if err != nil {
			return nil, fmt.Errorf("layout %s: %w", name, err)
		}
		tpl, perr := engine.ParseString(string(src))
		if perr != nil {
			return nil, fmt.Errorf("parse layout %s: %w", name, perr)
		}
		r.layouts[name] = tpl
	}
	return r, nil
}

// Render produces the HTML body for one recipient.
// PRE: layout is one of newsletter.ValidTemplates
// POST: Returns rendered HTML or an error for an unknown layout
func (r *NewsletterRenderer) Render(layout string, data NewsletterData) (string, error) {
	tpl, ok := r.layouts[layout]
	if !ok {
		return "", fmt.Errorf("unknown layout %q", layout)
	}
	out, err := tpl.RenderString(data.bindings())
	if err != nil {
		return "", fmt.Errorf("render layout %s: %w", layout, err)
	}
	return out, nil
}
