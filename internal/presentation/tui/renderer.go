package tui

import (
	"github.com/aretw0/strata/pkg/runner"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a runner.ContentRenderer that renders markdown using glamour.
// The style follows the terminal background; width 0 keeps glamour's default wrap.
func NewRenderer(width int) (runner.ContentRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}

// Plain passes markdown through untouched, for pipes and redirected output.
func Plain(markdown string) (string, error) {
	return markdown, nil
}
