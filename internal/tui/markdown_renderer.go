package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer renders task descriptions and rebuilds the glamour renderer when the wrap width or style changes.
type markdownRenderer struct {
	style    string
	width    int
	built    string
	renderer *glamour.TermRenderer
}

// render converts markdown into styled terminal text, falling back to the raw input on renderer errors.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, 20)
	style := strings.TrimSpace(r.style)
	if style == "" {
		style = "dark"
	}

	if r.renderer == nil || r.width != wrapWidth || r.built != style {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
		r.built = style
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.Trim(rendered, "\n")
}
