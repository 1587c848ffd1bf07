// Package render formats completed replies as terminal markdown.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Options configures markdown rendering
type Options struct {
	// Style is "dark", "light", "auto", or a path to a glamour JSON theme
	Style string
	// Width wraps output at this column; 0 keeps glamour's default
	Width int
	// PreserveNewLines keeps the original single line breaks instead of
	// letting markdown collapse them
	PreserveNewLines bool
}

// DefaultOptions returns the default rendering options
func DefaultOptions() Options {
	return Options{
		Style:            "dark",
		Width:            100,
		PreserveNewLines: true,
	}
}

// WithWidth returns a copy of the options with the given wrap width
func (o Options) WithWidth(width int) Options {
	o.Width = width
	return o
}

// Markdown renders markdown content for terminal display
func Markdown(content string, opts Options) (string, error) {
	renderOpts := []glamour.TermRendererOption{
		glamour.WithEmoji(),
	}

	switch opts.Style {
	case "", "auto":
		renderOpts = append(renderOpts, glamour.WithAutoStyle())
	case "dark", "light", "notty", "dracula", "tokyo-night", "pink", "ascii":
		renderOpts = append(renderOpts, glamour.WithStandardStyle(opts.Style))
	default:
		renderOpts = append(renderOpts, glamour.WithStylePath(opts.Style))
	}

	if opts.Width > 0 {
		renderOpts = append(renderOpts, glamour.WithWordWrap(opts.Width))
	}

	if opts.PreserveNewLines {
		content = hardenLineBreaks(content)
	}

	renderer, err := glamour.NewTermRenderer(renderOpts...)
	if err != nil {
		return "", err
	}

	return renderer.Render(content)
}

// MarkdownWithWidth renders with default options at a specific width
func MarkdownWithWidth(content string, width int) (string, error) {
	return Markdown(content, DefaultOptions().WithWidth(width))
}

// hardenLineBreaks turns single newlines into markdown hard breaks so the
// reply keeps its original shape. Fenced code blocks pass through
// untouched.
func hardenLineBreaks(content string) string {
	lines := strings.Split(content, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence || trimmed == "" || i == len(lines)-1 {
			continue
		}
		if !strings.HasSuffix(line, "  ") {
			lines[i] = line + "  "
		}
	}
	return strings.Join(lines, "\n")
}
