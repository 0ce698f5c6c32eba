// ABOUTME: Markdown rendering for finished task results using goldmark.
// ABOUTME: Raw HTML in the input stays escaped so agent output cannot inject markup.
package web

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
)

// renderMarkdown converts a markdown string to HTML. Raw HTML in the input
// is escaped by goldmark's default renderer to prevent XSS; on conversion
// failure the input is served as escaped text rather than dropped.
func renderMarkdown(input string) template.HTML {
	var buf bytes.Buffer
	md := goldmark.New()
	if err := md.Convert([]byte(input), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(input))
	}
	return template.HTML(buf.String())
}
