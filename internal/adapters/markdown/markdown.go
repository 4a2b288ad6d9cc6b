// Package markdown renders the markdown used in course descriptions and
// notification emails.
package markdown

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// renderer escapes raw HTML in its input (WithUnsafe is not set).
var renderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// ToHTML converts markdown to an HTML fragment.
func ToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// ToHTMLOrEscaped converts markdown to HTML, falling back to the escaped source.
func ToHTMLOrEscaped(src string) string {
	out, err := ToHTML(src)
	if err != nil {
		return "<p>" + html.EscapeString(src) + "</p>"
	}
	return out
}

// EmailDocument wraps a rendered body in a minimal HTML email document.
func EmailDocument(subject, body string) (string, error) {
	inner, err := ToHTML(body)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: sans-serif; line-height: 1.5; max-width: 600px;">
%s
</body></html>`, html.EscapeString(subject), inner), nil
}
