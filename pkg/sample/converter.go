package sample

import (
	"html"
	"regexp"
	"strings"
)

// Converter turns raw message markup into readable plain text. Real
// HTML-to-Markdown conversion is an external collaborator; implementations
// plug in here.
type Converter interface {
	Convert(markup string) string
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(string) string

func (f ConverterFunc) Convert(markup string) string { return f(markup) }

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	blankPattern = regexp.MustCompile(`\n{3,}`)
)

// PlainConverter is the built-in fallback: it drops tags, unescapes
// entities and collapses blank runs. Good enough for tests and for
// deployments without the external converter.
type PlainConverter struct{}

func (PlainConverter) Convert(markup string) string {
	text := strings.ReplaceAll(markup, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = blankPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
