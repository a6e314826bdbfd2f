// Package panel renders controller output for remote panels: the transcript
// markup and the websocket event presenter.
package panel

import (
	"regexp"
	"strings"
)

var (
	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)
	boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// EscapeText renders text as inert HTML.
func EscapeText(text string) string {
	return htmlEscaper.Replace(strings.TrimSpace(text))
}

// RenderMarkup renders assistant text: HTML is escaped first, then **bold**
// spans become <strong> and newlines become <br>. No other markup is honored.
func RenderMarkup(text string) string {
	out := EscapeText(text)
	out = boldPattern.ReplaceAllString(out, "<strong>$1</strong>")
	return strings.ReplaceAll(out, "\n", "<br>")
}
