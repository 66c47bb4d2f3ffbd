package service

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown renders model answers. Raw HTML in the answer is omitted.
var markdown = goldmark.New(
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderAnswerHTML converts a Markdown answer to HTML. On a render failure
// the original text is returned.
func RenderAnswerHTML(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		slog.Warn("failed to render answer markdown", "error", err)
		return text
	}
	return strings.TrimSpace(buf.String())
}
