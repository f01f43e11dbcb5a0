package httphandler

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	notesRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	notesPolicy = bluemonday.UGCPolicy()
)

// RenderReleaseNotes converts release notes markdown to sanitized HTML.
// Raw HTML in the notes passes through goldmark and is then stripped down by
// the UGC policy. Returns empty string for empty input.
func RenderReleaseNotes(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := notesRenderer.Convert([]byte(src), &buf); err != nil {
		return notesPolicy.Sanitize(src)
	}

	return notesPolicy.Sanitize(buf.String())
}
