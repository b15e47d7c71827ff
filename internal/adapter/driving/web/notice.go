package web

import (
	"bytes"
	"html/template"
	"log/slog"
	"os"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// NoticeHTML is sanitized operator-authored HTML, safe to embed in the
// key page unescaped.
type NoticeHTML = template.HTML

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) NoticeHTML {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return NoticeHTML(htmlSanitizer.Sanitize(src))
	}

	return NoticeHTML(htmlSanitizer.Sanitize(buf.String()))
}

// LoadNotice reads the operator's markdown notice file and renders it
// for the key page. An empty path means no notice; a missing or
// unreadable file logs and degrades to none rather than failing startup.
func LoadNotice(path string, logger *slog.Logger) NoticeHTML {
	if path == "" {
		return ""
	}

	src, err := os.ReadFile(path)
	if err != nil {
		logger.Error("notice file unreadable, continuing without it", "path", path, "error", err)
		return ""
	}

	return RenderMarkdown(string(src))
}
