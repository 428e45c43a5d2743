package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML inside markdown is not rendered (goldmark's default).
var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownPreview renders crawled markdown for the crawl panel.
func MarkdownPreview(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return Augment(SanitizeHTML(buf.String())), nil
}
