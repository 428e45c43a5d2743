package render

import (
	stdhtml "html"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DecodeEntities decodes HTML character references. Backend text is decoded
// exactly once, when it arrives (see FromBackend); nothing downstream
// decodes it again.
func DecodeEntities(s string) string {
	return stdhtml.UnescapeString(s)
}

// DecodePayload turns a markup payload from the backend into markup. A
// payload whose markup arrived entity-encoded as a whole (no tag, but
// encoded angle brackets) is decoded once; anything else is already markup,
// and the sanitizer's parse is its one decode.
func DecodePayload(s string) string {
	if strings.Contains(s, "<") {
		return s
	}
	if strings.Contains(s, "&lt;") || strings.Contains(s, "&gt;") {
		return DecodeEntities(s)
	}
	return s
}

// EscapeText turns literal text into markup-safe text.
func EscapeText(s string) string {
	return stdhtml.EscapeString(s)
}

// TextToHTML escapes s and turns every newline into a <br>. The result
// holds one <br> per input line break and no literal newline.
func TextToHTML(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(EscapeText(s), "\n", "<br>")
}

var droppedElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Iframe: true,
	atom.Object: true,
	atom.Embed:  true,
	atom.Frame:  true,
	atom.Base:   true,
	atom.Meta:   true,
	atom.Link:   true,
}

var urlAttrs = map[string]bool{
	"href":       true,
	"src":        true,
	"action":     true,
	"formaction": true,
	"xlink:href": true,
}

// SanitizeHTML is the boundary where markup from the backend (or built
// locally) becomes embeddable. It parses s as a fragment, drops active
// content (scripts, frames, event-handler attributes, script URLs) and
// re-serializes the tree. Re-serialization escapes every text node, so
// SanitizeHTML(SanitizeHTML(s)) == SanitizeHTML(s).
func SanitizeHTML(s string) string {
	nodes, err := parseFragment(s, nil)
	if err != nil {
		return TextToHTML(s)
	}
	root := wrapNodes(nodes)
	clean(root)
	return renderChildren(root)
}

func clean(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.ElementNode:
			if droppedElements[c.DataAtom] {
				n.RemoveChild(c)
				break
			}
			c.Attr = cleanAttrs(c.Attr)
			clean(c)
		case html.CommentNode, html.DoctypeNode:
			n.RemoveChild(c)
		}
		c = next
	}
}

func cleanAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if urlAttrs[key] && unsafeURL(a.Val) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func unsafeURL(v string) bool {
	v = strings.ToLower(strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, v))
	return strings.HasPrefix(v, "javascript:") || strings.HasPrefix(v, "vbscript:")
}

// PlainText flattens a fragment to text: <br> and block ends become
// newlines, everything else contributes its text content.
func PlainText(fragment string) string {
	nodes, err := parseFragment(fragment, nil)
	if err != nil {
		return fragment
	}
	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}
	return strings.TrimSpace(b.String())
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Pre: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Table: true, atom.Ul: true, atom.Ol: true,
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			b.WriteByte('\n')
			return
		}
		if n.DataAtom == atom.Button {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode && blockElements[n.DataAtom] {
		s := b.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
	}
}

func parseFragment(s string, context *html.Node) ([]*html.Node, error) {
	if context == nil {
		context = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	return html.ParseFragment(strings.NewReader(s), context)
}

func wrapNodes(nodes []*html.Node) *html.Node {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root
}

func renderChildren(root *html.Node) string {
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return ""
		}
	}
	return b.String()
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, _ := attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func addClass(n *html.Node, class string) {
	if hasClass(n, class) {
		return
	}
	v, _ := attr(n, "class")
	setAttr(n, "class", strings.TrimSpace(v+" "+class))
}
