package render

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Class names and attributes the augmentation pass writes. The web front's
// script and stylesheet rely on them.
const (
	WrapperClass     = "code-block-wrapper"
	HeaderClass      = "code-block-header"
	CopyButtonClass  = "code-copy-btn"
	HighlightedAttr  = "data-highlighted"
	DefaultCodeLabel = "code"
)

// DesignatedLanguage is the fence label that gets language-specific
// highlighting; every other fence is highlighted generically.
const DesignatedLanguage = "python"

var (
	designatedFence = regexp.MustCompile("```" + DesignatedLanguage + `\s*([\s\S]*?)` + "```")
	anyFence        = regexp.MustCompile("```([\\s\\S]*?)```")
	fenceLabel      = regexp.MustCompile(`^[A-Za-z0-9_+#.-]+\n`)
)

var highlighter = chromahtml.New(
	chromahtml.WithClasses(true),
	chromahtml.PreventSurroundingPre(true),
)

var angles = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// ProcessAnswer converts fenced regions of answer markup into code blocks.
// Fence bodies are markup text: bare angle brackets are escaped so they
// cannot open tags, character references are left for the parser.
func ProcessAnswer(markup string) string {
	out := designatedFence.ReplaceAllStringFunc(markup, func(m string) string {
		body := designatedFence.FindStringSubmatch(m)[1]
		return `<pre><code class="language-` + DesignatedLanguage + `">` + angles.Replace(body) + `</code></pre>`
	})
	return anyFence.ReplaceAllStringFunc(out, func(m string) string {
		body := anyFence.FindStringSubmatch(m)[1]
		body = fenceLabel.ReplaceAllString(body, "")
		return `<pre><code>` + angles.Replace(body) + `</code></pre>`
	})
}

// Augment highlights every code block that is not yet highlighted and wraps
// every <pre> that is not yet wrapped in a header with a copy button.
// Running it on its own output changes nothing.
func Augment(fragment string) string {
	if !strings.Contains(fragment, "<pre") {
		return fragment
	}
	nodes, err := parseFragment(fragment, nil)
	if err != nil {
		return fragment
	}
	root := wrapNodes(nodes)

	var pres []*html.Node
	collect(root, atom.Pre, &pres)
	for _, pre := range pres {
		target := pre
		if code := firstElementChild(pre, atom.Code); code != nil {
			target = code
		}
		lang := languageOf(target)
		if _, done := attr(target, HighlightedAttr); !done {
			highlight(target, lang)
		}
		if !isWrapped(pre) {
			wrap(pre, lang)
		}
	}
	return renderChildren(root)
}

// CodeBlocks returns the text of every <pre> block in fragment, in order.
func CodeBlocks(fragment string) []string {
	nodes, err := parseFragment(fragment, nil)
	if err != nil {
		return nil
	}
	var pres []*html.Node
	collect(wrapNodes(nodes), atom.Pre, &pres)
	out := make([]string, 0, len(pres))
	for _, p := range pres {
		out = append(out, textContent(p))
	}
	return out
}

// HighlightCSS returns the stylesheet for highlighted blocks in the named
// chroma style.
func HighlightCSS(style string) (string, error) {
	var buf bytes.Buffer
	if err := highlighter.WriteCSS(&buf, styles.Get(style)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func highlight(code *html.Node, lang string) {
	src := textContent(code)
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(src)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	setAttr(code, HighlightedAttr, "yes")
	addClass(code, "chroma")

	it, err := lexer.Tokenise(nil, src)
	if err != nil {
		return
	}
	var buf bytes.Buffer
	if err := highlighter.Format(&buf, styles.Fallback, it); err != nil {
		return
	}
	spans, err := parseFragment(buf.String(), code)
	if err != nil {
		return
	}
	for c := code.FirstChild; c != nil; c = code.FirstChild {
		code.RemoveChild(c)
	}
	for _, s := range spans {
		code.AppendChild(s)
	}
}

func wrap(pre *html.Node, lang string) {
	label := lang
	if label == "" {
		label = DefaultCodeLabel
	}
	wrapper := element(atom.Div, "class", WrapperClass)
	header := element(atom.Div, "class", HeaderClass)
	name := element(atom.Span, "class", "code-lang")
	name.AppendChild(&html.Node{Type: html.TextNode, Data: label})
	btn := element(atom.Button, "class", CopyButtonClass, "type", "button", "title", "Copy code")
	btn.AppendChild(&html.Node{Type: html.TextNode, Data: "Copy"})
	header.AppendChild(name)
	header.AppendChild(btn)

	parent := pre.Parent
	parent.InsertBefore(wrapper, pre)
	parent.RemoveChild(pre)
	wrapper.AppendChild(header)
	wrapper.AppendChild(pre)
}

func isWrapped(pre *html.Node) bool {
	p := pre.Parent
	return p != nil && p.Type == html.ElementNode && p.DataAtom == atom.Div && hasClass(p, WrapperClass)
}

func languageOf(n *html.Node) string {
	v, _ := attr(n, "class")
	for _, c := range strings.Fields(v) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}

func element(a atom.Atom, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

func collect(n *html.Node, a atom.Atom, out *[]*html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			*out = append(*out, c)
			continue
		}
		collect(c, a, out)
	}
}

func firstElementChild(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}
