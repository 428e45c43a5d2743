// Package panels describes the tool panels (syntax check, execution,
// analysis, documentation, handbook search and web crawl): input
// validation, busy state and the messages their results turn into.
package panels

import (
	"net/url"
	"strings"
	"sync"

	"github.com/zulandar/pyassist/internal/apperr"
)

// Kind identifies a panel.
type Kind string

const (
	SyntaxCheck    Kind = "syntax-check"
	Execute        Kind = "execute"
	Analyze        Kind = "analyze"
	DocSearch      Kind = "doc-search"
	HandbookSearch Kind = "handbook-search"
	WebCrawl       Kind = "web-crawl"
)

// ChatTab is the conversation view.
const ChatTab = "chat"

// Spec is the static description of a panel.
type Spec struct {
	Kind     Kind   `json:"kind"`
	Title    string `json:"title"`
	Tab      string `json:"tab"`
	Field    string `json:"field"`
	Empty    string `json:"empty"`     // validation message for empty input
	ShowBusy bool   `json:"show_busy"` // trigger shows a busy indicator
}

var specs = []Spec{
	{Kind: SyntaxCheck, Title: "Syntax check", Tab: "code", Field: "code", Empty: "Please enter code to check"},
	{Kind: Execute, Title: "Run code", Tab: "code", Field: "code", Empty: "Please enter code to run", ShowBusy: true},
	{Kind: Analyze, Title: "Analyze code", Tab: "code", Field: "code", Empty: "Please enter code to analyze"},
	{Kind: DocSearch, Title: "Documentation", Tab: "docs", Field: "topic", Empty: "Please enter a topic"},
	{Kind: HandbookSearch, Title: "Handbook", Tab: "handbook", Field: "query", Empty: "Please enter a search term"},
	{Kind: WebCrawl, Title: "Web crawler", Tab: "crawler", Field: "url", Empty: "Please enter a URL to crawl", ShowBusy: true},
}

// All returns every panel spec in display order.
func All() []Spec {
	return append([]Spec(nil), specs...)
}

// Lookup returns the spec for k.
func Lookup(k Kind) (Spec, bool) {
	for _, s := range specs {
		if s.Kind == k {
			return s, true
		}
	}
	return Spec{}, false
}

// Validate checks panel input before any request. It returns the trimmed
// input, or a validation error carrying the message to show.
func Validate(k Kind, input string) (string, error) {
	spec, ok := Lookup(k)
	if !ok {
		return "", apperr.Validation("unknown panel " + string(k))
	}
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", apperr.Validation(spec.Empty)
	}
	if k == WebCrawl && !ValidURL(trimmed) {
		return "", apperr.Validation("Please enter a valid URL (e.g. https://example.com)")
	}
	// Code keeps its leading indentation.
	if spec.Field == "code" {
		return strings.TrimRight(input, " \t\r\n"), nil
	}
	return trimmed, nil
}

// ValidURL reports whether s is an absolute URL with a scheme and host.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Busy tracks which panels have a request in flight.
type Busy struct {
	mu     sync.Mutex
	active map[Kind]bool
}

// NewBusy creates an idle Busy.
func NewBusy() *Busy {
	return &Busy{active: make(map[Kind]bool)}
}

// Begin marks k busy. It returns false if k was already busy, in which case
// the caller must not start another request or call the returned func.
// Otherwise the returned func clears the mark and must run on every path.
func (b *Busy) Begin(k Kind) (func(), bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active[k] {
		return func() {}, false
	}
	b.active[k] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.active, k)
			b.mu.Unlock()
		})
	}, true
}

// isBusy reports whether k has a request in flight.
func (b *Busy) isBusy(k Kind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active[k]
}
