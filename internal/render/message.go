// Package render turns conversation messages into markup: it owns the one
// sanitization boundary, code-block augmentation and the transcript view
// model.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"sync/atomic"
	"time"
)

// Role is who a message is from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps a backend role string; unknown roles are shown as system.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s)
	}
	return RoleSystem
}

// ContentType says how a message's content becomes markup.
type ContentType string

const (
	ContentText ContentType = "text"
	ContentHTML ContentType = "html"
)

// ParseContentType maps a backend type string; anything but "html" is text.
func ParseContentType(s string) ContentType {
	if ContentType(s) == ContentHTML {
		return ContentHTML
	}
	return ContentText
}

// Message is one turn of the conversation. Content is literal text for
// ContentText and markup for ContentHTML.
type Message struct {
	Role    Role
	Content string
	Type    ContentType
	Time    time.Time // zero means "now" at render time
}

// FromBackend builds a message from content received from the backend.
// Text is decoded once into literal text; markup goes through
// DecodePayload.
func FromBackend(role, content, contentType string) Message {
	m := Message{Role: ParseRole(role), Type: ParseContentType(contentType)}
	if m.Type == ContentHTML {
		m.Content = DecodePayload(content)
	} else {
		m.Content = DecodeEntities(content)
	}
	return m
}

// Answer builds the assistant message for a model answer, with fenced
// regions turned into code blocks.
func Answer(raw string) Message {
	return Message{
		Role:    RoleAssistant,
		Content: ProcessAnswer(DecodePayload(raw)),
		Type:    ContentHTML,
	}
}

// Text builds a plain-text message.
func Text(role Role, content string) Message {
	return Message{Role: role, Content: content, Type: ContentText}
}

// HTML builds a markup message.
func HTML(role Role, content string) Message {
	return Message{Role: role, Content: content, Type: ContentHTML}
}

// TypingPrefix starts the node id of every typing indicator. Each pending
// request gets its own indicator.
const TypingPrefix = "typing-"

// IsTypingID reports whether id names a typing indicator.
func IsTypingID(id string) bool {
	return strings.HasPrefix(id, TypingPrefix)
}

// Node is the rendered view model of one message.
type Node struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	Body     string `json:"body"` // sanitized, augmented markup
	Time     string `json:"time"`
	Copyable bool   `json:"copyable"`
	Typing   bool   `json:"typing,omitempty"`
}

// Text returns the node's body as plain text.
func (n Node) Text() string {
	return PlainText(n.Body)
}

// Renderer renders messages into nodes.
type Renderer struct {
	timeLayout string
	now        func() time.Time
	seq        atomic.Uint64
}

// NewRenderer creates a Renderer. timeLayout formats message timestamps;
// now defaults to time.Now.
func NewRenderer(timeLayout string, now func() time.Time) *Renderer {
	if timeLayout == "" {
		timeLayout = "15:04"
	}
	if now == nil {
		now = time.Now
	}
	return &Renderer{timeLayout: timeLayout, now: now}
}

// Render produces exactly one node for m.
func (r *Renderer) Render(m Message) Node {
	t := m.Time
	if t.IsZero() {
		t = r.now()
	}
	return Node{
		ID:       r.nextID(),
		Role:     m.Role,
		Body:     Body(m),
		Time:     t.Format(r.timeLayout),
		Copyable: m.Role == RoleAssistant,
	}
}

// Typing returns a new typing-indicator node.
func (r *Renderer) Typing() Node {
	return Node{
		ID:     fmt.Sprintf("%s%d", TypingPrefix, r.seq.Add(1)),
		Role:   RoleAssistant,
		Body:   `<span class="typing-dot"></span><span class="typing-dot"></span><span class="typing-dot"></span>`,
		Time:   r.now().Format(r.timeLayout),
		Typing: true,
	}
}

// Placeholder returns an empty assistant node whose body is replaced while
// an answer streams in.
func (r *Renderer) Placeholder() Node {
	return r.Render(HTML(RoleAssistant, ""))
}

func (r *Renderer) nextID() string {
	return fmt.Sprintf("msg-%d", r.seq.Add(1))
}

// Body converts a message's content into embeddable markup. Text is escaped
// with newlines as <br>; markup goes through the sanitizer and the
// code-block pass.
func Body(m Message) string {
	if m.Type == ContentHTML {
		return Augment(SanitizeHTML(m.Content))
	}
	return TextToHTML(m.Content)
}

// StreamBody renders a cumulative streaming chunk.
func StreamBody(chunk string) string {
	return Augment(SanitizeHTML(ProcessAnswer(DecodePayload(chunk))))
}

var roleIcons = map[Role]string{
	RoleUser:      "fa-user",
	RoleAssistant: "fa-robot",
	RoleSystem:    "fa-info-circle",
}

var nodeTmpl = template.Must(template.New("node").Parse(
	`<div class="message {{.Role}}{{if .Typing}} typing{{end}}" id="{{.ID}}">` +
		`<div class="message-avatar"><i class="fas {{.Icon}}"></i></div>` +
		`<div class="message-content">` +
		`{{if .Copyable}}<div class="message-header"><div class="message-actions">` +
		`<button class="copy-btn" type="button" data-node="{{.ID}}" title="Copy answer">Copy</button>` +
		`</div></div>{{end}}` +
		`<div class="message-text">{{.Body}}</div>` +
		`<div class="message-time">{{.Time}}</div>` +
		`</div></div>`))

// Markup renders the full message element for n.
func Markup(n Node) string {
	var buf bytes.Buffer
	err := nodeTmpl.Execute(&buf, struct {
		Node
		Icon string
		Body template.HTML
	}{n, roleIcons[n.Role], template.HTML(n.Body)})
	if err != nil {
		return ""
	}
	return buf.String()
}

// FormatOutput renders program output for an execution panel: decoded
// once, escaped, newlines as <br>, tabs as four non-breaking spaces.
func FormatOutput(output string) string {
	if output == "" {
		return `<span class="no-output">(no output)</span>`
	}
	s := TextToHTML(DecodeEntities(output))
	return strings.ReplaceAll(s, "\t", strings.Repeat("&nbsp;", 4))
}
