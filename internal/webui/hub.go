package webui

import (
	"sync"

	"github.com/zulandar/pyassist/internal/history"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
	"github.com/zulandar/pyassist/internal/session"
	"github.com/zulandar/pyassist/internal/voice"
)

// subscriberBuffer is how many events a slow tab may fall behind before it
// starts losing them. A tab that missed events resyncs from /api/state.
const subscriberBuffer = 64

// sseEvent is one view update fanned out to the connected tabs.
type sseEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub fans view updates out to every connected event stream.
type Hub struct {
	mu   sync.Mutex
	subs map[chan sseEvent]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan sseEvent]struct{})}
}

func (h *Hub) subscribe() (<-chan sseEvent, func()) {
	ch := make(chan sseEvent, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// publish never blocks: a full subscriber drops the event.
func (h *Hub) publish(event string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- sseEvent{Event: event, Data: data}:
		default:
		}
	}
}

// subscribers returns the number of connected streams.
func (h *Hub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// View returns an assistant.View that publishes every update on the hub.
func (h *Hub) View() *View {
	return &View{hub: h}
}

// messageEvent carries a node and its ready-to-insert element.
type messageEvent struct {
	Node render.Node `json:"node"`
	HTML string      `json:"html"`
}

type userEvent struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	Greeting string `json:"greeting,omitempty"`
}

// View implements assistant.View for browser tabs. Confirmation happens in
// the browser before an action is posted, so Confirm always agrees.
type View struct {
	hub *Hub
}

func (v *View) AppendMessage(n render.Node) {
	v.hub.publish("append", messageEvent{Node: n, HTML: render.Markup(n)})
}

func (v *View) ReplaceMessage(n render.Node) {
	v.hub.publish("replace", messageEvent{Node: n, HTML: render.Markup(n)})
}

func (v *View) RemoveMessage(id string) {
	v.hub.publish("remove", map[string]string{"id": id})
}

func (v *View) ShowWelcome() {
	v.hub.publish("welcome", struct{}{})
}

func (v *View) SetSidebar(entries []history.Entry) {
	if entries == nil {
		entries = []history.Entry{}
	}
	v.hub.publish("sidebar", entries)
}

func (v *View) ShowAuth() {
	v.hub.publish("auth", map[string]bool{"show": true})
}

func (v *View) HideAuth() {
	v.hub.publish("auth", map[string]bool{"show": false})
}

func (v *View) AuthError(form session.Form, msg string) {
	v.hub.publish("auth_error", map[string]string{"form": string(form), "message": msg})
}

func (v *View) SetUser(s session.Session) {
	v.hub.publish("user", userEvent{LoggedIn: s.LoggedIn, Username: s.Username, Greeting: s.Greeting()})
}

func (v *View) Alert(msg string) {
	v.hub.publish("alert", map[string]string{"message": msg})
}

func (v *View) Confirm(string) bool { return true }

func (v *View) SetBusy(k panels.Kind, busy bool) {
	v.hub.publish("busy", map[string]any{"kind": k, "busy": busy})
}

func (v *View) SetVoice(s voice.State) {
	v.hub.publish("voice", map[string]string{"state": s.String()})
}

func (v *View) HideVoiceControls() {
	v.hub.publish("voice_hidden", struct{}{})
}

func (v *View) SetInput(text string) {
	v.hub.publish("input", map[string]string{"text": text})
}

func (v *View) SwitchPanel(tab string) {
	v.hub.publish("panel", map[string]string{"tab": tab})
}

func (v *View) ShowCrawlResult(r panels.CrawlResult) {
	v.hub.publish("crawl", r)
}

func (v *View) SetTheme(theme string) {
	v.hub.publish("theme", map[string]string{"theme": theme})
}

func (v *View) Reload() {
	v.hub.publish("reload", struct{}{})
}
