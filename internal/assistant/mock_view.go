package assistant

import (
	"sync"

	"github.com/zulandar/pyassist/internal/history"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
	"github.com/zulandar/pyassist/internal/session"
	"github.com/zulandar/pyassist/internal/voice"
)

// MockView implements View for testing. It keeps a copy of what a real front
// would show and records every notice.
type MockView struct {
	mu sync.Mutex

	// ConfirmAnswer is returned by Confirm.
	ConfirmAnswer bool

	nodes       []render.Node
	welcome     bool
	welcomes    int
	sidebar     []history.Entry
	authShown   bool
	authErrors  map[session.Form]string
	user        session.Session
	alerts      []string
	confirms    []string
	busy        map[panels.Kind]bool
	busyHistory []string
	voiceStates []voice.State
	voiceHidden bool
	input       string
	panel       string
	crawl       *panels.CrawlResult
	theme       string
	reloads     int
}

// NewMockView creates a MockView in the welcome state that confirms
// everything.
func NewMockView() *MockView {
	return &MockView{
		ConfirmAnswer: true,
		welcome:       true,
		authErrors:    make(map[session.Form]string),
		busy:          make(map[panels.Kind]bool),
	}
}

func (m *MockView) AppendMessage(n render.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = append(m.nodes, n)
	m.welcome = false
}

func (m *MockView) ReplaceMessage(n render.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.nodes {
		if m.nodes[i].ID == n.ID {
			m.nodes[i] = n
		}
	}
}

func (m *MockView) RemoveMessage(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			m.nodes = append(m.nodes[:i], m.nodes[i+1:]...)
			return
		}
	}
}

func (m *MockView) ShowWelcome() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = nil
	m.welcome = true
	m.welcomes++
}

func (m *MockView) SetSidebar(entries []history.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sidebar = append([]history.Entry(nil), entries...)
}

func (m *MockView) ShowAuth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authShown = true
}

func (m *MockView) HideAuth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authShown = false
}

func (m *MockView) AuthError(form session.Form, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authErrors[form] = msg
}

func (m *MockView) SetUser(s session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = s
}

func (m *MockView) Alert(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, msg)
}

func (m *MockView) Confirm(prompt string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirms = append(m.confirms, prompt)
	return m.ConfirmAnswer
}

func (m *MockView) SetBusy(k panels.Kind, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy[k] = busy
	state := "idle"
	if busy {
		state = "busy"
	}
	m.busyHistory = append(m.busyHistory, string(k)+":"+state)
}

func (m *MockView) SetVoice(s voice.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voiceStates = append(m.voiceStates, s)
}

func (m *MockView) HideVoiceControls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voiceHidden = true
}

func (m *MockView) SetInput(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = text
}

func (m *MockView) SwitchPanel(tab string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panel = tab
}

func (m *MockView) ShowCrawlResult(r panels.CrawlResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crawl = &r
}

func (m *MockView) SetTheme(theme string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.theme = theme
}

func (m *MockView) Reload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
}

// Nodes returns the messages on screen.
func (m *MockView) Nodes() []render.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]render.Node(nil), m.nodes...)
}

// Welcome reports whether the welcome state is showing.
func (m *MockView) Welcome() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.welcome
}

// Welcomes returns how many times the view was reset.
func (m *MockView) Welcomes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.welcomes
}

// Sidebar returns the last sidebar shown.
func (m *MockView) Sidebar() []history.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Entry(nil), m.sidebar...)
}

// AuthShown reports whether the auth modal is open.
func (m *MockView) AuthShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authShown
}

// AuthErrorFor returns the last error shown next to form.
func (m *MockView) AuthErrorFor(form session.Form) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authErrors[form]
}

// User returns the session last shown in the header.
func (m *MockView) User() session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// Alerts returns every notice shown so far.
func (m *MockView) Alerts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.alerts...)
}

// Confirms returns every confirmation prompt shown so far.
func (m *MockView) Confirms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.confirms...)
}

// Busy reports whether k shows a busy indicator.
func (m *MockView) Busy(k panels.Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy[k]
}

// BusyHistory returns the busy transitions as "kind:busy" / "kind:idle".
func (m *MockView) BusyHistory() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.busyHistory...)
}

// VoiceStates returns every voice state shown, in order.
func (m *MockView) VoiceStates() []voice.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]voice.State(nil), m.voiceStates...)
}

// VoiceHidden reports whether voice controls were hidden.
func (m *MockView) VoiceHidden() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voiceHidden
}

// Input returns the input box contents.
func (m *MockView) Input() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

// Panel returns the active panel.
func (m *MockView) Panel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panel
}

// Crawl returns the crawl result shown, if any.
func (m *MockView) Crawl() *panels.CrawlResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crawl
}

// Theme returns the theme shown.
func (m *MockView) Theme() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.theme
}

// Reloads returns how many reloads were requested.
func (m *MockView) Reloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}
