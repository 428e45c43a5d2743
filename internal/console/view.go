// Package console renders the assistant in a terminal: messages as
// timestamped plain-text lines, notices on stderr, confirmation as a y/N
// prompt.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/zulandar/pyassist/internal/history"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
	"github.com/zulandar/pyassist/internal/session"
	"github.com/zulandar/pyassist/internal/voice"
)

// ViewOpts holds parameters for creating a View.
type ViewOpts struct {
	Out       io.Writer // messages
	Err       io.Writer // notices and prompts
	In        io.Reader // answers to Confirm; nil means "no"
	AssumeYes bool      // Confirm without asking
	// OnVoice is called after every voice state change.
	OnVoice func(voice.State)
}

// View implements assistant.View on a terminal.
type View struct {
	mu        sync.Mutex
	out       io.Writer
	errOut    io.Writer
	in        *bufio.Reader
	assumeYes bool
	onVoice   func(voice.State)

	// open is the node whose line is still being streamed; printed is what
	// of it has been written so far.
	open    string
	printed string

	sidebar []history.Entry
	user    session.Session
	input   string
	auth    bool
}

// NewView creates a terminal view.
func NewView(opts ViewOpts) *View {
	v := &View{
		out:       opts.Out,
		errOut:    opts.Err,
		assumeYes: opts.AssumeYes,
		onVoice:   opts.OnVoice,
	}
	if v.out == nil {
		v.out = io.Discard
	}
	if v.errOut == nil {
		v.errOut = io.Discard
	}
	if opts.In != nil {
		v.in = bufio.NewReader(opts.In)
	}
	return v
}

// FormatNode renders a node as one terminal entry.
func FormatNode(n render.Node) string {
	return fmt.Sprintf("[%s] %s: %s", n.Time, n.Role, n.Text())
}

func (v *View) AppendMessage(n render.Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n.Typing {
		return
	}
	v.closeLocked()
	if n.Role == render.RoleAssistant && n.Body == "" {
		// streaming placeholder
		fmt.Fprintf(v.out, "[%s] %s: ", n.Time, n.Role)
		v.open = n.ID
		v.printed = ""
		return
	}
	fmt.Fprintln(v.out, FormatNode(n))
}

// ReplaceMessage prints the new part of a streaming answer. Chunks are
// cumulative, so usually only a suffix is new.
func (v *View) ReplaceMessage(n render.Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n.ID != v.open {
		return
	}
	text := n.Text()
	if strings.HasPrefix(text, v.printed) {
		fmt.Fprint(v.out, text[len(v.printed):])
	} else {
		fmt.Fprintf(v.out, "\n%s", text)
	}
	v.printed = text
}

func (v *View) RemoveMessage(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if render.IsTypingID(id) || id == v.open {
		v.closeLocked()
	}
}

func (v *View) closeLocked() {
	if v.open == "" {
		return
	}
	fmt.Fprintln(v.out)
	v.open, v.printed = "", ""
}

func (v *View) ShowWelcome() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeLocked()
}

func (v *View) SetSidebar(entries []history.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sidebar = append([]history.Entry(nil), entries...)
}

// Sidebar returns the last conversation list.
func (v *View) Sidebar() []history.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]history.Entry(nil), v.sidebar...)
}

func (v *View) ShowAuth() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.auth = true
	fmt.Fprintln(v.errOut, "Not logged in. Run 'pya login' or 'pya register' first.")
}

func (v *View) HideAuth() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.auth = false
}

// AuthShown reports whether the last auth signal asked for a login.
func (v *View) AuthShown() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.auth
}

func (v *View) AuthError(form session.Form, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.errOut, "%s: %s\n", form, msg)
}

func (v *View) SetUser(s session.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.user = s
}

// User returns the session last shown.
func (v *View) User() session.Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.user
}

func (v *View) Alert(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeLocked()
	fmt.Fprintf(v.errOut, "! %s\n", msg)
}

// Confirm asks on the error stream and reads one line. Only "y" or "yes"
// confirm.
func (v *View) Confirm(prompt string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.assumeYes {
		return true
	}
	if v.in == nil {
		return false
	}
	fmt.Fprintf(v.errOut, "%s [y/N] ", prompt)
	line, err := v.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (v *View) SetBusy(k panels.Kind, busy bool) {
	if !busy {
		return
	}
	spec, _ := panels.Lookup(k)
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.errOut, "%s...\n", spec.Title)
}

func (v *View) SetVoice(s voice.State) {
	v.mu.Lock()
	fn := v.onVoice
	v.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (v *View) HideVoiceControls() {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.errOut, "Voice input is unavailable.")
}

func (v *View) SetInput(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.input = text
}

// Input returns the text the controller last put in the input box.
func (v *View) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

func (v *View) SwitchPanel(string) {}

func (v *View) ShowCrawlResult(r panels.CrawlResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "# %s\n\n%s\n", r.URL, r.Markdown)
}

func (v *View) SetTheme(theme string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "Theme: %s\n", theme)
}

func (v *View) Reload() {}
