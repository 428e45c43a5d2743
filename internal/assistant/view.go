package assistant

import (
	"github.com/zulandar/pyassist/internal/history"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
	"github.com/zulandar/pyassist/internal/session"
	"github.com/zulandar/pyassist/internal/voice"
)

// View is the set of render targets the controller drives. Implementations
// must be safe for concurrent use: completions of independent requests call
// into the view from their own goroutines.
type View interface {
	// AppendMessage adds a message node at the end of the conversation,
	// leaving the welcome state if it is showing.
	AppendMessage(n render.Node)
	// ReplaceMessage swaps the body of an existing node.
	ReplaceMessage(n render.Node)
	// RemoveMessage deletes a node. Unknown ids are ignored.
	RemoveMessage(id string)
	// ShowWelcome clears the conversation and shows the welcome state.
	ShowWelcome()
	SetSidebar(entries []history.Entry)

	ShowAuth()
	HideAuth()
	// AuthError shows msg next to the given auth form.
	AuthError(form session.Form, msg string)
	SetUser(s session.Session)

	// Alert shows a blocking notice.
	Alert(msg string)
	// Confirm asks a yes/no question.
	Confirm(prompt string) bool

	SetBusy(k panels.Kind, busy bool)
	SetVoice(s voice.State)
	// HideVoiceControls removes every voice trigger for the rest of the
	// process.
	HideVoiceControls()

	SetInput(text string)
	SwitchPanel(tab string)
	ShowCrawlResult(r panels.CrawlResult)
	SetTheme(theme string)
	// Reload asks the front to rebuild itself from a fresh snapshot.
	Reload()
}

// Snapshot is the whole view state at one instant, used to (re)build a
// front from scratch.
type Snapshot struct {
	LoggedIn       bool            `json:"logged_in"`
	Username       string          `json:"username,omitempty"`
	Greeting       string          `json:"greeting,omitempty"`
	Welcome        bool            `json:"welcome"`
	Messages       []render.Node   `json:"messages"`
	Sidebar        []history.Entry `json:"sidebar"`
	Theme          string          `json:"theme"`
	Voice          string          `json:"voice"`
	VoiceAvailable bool            `json:"voice_available"`
	Panels         []panels.Spec   `json:"panels"`
}
