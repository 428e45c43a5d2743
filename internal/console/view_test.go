package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zulandar/pyassist/internal/assistant"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
	"github.com/zulandar/pyassist/internal/session"
	"github.com/zulandar/pyassist/internal/voice"
)

var _ assistant.View = (*View)(nil)

func newRenderer() *render.Renderer {
	return render.NewRenderer("15:04", func() time.Time {
		return time.Date(2026, 10, 15, 14, 7, 0, 0, time.Local)
	})
}

func TestAppendMessage_FlattensMarkup(t *testing.T) {
	var out bytes.Buffer
	v := NewView(ViewOpts{Out: &out})
	r := newRenderer()

	v.AppendMessage(r.Render(render.Text(render.RoleUser, "a < b")))
	v.AppendMessage(r.Render(render.HTML(render.RoleAssistant, "<p>yes &amp; no</p>")))
	v.AppendMessage(r.Typing())

	assert.Equal(t, "[14:07] user: a < b\n[14:07] assistant: yes & no\n", out.String())
}

func TestStreaming_PrintsDeltas(t *testing.T) {
	var out bytes.Buffer
	v := NewView(ViewOpts{Out: &out})
	r := newRenderer()

	p := r.Placeholder()
	v.AppendMessage(p)
	typing := r.Typing()
	v.AppendMessage(typing)
	for _, chunk := range []string{"Hel", "Hello", "Hello world"} {
		p.Body = render.StreamBody(chunk)
		v.ReplaceMessage(p)
	}
	v.RemoveMessage(typing.ID)

	assert.Equal(t, "[14:07] assistant: Hello world\n", out.String())
}

func TestReplaceMessage_IgnoresClosedNodes(t *testing.T) {
	var out bytes.Buffer
	v := NewView(ViewOpts{Out: &out})
	n := newRenderer().Render(render.Text(render.RoleAssistant, "x"))
	v.AppendMessage(n)
	out.Reset()

	n.Body = "y"
	v.ReplaceMessage(n)
	assert.Empty(t, out.String())
}

func TestConfirm(t *testing.T) {
	var errOut bytes.Buffer
	v := NewView(ViewOpts{Err: &errOut, In: strings.NewReader("yes\nn\n")})

	assert.True(t, v.Confirm("Delete?"))
	assert.False(t, v.Confirm("Delete?"))
	assert.False(t, v.Confirm("Delete?"))
	assert.Contains(t, errOut.String(), "Delete? [y/N] ")

	assert.True(t, NewView(ViewOpts{AssumeYes: true}).Confirm("x"))
	assert.False(t, NewView(ViewOpts{}).Confirm("x"))
}

func TestNotices(t *testing.T) {
	var out, errOut bytes.Buffer
	var states []voice.State
	v := NewView(ViewOpts{Out: &out, Err: &errOut, OnVoice: func(s voice.State) { states = append(states, s) }})

	v.Alert("Please enter a URL")
	v.AuthError(session.FormLogin, "wrong password")
	v.ShowAuth()
	v.SetBusy(panels.Execute, true)
	v.SetBusy(panels.Execute, false)
	v.SetVoice(voice.Recording)
	v.SetInput("hi")

	assert.Contains(t, errOut.String(), "! Please enter a URL\n")
	assert.Contains(t, errOut.String(), "login: wrong password\n")
	assert.Contains(t, errOut.String(), "Run code...\n")
	assert.True(t, v.AuthShown())
	assert.Equal(t, []voice.State{voice.Recording}, states)
	assert.Equal(t, "hi", v.Input())
	assert.Empty(t, out.String())
}

func TestShowCrawlResult(t *testing.T) {
	var out bytes.Buffer
	v := NewView(ViewOpts{Out: &out})
	v.ShowCrawlResult(panels.NewCrawlResult("https://example.com", "# Hi"))
	assert.Equal(t, "# https://example.com\n\n# Hi\n", out.String())
}
