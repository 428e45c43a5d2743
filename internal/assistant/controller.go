// Package assistant is the client controller: it owns the session, the
// transcript, the sidebar and the microphone, and turns user actions into
// backend calls and view updates.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"github.com/zulandar/pyassist/internal/apperr"
	"github.com/zulandar/pyassist/internal/backend"
	"github.com/zulandar/pyassist/internal/history"
	"github.com/zulandar/pyassist/internal/logging"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
	"github.com/zulandar/pyassist/internal/session"
	"github.com/zulandar/pyassist/internal/store"
	"github.com/zulandar/pyassist/internal/voice"
)

// Backend is the subset of the backend client the controller uses.
type Backend interface {
	CheckLogin(ctx context.Context) (*backend.LoginStatus, error)
	Login(ctx context.Context, username, password string) (*backend.AuthResult, error)
	Register(ctx context.Context, username, password string) (*backend.AuthResult, error)
	Logout(ctx context.Context) error

	Ask(ctx context.Context, question string) (string, error)
	AskStream(ctx context.Context, question string, fn func(backend.StreamEvent) error) error
	Clear(ctx context.Context) error
	NewConversation(ctx context.Context) error
	GetConversations(ctx context.Context) ([]backend.ConversationSummary, error)
	LoadConversation(ctx context.Context, id int64) ([]backend.HistoryMessage, error)
	DeleteConversation(ctx context.Context, id int64) error

	SyntaxCheck(ctx context.Context, code string) (string, error)
	ExecuteCode(ctx context.Context, code string) (string, error)
	AnalyzeCode(ctx context.Context, code string) (string, error)
	GetDocumentation(ctx context.Context, topic string) (string, error)
	SearchHandbook(ctx context.Context, query string) (string, error)
	WebCrawler(ctx context.Context, rawURL string) (string, error)
	VoiceRecognition(ctx context.Context, audio []byte) (string, error)
}

// Preferences persists small client settings. *store.Store satisfies it.
type Preferences interface {
	Get(key, def string) (string, error)
	Set(key, value string) error
}

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Themes.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// ControllerOpts holds parameters for creating a Controller.
type ControllerOpts struct {
	Backend   Backend
	View      View
	Prefs     Preferences // optional; the theme is not persisted without it
	Clipboard Clipboard   // defaults to the system clipboard

	// Voice is the microphone. Nil disables voice input.
	Voice         voice.Device
	VoiceClock    voice.Clock
	FlushInterval time.Duration
	MaxDuration   time.Duration

	Streaming  bool // Ask uses the event stream
	TimeLayout string
	DateLayout string
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Controller coordinates one client session.
type Controller struct {
	backend   Backend
	view      View
	prefs     Preferences
	clip      Clipboard
	streaming bool
	now       func() time.Time
	log       zerolog.Logger

	renderer   *render.Renderer
	transcript *render.Transcript
	sidebar    *history.Sidebar
	busy       *panels.Busy
	recorder   *voice.Recorder

	// ctx outlives individual requests; audio uploads started by the
	// recording timer run under it.
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	session      session.Session
	theme        string
	streamCancel context.CancelFunc
	streamSeq    uint64
	voiceAlerted bool
	voiceHidden  bool
	lastCrawl    *panels.CrawlResult
	closed       bool
}

// New creates a Controller. The theme is loaded from Prefs.
func New(opts ControllerOpts) (*Controller, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("assistant: backend is required")
	}
	if opts.View == nil {
		return nil, fmt.Errorf("assistant: view is required")
	}
	if opts.Clipboard == nil {
		opts.Clipboard = systemClipboard{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:    opts.Backend,
		view:       opts.View,
		prefs:      opts.Prefs,
		clip:       opts.Clipboard,
		streaming:  opts.Streaming,
		now:        opts.Now,
		log:        logging.Component(opts.Logger, "assistant"),
		renderer:   render.NewRenderer(opts.TimeLayout, opts.Now),
		transcript: render.NewTranscript(),
		sidebar:    history.NewSidebar(history.Labeler{TimeLayout: opts.TimeLayout, DateLayout: opts.DateLayout}),
		busy:       panels.NewBusy(),
		ctx:        ctx,
		cancel:     cancel,
		theme:      ThemeDark,
	}

	if opts.Voice != nil {
		rec, err := voice.NewRecorder(voice.RecorderOpts{
			Device:        opts.Voice,
			Clock:         opts.VoiceClock,
			FlushInterval: opts.FlushInterval,
			MaxDuration:   opts.MaxDuration,
			OnStopped:     c.transcribe,
			OnDeviceError: c.recordingFailed,
			OnState:       c.view.SetVoice,
			Logger:        opts.Logger,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("assistant: %w", err)
		}
		c.recorder = rec
	}

	if c.prefs != nil {
		theme, err := c.prefs.Get(store.KeyTheme, ThemeDark)
		if err != nil {
			c.log.Warn().Err(err).Msg("load theme")
		}
		if validTheme(theme) {
			c.theme = theme
		}
	}
	return c, nil
}

// Session returns the current session.
func (c *Controller) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Messages returns the transcript nodes in order.
func (c *Controller) Messages() []render.Node {
	return c.transcript.Nodes()
}

// Snapshot returns the complete view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := c.session
	theme := c.theme
	hidden := c.voiceHidden
	c.mu.Unlock()

	snap := Snapshot{
		LoggedIn: s.LoggedIn,
		Username: s.Username,
		Greeting: s.Greeting(),
		Welcome:  c.transcript.Welcome(),
		Messages: c.transcript.Nodes(),
		Sidebar:  c.sidebar.Entries(c.now()),
		Theme:    theme,
		Voice:    voice.Unsupported.String(),
		Panels:   panels.All(),
	}
	if c.recorder != nil && !hidden {
		st := c.recorder.State()
		snap.Voice = st.String()
		snap.VoiceAvailable = st != voice.Unsupported
	}
	return snap
}

// Close cancels any stream and releases the microphone. It is safe to call
// more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}
	c.mu.Unlock()

	c.cancel()
	if c.recorder != nil {
		return c.recorder.Close()
	}
	return nil
}

func (c *Controller) applySession(ev session.Event) session.Session {
	c.mu.Lock()
	c.session = session.Apply(c.session, ev)
	s := c.session
	c.mu.Unlock()
	c.view.SetUser(s)
	return s
}

// requireLogin short-circuits to the auth modal when logged out.
func (c *Controller) requireLogin() error {
	if err := session.RequireLogin(c.Session()); err != nil {
		c.view.ShowAuth()
		return err
	}
	return nil
}

// appendMessage renders m as one new node, then runs the code-block pass
// over the whole transcript.
func (c *Controller) appendMessage(m render.Message) render.Node {
	n := c.renderer.Render(m)
	c.appendNode(n)
	return n
}

func (c *Controller) appendNode(n render.Node) {
	c.transcript.Append(n)
	c.view.AppendMessage(n)
	for _, changed := range c.transcript.ReaugmentAll() {
		c.view.ReplaceMessage(changed)
	}
}

func (c *Controller) removeNode(id string) {
	if c.transcript.Remove(id) {
		c.view.RemoveMessage(id)
	}
}

// resetView drops the conversation and any stream feeding it.
func (c *Controller) resetView() {
	c.cancelStream()
	c.transcript.Reset()
	c.view.ShowWelcome()
}

func (c *Controller) cancelStream() {
	c.mu.Lock()
	cancel := c.streamCancel
	c.streamCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// loginExpired reports whether err is the backend telling us the session is
// gone, and shows the auth modal if so.
func (c *Controller) loginExpired(err error) bool {
	if apperr.Is(err, apperr.KindBackend) && session.IsLoginRequired(apperr.Message(err)) {
		c.view.ShowAuth()
		return true
	}
	return false
}

// describe renders err for a message, including the transport cause.
func describe(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind == apperr.KindTransport && ae.Cause != nil {
		return ae.Message + ": " + ae.Cause.Error()
	}
	return apperr.Message(err)
}
