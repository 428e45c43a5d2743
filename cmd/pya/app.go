package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zulandar/pyassist/internal/assistant"
	"github.com/zulandar/pyassist/internal/backend"
	"github.com/zulandar/pyassist/internal/config"
	"github.com/zulandar/pyassist/internal/console"
	"github.com/zulandar/pyassist/internal/logging"
	"github.com/zulandar/pyassist/internal/store"
	"github.com/zulandar/pyassist/internal/voice"
)

// app is everything one command needs: configuration, the local store,
// the backend client and a controller rendering to some view.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  *store.Store
	client *backend.Client
	ctrl   *assistant.Controller
	// console is nil when the controller renders to a browser.
	console *console.View
}

type appOpts struct {
	// view overrides the console view.
	view assistant.View
	// voice attaches the microphone when the config enables it.
	voice   bool
	onVoice func(voice.State)
}

// openApp loads the config named by --config and wires the components.
// Callers must close the app.
func openApp(cmd *cobra.Command, opts appOpts) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.State.Path)
	if err != nil {
		return nil, err
	}

	client, err := backend.NewClient(backend.ClientOpts{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: logger, store: st, client: client}
	a.restoreCookies()

	view := opts.view
	if view == nil {
		a.console = console.NewView(console.ViewOpts{
			Out:       cmd.OutOrStdout(),
			Err:       cmd.ErrOrStderr(),
			In:        cmd.InOrStdin(),
			AssumeYes: assumeYes,
			OnVoice:   opts.onVoice,
		})
		view = a.console
	}

	ctrlOpts := assistant.ControllerOpts{
		Backend:    client,
		View:       view,
		Prefs:      st,
		Streaming:  cfg.UI.Streaming,
		TimeLayout: cfg.UI.TimeLayout,
		DateLayout: cfg.UI.DateLayout,
		Logger:     logger,
	}
	if opts.voice && cfg.Voice.Enabled {
		ctrlOpts.Voice = voice.NewExecDevice(voice.ExecDeviceOpts{
			Binary:      cfg.Voice.Binary,
			InputFormat: cfg.Voice.InputFormat,
			InputDevice: cfg.Voice.InputDevice,
			SampleRate:  cfg.Voice.SampleRate,
			Channels:    cfg.Voice.Channels,
			Bitrate:     cfg.Voice.Bitrate,
			Logger:      logger,
		})
		ctrlOpts.FlushInterval = cfg.Voice.FlushInterval
		ctrlOpts.MaxDuration = cfg.Voice.MaxDuration
	}

	a.ctrl, err = assistant.New(ctrlOpts)
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// savedCookie is the persisted form of a backend cookie.
type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (a *app) restoreCookies() {
	raw, err := a.store.Get(store.KeySessionCookies, "")
	if err != nil || raw == "" {
		return
	}
	var saved []savedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		a.log.Warn().Err(err).Msg("discarding unreadable session cookies")
		return
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, s := range saved {
		cookies = append(cookies, &http.Cookie{Name: s.Name, Value: s.Value, Path: "/"})
	}
	a.client.SetCookies(cookies)
}

func (a *app) saveCookies() {
	cookies := a.client.Cookies()
	saved := make([]savedCookie, 0, len(cookies))
	for _, c := range cookies {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return
	}
	if err := a.store.Set(store.KeySessionCookies, string(data)); err != nil {
		a.log.Warn().Err(err).Msg("save session cookies")
	}
}

// Close persists the backend session and releases everything.
func (a *app) Close() error {
	a.saveCookies()
	err := a.ctrl.Close()
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// requireSession loads the login state, failing when nobody is logged in.
func (a *app) requireSession(ctx context.Context) error {
	if err := a.ctrl.CheckStatus(ctx); err != nil {
		return err
	}
	if !a.ctrl.Session().LoggedIn {
		return fmt.Errorf("not logged in")
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(out io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
