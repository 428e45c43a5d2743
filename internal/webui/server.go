// Package webui serves the assistant as a local single-page web front:
// embedded page and assets, JSON action routes and an SSE stream of view
// updates.
package webui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/pyassist/internal/assistant"
	"github.com/zulandar/pyassist/internal/logging"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed assets
var assetsFS embed.FS

// StartOpts holds configuration for the web server.
type StartOpts struct {
	// Controller must have been created with Hub.View() as its view.
	Controller *assistant.Controller
	Hub        *Hub
	Port       int
	Out        io.Writer
	// RefreshSchedule is a cron spec for reloading the sidebar. Empty
	// disables the periodic refresh.
	RefreshSchedule string
	Logger          zerolog.Logger
}

// Start launches the web server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Controller == nil {
		return fmt.Errorf("webui: controller is required")
	}
	if opts.Hub == nil {
		return fmt.Errorf("webui: hub is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	log := logging.Component(opts.Logger, "webui")

	gin.SetMode(gin.ReleaseMode)
	router, err := newRouter(ctx, opts.Controller, opts.Hub, log)
	if err != nil {
		return fmt.Errorf("webui: %w", err)
	}

	if opts.RefreshSchedule != "" {
		sched, err := startRefresh(opts.RefreshSchedule, opts.Controller, log)
		if err != nil {
			return fmt.Errorf("webui: %w", err)
		}
		defer func() { <-sched.Stop().Done() }()
	}

	addr := fmt.Sprintf("127.0.0.1:%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Assistant running at http://localhost:%d\n", opts.Port)
	}
	log.Info().Str("addr", addr).Msg("web front listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webui: %w", err)
	}
	return nil
}

// newRouter builds the gin engine. base bounds work that outlives a single
// request, such as a recording started from the page.
func newRouter(base context.Context, ctrl *assistant.Controller, hub *Hub, log zerolog.Logger) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())

	// Parse embedded templates.
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, &handlers{ctrl: ctrl, hub: hub, log: log, base: base})
	return router, nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}
