package webui

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/pyassist/internal/apperr"
	"github.com/zulandar/pyassist/internal/assistant"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
	"github.com/zulandar/pyassist/internal/session"
)

// highlightStyle is the chroma style served as /highlight.css.
const highlightStyle = "monokai"

type handlers struct {
	ctrl *assistant.Controller
	hub  *Hub
	log  zerolog.Logger
	// base outlives requests; recordings run under it.
	base context.Context
}

// registerRoutes sets up all routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	// Embedded static assets (served from assets/ subdir of the embed.FS).
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))
	router.GET("/highlight.css", handleHighlightCSS())

	router.GET("/", h.index)

	api := router.Group("/api")
	api.GET("/state", h.state)
	api.GET("/events", handleSSE(h.hub))

	api.POST("/login", h.login)
	api.POST("/register", h.register)
	api.POST("/logout", h.logout)

	api.POST("/ask", h.ask)
	api.POST("/clear", h.action(h.ctrl.Clear))

	api.GET("/conversations", h.action(h.ctrl.ListConversations))
	api.POST("/conversations/new", h.action(h.ctrl.NewConversation))
	api.POST("/conversations/:id/load", h.conversation(h.ctrl.LoadConversation))
	api.DELETE("/conversations/:id", h.conversation(h.ctrl.DeleteConversation))

	api.POST("/tools/:kind", h.tool)
	api.POST("/crawl/send", h.simple(h.ctrl.SendCrawlToChat))
	api.POST("/crawl/copy", h.simple(h.ctrl.CopyCrawl))

	api.POST("/copy/:id", h.copyMessage)
	api.POST("/copy/:id/code/:index", h.copyCode)

	api.POST("/voice/start", h.voiceStart)
	api.POST("/voice/stop", h.voiceStop)
	api.POST("/voice/toggle", h.voiceToggle)

	api.POST("/theme", h.theme)
	api.POST("/input/example", h.example)
	api.POST("/input/template", h.template)
}

func (h *handlers) index(c *gin.Context) {
	snap := h.ctrl.Snapshot()
	c.HTML(http.StatusOK, "layout.html", gin.H{
		"theme":  snap.Theme,
		"panels": snap.Panels,
		"tabs":   toolTabs(snap.Panels),
	})
}

// toolTabs returns the distinct panel tabs in display order.
func toolTabs(specs []panels.Spec) []string {
	var tabs []string
	seen := make(map[string]bool)
	for _, s := range specs {
		if !seen[s.Tab] {
			seen[s.Tab] = true
			tabs = append(tabs, s.Tab)
		}
	}
	return tabs
}

// stateResponse is a snapshot plus the ready-to-insert markup of each
// message.
type stateResponse struct {
	assistant.Snapshot
	HTML []string `json:"html"`
}

func (h *handlers) state(c *gin.Context) {
	snap := h.ctrl.Snapshot()
	resp := stateResponse{Snapshot: snap, HTML: make([]string, 0, len(snap.Messages))}
	for _, n := range snap.Messages {
		resp.HTML = append(resp.HTML, render.Markup(n))
	}
	c.JSON(http.StatusOK, resp)
}

func handleHighlightCSS() gin.HandlerFunc {
	return func(c *gin.Context) {
		css, err := render.HighlightCSS(highlightStyle)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, "text/css; charset=utf-8", []byte(css))
	}
}

// respond writes the outcome of a controller call. The controller has
// already shown any failure through the view; the status code lets scripts
// tell outcomes apart.
func (h *handlers) respond(c *gin.Context, err error, extra gin.H) {
	if err == nil {
		body := gin.H{"ok": true}
		for k, v := range extra {
			body[k] = v
		}
		c.JSON(http.StatusOK, body)
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"ok": false, "kind": apperr.KindOf(err), "error": apperr.Message(err)})
}

func statusFor(err error) int {
	var fe *session.FormError
	if errors.As(err, &fe) {
		return http.StatusBadRequest
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindBackend, apperr.KindTransport:
		return http.StatusBadGateway
	case apperr.KindDevice:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *handlers) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.respond(c, apperr.Validation("malformed request body"), nil)
		return false
	}
	return true
}

// action adapts a controller operation that takes only a context.
func (h *handlers) action(op func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.respond(c, op(c.Request.Context()), nil)
	}
}

func (h *handlers) simple(op func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.respond(c, op(), nil)
	}
}

func (h *handlers) conversation(op func(context.Context, int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			h.respond(c, apperr.Validation("invalid conversation id"), nil)
			return
		}
		h.respond(c, op(c.Request.Context(), id), nil)
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

func (h *handlers) login(c *gin.Context) {
	var req credentialsRequest
	if !h.bind(c, &req) {
		return
	}
	h.respond(c, h.ctrl.Login(c.Request.Context(), req.Username, req.Password), nil)
}

func (h *handlers) register(c *gin.Context) {
	var req credentialsRequest
	if !h.bind(c, &req) {
		return
	}
	h.respond(c, h.ctrl.Register(c.Request.Context(), req.Username, req.Password, req.Confirm), nil)
}

func (h *handlers) logout(c *gin.Context) {
	h.respond(c, h.ctrl.Logout(c.Request.Context()), nil)
}

func (h *handlers) ask(c *gin.Context) {
	var req struct {
		Question string `json:"question"`
	}
	if !h.bind(c, &req) {
		return
	}
	h.respond(c, h.ctrl.Ask(c.Request.Context(), req.Question), nil)
}

func (h *handlers) tool(c *gin.Context) {
	var req struct {
		Input string `json:"input"`
	}
	if !h.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	var err error
	switch panels.Kind(c.Param("kind")) {
	case panels.SyntaxCheck:
		err = h.ctrl.SyntaxCheck(ctx, req.Input)
	case panels.Execute:
		err = h.ctrl.Execute(ctx, req.Input)
	case panels.Analyze:
		err = h.ctrl.Analyze(ctx, req.Input)
	case panels.DocSearch:
		err = h.ctrl.Documentation(ctx, req.Input)
	case panels.HandbookSearch:
		err = h.ctrl.SearchHandbook(ctx, req.Input)
	case panels.WebCrawl:
		err = h.ctrl.Crawl(ctx, req.Input)
	default:
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown tool"})
		return
	}
	h.respond(c, err, nil)
}

func (h *handlers) copyMessage(c *gin.Context) {
	h.respond(c, h.ctrl.CopyMessage(c.Param("id")), nil)
}

func (h *handlers) copyCode(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		h.respond(c, apperr.Validation("invalid code block index"), nil)
		return
	}
	h.respond(c, h.ctrl.CopyCode(c.Param("id"), index), nil)
}

func (h *handlers) voiceStart(c *gin.Context) {
	err := h.ctrl.StartRecording(h.base)
	h.respond(c, err, gin.H{"state": h.ctrl.VoiceState().String()})
}

func (h *handlers) voiceStop(c *gin.Context) {
	h.ctrl.StopRecording()
	h.respond(c, nil, gin.H{"state": h.ctrl.VoiceState().String()})
}

func (h *handlers) voiceToggle(c *gin.Context) {
	err := h.ctrl.ToggleRecording(h.base)
	h.respond(c, err, gin.H{"state": h.ctrl.VoiceState().String()})
}

func (h *handlers) theme(c *gin.Context) {
	var req struct {
		Theme string `json:"theme"`
	}
	if !h.bind(c, &req) {
		return
	}
	if req.Theme == "" || req.Theme == "toggle" {
		theme, err := h.ctrl.ToggleTheme()
		h.respond(c, err, gin.H{"theme": theme})
		return
	}
	if req.Theme != assistant.ThemeDark && req.Theme != assistant.ThemeLight {
		h.respond(c, apperr.Validation("unknown theme "+strconv.Quote(req.Theme)), nil)
		return
	}
	h.respond(c, h.ctrl.SetTheme(req.Theme), gin.H{"theme": h.ctrl.Theme()})
}

func (h *handlers) example(c *gin.Context) {
	h.respond(c, nil, gin.H{"text": h.ctrl.ExampleQuestion()})
}

func (h *handlers) template(c *gin.Context) {
	var req struct {
		Current string `json:"current"`
	}
	if !h.bind(c, &req) {
		return
	}
	h.respond(c, nil, gin.H{"text": h.ctrl.InsertCodeTemplate(req.Current)})
}
