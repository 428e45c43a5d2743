package webui

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/zulandar/pyassist/internal/assistant"
)

// refreshTimeout bounds one scheduled conversation-list fetch.
const refreshTimeout = 30 * time.Second

// startRefresh schedules refreshSidebar on spec (standard five-field cron or
// a descriptor such as "@every 5m"). The caller stops the returned Cron.
func startRefresh(spec string, ctrl *assistant.Controller, log zerolog.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		refreshSidebar(ctx, ctrl, log)
	})
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

// refreshSidebar reloads the conversation list unless nobody is logged in.
func refreshSidebar(ctx context.Context, ctrl *assistant.Controller, log zerolog.Logger) bool {
	if !ctrl.Session().LoggedIn {
		return false
	}
	if err := ctrl.ListConversations(ctx); err != nil {
		log.Warn().Err(err).Msg("scheduled sidebar refresh failed")
		return false
	}
	return true
}
