package assistant

import (
	"context"

	"github.com/zulandar/pyassist/internal/history"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
)

// ListConversations reloads the sidebar in backend order.
func (c *Controller) ListConversations(ctx context.Context) error {
	list, err := c.backend.GetConversations(ctx)
	if err != nil {
		c.loginExpired(err)
		c.log.Warn().Err(err).Msg("load conversations")
		return err
	}
	c.sidebar.SetEntries(history.FromBackend(list))
	c.publishSidebar()
	return nil
}

func (c *Controller) publishSidebar() {
	c.view.SetSidebar(c.sidebar.Entries(c.now()))
}

// LoadConversation replaces the message view with conversation id and
// marks it active.
func (c *Controller) LoadConversation(ctx context.Context, id int64) error {
	msgs, err := c.backend.LoadConversation(ctx, id)
	if err != nil {
		if !c.loginExpired(err) {
			c.view.Alert("Failed to load conversation: " + describe(err))
		}
		return err
	}

	c.resetView()
	for _, m := range msgs {
		c.appendMessage(render.FromBackend(m.Role, m.Message, m.Type))
	}
	c.sidebar.MarkActive(id)
	c.publishSidebar()
	c.view.SwitchPanel(panels.ChatTab)
	c.log.Debug().Int64("conversation", id).Int("messages", len(msgs)).Msg("conversation loaded")
	return nil
}

// DeleteConversation deletes conversation id after confirmation. Deleting
// the active conversation resets the view to the welcome state; any other
// delete leaves the view alone.
func (c *Controller) DeleteConversation(ctx context.Context, id int64) error {
	if !c.view.Confirm("Delete this conversation?") {
		return nil
	}
	if err := c.backend.DeleteConversation(ctx, id); err != nil {
		if !c.loginExpired(err) {
			c.view.Alert("Failed to delete conversation: " + describe(err))
		}
		return err
	}

	wasActive := c.sidebar.IsActive(id)
	if wasActive {
		c.sidebar.ClearActive()
		c.resetView()
	}
	if err := c.ListConversations(ctx); err != nil {
		c.publishSidebar()
	}
	return nil
}

// NewConversation starts over after confirmation. The backend creates the
// conversation lazily on the first question.
func (c *Controller) NewConversation(ctx context.Context) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	if !c.view.Confirm("Start a new conversation? The current one stays in history.") {
		return nil
	}
	if err := c.backend.NewConversation(ctx); err != nil {
		if !c.loginExpired(err) {
			c.view.Alert("Failed to create conversation: " + describe(err))
		}
		return err
	}
	c.sidebar.ClearActive()
	c.resetView()
	c.refreshSidebar(ctx)
	return nil
}

// Clear empties the current conversation after confirmation.
func (c *Controller) Clear(ctx context.Context) error {
	if !c.view.Confirm("Clear the current conversation?") {
		return nil
	}
	if err := c.backend.Clear(ctx); err != nil {
		c.log.Warn().Err(err).Msg("clear conversation")
		return err
	}
	c.resetView()
	return nil
}
