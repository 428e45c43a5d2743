package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/zulandar/pyassist/internal/apperr"
	"github.com/zulandar/pyassist/internal/backend"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
)

// Chat messages.
const (
	EmptyQuestion   = "Please enter a question"
	ConnectionError = "Connection error, please retry"
)

// errStale stops a stream whose placeholder is no longer in the view.
var errStale = errors.New("assistant: stream target removed")

// Ask sends question on the configured path: streaming or a single request.
func (c *Controller) Ask(ctx context.Context, question string) error {
	if c.streaming {
		return c.SendStream(ctx, question)
	}
	return c.Send(ctx, question)
}

// beginTurn gates on login and input, then shows the user's message.
func (c *Controller) beginTurn(question string) (string, error) {
	if err := c.requireLogin(); err != nil {
		return "", err
	}
	q := strings.TrimSpace(question)
	if q == "" {
		c.view.Alert(EmptyQuestion)
		return "", apperr.Validation(EmptyQuestion)
	}
	c.appendMessage(render.Text(render.RoleUser, q))
	c.view.SetInput("")
	return q, nil
}

// Send asks with one blocking request behind a typing indicator.
func (c *Controller) Send(ctx context.Context, question string) error {
	q, err := c.beginTurn(question)
	if err != nil {
		return err
	}
	typing := c.renderer.Typing()
	c.appendNode(typing)

	answer, err := c.backend.Ask(ctx, q)
	c.removeNode(typing.ID)
	if err != nil {
		c.chatFailure(err)
		return err
	}
	c.appendMessage(render.Answer(answer))
	c.refreshSidebar(ctx)
	return nil
}

func (c *Controller) chatFailure(err error) {
	switch {
	case c.loginExpired(err):
	case apperr.Is(err, apperr.KindBackend):
		c.appendMessage(panels.Failure(apperr.Message(err)))
	default:
		c.appendMessage(panels.NetworkFailure(describe(err)))
	}
}

// SendStream asks over the event stream. A placeholder answer is shown at
// once and its body replaced by every cumulative chunk until the finished
// event carries the full answer. Starting a stream cancels the previous one.
func (c *Controller) SendStream(ctx context.Context, question string) error {
	q, err := c.beginTurn(question)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	prev := c.streamCancel
	c.streamCancel = cancel
	c.streamSeq++
	seq := c.streamSeq
	c.mu.Unlock()
	if prev != nil {
		prev()
	}
	defer func() {
		cancel()
		c.mu.Lock()
		if c.streamSeq == seq {
			c.streamCancel = nil
		}
		c.mu.Unlock()
	}()

	placeholder := c.renderer.Placeholder()
	c.appendNode(placeholder)
	typing := c.renderer.Typing()
	c.appendNode(typing)

	received := false
	var streamErr string
	err = c.backend.AskStream(ctx, q, func(ev backend.StreamEvent) error {
		switch {
		case ev.Error != "":
			streamErr = ev.Error
			return nil
		case ev.Finished:
			answer := ev.FullAnswer
			if answer == "" {
				return nil
			}
			return c.updateStream(placeholder.ID, render.Body(render.Answer(answer)), &received)
		default:
			return c.updateStream(placeholder.ID, render.StreamBody(ev.Chunk), &received)
		}
	})
	c.removeNode(typing.ID)
	if !received {
		c.removeNode(placeholder.ID)
	}

	switch {
	case streamErr != "":
		err = apperr.Backend(streamErr)
		if !c.loginExpired(err) {
			c.appendMessage(panels.Failure(streamErr))
		}
		return err
	case errors.Is(err, errStale), ctx.Err() != nil:
		c.log.Debug().Err(err).Msg("stream abandoned")
		return nil
	case err != nil:
		c.log.Warn().Err(err).Msg("stream failed")
		c.appendMessage(render.Text(render.RoleSystem, ConnectionError))
		return err
	}
	c.refreshSidebar(ctx)
	return nil
}

func (c *Controller) updateStream(id, body string, received *bool) error {
	n, ok := c.transcript.Replace(id, body)
	if !ok {
		return errStale
	}
	*received = true
	c.view.ReplaceMessage(n)
	return nil
}

// refreshSidebar reloads the history list so a new conversation's title
// appears; failures only log.
func (c *Controller) refreshSidebar(ctx context.Context) {
	if err := c.ListConversations(ctx); err != nil {
		c.log.Debug().Err(err).Msg("refresh history")
	}
}
