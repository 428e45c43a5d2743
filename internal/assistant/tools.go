package assistant

import (
	"context"

	"github.com/zulandar/pyassist/internal/apperr"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/render"
)

// validate checks panel input and shows the blocking notice on failure.
func (c *Controller) validate(k panels.Kind, input string) (string, error) {
	v, err := panels.Validate(k, input)
	if err != nil {
		c.view.Alert(apperr.Message(err))
		return "", err
	}
	return v, nil
}

// begin marks a busy panel for the life of its request. ok is false when a
// request for k is already in flight.
func (c *Controller) begin(k panels.Kind) (done func(), ok bool) {
	spec, _ := panels.Lookup(k)
	if !spec.ShowBusy {
		return func() {}, true
	}
	release, ok := c.busy.Begin(k)
	if !ok {
		return release, false
	}
	c.view.SetBusy(k, true)
	return func() {
		release()
		c.view.SetBusy(k, false)
	}, true
}

// toolFailure renders a failed panel request: backend errors through msg,
// transport errors as a network error.
func (c *Controller) toolFailure(err error, msg func(string) render.Message) {
	switch {
	case c.loginExpired(err):
	case apperr.Is(err, apperr.KindBackend):
		c.appendMessage(msg(apperr.Message(err)))
	default:
		c.appendMessage(panels.NetworkFailure(describe(err)))
	}
}

// SyntaxCheck checks code and reports the result in the conversation.
func (c *Controller) SyntaxCheck(ctx context.Context, code string) error {
	code, err := c.validate(panels.SyntaxCheck, code)
	if err != nil {
		return err
	}
	res, err := c.backend.SyntaxCheck(ctx, code)
	c.view.SwitchPanel(panels.ChatTab)
	if err != nil {
		c.toolFailure(err, panels.Failure)
		return err
	}
	c.appendMessage(panels.SyntaxResult(res))
	return nil
}

// Execute runs code and shows the source next to its output or error.
func (c *Controller) Execute(ctx context.Context, code string) error {
	code, err := c.validate(panels.Execute, code)
	if err != nil {
		return err
	}
	done, ok := c.begin(panels.Execute)
	if !ok {
		return nil
	}
	defer done()

	res, err := c.backend.ExecuteCode(ctx, code)
	c.view.SwitchPanel(panels.ChatTab)
	if err != nil {
		c.toolFailure(err, func(msg string) render.Message {
			return panels.ExecutionPanel{Source: code, Error: msg, Failed: true}.Message()
		})
		return err
	}
	c.appendMessage(panels.ExecutionPanel{Source: code, Output: res}.Message())
	return nil
}

// Analyze asks for a code review.
func (c *Controller) Analyze(ctx context.Context, code string) error {
	code, err := c.validate(panels.Analyze, code)
	if err != nil {
		return err
	}
	res, err := c.backend.AnalyzeCode(ctx, code)
	c.view.SwitchPanel(panels.ChatTab)
	if err != nil {
		c.toolFailure(err, panels.Failure)
		return err
	}
	c.appendMessage(panels.AnalysisResult(res))
	return nil
}

// Documentation looks up a topic. Failures are shown as a notice.
func (c *Controller) Documentation(ctx context.Context, topic string) error {
	topic, err := c.validate(panels.DocSearch, topic)
	if err != nil {
		return err
	}
	res, err := c.backend.GetDocumentation(ctx, topic)
	if err != nil {
		if !c.loginExpired(err) {
			c.view.Alert(panels.ErrorPrefix + describe(err))
		}
		return err
	}
	c.view.SwitchPanel(panels.ChatTab)
	c.appendMessage(panels.DocResult(res))
	return nil
}

// SearchHandbook searches the handbook.
func (c *Controller) SearchHandbook(ctx context.Context, query string) error {
	query, err := c.validate(panels.HandbookSearch, query)
	if err != nil {
		return err
	}
	res, err := c.backend.SearchHandbook(ctx, query)
	c.view.SwitchPanel(panels.ChatTab)
	if err != nil {
		c.toolFailure(err, panels.SearchFailure)
		return err
	}
	c.appendMessage(panels.HandbookResult(res))
	return nil
}

// Crawl fetches a page as markdown and shows it in the crawler panel.
func (c *Controller) Crawl(ctx context.Context, rawURL string) error {
	rawURL, err := c.validate(panels.WebCrawl, rawURL)
	if err != nil {
		return err
	}
	done, ok := c.begin(panels.WebCrawl)
	if !ok {
		return nil
	}
	defer done()

	res, err := c.backend.WebCrawler(ctx, rawURL)
	if err != nil {
		if !c.loginExpired(err) {
			c.view.Alert("Crawl failed: " + describe(err))
		}
		return err
	}
	r := panels.NewCrawlResult(rawURL, res)
	c.mu.Lock()
	c.lastCrawl = &r
	c.mu.Unlock()
	c.view.ShowCrawlResult(r)
	return nil
}

func (c *Controller) crawlResult() (panels.CrawlResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastCrawl == nil {
		return panels.CrawlResult{}, apperr.Validation("Nothing has been crawled yet")
	}
	return *c.lastCrawl, nil
}

// SendCrawlToChat posts the last crawl result into the conversation.
func (c *Controller) SendCrawlToChat() error {
	r, err := c.crawlResult()
	if err != nil {
		c.view.Alert(apperr.Message(err))
		return err
	}
	c.appendMessage(r.ChatMessage())
	c.view.SwitchPanel(panels.ChatTab)
	return nil
}

// CopyCrawl copies the last crawl result's markdown.
func (c *Controller) CopyCrawl() error {
	r, err := c.crawlResult()
	if err != nil {
		c.view.Alert(apperr.Message(err))
		return err
	}
	return c.copy(r.Markdown)
}

// CopyMessage copies an assistant answer as plain text.
func (c *Controller) CopyMessage(id string) error {
	n, ok := c.transcript.Find(id)
	if !ok {
		return apperr.Validation("message " + id + " not found")
	}
	if n.Role != render.RoleAssistant || n.Typing {
		return apperr.Validation("only assistant answers can be copied")
	}
	return c.copy(n.Text())
}

// CopyCode copies the index-th code block of message id.
func (c *Controller) CopyCode(id string, index int) error {
	n, ok := c.transcript.Find(id)
	if !ok {
		return apperr.Validation("message " + id + " not found")
	}
	blocks := render.CodeBlocks(n.Body)
	if index < 0 || index >= len(blocks) {
		return apperr.Validation("no such code block")
	}
	return c.copy(blocks[index])
}

func (c *Controller) copy(text string) error {
	if err := c.clip.WriteAll(text); err != nil {
		c.log.Warn().Err(err).Msg("copy to clipboard")
		c.view.Alert("Copy failed")
		return apperr.Device("copy failed", err)
	}
	return nil
}
