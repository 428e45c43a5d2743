// Package backend is the HTTP client for the assistant backend. Every
// endpoint is a single JSON round-trip except the answer event stream and
// the multipart voice upload.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zulandar/pyassist/internal/apperr"
	"github.com/zulandar/pyassist/internal/logging"
)

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BaseURL    string
	Timeout    time.Duration // zero: no client-side timeout
	HTTPClient *http.Client  // optional; a cookie-jar client is built otherwise
	Logger     zerolog.Logger
}

// Client talks to one backend. It keeps the backend session cookie in its
// jar, so one Client corresponds to one logged-in user.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("backend: cookie jar: %w", err)
		}
		hc = &http.Client{Jar: jar, Timeout: opts.Timeout}
	}
	return &Client{
		baseURL: base,
		http:    hc,
		log:     logging.Component(opts.Logger, "backend"),
	}, nil
}

// BaseURL returns the backend root the client was built for.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Cookies returns the cookies the client holds for the backend. A CLI
// saves them between runs to keep the login.
func (c *Client) Cookies() []*http.Cookie {
	u, err := url.Parse(c.baseURL)
	if err != nil || c.http.Jar == nil {
		return nil
	}
	return c.http.Jar.Cookies(u)
}

// SetCookies restores cookies saved by an earlier run.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	u, err := url.Parse(c.baseURL)
	if err != nil || c.http.Jar == nil || len(cookies) == 0 {
		return
	}
	c.http.Jar.SetCookies(u, cookies)
}

// CheckLogin queries the current login state.
func (c *Client) CheckLogin(ctx context.Context) (*LoginStatus, error) {
	var status LoginStatus
	if err := c.call(ctx, http.MethodGet, "/check_login", nil, &status, false); err != nil {
		return nil, err
	}
	return &status, nil
}

// Login authenticates username/password.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var res AuthResult
	if err := c.call(ctx, http.MethodPost, "/login", credentials{username, password}, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	var res AuthResult
	if err := c.call(ctx, http.MethodPost, "/register", credentials{username, password}, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout ends the backend session. The response body carries nothing the
// client needs.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/logout", nil, nil, false)
}

// Clear empties the current conversation.
func (c *Client) Clear(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/clear", nil, nil, true)
}

// NewConversation drops the current conversation id; the backend creates a
// new conversation lazily on the next message.
func (c *Client) NewConversation(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/new_conversation", nil, nil, true)
}

// Ask sends a question and returns the answer markup.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	var res answerResponse
	if err := c.call(ctx, http.MethodPost, "/ask", questionRequest{question}, &res, true); err != nil {
		return "", err
	}
	return res.Answer, nil
}

// SyntaxCheck asks the backend to check code.
func (c *Client) SyntaxCheck(ctx context.Context, code string) (string, error) {
	return c.result(ctx, "/syntax_check", codeRequest{code})
}

// ExecuteCode runs code in the backend sandbox.
func (c *Client) ExecuteCode(ctx context.Context, code string) (string, error) {
	return c.result(ctx, "/execute_code", codeRequest{code})
}

// AnalyzeCode requests a static analysis of code.
func (c *Client) AnalyzeCode(ctx context.Context, code string) (string, error) {
	return c.result(ctx, "/analyze_code", codeRequest{code})
}

// GetDocumentation looks up documentation for topic. The result is markup.
func (c *Client) GetDocumentation(ctx context.Context, topic string) (string, error) {
	return c.result(ctx, "/get_documentation", topicRequest{topic})
}

// SearchHandbook searches the bundled handbook. The result is markup.
func (c *Client) SearchHandbook(ctx context.Context, query string) (string, error) {
	return c.result(ctx, "/search_handbook", queryRequest{query})
}

// WebCrawler fetches rawURL and returns its content as markdown text.
func (c *Client) WebCrawler(ctx context.Context, rawURL string) (string, error) {
	return c.result(ctx, "/web_crawler", urlRequest{rawURL})
}

// GetConversations lists the user's conversations, most recent first.
func (c *Client) GetConversations(ctx context.Context) ([]ConversationSummary, error) {
	var res conversationsResponse
	if err := c.call(ctx, http.MethodGet, "/get_conversations", nil, &res, true); err != nil {
		return nil, err
	}
	return res.Conversations, nil
}

// LoadConversation makes id the current conversation and returns its
// ordered history.
func (c *Client) LoadConversation(ctx context.Context, id int64) ([]HistoryMessage, error) {
	var res historyResponse
	path := fmt.Sprintf("/load_conversation/%d", id)
	if err := c.call(ctx, http.MethodPost, path, nil, &res, true); err != nil {
		return nil, err
	}
	return res.History, nil
}

// DeleteConversation removes conversation id.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/delete_conversation/%d", id)
	return c.call(ctx, http.MethodPost, path, nil, nil, true)
}

func (c *Client) result(ctx context.Context, path string, body any) (string, error) {
	var res resultResponse
	if err := c.call(ctx, http.MethodPost, path, body, &res, true); err != nil {
		return "", err
	}
	return res.Result, nil
}

// call performs one JSON round-trip. When requireSuccess is set, a body
// without success:true becomes a backend error carrying its error text.
func (c *Client) call(ctx context.Context, method, path string, body, out any, requireSuccess bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperr.New(apperr.KindInternal, "encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.Transport("build request", err)
	}
	if body != nil || method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.roundTrip(req, path, out, requireSuccess)
}

func (c *Client) roundTrip(req *http.Request, path string, out any, requireSuccess bool) error {
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Str("request_id", reqID).Str("path", path).Err(err).Msg("request failed")
		return apperr.Transport("network error", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Transport("read response", err)
	}
	c.log.Debug().
		Str("request_id", reqID).
		Str("method", req.Method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend call")

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return apperr.Transport(fmt.Sprintf("malformed response from %s (status %d)", path, resp.StatusCode), err)
	}
	if requireSuccess && !env.Success {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("request to %s failed (status %d)", path, resp.StatusCode)
		}
		return apperr.Backend(msg)
	}
	if !requireSuccess && resp.StatusCode >= http.StatusBadRequest {
		return apperr.Transport(fmt.Sprintf("%s returned status %d", path, resp.StatusCode), nil)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return apperr.Transport(fmt.Sprintf("malformed response from %s", path), err)
		}
	}
	return nil
}
