package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/pyassist/internal/apperr"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientOpts{BaseURL: srv.URL + "/", Logger: zerolog.Nop()})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(ClientOpts{BaseURL: "not a url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid base url")
}

func TestNewClient_TrimsSlash(t *testing.T) {
	c, err := NewClient(ClientOpts{BaseURL: "http://127.0.0.1:5000/"})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5000", c.BaseURL())
}

func TestClient_LogsUnderComponent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"success": true, "answer": "ok"})
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	c, err := NewClient(ClientOpts{BaseURL: srv.URL, Logger: zerolog.New(&buf).Level(zerolog.DebugLevel)})
	require.NoError(t, err)

	_, err = c.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"component":"backend"`)
	assert.Contains(t, buf.String(), `"path":"/ask"`)
}

func TestAsk_Success(t *testing.T) {
	var gotBody map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ask", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(w, 200, map[string]any{"success": true, "answer": "<p>hi</p>"})
	}))

	answer, err := c.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", answer)
	assert.Equal(t, "hello", gotBody["question"])
}

func TestAsk_BackendError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]any{"error": "请先登录"})
	}))

	_, err := c.Ask(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBackend))
	assert.Equal(t, "请先登录", apperr.Message(err))
}

func TestAsk_BackendErrorWithoutMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"success": false})
	}))

	_, err := c.Ask(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBackend))
	assert.Contains(t, apperr.Message(err), "/ask")
}

func TestAsk_MalformedBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	}))

	_, err := c.Ask(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
}

func TestAsk_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(ClientOpts{BaseURL: base})
	require.NoError(t, err)
	_, err = c.Ask(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
}

func TestToolEndpoints(t *testing.T) {
	cases := []struct {
		path string
		key  string
		call func(*Client) (string, error)
		arg  string
	}{
		{"/syntax_check", "code", func(c *Client) (string, error) { return c.SyntaxCheck(context.Background(), "x=1") }, "x=1"},
		{"/execute_code", "code", func(c *Client) (string, error) { return c.ExecuteCode(context.Background(), "print(1)") }, "print(1)"},
		{"/analyze_code", "code", func(c *Client) (string, error) { return c.AnalyzeCode(context.Background(), "def f(): pass") }, "def f(): pass"},
		{"/get_documentation", "topic", func(c *Client) (string, error) { return c.GetDocumentation(context.Background(), "list") }, "list"},
		{"/search_handbook", "query", func(c *Client) (string, error) { return c.SearchHandbook(context.Background(), "loops") }, "loops"},
		{"/web_crawler", "url", func(c *Client) (string, error) { return c.WebCrawler(context.Background(), "https://example.com") }, "https://example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tc.path, r.URL.Path)
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, tc.arg, body[tc.key])
				writeJSON(w, 200, map[string]any{"success": true, "result": "ok " + tc.path})
			}))
			got, err := tc.call(c)
			require.NoError(t, err)
			assert.Equal(t, "ok "+tc.path, got)
		})
	}
}

func TestCheckLogin(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, 200, map[string]any{"logged_in": true, "user_id": 7, "username": "alice"})
	}))

	st, err := c.CheckLogin(context.Background())
	require.NoError(t, err)
	assert.True(t, st.LoggedIn)
	require.NotNil(t, st.UserID)
	assert.Equal(t, int64(7), *st.UserID)
	assert.Equal(t, "alice", st.Username)
}

func TestLogin_KeepsSessionCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			writeJSON(w, 200, map[string]any{"success": false, "error": "用户名或密码错误"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		writeJSON(w, 200, map[string]any{"success": true, "user_id": 3, "username": body["username"]})
	})
	mux.HandleFunc("/check_login", func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie("session")
		writeJSON(w, 200, map[string]any{"logged_in": err == nil})
	})
	c := newTestClient(t, mux)

	_, err := c.Login(context.Background(), "bob", "wrong")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBackend))

	res, err := c.Login(context.Background(), "bob", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.UserID)
	assert.Equal(t, "bob", res.Username)

	st, err := c.CheckLogin(context.Background())
	require.NoError(t, err)
	assert.True(t, st.LoggedIn)
}

func TestCookies_CarryLoginToNewClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		writeJSON(w, 200, map[string]any{"success": true, "user_id": 3, "username": "bob"})
	})
	mux.HandleFunc("/check_login", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("session")
		writeJSON(w, 200, map[string]any{"logged_in": err == nil && ck.Value == "abc"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	first, err := NewClient(ClientOpts{BaseURL: srv.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)
	_, err = first.Login(context.Background(), "bob", "secret")
	require.NoError(t, err)
	saved := first.Cookies()
	require.Len(t, saved, 1)

	second, err := NewClient(ClientOpts{BaseURL: srv.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)
	st, err := second.CheckLogin(context.Background())
	require.NoError(t, err)
	assert.False(t, st.LoggedIn)

	second.SetCookies(saved)
	st, err = second.CheckLogin(context.Background())
	require.NoError(t, err)
	assert.True(t, st.LoggedIn)
}

func TestConversations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"success": true, "conversations": []map[string]any{
			{"id": 2, "title": "Loops", "updated_at": "2026-10-14 09:30:00", "message_count": 4},
			{"id": 1, "title": "", "updated_at": "2026-10-01 12:00:00", "message_count": 0},
		}})
	})
	mux.HandleFunc("/load_conversation/2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		writeJSON(w, 200, map[string]any{"success": true, "history": []map[string]any{
			{"role": "user", "message": "hi", "type": "text"},
			{"role": "assistant", "message": "<p>hello</p>", "type": "html"},
		}})
	})
	mux.HandleFunc("/delete_conversation/2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"success": true})
	})
	mux.HandleFunc("/delete_conversation/9", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, map[string]any{"success": false, "error": "not found"})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	list, err := c.GetConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, "2026-10-14 09:30:00", list[0].UpdatedAt)
	assert.Equal(t, 4, list[0].MessageCount)

	hist, err := c.LoadConversation(ctx, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "assistant", hist[1].Role)
	assert.Equal(t, "html", hist[1].Type)

	require.NoError(t, c.DeleteConversation(ctx, 2))
	err = c.DeleteConversation(ctx, 9)
	require.Error(t, err)
	assert.Equal(t, "not found", apperr.Message(err))
}

func TestLogout_IgnoresBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"message": "bye"})
	}))
	require.NoError(t, c.Logout(context.Background()))
}

func TestClearAndNewConversation(t *testing.T) {
	var paths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeJSON(w, 200, map[string]any{"success": true})
	}))
	require.NoError(t, c.Clear(context.Background()))
	require.NoError(t, c.NewConversation(context.Background()))
	assert.Equal(t, []string{"/clear", "/new_conversation"}, paths)
}

func TestVoiceRecognition(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile(AudioField)
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, AudioFilename, hdr.Filename)
		assert.Equal(t, AudioMIME, hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(f)
		writeJSON(w, 200, map[string]any{"success": true, "text": fmt.Sprintf("%d bytes", len(data))})
	}))

	text, err := c.VoiceRecognition(context.Background(), []byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "6 bytes", text)
}

func TestVoiceRecognition_Empty(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.VoiceRecognition(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestVoiceRecognition_Failure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"success": false, "error": "语音识别失败"})
	}))
	_, err := c.VoiceRecognition(context.Background(), []byte{1})
	require.Error(t, err)
	assert.True(t, strings.Contains(apperr.Message(err), "语音识别失败"))
}
