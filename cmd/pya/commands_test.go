package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal assistant backend with cookie sessions.
type fakeBackend struct {
	mu   sync.Mutex
	hits map[string]int
}

func newFakeBackend(t *testing.T) (*fakeBackend, string) {
	t.Helper()
	f := &fakeBackend{hits: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", f.login)
	mux.HandleFunc("/check_login", f.checkLogin)
	mux.HandleFunc("/logout", f.reply(map[string]any{"success": true}))
	mux.HandleFunc("/get_conversations", f.reply(map[string]any{
		"success": true,
		"conversations": []map[string]any{
			{"id": 7, "title": "Lists", "updated_at": "2026-10-15 09:00:00", "message_count": 2},
		},
	}))
	mux.HandleFunc("/ask", f.reply(map[string]any{"success": true, "answer": "Use a for loop"}))
	mux.HandleFunc("/ask_stream", f.stream(
		`{"chunk":"Use a"}`,
		`{"chunk":"Use a for loop"}`,
		`{"finished":true,"full_answer":"Use a for loop"}`,
	))
	mux.HandleFunc("/syntax_check", f.reply(map[string]any{"success": true, "result": "No syntax errors"}))
	srv := httptest.NewServer(f.count(mux))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func (f *fakeBackend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *fakeBackend) hitsFor(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) reply(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { writeJSON(w, v) }
}

func (f *fakeBackend) stream(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, fr := range frames {
			fmt.Fprintf(w, "data: %s\n\n", fr)
			w.(http.Flusher).Flush()
		}
	}
}

func (f *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body["password"] != "pw" {
		writeJSON(w, map[string]any{"success": false, "error": "wrong password"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "session", Value: "s-" + body["username"], Path: "/"})
	writeJSON(w, map[string]any{"success": true, "user_id": 3, "username": body["username"]})
}

func (f *fakeBackend) checkLogin(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie("session")
	if err != nil {
		writeJSON(w, map[string]any{"logged_in": false})
		return
	}
	writeJSON(w, map[string]any{"logged_in": true, "user_id": 3, "username": strings.TrimPrefix(c.Value, "s-")})
}

// writeConfig writes a config pointing at backendURL with state in a
// temp dir and returns its path.
func writeConfig(t *testing.T, backendURL string, extra string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`backend:
  base_url: %s
state:
  path: %s
log:
  level: error
voice:
  enabled: false
%s`, backendURL, filepath.Join(dir, "state.db"), extra)
	path := filepath.Join(dir, "pyassist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

type result struct {
	out, errOut string
	err         error
}

func runCmd(cfgPath, stdin string, args ...string) result {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func loginAs(t *testing.T, cfgPath, user string) {
	t.Helper()
	r := runCmd(cfgPath, user+"\npw\n", "login")
	require.NoError(t, r.err, r.errOut)
	require.Contains(t, r.out, "Logged in as "+user)
}

func TestStatus_NotLoggedIn(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")

	r := runCmd(cfg, "", "status")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Not logged in")
}

func TestLogin_SessionSurvivesProcess(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")

	loginAs(t, cfg, "ada")

	r := runCmd(cfg, "", "status")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Logged in as ada")
	assert.Contains(t, r.out, "Backend: "+url)
}

func TestLogin_OffersLastUsername(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")
	loginAs(t, cfg, "ada")

	r := runCmd(cfg, "\npw\n", "login")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.errOut, "Username [ada]: ")
	assert.Contains(t, r.out, "Logged in as ada")
}

func TestLogin_WrongPassword(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")

	r := runCmd(cfg, "", "login", "-u", "ada", "--yes")
	require.Error(t, r.err)

	r = runCmd(cfg, "nope\n", "login", "-u", "ada")
	require.Error(t, r.err)
	assert.Contains(t, r.errOut, "login: wrong password")
}

func TestRegister_PasswordMismatch(t *testing.T) {
	f, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")

	r := runCmd(cfg, "a\nb\n", "register", "-u", "ada")
	require.Error(t, r.err)
	assert.Contains(t, r.errOut, "register: Passwords do not match")
	assert.Zero(t, f.hitsFor("/register"))
}

func TestAsk_RequiresLogin(t *testing.T) {
	f, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")

	r := runCmd(cfg, "", "ask", "hello")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "not logged in")
	assert.Zero(t, f.hitsFor("/ask"))
}

func TestAsk_PrintsAnswer(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")
	loginAs(t, cfg, "ada")

	r := runCmd(cfg, "", "ask", "--no-stream", "how", "do", "loops", "work?")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "user: how do loops work?")
	assert.Contains(t, r.out, "assistant: Use a for loop")
}

func TestAsk_Stream(t *testing.T) {
	f, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")
	loginAs(t, cfg, "ada")

	r := runCmd(cfg, "loops?", "ask", "--stream")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "user: loops?")
	assert.Contains(t, r.out, "assistant: Use a for loop")
	assert.Equal(t, 1, f.hitsFor("/ask_stream"))
	assert.Zero(t, f.hitsFor("/ask"))
}

func TestHistoryList(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")
	loginAs(t, cfg, "ada")

	r := runCmd(cfg, "", "history", "list")
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "ID")
	assert.Contains(t, r.out, "Lists")
}

func TestHistoryDelete_InvalidID(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")

	r := runCmd(cfg, "", "history", "delete", "abc")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "invalid conversation id")
}

func TestTool_EmptyInput(t *testing.T) {
	f, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")

	r := runCmd(cfg, "", "tool", "syntax")
	require.Error(t, r.err)
	assert.Contains(t, r.errOut, "! Please enter code to check")
	assert.Zero(t, f.hitsFor("/syntax_check"))
}

func TestTool_CodeFromFile(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")
	src := filepath.Join(t.TempDir(), "x.py")
	require.NoError(t, os.WriteFile(src, []byte("print(1)\n"), 0o644))

	r := runCmd(cfg, "", "tool", "syntax", "-f", src)
	require.NoError(t, r.err, r.errOut)
	assert.Contains(t, r.out, "No syntax errors")
}

func TestTheme_Persists(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")

	r := runCmd(cfg, "", "theme")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Theme: dark")

	require.NoError(t, runCmd(cfg, "", "theme", "light").err)

	r = runCmd(cfg, "", "theme")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Theme: light")

	assert.Error(t, runCmd(cfg, "", "theme", "blue").err)
}

func TestVoice_Disabled(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "")

	r := runCmd(cfg, "", "voice")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "voice input is disabled")
}

func TestBadConfig(t *testing.T) {
	_, url := newFakeBackend(t)
	cfg := writeConfig(t, url, "ui:\n  refresh_schedule: \"not cron\"\n")

	r := runCmd(cfg, "", "status")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "load config")
}
