package panels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/pyassist/internal/apperr"
	"github.com/zulandar/pyassist/internal/render"
)

func TestValidate_Empty(t *testing.T) {
	for _, spec := range All() {
		t.Run(string(spec.Kind), func(t *testing.T) {
			_, err := Validate(spec.Kind, "  \n\t")
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Equal(t, spec.Empty, apperr.Message(err))
		})
	}
}

func TestValidate_Crawl(t *testing.T) {
	_, err := Validate(WebCrawl, "example.com")
	require.Error(t, err)
	assert.Contains(t, apperr.Message(err), "valid URL")

	got, err := Validate(WebCrawl, " https://example.com/a ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", got)
}

func TestValidate_CodeKeepsIndentation(t *testing.T) {
	got, err := Validate(Execute, "    x = 1\n\n")
	require.NoError(t, err)
	assert.Equal(t, "    x = 1", got)
}

func TestValidate_Unknown(t *testing.T) {
	_, err := Validate(Kind("nope"), "x")
	assert.Error(t, err)
}

func TestBusy(t *testing.T) {
	b := NewBusy()
	done, ok := b.Begin(Execute)
	require.True(t, ok)
	assert.True(t, b.isBusy(Execute))
	assert.False(t, b.isBusy(WebCrawl))

	_, ok = b.Begin(Execute)
	assert.False(t, ok)

	done()
	done()
	assert.False(t, b.isBusy(Execute))
}

func TestSpecs_BusyPanels(t *testing.T) {
	var busy []Kind
	for _, s := range All() {
		if s.ShowBusy {
			busy = append(busy, s.Kind)
		}
	}
	assert.ElementsMatch(t, []Kind{Execute, WebCrawl}, busy)
}

func TestExecutionPanel_Success(t *testing.T) {
	p := ExecutionPanel{Source: "print('<b>')\nif a < b: pass", Output: "<b>\n\tx"}
	out := p.HTML()
	assert.Contains(t, out, `<pre><code class="language-python">print(&#39;&lt;b&gt;&#39;)`)
	assert.Contains(t, out, "if a &lt; b: pass")
	assert.Contains(t, out, `<div class="output-content">&lt;b&gt;<br>&nbsp;&nbsp;&nbsp;&nbsp;x</div>`)
	assert.NotContains(t, out, "error-section")

	// The panel survives the sanitizer unchanged in meaning.
	body := render.Body(p.Message())
	assert.Contains(t, body, render.WrapperClass)
	assert.NotContains(t, body, "<b>")
}

func TestExecutionPanel_Failure(t *testing.T) {
	p := ExecutionPanel{Source: "1/0", Error: "ZeroDivisionError", Failed: true}
	out := p.HTML()
	assert.Contains(t, out, `code-execution-result error`)
	assert.Contains(t, out, `<div class="error-content">ZeroDivisionError</div>`)
	assert.NotContains(t, out, "output-section")
}

func TestExecutionPanel_NoOutput(t *testing.T) {
	out := ExecutionPanel{Source: "pass"}.HTML()
	assert.Contains(t, out, "(no output)")
}

func TestTextResults(t *testing.T) {
	m := SyntaxResult("OK &amp; clean")
	assert.Equal(t, render.RoleSystem, m.Role)
	assert.Equal(t, "Syntax check result:\nOK & clean", m.Content)

	assert.Equal(t, "Error: boom", Failure("boom").Content)
	assert.Equal(t, "Network error: refused", NetworkFailure("refused").Content)
	assert.True(t, strings.HasPrefix(AnalysisResult("x").Content, AnalysisPrefix))
	assert.Equal(t, "Search failed: none", SearchFailure("none").Content)
	assert.Equal(t, "Voice input: hello", VoiceEcho("hello").Content)
	assert.Equal(t, "Voice input error: nope", VoiceFailure("nope").Content)
	assert.Equal(t, NoSpeechText, NoSpeech().Content)
}

func TestDocResult_IsAssistantMarkup(t *testing.T) {
	m := DocResult("<h3>list</h3><p>a &amp; b</p>")
	assert.Equal(t, render.RoleAssistant, m.Role)
	assert.Equal(t, render.ContentHTML, m.Type)
	assert.Equal(t, "<h3>list</h3><p>a &amp; b</p>", render.Body(m))

	h := HandbookResult("&lt;p&gt;hit&lt;/p&gt;")
	assert.Equal(t, "<p>hit</p>", h.Content)
}

func TestCrawlResult(t *testing.T) {
	c := NewCrawlResult("https://example.com", "# Hi\n\n<b>x</b> & y")
	assert.Contains(t, c.Preview, "<h1>Hi</h1>")

	m := c.ChatMessage()
	assert.Equal(t, render.ContentHTML, m.Type)
	assert.Contains(t, m.Content, "https://example.com")
	assert.Contains(t, m.Content, "&lt;b&gt;x&lt;/b&gt; &amp; y")
	assert.Contains(t, m.Content, `class="language-markdown"`)
}
