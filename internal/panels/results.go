package panels

import (
	"bytes"
	"html/template"

	"github.com/zulandar/pyassist/internal/render"
)

// Message prefixes for panel results.
const (
	SyntaxPrefix   = "Syntax check result:\n"
	AnalysisPrefix = "Code analysis result:\n"
	ErrorPrefix    = "Error: "
	NetworkPrefix  = "Network error: "
	SearchPrefix   = "Search failed: "
	VoicePrefix    = "Voice input: "
	VoiceErrPrefix = "Voice input error: "
	NoSpeechText   = "No speech recognized"
)

// SyntaxResult is the message for a syntax check.
func SyntaxResult(result string) render.Message {
	return render.Text(render.RoleSystem, SyntaxPrefix+render.DecodeEntities(result))
}

// AnalysisResult is the message for a code analysis.
func AnalysisResult(result string) render.Message {
	return render.Text(render.RoleSystem, AnalysisPrefix+render.DecodeEntities(result))
}

// DocResult is the message for a documentation lookup; the backend returns
// markup.
func DocResult(result string) render.Message {
	return render.FromBackend(string(render.RoleAssistant), result, string(render.ContentHTML))
}

// HandbookResult is the message for a handbook search hit.
func HandbookResult(result string) render.Message {
	return render.FromBackend(string(render.RoleAssistant), result, string(render.ContentHTML))
}

// Failure is the message for a backend-reported error.
func Failure(errText string) render.Message {
	return render.Text(render.RoleSystem, ErrorPrefix+errText)
}

// SearchFailure is the message for a failed handbook search.
func SearchFailure(errText string) render.Message {
	return render.Text(render.RoleSystem, SearchPrefix+errText)
}

// NetworkFailure is the message for a transport failure.
func NetworkFailure(errText string) render.Message {
	return render.Text(render.RoleSystem, NetworkPrefix+errText)
}

// ExecutionPanel is the result of running code: the source that ran and
// either its output or its error.
type ExecutionPanel struct {
	Source string // literal source as typed
	Output string // raw backend text, success
	Error  string // raw backend text, failure
	Failed bool
}

var executionTmpl = template.Must(template.New("exec").Parse(
	`<div class="code-execution-result{{if .Failed}} error{{end}}">` +
		`<div class="execution-header"><span>{{if .Failed}}Execution failed{{else}}Execution result{{end}}</span></div>` +
		`<div class="execution-content">` +
		`<div class="source-code-section"><div class="section-title">Source:</div>` +
		`<pre><code class="language-python">{{.Source}}</code></pre></div>` +
		`{{if .Failed}}<div class="error-section"><div class="section-title">Error:</div>` +
		`<div class="error-content">{{.Formatted}}</div></div>` +
		`{{else}}<div class="output-section"><div class="section-title">Output:</div>` +
		`<div class="output-content">{{.Formatted}}</div></div>{{end}}` +
		`</div></div>`))

// HTML renders the panel. The source is escaped by the template; output
// goes through FormatOutput.
func (p ExecutionPanel) HTML() string {
	text := p.Output
	if p.Failed {
		text = p.Error
	}
	var buf bytes.Buffer
	err := executionTmpl.Execute(&buf, struct {
		ExecutionPanel
		Formatted template.HTML
	}{p, template.HTML(render.FormatOutput(text))})
	if err != nil {
		return render.TextToHTML(text)
	}
	return buf.String()
}

// Message returns the system message carrying the panel.
func (p ExecutionPanel) Message() render.Message {
	return render.HTML(render.RoleSystem, p.HTML())
}

// CrawlResult is a fetched page as markdown.
type CrawlResult struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
	Preview  string `json:"preview"` // rendered, sanitized markup
}

// NewCrawlResult builds a CrawlResult with its preview rendered.
func NewCrawlResult(rawURL, markdown string) CrawlResult {
	preview, err := render.MarkdownPreview(markdown)
	if err != nil {
		preview = render.TextToHTML(markdown)
	}
	return CrawlResult{URL: rawURL, Markdown: markdown, Preview: preview}
}

var crawlTmpl = template.Must(template.New("crawl").Parse(
	`<div class="crawler-chat-result">` +
		`<div class="crawler-header"><span>Crawl result</span></div>` +
		`<div class="crawler-content">` +
		`<div class="url-info"><strong>URL:</strong> {{.URL}}</div>` +
		`<pre><code class="language-markdown">{{.Markdown}}</code></pre>` +
		`</div></div>`))

// ChatMessage returns the system message that sends the crawl result into
// the conversation.
func (c CrawlResult) ChatMessage() render.Message {
	var buf bytes.Buffer
	if err := crawlTmpl.Execute(&buf, c); err != nil {
		return render.Text(render.RoleSystem, c.URL+"\n"+c.Markdown)
	}
	return render.HTML(render.RoleSystem, buf.String())
}

// VoiceEcho is the system message echoing recognized speech.
func VoiceEcho(text string) render.Message {
	return render.Text(render.RoleSystem, VoicePrefix+text)
}

// VoiceFailure is the system message for a failed recognition.
func VoiceFailure(errText string) render.Message {
	return render.Text(render.RoleSystem, VoiceErrPrefix+errText)
}

// NoSpeech is the system message for an empty recognition result.
func NoSpeech() render.Message {
	return render.Text(render.RoleSystem, NoSpeechText)
}
