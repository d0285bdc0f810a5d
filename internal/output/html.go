package output

import (
	"html/template"
	"io"
	"sync"
)

// Funcs are the template helpers shared by the HTML report and the web flow.
var Funcs = template.FuncMap{
	"badgeClass": BadgeClass,
	"inc":        func(i int) int { return i + 1 },
}

// BadgeClass returns the CSS badge class used for a probe reason.
func BadgeClass(reason string) string {
	switch reason {
	case "status_code_changed", "error_message_detected":
		return "badge-warning"
	case "response_length_changed":
		return "badge-success"
	case "param_reflected":
		return "badge-danger"
	default:
		return "badge-info"
	}
}

// Styles is the stylesheet shared by the HTML report and the web flow.
const Styles = `
* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background: linear-gradient(135deg, #1e3c72 0%, #2a5298 100%); min-height: 100vh; padding: 20px; }
.container { max-width: 1400px; margin: 0 auto; background: white; border-radius: 10px; box-shadow: 0 10px 40px rgba(0,0,0,0.3); padding: 30px; }
h1 { color: #1e3c72; margin-bottom: 10px; font-size: 32px; }
h2 { color: #1e3c72; margin: 20px 0 10px; font-size: 22px; }
.subtitle { color: #666; margin-bottom: 30px; font-size: 14px; }
.info-box { background: #e7f3ff; border-left: 4px solid #2a5298; padding: 15px; margin-bottom: 20px; border-radius: 4px; line-height: 1.6; }
.no-results { background: #fff3cd; border-left: 4px solid #ffc107; padding: 15px; border-radius: 4px; line-height: 1.6; }
.result-section { margin-bottom: 20px; border: 1px solid #e0e0e0; border-radius: 8px; overflow: hidden; }
.result-header { background: #1e3c72; color: white; padding: 12px 15px; font-weight: 600; word-break: break-all; }
.result-body { padding: 15px; }
.param-result { padding: 10px; border-bottom: 1px solid #eee; }
.param-result:last-child { border-bottom: none; }
.badge { display: inline-block; padding: 3px 8px; border-radius: 4px; font-size: 12px; font-weight: 600; margin-left: 6px; }
.badge-success { background: #d4edda; color: #155724; }
.badge-warning { background: #fff3cd; color: #856404; }
.badge-info { background: #d1ecf1; color: #0c5460; }
.badge-danger { background: #f8d7da; color: #721c24; }
.results-table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
.results-table th, .results-table td { padding: 8px 10px; border-bottom: 1px solid #eee; text-align: left; font-size: 14px; }
.results-table th { background: #f8f9fa; color: #1e3c72; }
code { background: #f4f4f4; padding: 2px 5px; border-radius: 3px; }
`

// ReportBlock defines the "report" template: run statistics, the fuzz
// findings grouped by URL and the no-results state.
const ReportBlock = `{{define "report"}}
<div class="info-box">
	<strong>{{if .Fuzz}}Fuzzing Complete!{{else}}Crawl Complete!{{end}}</strong>{{if .Cancelled}} (interrupted){{end}}<br>
	Target: {{.Target}}<br>
	URLs Visited: {{.Crawl.URLsVisited}}<br>
	Files Discovered: {{.Crawl.PagesDiscovered}}<br>
	{{- with .Fuzz}}
	Files Fuzzed: {{.FilesFuzzed}}<br>
	Files With Findings: {{.FilesWithFindings}}<br>
	Interesting Parameters Found: {{.Interesting}}
	{{- end}}
</div>
{{if .Fuzz}}
{{if .HasFindings}}
<table class="results-table">
	<tr><th>Reason</th><th>Count</th></tr>
	{{range .Fuzz.Reasons}}<tr><td><span class="badge {{badgeClass .Reason}}">{{.Label}}</span></td><td>{{.Count}}</td></tr>
	{{end}}
</table>
{{range .Findings}}
<div class="result-section">
	<div class="result-header">{{.URL}}</div>
	<div class="result-body">
		{{range .Findings}}
		<div class="param-result">
			<strong>Parameter:</strong> <code>{{.Param}}</code>
			<span class="badge badge-info">{{.Method}}</span>
			<span class="badge {{badgeClass .Reason}}">{{.Label}}</span>
			<div style="margin-top: 8px;">
			{{- if eq .Reason "status_code_changed"}}Baseline: {{.BaselineCode}} &rarr; Test: {{.TestCode}}
			{{- else if eq .Reason "response_length_changed"}}Baseline: {{.BaselineLength}} bytes &rarr; Test: {{.TestLength}} bytes
			{{- else if eq .Reason "param_reflected"}}The parameter or its value appears in the response
			{{- else if eq .Reason "error_message_detected"}}The response contains error-related keywords
			{{- end}}</div>
		</div>
		{{end}}
	</div>
</div>
{{end}}
{{else}}
<div class="no-results">
	No interesting parameters found. This could mean:<br>
	- The files don't accept the tested parameters<br>
	- The server responds identically regardless of parameters<br>
	- The parameters require specific authentication
</div>
{{end}}
{{else if .Pages}}
<table class="results-table">
	<tr><th>#</th><th>Path</th><th>Extension</th><th>Depth</th><th>Query</th><th>URL</th></tr>
	{{range $i, $p := .Pages}}<tr><td>{{inc $i}}</td><td>{{$p.Path}}</td><td>{{$p.Extension}}</td><td>{{$p.Depth}}</td><td>{{$p.QueryString}}</td><td>{{$p.URL}}</td></tr>
	{{end}}
</table>
{{else}}
<div class="no-results">No pages were discovered.</div>
{{end}}
{{end}}`

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>ParamCrawl Report - {{.Target}}</title>
<style>{{styles}}</style>
</head>
<body>
<div class="container">
<h1>ParamCrawl Report</h1>
<p class="subtitle">Run {{.RunID}} generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}}{{with .Duration}} in {{.}}{{end}}</p>
{{template "report" .}}
</div>
</body>
</html>
`

// NewReportTemplate parses name with the shared helpers and the "report" block.
// extra may add or override helpers.
func NewReportTemplate(name, text string, extra template.FuncMap) (*template.Template, error) {
	funcs := template.FuncMap{
		"styles": func() template.CSS { return template.CSS(Styles) },
	}
	for k, v := range Funcs {
		funcs[k] = v
	}
	for k, v := range extra {
		funcs[k] = v
	}

	tmpl, err := template.New(name).Funcs(funcs).Parse(ReportBlock)
	if err != nil {
		return nil, err
	}
	return tmpl.Parse(text)
}

// HTMLWriter writes reports as a standalone HTML document.
type HTMLWriter struct {
	mu     sync.Mutex
	writer io.Writer
	tmpl   *template.Template
	closed bool
}

// NewHTMLWriter creates a new HTML writer.
func NewHTMLWriter(w io.Writer) (*HTMLWriter, error) {
	tmpl, err := NewReportTemplate("document", documentTemplate, nil)
	if err != nil {
		return nil, err
	}
	return &HTMLWriter{writer: w, tmpl: tmpl}, nil
}

// WriteReport renders the report.
func (h *HTMLWriter) WriteReport(report *Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	return h.tmpl.Execute(h.writer, report)
}

// Flush flushes the writer.
func (h *HTMLWriter) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return flushWriter(h.writer)
}

// Close closes the writer. Later writes are dropped.
func (h *HTMLWriter) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	return closeWriter(h.writer)
}
