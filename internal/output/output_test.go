package output

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"
)

// mockFlusher implements io.Writer with Flush support
type mockFlusher struct {
	bytes.Buffer
	flushed bool
}

func (m *mockFlusher) Flush() error {
	m.flushed = true
	return nil
}

// mockCloser implements io.Writer with Close support
type mockCloser struct {
	bytes.Buffer
	closed bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return nil
}

// mockWriteError simulates write errors
type mockWriteError struct {
	err error
}

func (m *mockWriteError) Write(p []byte) (n int, err error) {
	return 0, m.err
}

func sampleReport() *Report {
	return &Report{
		RunID:       "run-1",
		Target:      "https://example.com/",
		GeneratedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Crawl: CrawlStats{
			PagesDiscovered: 2,
			URLsVisited:     3,
			PagesWithQuery:  1,
			Extensions:      []ExtensionCount{{Extension: "php", Count: 2}},
		},
		Pages: []Page{
			{URL: "https://example.com/", Path: "/", StatusCode: 200},
			{URL: "https://example.com/item.php?id=1", Path: "/item.php", Extension: "php", Depth: 1, HasQuery: true, QueryString: "id=1"},
		},
		Fuzz: &FuzzStats{
			Method:            "GET",
			Params:            []string{"id", "q"},
			FilesFuzzed:       2,
			FilesWithFindings: 1,
			ProbesSent:        4,
			Interesting:       2,
			Reasons: []ReasonCount{
				{Reason: "status_code_changed", Label: "Status code changed", Count: 1},
				{Reason: "param_reflected", Label: "Parameter reflected", Count: 1},
			},
		},
		Findings: []URLGroup{
			{
				URL: "https://example.com/item.php?id=1",
				Findings: []Finding{
					{Param: "id", Method: "GET", Reason: "status_code_changed", Label: "Status code changed", BaselineCode: 200, TestCode: 500},
					{Param: "q", Method: "GET", Reason: "param_reflected", Label: "Parameter reflected", BaselineCode: 200, TestCode: 200},
				},
			},
		},
	}
}

// =============================================================================
// Writer Factory Tests
// =============================================================================

func TestNewWriter(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		want    string
		wantErr bool
	}{
		{"default", "", "*output.JSONWriter", false},
		{"json", "json", "*output.JSONWriter", false},
		{"upper case", "HTML", "*output.HTMLWriter", false},
		{"html", "html", "*output.HTMLWriter", false},
		{"unknown", "xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWriter(&bytes.Buffer{}, Config{Format: tt.format})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch w.(type) {
			case *JSONWriter:
				if tt.want != "*output.JSONWriter" {
					t.Errorf("got JSONWriter, want %s", tt.want)
				}
			case *HTMLWriter:
				if tt.want != "*output.HTMLWriter" {
					t.Errorf("got HTMLWriter, want %s", tt.want)
				}
			default:
				t.Errorf("unexpected writer type %T", w)
			}
		})
	}
}

// =============================================================================
// JSON Writer Tests
// =============================================================================

func TestJSONWriter_WriteReport(t *testing.T) {
	tests := []struct {
		name   string
		pretty bool
	}{
		{"compact output", false},
		{"pretty output", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			jw := NewJSONWriter(&buf, tt.pretty)

			if err := jw.WriteReport(sampleReport()); err != nil {
				t.Fatalf("WriteReport() error = %v", err)
			}

			output := buf.String()
			for _, field := range []string{"run_id", "target", "crawl", "pages", "fuzz", "findings", "status_code_changed"} {
				if !strings.Contains(output, field) {
					t.Errorf("output missing field %q", field)
				}
			}

			var parsed Report
			if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
				t.Fatalf("output is not valid JSON: %v", err)
			}
			if parsed.Fuzz == nil || parsed.Fuzz.Interesting != 2 {
				t.Errorf("fuzz stats not preserved: %+v", parsed.Fuzz)
			}

			if tt.pretty && !strings.Contains(output, "\n  ") {
				t.Error("pretty output should contain indentation")
			}
			if !strings.HasSuffix(output, "\n") {
				t.Error("output should end with a newline")
			}
		})
	}
}

func TestJSONWriter_WriteReport_Closed(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONWriter(&buf, false)
	jw.Close()

	if err := jw.WriteReport(sampleReport()); err != nil {
		t.Errorf("WriteReport on closed writer should return nil, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("closed writer should not write anything")
	}
}

func TestJSONWriter_WriteReport_WriteError(t *testing.T) {
	jw := NewJSONWriter(&mockWriteError{err: io.ErrShortWrite}, false)

	if err := jw.WriteReport(sampleReport()); err == nil {
		t.Error("expected error on write failure")
	}
}

func TestJSONWriter_FlushAndClose(t *testing.T) {
	flusher := &mockFlusher{}
	jw := NewJSONWriter(flusher, false)
	if err := jw.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !flusher.flushed {
		t.Error("Flush() should flush the underlying writer")
	}

	closer := &mockCloser{}
	jw = NewJSONWriter(closer, false)
	if err := jw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !closer.closed {
		t.Error("Close() should close the underlying writer")
	}
}

func TestJSONWriter_EmptyReport(t *testing.T) {
	var buf bytes.Buffer
	jw := NewJSONWriter(&buf, false)

	if err := jw.WriteReport(&Report{Target: "https://example.com/", Empty: true}); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"empty":true`) {
		t.Errorf("empty flag missing: %s", buf.String())
	}
	if strings.Contains(buf.String(), `"fuzz"`) {
		t.Error("crawl-only report should omit fuzz stats")
	}
}

// =============================================================================
// HTML Writer Tests
// =============================================================================

func TestHTMLWriter_WriteReport(t *testing.T) {
	var buf bytes.Buffer
	hw, err := NewHTMLWriter(&buf)
	if err != nil {
		t.Fatalf("NewHTMLWriter() error = %v", err)
	}

	if err := hw.WriteReport(sampleReport()); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"Fuzzing Complete!",
		"https://example.com/item.php?id=1",
		"<code>id</code>",
		"Baseline: 200 &rarr; Test: 500",
		"badge-danger",
		"Interesting Parameters Found: 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML output missing %q", want)
		}
	}
	if strings.Contains(out, "No interesting parameters found") {
		t.Error("report with findings should not show the no-results state")
	}
}

func TestHTMLWriter_NoResults(t *testing.T) {
	report := sampleReport()
	report.Findings = nil
	report.Fuzz.Interesting = 0
	report.Fuzz.FilesWithFindings = 0
	report.Fuzz.Reasons = nil

	var buf bytes.Buffer
	hw, _ := NewHTMLWriter(&buf)
	if err := hw.WriteReport(report); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No interesting parameters found") {
		t.Error("expected the no-results state")
	}
}

func TestHTMLWriter_CrawlOnly(t *testing.T) {
	report := sampleReport()
	report.Fuzz = nil
	report.Findings = nil

	var buf bytes.Buffer
	hw, _ := NewHTMLWriter(&buf)
	if err := hw.WriteReport(report); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Crawl Complete!") {
		t.Error("crawl-only report should say Crawl Complete!")
	}
	if !strings.Contains(out, "/item.php") {
		t.Error("crawl-only report should list pages")
	}
}

func TestHTMLWriter_EscapesContent(t *testing.T) {
	report := sampleReport()
	report.Target = `https://example.com/"><script>alert(1)</script>`
	report.Findings[0].Findings[0].Param = "<img src=x>"

	var buf bytes.Buffer
	hw, _ := NewHTMLWriter(&buf)
	if err := hw.WriteReport(report); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "<script>alert(1)</script>") || strings.Contains(out, "<img src=x>") {
		t.Error("HTML output must escape target and parameter names")
	}
	if !strings.Contains(out, "&lt;img src=x&gt;") {
		t.Error("escaped parameter name missing")
	}
}

func TestHTMLWriter_Closed(t *testing.T) {
	closer := &mockCloser{}
	hw, _ := NewHTMLWriter(closer)
	if err := hw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !closer.closed {
		t.Error("Close() should close the underlying writer")
	}

	if err := hw.WriteReport(sampleReport()); err != nil {
		t.Errorf("WriteReport on closed writer should return nil, got %v", err)
	}
	if closer.Len() != 0 {
		t.Error("closed writer should not write anything")
	}
}

func TestBadgeClass(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"status_code_changed", "badge-warning"},
		{"response_length_changed", "badge-success"},
		{"param_reflected", "badge-danger"},
		{"error_message_detected", "badge-warning"},
		{"", "badge-info"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			if got := BadgeClass(tt.reason); got != tt.want {
				t.Errorf("BadgeClass(%q) = %q, want %q", tt.reason, got, tt.want)
			}
		})
	}
}

func TestReport_HasFindings(t *testing.T) {
	r := &Report{}
	if r.HasFindings() {
		t.Error("report without fuzz stats has no findings")
	}
	r.Fuzz = &FuzzStats{Interesting: 1}
	if !r.HasFindings() {
		t.Error("report with an interesting probe has findings")
	}
}
