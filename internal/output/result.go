package output

import (
	"time"
)

// Report is the rendered form of one crawl and fuzz run.
type Report struct {
	RunID       string      `json:"run_id,omitempty"`
	Target      string      `json:"target"`
	GeneratedAt time.Time   `json:"generated_at"`
	Duration    string      `json:"duration,omitempty"`
	Cancelled   bool        `json:"cancelled,omitempty"`
	Empty       bool        `json:"empty"`
	Crawl       CrawlStats  `json:"crawl"`
	Pages       []Page      `json:"pages"`
	Errors      []PageError `json:"errors,omitempty"`
	Fuzz        *FuzzStats  `json:"fuzz,omitempty"`
	Findings    []URLGroup  `json:"findings,omitempty"`
}

// CrawlStats contains statistics about the crawl.
type CrawlStats struct {
	PagesDiscovered int              `json:"pages_discovered"`
	URLsVisited     int              `json:"urls_visited"`
	PagesWithQuery  int              `json:"pages_with_query"`
	ErrorCount      int              `json:"error_count"`
	Extensions      []ExtensionCount `json:"extensions"`
}

// ExtensionCount is one row of the file extension histogram.
type ExtensionCount struct {
	Extension string `json:"extension"`
	Count     int    `json:"count"`
}

// Page is a discovered page.
type Page struct {
	URL         string   `json:"url"`
	Path        string   `json:"path"`
	Extension   string   `json:"extension"`
	Depth       int      `json:"depth"`
	StatusCode  int      `json:"status_code"`
	HasQuery    bool     `json:"has_query"`
	QueryString string   `json:"query_string,omitempty"`
	Title       string   `json:"title,omitempty"`
	QueryParams []string `json:"query_params,omitempty"`
	FormInputs  []string `json:"form_inputs,omitempty"`
}

// PageError is a fetch that was skipped.
type PageError struct {
	URL        string `json:"url"`
	Type       string `json:"type"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error"`
}

// FuzzStats contains statistics about parameter fuzzing.
type FuzzStats struct {
	Method            string        `json:"method"`
	Params            []string      `json:"params"`
	FilesFuzzed       int           `json:"files_fuzzed"`
	FilesWithFindings int           `json:"files_with_findings"`
	ProbesSent        int           `json:"probes_sent"`
	Interesting       int           `json:"interesting"`
	Reasons           []ReasonCount `json:"reasons"`
}

// ReasonCount counts interesting probes by reason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// URLGroup holds the findings of one fuzzed URL.
type URLGroup struct {
	URL      string    `json:"url"`
	Findings []Finding `json:"findings"`
}

// Finding is one interesting parameter probe.
type Finding struct {
	Param          string `json:"param"`
	Method         string `json:"method"`
	Reason         string `json:"reason"`
	Label          string `json:"label"`
	BaselineCode   int    `json:"baseline_code"`
	TestCode       int    `json:"test_code"`
	BaselineLength int    `json:"baseline_length"`
	TestLength     int    `json:"test_length"`
	LengthDelta    int    `json:"length_delta"`
}

// HasFindings reports whether any probe was interesting.
func (r *Report) HasFindings() bool {
	return r.Fuzz != nil && r.Fuzz.Interesting > 0
}
