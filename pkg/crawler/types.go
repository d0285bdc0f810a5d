// Package crawler crawls a single host for pages and probes those pages for
// request parameters the server reacts to.
package crawler

import (
	"net/url"
	"path"
	"strings"
	"time"
)

// DiscoveredPage is a page that was fetched successfully during a crawl.
type DiscoveredPage struct {
	URL         string    `json:"url"`
	FinalURL    string    `json:"final_url,omitempty"`
	Path        string    `json:"path"`
	Extension   string    `json:"extension"`
	HasQuery    bool      `json:"has_query"`
	QueryString string    `json:"query_string"`
	Depth       int       `json:"depth"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type,omitempty"`
	Title       string    `json:"title,omitempty"`
	QueryParams []string  `json:"query_params,omitempty"`
	FormInputs  []string  `json:"form_inputs,omitempty"`
	Size        int       `json:"size"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewDiscoveredPage derives the path attributes of a crawled URL.
func NewDiscoveredPage(rawURL string, depth int) DiscoveredPage {
	page := DiscoveredPage{
		URL:       rawURL,
		Path:      "/",
		Depth:     depth,
		Timestamp: time.Now(),
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return page
	}

	if parsed.Path != "" {
		page.Path = parsed.Path
	}
	page.Extension = strings.TrimPrefix(path.Ext(page.Path), ".")
	page.HasQuery = parsed.RawQuery != "" || parsed.ForceQuery
	page.QueryString = parsed.RawQuery
	return page
}

// CrawlError is a fetch that was skipped during a crawl.
type CrawlError struct {
	URL        string    `json:"url"`
	Depth      int       `json:"depth"`
	Type       string    `json:"type"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

// CrawlResult is the outcome of one crawl.
type CrawlResult struct {
	RunID       string           `json:"run_id"`
	Target      string           `json:"target"`
	MaxDepth    int              `json:"max_depth"`
	MaxURLs     int              `json:"max_urls"`
	Visited     []string         `json:"visited"`
	Pages       []DiscoveredPage `json:"pages"`
	Errors      []CrawlError     `json:"errors,omitempty"`
	Cancelled   bool             `json:"cancelled,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// URLs returns the URLs of all discovered pages in discovery order.
func (r *CrawlResult) URLs() []string {
	urls := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		urls = append(urls, p.URL)
	}
	return urls
}

// Duration returns how long the crawl ran.
func (r *CrawlResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Reason names the rule that classified a probe.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonStatusChanged  Reason = "status_code_changed"
	ReasonLengthChanged  Reason = "response_length_changed"
	ReasonParamReflected Reason = "param_reflected"
	ReasonErrorDetected  Reason = "error_message_detected"
	ReasonBaselineFailed Reason = "baseline_failed"
	ReasonTestFailed     Reason = "test_failed"
)

// Interesting reports whether the reason marks a probe as a finding.
func (r Reason) Interesting() bool {
	switch r {
	case ReasonStatusChanged, ReasonLengthChanged, ReasonParamReflected, ReasonErrorDetected:
		return true
	default:
		return false
	}
}

// Label returns a human-readable form of the reason.
func (r Reason) Label() string {
	switch r {
	case ReasonStatusChanged:
		return "Status code changed"
	case ReasonLengthChanged:
		return "Response length changed"
	case ReasonParamReflected:
		return "Parameter reflected"
	case ReasonErrorDetected:
		return "Error message detected"
	case ReasonBaselineFailed:
		return "Baseline request failed"
	case ReasonTestFailed:
		return "Test request failed"
	default:
		return "No change"
	}
}

// ParameterProbe is the outcome of injecting one parameter into one URL.
type ParameterProbe struct {
	URL            string        `json:"url"`
	Param          string        `json:"param"`
	Method         string        `json:"method"`
	BaselineCode   int           `json:"baseline_code"`
	TestCode       int           `json:"test_code"`
	BaselineLength int           `json:"baseline_length"`
	TestLength     int           `json:"test_length"`
	Reason         Reason        `json:"reason"`
	Interesting    bool          `json:"interesting"`
	Duration       time.Duration `json:"duration"`
}

// LengthDelta returns the signed difference between test and baseline lengths.
func (p ParameterProbe) LengthDelta() int {
	return p.TestLength - p.BaselineLength
}

// URLFindings groups the interesting probes of one URL.
type URLFindings struct {
	URL    string           `json:"url"`
	Probes []ParameterProbe `json:"probes"`
}

// FuzzReport collects interesting probes per URL in the order URLs were fuzzed.
type FuzzReport struct {
	RunID       string        `json:"run_id"`
	Method      string        `json:"method"`
	Params      []string      `json:"params"`
	Findings    []URLFindings `json:"findings"`
	FilesFuzzed int           `json:"files_fuzzed"`
	ProbesSent  int           `json:"probes_sent"`
	Cancelled   bool          `json:"cancelled,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// NewFuzzReport creates an empty report.
func NewFuzzReport(method string, params []string) *FuzzReport {
	return &FuzzReport{
		Method:    method,
		Params:    params,
		Findings:  make([]URLFindings, 0),
		StartedAt: time.Now(),
	}
}

// Add records the probes of one fuzzed URL. Only interesting probes are kept,
// and a URL without any is counted but not listed.
func (r *FuzzReport) Add(targetURL string, probes []ParameterProbe) {
	r.FilesFuzzed++
	r.ProbesSent += len(probes)

	interesting := filterInteresting(probes)
	if len(interesting) == 0 {
		return
	}

	for i := range r.Findings {
		if r.Findings[i].URL == targetURL {
			r.Findings[i].Probes = append(r.Findings[i].Probes, interesting...)
			return
		}
	}
	r.Findings = append(r.Findings, URLFindings{URL: targetURL, Probes: interesting})
}

// InterestingCount returns the number of interesting probes across all URLs.
func (r *FuzzReport) InterestingCount() int {
	n := 0
	for _, f := range r.Findings {
		n += len(f.Probes)
	}
	return n
}

// ProbesFor returns the interesting probes recorded for targetURL.
func (r *FuzzReport) ProbesFor(targetURL string) []ParameterProbe {
	for _, f := range r.Findings {
		if f.URL == targetURL {
			return f.Probes
		}
	}
	return nil
}

func filterInteresting(probes []ParameterProbe) []ParameterProbe {
	out := make([]ParameterProbe, 0, len(probes))
	for _, p := range probes {
		if p.Interesting {
			out = append(out, p)
		}
	}
	return out
}
