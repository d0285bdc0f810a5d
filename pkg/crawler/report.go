package crawler

import (
	"sort"
	"time"

	"github.com/PentesterFlow/ParamCrawl/internal/output"
)

// reasonOrder is the order reasons are listed in summaries.
var reasonOrder = []Reason{
	ReasonStatusChanged,
	ReasonLengthChanged,
	ReasonParamReflected,
	ReasonErrorDetected,
}

// Summary aggregates a crawl and an optional fuzz report.
type Summary struct {
	RunID             string
	Target            string
	Duration          time.Duration
	Cancelled         bool
	PagesDiscovered   int
	URLsVisited       int
	PagesWithQuery    int
	ErrorCount        int
	Extensions        map[string]int
	Pages             []DiscoveredPage
	Errors            []CrawlError
	Fuzzed            bool
	Method            string
	Params            []string
	FilesFuzzed       int
	FilesWithFindings int
	ProbesSent        int
	InterestingCount  int
	ReasonCounts      map[Reason]int
	Groups            []URLFindings

	// Empty is set when there is nothing to show: no pages and no findings.
	Empty bool
}

// Summarize builds a Summary. Either argument may be nil.
func Summarize(crawl *CrawlResult, fuzz *FuzzReport) *Summary {
	s := &Summary{
		Extensions:   make(map[string]int),
		ReasonCounts: make(map[Reason]int),
		Pages:        make([]DiscoveredPage, 0),
		Groups:       make([]URLFindings, 0),
	}

	if crawl != nil {
		s.RunID = crawl.RunID
		s.Target = crawl.Target
		s.Duration = crawl.Duration()
		s.Cancelled = crawl.Cancelled
		s.PagesDiscovered = len(crawl.Pages)
		s.URLsVisited = len(crawl.Visited)
		s.ErrorCount = len(crawl.Errors)
		s.Pages = append(s.Pages, crawl.Pages...)
		s.Errors = crawl.Errors

		for _, p := range crawl.Pages {
			s.Extensions[p.Extension]++
			if p.HasQuery {
				s.PagesWithQuery++
			}
		}
	}

	if fuzz != nil {
		s.Fuzzed = true
		if s.RunID == "" {
			s.RunID = fuzz.RunID
		}
		if !fuzz.CompletedAt.IsZero() {
			s.Duration += fuzz.CompletedAt.Sub(fuzz.StartedAt)
		}
		s.Cancelled = s.Cancelled || fuzz.Cancelled
		s.Method = fuzz.Method
		s.Params = fuzz.Params
		s.FilesFuzzed = fuzz.FilesFuzzed
		s.ProbesSent = fuzz.ProbesSent

		for _, group := range fuzz.Findings {
			if len(group.Probes) == 0 {
				continue
			}
			s.FilesWithFindings++
			s.Groups = append(s.Groups, group)
			for _, p := range group.Probes {
				s.InterestingCount++
				s.ReasonCounts[p.Reason]++
			}
		}
	}

	s.Empty = s.PagesDiscovered == 0 && s.InterestingCount == 0
	return s
}

// HasFindings reports whether any probe was interesting.
func (s *Summary) HasFindings() bool {
	return s.InterestingCount > 0
}

// Report converts the summary into the output representation.
func (s *Summary) Report() *output.Report {
	r := &output.Report{
		RunID:       s.RunID,
		Target:      s.Target,
		GeneratedAt: time.Now(),
		Cancelled:   s.Cancelled,
		Empty:       s.Empty,
		Crawl: output.CrawlStats{
			PagesDiscovered: s.PagesDiscovered,
			URLsVisited:     s.URLsVisited,
			PagesWithQuery:  s.PagesWithQuery,
			ErrorCount:      s.ErrorCount,
			Extensions:      s.sortedExtensions(),
		},
		Pages: make([]output.Page, 0, len(s.Pages)),
	}
	if s.Duration > 0 {
		r.Duration = s.Duration.Round(time.Millisecond).String()
	}

	for _, p := range s.Pages {
		r.Pages = append(r.Pages, output.Page{
			URL:         p.URL,
			Path:        p.Path,
			Extension:   p.Extension,
			Depth:       p.Depth,
			StatusCode:  p.StatusCode,
			HasQuery:    p.HasQuery,
			QueryString: p.QueryString,
			Title:       p.Title,
			QueryParams: p.QueryParams,
			FormInputs:  p.FormInputs,
		})
	}

	for _, e := range s.Errors {
		r.Errors = append(r.Errors, output.PageError{
			URL:        e.URL,
			Type:       e.Type,
			StatusCode: e.StatusCode,
			Error:      e.Error,
		})
	}

	if !s.Fuzzed {
		return r
	}

	r.Fuzz = &output.FuzzStats{
		Method:            s.Method,
		Params:            s.Params,
		FilesFuzzed:       s.FilesFuzzed,
		FilesWithFindings: s.FilesWithFindings,
		ProbesSent:        s.ProbesSent,
		Interesting:       s.InterestingCount,
		Reasons:           make([]output.ReasonCount, 0),
	}
	for _, reason := range reasonOrder {
		if n := s.ReasonCounts[reason]; n > 0 {
			r.Fuzz.Reasons = append(r.Fuzz.Reasons, output.ReasonCount{
				Reason: string(reason),
				Label:  reason.Label(),
				Count:  n,
			})
		}
	}

	for _, group := range s.Groups {
		g := output.URLGroup{URL: group.URL, Findings: make([]output.Finding, 0, len(group.Probes))}
		for _, p := range group.Probes {
			g.Findings = append(g.Findings, output.Finding{
				Param:          p.Param,
				Method:         p.Method,
				Reason:         string(p.Reason),
				Label:          p.Reason.Label(),
				BaselineCode:   p.BaselineCode,
				TestCode:       p.TestCode,
				BaselineLength: p.BaselineLength,
				TestLength:     p.TestLength,
				LengthDelta:    p.LengthDelta(),
			})
		}
		r.Findings = append(r.Findings, g)
	}

	return r
}

// sortedExtensions orders the histogram by count, then name. Pages without
// an extension are listed as "(none)".
func (s *Summary) sortedExtensions() []output.ExtensionCount {
	counts := make([]output.ExtensionCount, 0, len(s.Extensions))
	for ext, n := range s.Extensions {
		if ext == "" {
			ext = "(none)"
		}
		counts = append(counts, output.ExtensionCount{Extension: ext, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Extension < counts[j].Extension
	})
	return counts
}
