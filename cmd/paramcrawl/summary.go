package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/PentesterFlow/ParamCrawl/internal/metrics"
	"github.com/PentesterFlow/ParamCrawl/pkg/crawler"
)

var (
	title   = color.New(color.FgCyan, color.Bold).SprintFunc()
	good    = color.New(color.FgGreen).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
	bad     = color.New(color.FgRed).SprintFunc()
	accent  = color.New(color.FgMagenta).SprintFunc()
	maxList = 10
)

// The banner and summary go to stderr so stdout carries only the report.
func printBanner(mode, target string, config *crawler.Config) {
	out := os.Stderr
	fmt.Fprintln(out)
	fmt.Fprintln(out, title("╔══════════════════════════════════════════════════════════════╗"))
	fmt.Fprintln(out, title("║                       ParamCrawl v1.0                        ║"))
	fmt.Fprintln(out, title("╚══════════════════════════════════════════════════════════════╝"))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Mode:       %s\n", accent(mode))
	fmt.Fprintf(out, "Target:     %s\n", target)
	if mode != "Fuzz" {
		fmt.Fprintf(out, "Max Depth:  %d\n", config.MaxDepth)
		fmt.Fprintf(out, "Max URLs:   %d\n", config.MaxURLs)
	}
	if mode != "Crawl" {
		fmt.Fprintf(out, "Method:     %s\n", config.Fuzz.Method)
		fmt.Fprintf(out, "Delay:      %v\n", config.Fuzz.Delay)
	}
	fmt.Fprintln(out)
}

func printSummary(s *crawler.Summary, snap *metrics.Snapshot) {
	out := os.Stderr
	fmt.Fprintln(out)
	fmt.Fprintln(out, title("╔══════════════════════════════════════════════════════════════╗"))
	fmt.Fprintln(out, title("║                         Run Summary                          ║"))
	fmt.Fprintln(out, title("╚══════════════════════════════════════════════════════════════╝"))
	fmt.Fprintln(out)
	if s.Cancelled {
		fmt.Fprintln(out, warn("Interrupted: results are partial"))
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Run ID:             %s\n", s.RunID)
	fmt.Fprintf(out, "Duration:           %v\n", s.Duration.Round(time.Millisecond))
	if s.URLsVisited > 0 {
		fmt.Fprintf(out, "URLs Visited:       %d\n", s.URLsVisited)
		fmt.Fprintf(out, "Files Discovered:   %d\n", s.PagesDiscovered)
		fmt.Fprintf(out, "With Query String:  %d\n", s.PagesWithQuery)
		fmt.Fprintf(out, "Errors:             %s\n", countColor(s.ErrorCount, bad))
	}
	if s.Fuzzed {
		fmt.Fprintf(out, "Files Fuzzed:       %d\n", s.FilesFuzzed)
		fmt.Fprintf(out, "Probes Sent:        %d\n", s.ProbesSent)
		fmt.Fprintf(out, "Interesting:        %s\n", countColor(s.InterestingCount, good))
	}
	if snap != nil {
		fmt.Fprintf(out, "Requests:           %d (%.1f%% errors, avg %v)\n",
			snap.RequestsTotal, snap.ErrorRate()*100, snap.AverageResponseTime.Round(time.Millisecond))
	}
	fmt.Fprintln(out)

	if len(s.Extensions) > 0 {
		fmt.Fprintln(out, "Extensions:")
		exts := make([]string, 0, len(s.Extensions))
		for ext := range s.Extensions {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		for _, ext := range exts {
			name := ext
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(out, "  %-10s %d\n", name, s.Extensions[ext])
		}
		fmt.Fprintln(out)
	}

	if !s.Fuzzed {
		return
	}
	if !s.HasFindings() {
		fmt.Fprintln(out, warn("No interesting parameters found."))
		fmt.Fprintln(out)
		return
	}

	fmt.Fprintln(out, "Interesting Parameters:")
	shown := 0
	for _, group := range s.Groups {
		for _, p := range group.Probes {
			if shown == maxList {
				fmt.Fprintf(out, "  ... and %d more\n", s.InterestingCount-shown)
				fmt.Fprintln(out)
				return
			}
			fmt.Fprintf(out, "  [%s] %s %s %s\n", p.Method, group.URL, accent(p.Param), reasonColor(p.Reason))
			shown++
		}
	}
	fmt.Fprintln(out)
}

func countColor(n int, c func(a ...interface{}) string) string {
	if n == 0 {
		return "0"
	}
	return c(n)
}

func reasonColor(r crawler.Reason) string {
	switch r {
	case crawler.ReasonParamReflected:
		return bad(r.Label())
	case crawler.ReasonLengthChanged:
		return good(r.Label())
	default:
		return warn(r.Label())
	}
}
