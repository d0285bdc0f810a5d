// Package progress renders a one-line live status for crawl and fuzz runs.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PentesterFlow/ParamCrawl/internal/metrics"
)

// Display redraws a status line from a metrics collector.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	stopped bool
	done    chan struct{}

	startTime time.Time
	maxURLs   int
	lastLine  string
}

// New creates a display that writes to out.
func New(out io.Writer) *Display {
	return &Display{out: out, done: make(chan struct{})}
}

// Start redraws every interval until ctx is done or Stop is called.
// maxURLs, when positive, drives the crawl percentage.
func (d *Display) Start(ctx context.Context, m *metrics.Collector, interval time.Duration, maxURLs int) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.startTime = time.Now()
	d.maxURLs = maxURLs
	d.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case <-ticker.C:
				d.Update(m.Snapshot())
			}
		}
	}()
}

// Update redraws the status line from snap.
func (d *Display) Update(snap *metrics.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	line := "\r" + d.format(snap, time.Since(d.startTime))
	if len(line) < len(d.lastLine) {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", len(d.lastLine)))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

func (d *Display) format(snap *metrics.Snapshot, elapsed time.Duration) string {
	speed := float64(0)
	if elapsed.Seconds() > 0 {
		speed = float64(snap.RequestsTotal) / elapsed.Seconds()
	}

	var b strings.Builder
	if d.maxURLs > 0 {
		pct := int(float64(snap.PagesCrawled) / float64(d.maxURLs) * 100)
		if pct > 100 {
			pct = 100
		}
		fmt.Fprintf(&b, "%3d%% | ", pct)
	}
	fmt.Fprintf(&b, "Pages: %d | Queue: %d", snap.PagesCrawled, snap.QueueDepth)
	if snap.ProbesTotal > 0 {
		fmt.Fprintf(&b, " | Probes: %d | Interesting: %d", snap.ProbesTotal, snap.InterestingTotal)
	}
	fmt.Fprintf(&b, " | Errors: %d | %.1f req/s | %s", snap.ErrorsTotal, speed, formatDuration(elapsed))
	return b.String()
}

// Stop ends the redraw loop and moves past the status line.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}
	d.stopped = true
	close(d.done)

	if d.lastLine != "" {
		fmt.Fprintln(d.out)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
