// Package metrics counts crawl and probe activity for a run.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates metrics.
type Collector struct {
	// Counters
	requestsTotal    atomic.Int64
	errorsTotal      atomic.Int64
	pagesCrawled     atomic.Int64
	linksDiscovered  atomic.Int64
	bytesTotal       atomic.Int64
	baselinesTotal   atomic.Int64
	probesTotal      atomic.Int64
	interestingTotal atomic.Int64
	urlsFuzzed       atomic.Int64

	// Response time tracking
	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	// Gauges
	queueDepth atomic.Int64

	// Histogram buckets for response times in ms:
	// <10, <50, <100, <250, <500, <1000, <2500, <5000, <10000, >=10000
	responseTimeBuckets [10]atomic.Int64

	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex

	reasonCounts map[string]*atomic.Int64
	reasonMu     sync.RWMutex

	startMu   sync.RWMutex
	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts:  make(map[string]*atomic.Int64),
		statusCodes:  make(map[int]*atomic.Int64),
		reasonCounts: make(map[string]*atomic.Int64),
		startTime:    time.Now(),
	}
}

// RecordRequest records an outgoing HTTP request.
func (c *Collector) RecordRequest() {
	c.requestsTotal.Add(1)
}

// RecordError records an error by type name.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.Add(1)
	incr(&c.errorMu, c.errorCounts, errorType)
}

// RecordResponseTime records a response time.
func (c *Collector) RecordResponseTime(d time.Duration) {
	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseTimeBuckets[bucketFor(ms)].Add(1)
}

func bucketFor(ms int64) int {
	switch {
	case ms < 10:
		return 0
	case ms < 50:
		return 1
	case ms < 100:
		return 2
	case ms < 250:
		return 3
	case ms < 500:
		return 4
	case ms < 1000:
		return 5
	case ms < 2500:
		return 6
	case ms < 5000:
		return 7
	case ms < 10000:
		return 8
	default:
		return 9
	}
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	c.statusMu.Lock()
	if c.statusCodes[code] == nil {
		c.statusCodes[code] = &atomic.Int64{}
	}
	c.statusCodes[code].Add(1)
	c.statusMu.Unlock()
}

// RecordPageCrawled increments successfully crawled pages.
func (c *Collector) RecordPageCrawled() {
	c.pagesCrawled.Add(1)
}

// RecordLinksDiscovered adds to the count of in-scope links found on pages.
func (c *Collector) RecordLinksDiscovered(n int) {
	c.linksDiscovered.Add(int64(n))
}

// RecordBytes records transferred bytes.
func (c *Collector) RecordBytes(n int64) {
	c.bytesTotal.Add(n)
}

// RecordBaseline records a baseline request for a fuzzed URL.
func (c *Collector) RecordBaseline() {
	c.baselinesTotal.Add(1)
}

// RecordProbe records one parameter probe and, when interesting, its reason.
func (c *Collector) RecordProbe(reason string, interesting bool) {
	c.probesTotal.Add(1)
	if interesting {
		c.interestingTotal.Add(1)
	}
	incr(&c.reasonMu, c.reasonCounts, reason)
}

// RecordURLFuzzed increments the number of URLs that went through the fuzzer.
func (c *Collector) RecordURLFuzzed() {
	c.urlsFuzzed.Add(1)
}

// SetQueueDepth sets the current crawl queue depth.
func (c *Collector) SetQueueDepth(depth int64) {
	c.queueDepth.Store(depth)
}

func incr(mu *sync.RWMutex, m map[string]*atomic.Int64, key string) {
	mu.Lock()
	if m[key] == nil {
		m[key] = &atomic.Int64{}
	}
	m[key].Add(1)
	mu.Unlock()
}

// GetAverageResponseTime returns the average response time.
func (c *Collector) GetAverageResponseTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	c.startMu.RLock()
	start := c.startTime
	c.startMu.RUnlock()

	s := &Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(start),
		RequestsTotal:       c.requestsTotal.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
		PagesCrawled:        c.pagesCrawled.Load(),
		LinksDiscovered:     c.linksDiscovered.Load(),
		BytesTotal:          c.bytesTotal.Load(),
		BaselinesTotal:      c.baselinesTotal.Load(),
		ProbesTotal:         c.probesTotal.Load(),
		InterestingTotal:    c.interestingTotal.Load(),
		URLsFuzzed:          c.urlsFuzzed.Load(),
		QueueDepth:          c.queueDepth.Load(),
		AverageResponseTime: c.GetAverageResponseTime(),
		ErrorCounts:         make(map[string]int64),
		StatusCodes:         make(map[int]int64),
		ReasonCounts:        make(map[string]int64),
		ResponseTimeHist:    make([]int64, 10),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	c.statusMu.RLock()
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v.Load()
	}
	c.statusMu.RUnlock()

	c.reasonMu.RLock()
	for k, v := range c.reasonCounts {
		s.ReasonCounts[k] = v.Load()
	}
	c.reasonMu.RUnlock()

	for i := 0; i < 10; i++ {
		s.ResponseTimeHist[i] = c.responseTimeBuckets[i].Load()
	}

	return s
}

// Reset resets all metrics.
func (c *Collector) Reset() {
	c.requestsTotal.Store(0)
	c.errorsTotal.Store(0)
	c.pagesCrawled.Store(0)
	c.linksDiscovered.Store(0)
	c.bytesTotal.Store(0)
	c.baselinesTotal.Store(0)
	c.probesTotal.Store(0)
	c.interestingTotal.Store(0)
	c.urlsFuzzed.Store(0)
	c.responseTimesSum.Store(0)
	c.responseTimesNum.Store(0)
	c.queueDepth.Store(0)

	for i := 0; i < 10; i++ {
		c.responseTimeBuckets[i].Store(0)
	}

	c.errorMu.Lock()
	c.errorCounts = make(map[string]*atomic.Int64)
	c.errorMu.Unlock()

	c.statusMu.Lock()
	c.statusCodes = make(map[int]*atomic.Int64)
	c.statusMu.Unlock()

	c.reasonMu.Lock()
	c.reasonCounts = make(map[string]*atomic.Int64)
	c.reasonMu.Unlock()

	c.startMu.Lock()
	c.startTime = time.Now()
	c.startMu.Unlock()
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	Uptime              time.Duration    `json:"uptime"`
	RequestsTotal       int64            `json:"requests_total"`
	ErrorsTotal         int64            `json:"errors_total"`
	PagesCrawled        int64            `json:"pages_crawled"`
	LinksDiscovered     int64            `json:"links_discovered"`
	BytesTotal          int64            `json:"bytes_total"`
	BaselinesTotal      int64            `json:"baselines_total"`
	ProbesTotal         int64            `json:"probes_total"`
	InterestingTotal    int64            `json:"interesting_total"`
	URLsFuzzed          int64            `json:"urls_fuzzed"`
	QueueDepth          int64            `json:"queue_depth"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
	StatusCodes         map[int]int64    `json:"status_codes"`
	ReasonCounts        map[string]int64 `json:"reason_counts"`
	ResponseTimeHist    []int64          `json:"response_time_histogram"`
}

// ErrorRate returns the error rate (errors/requests).
func (s *Snapshot) ErrorRate() float64 {
	if s.RequestsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.RequestsTotal)
}

// HitRate returns the fraction of probes that were interesting.
func (s *Snapshot) HitRate() float64 {
	if s.ProbesTotal == 0 {
		return 0
	}
	return float64(s.InterestingTotal) / float64(s.ProbesTotal)
}

// Summary returns a human-readable summary.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":               s.Uptime.String(),
		"requests_total":       s.RequestsTotal,
		"errors_total":         s.ErrorsTotal,
		"error_rate":           s.ErrorRate(),
		"pages_crawled":        s.PagesCrawled,
		"probes_total":         s.ProbesTotal,
		"interesting_total":    s.InterestingTotal,
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}

var (
	globalMu        sync.RWMutex
	globalCollector = New()
)

// SetGlobal sets the global metrics collector.
func SetGlobal(c *Collector) {
	globalMu.Lock()
	globalCollector = c
	globalMu.Unlock()
}

// Global returns the global metrics collector.
func Global() *Collector {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCollector
}
