package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/PentesterFlow/ParamCrawl/internal/errors"
	fhttp "github.com/PentesterFlow/ParamCrawl/internal/http"
	"github.com/PentesterFlow/ParamCrawl/internal/logger"
	"github.com/PentesterFlow/ParamCrawl/internal/metrics"
	"github.com/PentesterFlow/ParamCrawl/internal/parser"
	"github.com/PentesterFlow/ParamCrawl/internal/queue"
	"github.com/PentesterFlow/ParamCrawl/internal/ratelimit"
	"github.com/PentesterFlow/ParamCrawl/internal/scope"
	"github.com/PentesterFlow/ParamCrawl/internal/state"
)

// Crawler walks a single host breadth-first from a seed URL.
type Crawler struct {
	settings *settings
	config   *Config
	client   *fhttp.Client
	limiter  *ratelimit.Limiter
	logger   *logger.Logger
	metrics  *metrics.Collector
	runID    string

	mu      sync.Mutex
	running atomic.Bool
	fuzzer  *Fuzzer
}

// New creates a new crawler with the given options.
func New(opts ...Option) (*Crawler, error) {
	s, err := buildSettings("crawler", opts)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clientCfg := fhttp.DefaultClientConfig()
	clientCfg.Timeout = s.config.Timeout
	clientCfg.MaxRedirects = s.config.MaxRedirects
	clientCfg.UserAgent = s.config.UserAgent
	clientCfg.Headers = s.config.CustomHeaders
	clientCfg.SkipTLSVerify = s.config.SkipTLSVerify
	clientCfg.SameHostRedirects = true

	return &Crawler{
		settings: s,
		config:   s.config,
		client:   fhttp.NewClient(clientCfg),
		limiter:  ratelimit.NewDelayLimiter(s.config.CrawlDelay),
		logger:   s.logger,
		metrics:  s.metrics,
		runID:    s.runID,
	}, nil
}

func newRunID() string {
	return uuid.NewString()
}

// Start crawls the configured target with the configured limits.
func (c *Crawler) Start(ctx context.Context) (*CrawlResult, error) {
	return c.Crawl(ctx, c.config.Target, c.config.MaxDepth, c.config.MaxURLs)
}

// Crawl fetches pages breadth-first from seedURL, following only links on
// the seed's host, up to maxDepth link hops and maxURLs distinct URLs.
// Each URL is fetched at most once, keyed without its query and fragment.
// Failed fetches are recorded and skipped. When ctx is cancelled the pages
// found so far are returned with Cancelled set.
func (c *Crawler) Crawl(ctx context.Context, seedURL string, maxDepth, maxURLs int) (*CrawlResult, error) {
	seed, ok := scope.ParseSeed(seedURL)
	if !ok {
		return nil, errors.NewValidationError("url", fmt.Sprintf("not an absolute http(s) URL: %q", seedURL))
	}
	if maxDepth < 1 {
		return nil, errors.NewValidationError("max_depth", "must be at least 1")
	}
	if maxURLs < 1 {
		return nil, errors.NewValidationError("max_urls", "must be at least 1")
	}

	if !c.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("crawler is already running")
	}
	defer c.running.Store(false)

	target := seed.String()
	checker, err := scope.NewChecker(target, scope.ScopeRules{MaxDepth: maxDepth})
	if err != nil {
		return nil, fmt.Errorf("failed to create scope checker: %w", err)
	}

	result := &CrawlResult{
		RunID:     c.runID,
		Target:    target,
		MaxDepth:  maxDepth,
		MaxURLs:   maxURLs,
		Pages:     make([]DiscoveredPage, 0),
		StartedAt: time.Now(),
	}

	var q queue.Queue = queue.NewMemoryQueue(0)
	defer q.Close()
	visited := state.NewDeduplicator(maxURLs)

	log := c.logger.WithURL(target)
	log.Infof("Crawl of %s started (max depth %d, max URLs %d)", checker.TargetHost(), maxDepth, maxURLs)

	q.Push(&queue.QueueItem{URL: target, Depth: 0})

	for visited.Count() < maxURLs {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		item, err := q.Pop()
		if err != nil {
			break
		}
		c.metrics.SetQueueDepth(int64(q.Len()))

		if item.Depth > maxDepth {
			continue
		}
		if !visited.Visit(visitKey(item.URL)) {
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			result.Cancelled = true
			break
		}

		links, ok := c.fetch(ctx, item, result)
		if !ok {
			if ctx.Err() != nil {
				result.Cancelled = true
				break
			}
			continue
		}

		enqueued := 0
		for _, link := range links {
			if !checker.IsInScope(link, item.Depth+1) {
				continue
			}
			if visited.HasSeen(visitKey(link)) {
				continue
			}
			if err := q.Push(&queue.QueueItem{URL: link, Depth: item.Depth + 1, ParentURL: item.URL}); err == nil {
				enqueued++
			}
		}
		c.metrics.RecordLinksDiscovered(enqueued)
	}

	result.Visited = visited.Visited()
	result.CompletedAt = time.Now()

	if result.Cancelled {
		log.Warnf("Crawl cancelled after %d pages", len(result.Pages))
	} else {
		log.Infof("Crawl finished: %d pages, %d visited, %d errors in %v",
			len(result.Pages), len(result.Visited), len(result.Errors), result.Duration())
	}
	pacing := c.limiter.Stats()
	log.Debugf("Crawl pacing: %d waits at %v spacing", pacing.Waits, pacing.Delay)

	return result, nil
}

// fetch retrieves one page, records it in result and returns the links it
// contains. It reports false when the page was skipped.
func (c *Crawler) fetch(ctx context.Context, item *queue.QueueItem, result *CrawlResult) ([]string, bool) {
	c.metrics.RecordRequest()

	resp, err := c.client.Get(ctx, item.URL)
	if resp != nil && resp.StatusCode != 0 {
		c.metrics.RecordStatusCode(resp.StatusCode)
	}
	if err != nil {
		if ctx.Err() == nil {
			c.addError(item, err, result)
		}
		return nil, false
	}

	c.metrics.RecordResponseTime(resp.Duration)
	c.metrics.RecordBytes(int64(len(resp.Body)))
	c.metrics.RecordPageCrawled()
	c.logger.PageEvent(item.URL, item.Depth, resp.StatusCode, resp.Duration)

	page := NewDiscoveredPage(item.URL, item.Depth)
	page.StatusCode = resp.StatusCode
	page.ContentType = resp.ContentType
	page.Size = len(resp.Body)
	page.QueryParams = parser.QueryParamNames(item.URL)
	if resp.FinalURL != "" && resp.FinalURL != item.URL {
		page.FinalURL = resp.FinalURL
	}

	base := item.URL
	if page.FinalURL != "" {
		base = page.FinalURL
	}

	var links []string
	htmlParser, err := parser.NewHTMLParser(base)
	if err == nil {
		var parsed *parser.ParseResult
		parsed, err = htmlParser.Parse(resp.Body)
		if err == nil {
			page.Title = parsed.Title
			page.FormInputs = parsed.InputNames()
			links = parsed.Links
		}
	}
	if err != nil {
		c.logger.ErrorEvent(err, item.URL, "parse")
	}

	result.Pages = append(result.Pages, page)
	return links, true
}

func (c *Crawler) addError(item *queue.QueueItem, err error, result *CrawlResult) {
	errType := errors.GetErrorType(err)
	c.metrics.RecordError(errType.String())
	c.logger.ErrorEvent(err, item.URL, "fetch")

	result.Errors = append(result.Errors, CrawlError{
		URL:        item.URL,
		Depth:      item.Depth,
		Type:       errType.String(),
		StatusCode: errors.GetStatusCode(err),
		Error:      err.Error(),
		Timestamp:  time.Now(),
	})
}

// visitKey is the visited-set key of a URL: lowercase scheme and host, no
// query, no fragment, and an empty path written as "/".
func visitKey(rawURL string) string {
	normalized := scope.NormalizeURL(rawURL)
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Opaque != "" {
		return normalized
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	return parsed.String()
}

// Fuzzer returns a fuzzer that shares this crawler's configuration, logger,
// metrics collector and run ID.
func (c *Crawler) Fuzzer() (*Fuzzer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fuzzer == nil {
		s := *c.settings
		s.tag("fuzzer")
		f, err := newFuzzer(&s)
		if err != nil {
			return nil, err
		}
		c.fuzzer = f
	}
	return c.fuzzer, nil
}

// Scan crawls seedURL and then fuzzes every discovered page. When
// includeDiscovered is set, each page's query parameters and form inputs
// are probed in addition to params.
func (c *Crawler) Scan(ctx context.Context, seedURL string, maxDepth, maxURLs int, method string, params []string, includeDiscovered bool) (*CrawlResult, *FuzzReport, error) {
	f, err := c.Fuzzer()
	if err != nil {
		return nil, nil, err
	}
	if _, err := f.resolveMethod(method); err != nil {
		return nil, nil, err
	}

	crawlResult, err := c.Crawl(ctx, seedURL, maxDepth, maxURLs)
	if err != nil {
		return nil, nil, err
	}

	params = f.EffectiveParams(params)
	if !includeDiscovered {
		report, err := f.FuzzAll(ctx, crawlResult.URLs(), method, params)
		return crawlResult, report, err
	}

	method, _ = f.resolveMethod(method)
	report := NewFuzzReport(method, params)
	report.RunID = c.runID
	for _, page := range crawlResult.Pages {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		pageParams := CleanParams(append(append(append([]string(nil), params...), page.QueryParams...), page.FormInputs...))
		probes, err := f.Probe(ctx, page.URL, method, pageParams)
		report.Add(page.URL, probes)
		if err != nil {
			report.Cancelled = true
			break
		}
	}
	report.CompletedAt = time.Now()
	return crawlResult, report, nil
}

// Config returns the crawler configuration.
func (c *Crawler) Config() *Config {
	return c.config
}

// RunID returns the run identifier.
func (c *Crawler) RunID() string {
	return c.runID
}

// Metrics returns the metrics collector for external access.
func (c *Crawler) Metrics() *metrics.Collector {
	return c.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of all metrics.
func (c *Crawler) MetricsSnapshot() *metrics.Snapshot {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Snapshot()
}

// Close releases idle connections.
func (c *Crawler) Close() {
	c.client.Close()
	c.mu.Lock()
	if c.fuzzer != nil {
		c.fuzzer.Close()
	}
	c.mu.Unlock()
}
