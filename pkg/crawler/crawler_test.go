package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/PentesterFlow/ParamCrawl/internal/errors"
	"github.com/PentesterFlow/ParamCrawl/internal/logger"
	"github.com/PentesterFlow/ParamCrawl/internal/metrics"
)

// site is a test web site that counts hits per path.
type site struct {
	mu     sync.Mutex
	hits   map[string]int
	pages  map[string]string
	server *httptest.Server
}

func newSite(t *testing.T, pages map[string]string) *site {
	t.Helper()
	s := &site{hits: make(map[string]int), pages: pages}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)
	return s
}

func (s *site) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	if r.URL.Path == "/old" {
		http.Redirect(w, r, "/new/", http.StatusFound)
		return
	}

	body, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, body)
}

func (s *site) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *site) totalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

func html(body string) string {
	return "<html><head><title>t</title></head><body>" + body + "</body></html>"
}

func newTestCrawler(t *testing.T, opts ...Option) *Crawler {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop()), WithProbeDelay(0)}, opts...)
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	c := newTestCrawler(t)

	if c.Config().MaxDepth != 3 || c.Config().MaxURLs != 100 {
		t.Errorf("MaxDepth/MaxURLs = %d/%d, want 3/100", c.Config().MaxDepth, c.Config().MaxURLs)
	}
	if c.RunID() == "" {
		t.Error("RunID() should not be empty")
	}
	if c.Metrics() == nil || c.MetricsSnapshot() == nil {
		t.Error("metrics should be initialized")
	}
}

func TestNew_ValidationError(t *testing.T) {
	if _, err := New(WithLogger(logger.Nop()), WithTimeout(0)); err == nil {
		t.Error("New() should reject a zero timeout")
	}
}

// =============================================================================
// Crawl Tests
// =============================================================================

func TestCrawl_BudgetAndHostBound(t *testing.T) {
	other := newSite(t, map[string]string{"/x": html("other")})

	var links strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&links, `<a href="/p%d">p%d</a>`, i, i)
	}
	fmt.Fprintf(&links, `<a href="%s/x">x</a>`, other.server.URL)
	links.WriteString(`<a href="https://cross.example/">cross</a>`)

	pages := map[string]string{"/": html(links.String())}
	for i := 0; i < 10; i++ {
		pages[fmt.Sprintf("/p%d", i)] = html("leaf")
	}
	s := newSite(t, pages)

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), s.server.URL+"/", 1, 5)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if len(result.Pages) != 5 {
		t.Fatalf("len(Pages) = %d, want 5 (seed + 4 links)", len(result.Pages))
	}
	if len(result.Visited) > 5 {
		t.Errorf("len(Visited) = %d, want <= 5", len(result.Visited))
	}

	seedHost := mustHost(t, s.server.URL)
	for _, p := range result.Pages {
		if h := mustHost(t, p.URL); h != seedHost {
			t.Errorf("page %s is off host %s", p.URL, seedHost)
		}
		if p.Depth > 1 {
			t.Errorf("page %s at depth %d exceeds max depth 1", p.URL, p.Depth)
		}
	}
	for i := 0; i < 4; i++ {
		want := fmt.Sprintf("%s/p%d", s.server.URL, i)
		if result.Pages[i+1].URL != want {
			t.Errorf("Pages[%d] = %s, want %s in document order", i+1, result.Pages[i+1].URL, want)
		}
	}
	if other.totalHits() != 0 {
		t.Errorf("cross-host server received %d requests", other.totalHits())
	}
	if s.totalHits() != 5 {
		t.Errorf("seed host received %d requests, want 5", s.totalHits())
	}
}

func TestCrawl_DepthBound(t *testing.T) {
	s := newSite(t, map[string]string{
		"/":  html(`<a href="/a">a</a>`),
		"/a": html(`<a href="/b">b</a>`),
		"/b": html(`<a href="/c">c</a>`),
		"/c": html(`leaf`),
	})

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), s.server.URL, 2, 100)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if len(result.Pages) != 3 {
		t.Errorf("len(Pages) = %d, want 3", len(result.Pages))
	}
	if s.hitCount("/c") != 0 {
		t.Error("/c is at depth 3 and must not be fetched")
	}
	for i, want := range []int{0, 1, 2} {
		if result.Pages[i].Depth != want {
			t.Errorf("Pages[%d].Depth = %d, want %d", i, result.Pages[i].Depth, want)
		}
	}
}

func TestCrawl_BreadthFirst(t *testing.T) {
	s := newSite(t, map[string]string{
		"/":       html(`<a href="/a">a</a><a href="/b">b</a>`),
		"/a":      html(`<a href="/a/deep">deep</a>`),
		"/b":      html(`leaf`),
		"/a/deep": html(`leaf`),
	})

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), s.server.URL+"/", 3, 100)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	var paths []string
	for _, p := range result.Pages {
		paths = append(paths, p.Path)
	}
	if got := strings.Join(paths, " "); got != "/ /a /b /a/deep" {
		t.Errorf("crawl order = %q, want breadth-first", got)
	}
}

func TestCrawl_FetchesEachURLOnce(t *testing.T) {
	s := newSite(t, map[string]string{
		"/": html(`<a href="/a?x=1">1</a><a href="/a?x=2">2</a><a href="/a#top">3</a><a href="/">self</a><a href="` +
			`#frag">frag</a>`),
		"/a": html(`<a href="/">home</a><a href="/a">again</a>`),
	})

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), s.server.URL, 3, 100)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if s.hitCount("/") != 1 || s.hitCount("/a") != 1 {
		t.Errorf("hits / = %d, /a = %d, want 1 each", s.hitCount("/"), s.hitCount("/a"))
	}
	if len(result.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2", len(result.Pages))
	}

	a := result.Pages[1]
	if !a.HasQuery || a.QueryString != "x=1" || a.Path != "/a" {
		t.Errorf("page /a = %+v, want the first discovered variant with x=1", a)
	}
	if len(a.QueryParams) != 1 || a.QueryParams[0] != "x" {
		t.Errorf("QueryParams = %v, want [x]", a.QueryParams)
	}
}

func TestCrawl_LinkResolution(t *testing.T) {
	s := newSite(t, map[string]string{
		"/":              html(`<a href="/dir/page.html">p</a>`),
		"/dir/page.html": html(`<a href="/admin?x=1">admin</a><a href="img/a.png">img</a><a href="javascript:void(0)">js</a><a href="mailto:a@b.c">mail</a>`),
		"/admin":         html(`admin`),
		"/dir/img/a.png": "png",
	})

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), s.server.URL, 3, 100)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	urls := make(map[string]DiscoveredPage)
	for _, p := range result.Pages {
		urls[p.URL] = p
	}
	if _, ok := urls[s.server.URL+"/admin?x=1"]; !ok {
		t.Errorf("missing %s/admin?x=1 in %v", s.server.URL, result.URLs())
	}
	png, ok := urls[s.server.URL+"/dir/img/a.png"]
	if !ok {
		t.Fatalf("missing %s/dir/img/a.png in %v", s.server.URL, result.URLs())
	}
	if png.Extension != "png" || png.Depth != 2 {
		t.Errorf("a.png extension/depth = %q/%d, want png/2", png.Extension, png.Depth)
	}
}

func TestCrawl_FormsAndTitles(t *testing.T) {
	s := newSite(t, map[string]string{
		"/": `<html><head><title>Home</title></head><body>
			<form action="/submit" method="post">
				<input name="user"><input name="pass" type="password"><input type="submit" name="go">
			</form></body></html>`,
		"/submit": html(`done`),
	})

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), s.server.URL, 2, 10)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if len(result.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2 (form action followed)", len(result.Pages))
	}
	home := result.Pages[0]
	if home.Title != "Home" {
		t.Errorf("Title = %q, want Home", home.Title)
	}
	if strings.Join(home.FormInputs, ",") != "pass,user" {
		t.Errorf("FormInputs = %v, want [pass user]", home.FormInputs)
	}
}

func TestCrawl_SkipsNon200(t *testing.T) {
	s := newSite(t, map[string]string{
		"/":   html(`<a href="/missing">m</a><a href="/ok">ok</a>`),
		"/ok": html(`ok`),
	})

	m := metrics.New()
	c := newTestCrawler(t, WithMetrics(m))
	result, err := c.Crawl(context.Background(), s.server.URL, 2, 10)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if len(result.Pages) != 2 {
		t.Errorf("len(Pages) = %d, want 2", len(result.Pages))
	}
	if len(result.Visited) != 3 {
		t.Errorf("len(Visited) = %d, want 3 (failed fetches count)", len(result.Visited))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
	}
	if e := result.Errors[0]; e.StatusCode != 404 || e.Type != "status" {
		t.Errorf("error = %+v, want status 404", e)
	}

	snap := m.Snapshot()
	if snap.PagesCrawled != 2 || snap.StatusCodes[404] != 1 || snap.ErrorCounts["status"] != 1 {
		t.Errorf("metrics = pages %d, 404s %d, status errors %d", snap.PagesCrawled, snap.StatusCodes[404], snap.ErrorCounts["status"])
	}
}

func TestCrawl_FollowsRedirectsAndResolvesAgainstFinalURL(t *testing.T) {
	s := newSite(t, map[string]string{
		"/":          html(`<a href="/old">old</a>`),
		"/new/":      html(`<a href="child">child</a>`),
		"/new/child": html(`leaf`),
	})

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), s.server.URL, 3, 10)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if s.hitCount("/new/child") != 1 {
		t.Errorf("relative link on a redirected page should resolve against the final URL; urls = %v", result.URLs())
	}
	for _, p := range result.Pages {
		if p.Path == "/old" && p.FinalURL != s.server.URL+"/new/" {
			t.Errorf("FinalURL = %q, want %s/new/", p.FinalURL, s.server.URL)
		}
	}
}

func TestCrawl_StopsAtOffHostRedirect(t *testing.T) {
	var offHostHits int
	offHost := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offHostHits++
		io.WriteString(w, "<html><head><title>OFFHOST</title></head></html>")
	}))
	defer offHost.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, html(`<a href="/go">go</a>`))
	})
	mux.HandleFunc("/go", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, offHost.URL+"/", http.StatusFound)
	})
	seed := httptest.NewServer(mux)
	defer seed.Close()

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), seed.URL+"/", 2, 10)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if offHostHits != 0 {
		t.Errorf("off-host server got %d requests, want 0", offHostHits)
	}
	for _, p := range result.Pages {
		if p.Title == "OFFHOST" || strings.HasSuffix(p.URL, "/go") {
			t.Errorf("off-host content recorded as %+v", p)
		}
	}
	if len(result.Errors) != 1 || result.Errors[0].StatusCode != http.StatusFound {
		t.Errorf("Errors = %+v, want one 302 for /go", result.Errors)
	}
}

func TestCrawl_Validation(t *testing.T) {
	c := newTestCrawler(t)

	tests := []struct {
		name     string
		seed     string
		maxDepth int
		maxURLs  int
	}{
		{"empty seed", "", 3, 100},
		{"relative seed", "/index.html", 3, 100},
		{"non-http seed", "ftp://example.com/", 3, 100},
		{"zero depth", "http://example.com/", 0, 100},
		{"zero urls", "http://example.com/", 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Crawl(context.Background(), tt.seed, tt.maxDepth, tt.maxURLs)
			if !errors.IsValidation(err) {
				t.Errorf("Crawl() error = %v, want validation", err)
			}
		})
	}
}

func TestCrawl_SeedFailureIsNotAnError(t *testing.T) {
	s := newSite(t, map[string]string{})

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), s.server.URL, 3, 10)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if len(result.Pages) != 0 || len(result.Errors) != 1 {
		t.Errorf("pages/errors = %d/%d, want 0/1", len(result.Pages), len(result.Errors))
	}
}

func TestCrawl_Cancelled(t *testing.T) {
	s := newSite(t, map[string]string{"/": html("home")})

	c := newTestCrawler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := c.Crawl(ctx, s.server.URL, 3, 10)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if !result.Cancelled {
		t.Error("result should be marked cancelled")
	}
	if s.totalHits() != 0 {
		t.Errorf("cancelled crawl made %d requests", s.totalHits())
	}
}

func TestStart_UsesConfiguredTarget(t *testing.T) {
	s := newSite(t, map[string]string{
		"/":  html(`<a href="/a">a</a>`),
		"/a": html(`<a href="/b">b</a>`),
		"/b": html(`leaf`),
	})

	c := newTestCrawler(t, WithTarget(s.server.URL), WithMaxDepth(1), WithRunID("run-1"))
	result, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(result.Pages) != 2 {
		t.Errorf("len(Pages) = %d, want 2", len(result.Pages))
	}
	if result.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", result.RunID)
	}
	if result.MaxDepth != 1 || result.MaxURLs != 100 {
		t.Errorf("limits = %d/%d, want 1/100", result.MaxDepth, result.MaxURLs)
	}
}

// =============================================================================
// Scan Tests
// =============================================================================

func TestScan(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, html(`<a href="/item">item</a>`))
	})
	mux.HandleFunc("/item", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("sku") != "" {
			w.WriteHeader(http.StatusBadRequest)
		}
		io.WriteString(w, html(`<form><input name="sku"></form>item`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestCrawler(t)

	crawlResult, report, err := c.Scan(context.Background(), server.URL, 2, 10, "GET", []string{"zz"}, false)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(crawlResult.Pages) != 2 || report.FilesFuzzed != 2 {
		t.Fatalf("pages/fuzzed = %d/%d, want 2/2", len(crawlResult.Pages), report.FilesFuzzed)
	}
	if report.InterestingCount() != 0 {
		t.Errorf("InterestingCount() = %d, want 0 without discovered params", report.InterestingCount())
	}

	_, report, err = c.Scan(context.Background(), server.URL, 2, 10, "GET", []string{"zz"}, true)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	probes := report.ProbesFor(server.URL + "/item")
	if len(probes) != 1 || probes[0].Param != "sku" || probes[0].Reason != ReasonStatusChanged {
		t.Errorf("ProbesFor(/item) = %+v, want sku status_code_changed", probes)
	}
}

func TestScan_InvalidMethod(t *testing.T) {
	c := newTestCrawler(t)
	if _, _, err := c.Scan(context.Background(), "http://example.com/", 1, 1, "PUT", nil, false); !errors.IsValidation(err) {
		t.Errorf("Scan() error = %v, want validation", err)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestVisitKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x.test", "https://x.test/"},
		{"https://x.test/", "https://x.test/"},
		{"https://x.test?a=1", "https://x.test/"},
		{"https://x.test/a?b=1#c", "https://x.test/a"},
		{"https://x.test/a/#c", "https://x.test/a/"},
		{"HTTPS://X.Test/a?b=1", "https://x.test/a"},
		{"https://X.TEST", "https://x.test/"},
		{"https://x.test/Mixed/Case", "https://x.test/Mixed/Case"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := visitKey(tt.in)
			if got != tt.want {
				t.Errorf("visitKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if visitKey(got) != got {
				t.Errorf("visitKey is not idempotent for %q", tt.in)
			}
		})
	}
}

func TestCrawler_Fuzzer_Shared(t *testing.T) {
	m := metrics.New()
	c := newTestCrawler(t, WithMetrics(m), WithRunID("shared"))

	f1, err := c.Fuzzer()
	if err != nil {
		t.Fatalf("Fuzzer() error = %v", err)
	}
	f2, _ := c.Fuzzer()
	if f1 != f2 {
		t.Error("Fuzzer() should return the same instance")
	}
	if f1.Metrics() != m || f1.RunID() != "shared" {
		t.Error("fuzzer should share metrics and run ID")
	}
}

func TestCrawler_Fuzzer_ComponentTaggedOnce(t *testing.T) {
	var buf bytes.Buffer
	base := logger.New(logger.Config{Level: logger.InfoLevel, Output: &buf})

	c, err := New(WithLogger(base), WithRunID("tagged"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	f, err := c.Fuzzer()
	if err != nil {
		t.Fatalf("Fuzzer() error = %v", err)
	}
	f.logger.Info("probe")

	line := buf.String()
	if n := strings.Count(line, `"component"`); n != 1 {
		t.Errorf("component field appears %d times in %s", n, line)
	}
	if !strings.Contains(line, `"component":"fuzzer"`) {
		t.Errorf("log line %s should be tagged fuzzer", line)
	}
	if n := strings.Count(line, `"run_id"`); n != 1 {
		t.Errorf("run_id field appears %d times in %s", n, line)
	}
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u.Host
}
