// Package web serves the three-step crawl, select and fuzz form flow.
package web

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PentesterFlow/ParamCrawl/internal/logger"
	"github.com/PentesterFlow/ParamCrawl/internal/metrics"
	"github.com/PentesterFlow/ParamCrawl/internal/output"
	"github.com/PentesterFlow/ParamCrawl/internal/scope"
	"github.com/PentesterFlow/ParamCrawl/pkg/crawler"
)

const (
	msgInvalidURL   = "Please provide a valid URL."
	msgNoFiles      = "Please select at least one file to fuzz."
	shutdownTimeout = 5 * time.Second
)

// Server is the web form flow.
type Server struct {
	config  *crawler.Config
	base    *logger.Logger
	logger  *logger.Logger
	metrics *metrics.Collector
	engine  *gin.Engine
	tmpl    *template.Template
}

// New creates a server that crawls and fuzzes with config.
func New(config *crawler.Config, log *logger.Logger, m *metrics.Collector) (*Server, error) {
	if config == nil {
		config = crawler.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}

	tmpl, err := output.NewReportTemplate("page", pageTemplate, template.FuncMap{
		"formStyles": func() template.CSS { return template.CSS(formStyles) },
		"stepClass":  stepClass,
	})
	if err != nil {
		return nil, err
	}

	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:  config.Clone(),
		base:    log,
		logger:  log.WithComponent("web"),
		metrics: m,
		tmpl:    tmpl,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.SetTrustedProxies(nil)
	router.Use(s.recovery(), s.requestLogger())

	router.GET("/", s.handleIndex)
	router.POST("/", s.handleStep)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.metrics.Snapshot().Summary())
	})

	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Infof("Listening on http://%s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// Handlers
// =============================================================================

type formValues struct {
	URL      string
	MaxDepth int
	MaxURLs  int
	DepthCap int
	URLsCap  int
}

type view struct {
	Step         int
	Error        string
	Form         formValues
	RunID        string
	Crawl        *crawler.CrawlResult
	Selected     map[string]bool
	Methods      []string
	Method       string
	CustomParams string
	Report       *output.Report
}

func (s *Server) newView(step int) *view {
	return &view{
		Step: step,
		Form: formValues{
			MaxDepth: s.config.MaxDepth,
			MaxURLs:  s.config.MaxURLs,
			DepthCap: s.config.Server.MaxDepthCap,
			URLsCap:  s.config.Server.MaxURLsCap,
		},
		Methods: []string{"GET", "POST"},
		Method:  s.config.Fuzz.Method,
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	s.render(c, http.StatusOK, s.newView(1))
}

func (s *Server) handleStep(c *gin.Context) {
	switch c.PostForm("step") {
	case "1":
		s.handleCrawl(c)
	case "2":
		s.handleFuzz(c)
	default:
		c.Redirect(http.StatusSeeOther, "/")
	}
}

// handleCrawl validates the step one form, crawls and shows the file list.
func (s *Server) handleCrawl(c *gin.Context) {
	v := s.newView(1)
	v.Form.URL = strings.TrimSpace(c.PostForm("url"))
	v.Form.MaxDepth = clamp(formInt(c.PostForm("max_depth"), s.config.MaxDepth), 1, s.config.Server.MaxDepthCap)
	v.Form.MaxURLs = clamp(formInt(c.PostForm("max_urls"), s.config.MaxURLs), 1, s.config.Server.MaxURLsCap)

	if _, ok := scope.ParseSeed(v.Form.URL); !ok {
		v.Error = msgInvalidURL
		s.render(c, http.StatusBadRequest, v)
		return
	}

	runID := uuid.NewString()
	cr, err := crawler.New(
		crawler.WithConfig(s.config),
		crawler.WithLogger(s.base),
		crawler.WithMetrics(s.metrics),
		crawler.WithRunID(runID),
	)
	if err != nil {
		v.Error = err.Error()
		s.render(c, http.StatusInternalServerError, v)
		return
	}
	defer cr.Close()

	result, err := cr.Crawl(c.Request.Context(), v.Form.URL, v.Form.MaxDepth, v.Form.MaxURLs)
	if err != nil {
		v.Error = err.Error()
		s.render(c, http.StatusBadRequest, v)
		return
	}

	v.Step = 2
	v.RunID = result.RunID
	v.Crawl = result
	v.Selected = make(map[string]bool, len(result.Pages))
	for _, p := range result.Pages {
		v.Selected[p.URL] = true
	}
	s.render(c, http.StatusOK, v)
}

// handleFuzz fuzzes the selected files of the crawl carried in the form and
// shows the results.
func (s *Server) handleFuzz(c *gin.Context) {
	result, ok := restoreCrawl(c)
	if !ok {
		v := s.newView(1)
		v.Error = msgInvalidURL
		s.render(c, http.StatusBadRequest, v)
		return
	}

	v := s.newView(2)
	v.RunID = result.RunID
	v.Crawl = result
	v.CustomParams = c.PostForm("custom_params")
	v.Method = strings.ToUpper(strings.TrimSpace(c.DefaultPostForm("method", s.config.Fuzz.Method)))

	files := selectedFiles(result, c.PostFormArray("selected_files[]"))
	v.Selected = make(map[string]bool, len(files))
	for _, f := range files {
		v.Selected[f] = true
	}
	if len(files) == 0 {
		v.Error = msgNoFiles
		s.render(c, http.StatusBadRequest, v)
		return
	}

	method, err := crawler.NormalizeMethod(v.Method)
	if err != nil {
		v.Error = err.Error()
		s.render(c, http.StatusBadRequest, v)
		return
	}

	f, err := crawler.NewFuzzer(
		crawler.WithConfig(s.config),
		crawler.WithLogger(s.base),
		crawler.WithMetrics(s.metrics),
		crawler.WithRunID(result.RunID),
	)
	if err != nil {
		v.Error = err.Error()
		s.render(c, http.StatusInternalServerError, v)
		return
	}
	defer f.Close()

	report, err := f.FuzzAll(c.Request.Context(), files, method, crawler.ParseParamList(v.CustomParams))
	if err != nil {
		v.Error = err.Error()
		s.render(c, http.StatusBadRequest, v)
		return
	}

	v.Step = 3
	v.Report = crawler.Summarize(result, report).Report()
	s.render(c, http.StatusOK, v)
}

// render executes the page into a buffer so a template failure never
// produces a half-written page.
func (s *Server) render(c *gin.Context, status int, v *view) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, v); err != nil {
		s.logger.ErrorEvent(err, c.Request.URL.Path, "render")
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.RequestEvent(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Errorf("panic serving %s: %v", c.Request.URL.Path, r)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// =============================================================================
// Helpers
// =============================================================================

func stepClass(current, step int) string {
	switch {
	case step == current:
		return "active"
	case step < current:
		return "completed"
	default:
		return ""
	}
}

func formInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// restoreCrawl rebuilds the crawl carried by the step two form. Only URLs on
// the target's host are kept, so the form cannot point the fuzzer elsewhere.
func restoreCrawl(c *gin.Context) (*crawler.CrawlResult, bool) {
	target := c.PostForm("target")
	if _, ok := scope.ParseSeed(target); !ok {
		return nil, false
	}
	checker, err := scope.NewChecker(target, scope.ScopeRules{})
	if err != nil {
		return nil, false
	}

	result := &crawler.CrawlResult{
		RunID:     c.PostForm("run_id"),
		Target:    target,
		Cancelled: c.PostForm("cancelled") == "true",
		Pages:     make([]crawler.DiscoveredPage, 0),
	}
	if result.RunID == "" {
		result.RunID = uuid.NewString()
	}
	for _, u := range crawler.CleanParams(c.PostFormArray("visited[]")) {
		if checker.IsSameHost(u) {
			result.Visited = append(result.Visited, u)
		}
	}
	for _, u := range crawler.CleanParams(c.PostFormArray("discovered[]")) {
		if checker.IsSameHost(u) {
			result.Pages = append(result.Pages, crawler.NewDiscoveredPage(u, 0))
		}
	}
	return result, true
}

// selectedFiles keeps the submitted URLs that the crawl discovered, in
// submission order and without repeats.
func selectedFiles(result *crawler.CrawlResult, submitted []string) []string {
	known := make(map[string]bool, len(result.Pages))
	for _, p := range result.Pages {
		known[p.URL] = true
	}

	files := make([]string, 0, len(submitted))
	seen := make(map[string]bool, len(submitted))
	for _, u := range submitted {
		if known[u] && !seen[u] {
			seen[u] = true
			files = append(files, u)
		}
	}
	return files
}
