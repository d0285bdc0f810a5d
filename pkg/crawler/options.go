package crawler

import (
	"time"

	"github.com/PentesterFlow/ParamCrawl/internal/logger"
	"github.com/PentesterFlow/ParamCrawl/internal/metrics"
)

// settings is what options configure. It is shared by New and NewFuzzer.
type settings struct {
	config  *Config
	base    *logger.Logger // as supplied, without component or run fields
	logger  *logger.Logger
	metrics *metrics.Collector
	runID   string
}

// Option is a functional option for configuring a Crawler or Fuzzer.
type Option func(*settings) error

// WithConfig replaces the whole configuration. Options after it still apply.
func WithConfig(config *Config) Option {
	return func(s *settings) error {
		if config != nil {
			s.config = config.Clone()
		}
		return nil
	}
}

// WithTarget sets the seed URL used by Start.
func WithTarget(url string) Option {
	return func(s *settings) error {
		s.config.Target = url
		return nil
	}
}

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) Option {
	return func(s *settings) error {
		if depth < 1 {
			depth = 1
		}
		s.config.MaxDepth = depth
		return nil
	}
}

// WithMaxURLs sets the maximum number of URLs fetched per crawl.
func WithMaxURLs(n int) Option {
	return func(s *settings) error {
		if n < 1 {
			n = 1
		}
		s.config.MaxURLs = n
		return nil
	}
}

// WithTimeout sets the crawl request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) error {
		s.config.Timeout = timeout
		return nil
	}
}

// WithMaxRedirects sets how many redirects a crawl fetch follows.
func WithMaxRedirects(n int) Option {
	return func(s *settings) error {
		s.config.MaxRedirects = n
		return nil
	}
}

// WithCrawlDelay sets the pause between crawl fetches.
func WithCrawlDelay(delay time.Duration) Option {
	return func(s *settings) error {
		s.config.CrawlDelay = delay
		return nil
	}
}

// WithUserAgent sets the user agent.
func WithUserAgent(ua string) Option {
	return func(s *settings) error {
		s.config.UserAgent = ua
		return nil
	}
}

// WithCustomHeaders sets custom headers sent with every request.
func WithCustomHeaders(headers map[string]string) Option {
	return func(s *settings) error {
		if s.config.CustomHeaders == nil {
			s.config.CustomHeaders = make(map[string]string)
		}
		for k, v := range headers {
			s.config.CustomHeaders[k] = v
		}
		return nil
	}
}

// WithSkipTLSVerify toggles certificate verification.
func WithSkipTLSVerify(skip bool) Option {
	return func(s *settings) error {
		s.config.SkipTLSVerify = skip
		return nil
	}
}

// WithMethod sets the default probe method.
func WithMethod(method string) Option {
	return func(s *settings) error {
		m, err := NormalizeMethod(method)
		if err != nil {
			return err
		}
		s.config.Fuzz.Method = m
		return nil
	}
}

// WithParams sets the default probe parameter list.
func WithParams(params ...string) Option {
	return func(s *settings) error {
		s.config.Fuzz.Params = CleanParams(params)
		return nil
	}
}

// WithSentinel sets the value injected for each parameter.
func WithSentinel(sentinel string) Option {
	return func(s *settings) error {
		s.config.Fuzz.Sentinel = sentinel
		return nil
	}
}

// WithLengthThreshold sets the body length change that must be exceeded.
func WithLengthThreshold(n int) Option {
	return func(s *settings) error {
		s.config.Fuzz.LengthThreshold = n
		return nil
	}
}

// WithErrorPatterns replaces the error patterns.
func WithErrorPatterns(patterns ...string) Option {
	return func(s *settings) error {
		s.config.Fuzz.ErrorPatterns = patterns
		return nil
	}
}

// WithProbeDelay sets the pause between probe requests.
func WithProbeDelay(delay time.Duration) Option {
	return func(s *settings) error {
		s.config.Fuzz.Delay = delay
		return nil
	}
}

// WithProbeTimeout sets the probe request timeout.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(s *settings) error {
		s.config.Fuzz.Timeout = timeout
		return nil
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(s *settings) error {
		s.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(s *settings) error {
		s.config.Debug = debug
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) error {
		s.logger = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *settings) error {
		s.metrics = m
		return nil
	}
}

// WithRunID sets the run identifier attached to logs and results.
func WithRunID(id string) Option {
	return func(s *settings) error {
		s.runID = id
		return nil
	}
}

// buildSettings applies opts over the defaults and fills in the logger,
// metrics collector and run ID when no option supplied them.
func buildSettings(component string, opts []Option) (*settings, error) {
	s := &settings{config: DefaultConfig()}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	if s.logger == nil {
		logLevel := logger.WarnLevel
		if s.config.Debug {
			logLevel = logger.DebugLevel
		} else if s.config.Verbose {
			logLevel = logger.InfoLevel
		}
		s.logger = logger.New(logger.Config{
			Level:  logLevel,
			Pretty: true,
		})
	}
	s.base = s.logger

	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	if s.runID == "" {
		s.runID = newRunID()
	}
	s.tag(component)

	return s, nil
}

// tag derives the component logger from the base logger.
func (s *settings) tag(component string) {
	s.logger = s.base.WithComponent(component).WithRun(s.runID)
}
