package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PentesterFlow/ParamCrawl/internal/errors"
	fhttp "github.com/PentesterFlow/ParamCrawl/internal/http"
	"github.com/PentesterFlow/ParamCrawl/internal/logger"
	"github.com/PentesterFlow/ParamCrawl/internal/metrics"
	"github.com/PentesterFlow/ParamCrawl/internal/ratelimit"
	"github.com/PentesterFlow/ParamCrawl/internal/scope"
)

// Fuzzer injects one parameter at a time into a URL and compares each
// response with a baseline request.
type Fuzzer struct {
	config     FuzzConfig
	client     *fhttp.Client
	classifier *Classifier
	limiter    *ratelimit.Limiter
	logger     *logger.Logger
	metrics    *metrics.Collector
	runID      string
}

// NewFuzzer creates a fuzzer with the given options.
func NewFuzzer(opts ...Option) (*Fuzzer, error) {
	s, err := buildSettings("fuzzer", opts)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return newFuzzer(s)
}

func newFuzzer(s *settings) (*Fuzzer, error) {
	classifier, err := NewClassifier(s.config.Fuzz)
	if err != nil {
		return nil, err
	}

	method, _ := NormalizeMethod(s.config.Fuzz.Method)
	cfg := s.config.Fuzz
	cfg.Method = method

	clientCfg := fhttp.ProbeClientConfig()
	clientCfg.Timeout = cfg.Timeout
	clientCfg.UserAgent = s.config.UserAgent
	clientCfg.Headers = s.config.CustomHeaders
	clientCfg.SkipTLSVerify = s.config.SkipTLSVerify

	return &Fuzzer{
		config:     cfg,
		client:     fhttp.NewClient(clientCfg),
		classifier: classifier,
		limiter:    ratelimit.NewDelayLimiter(cfg.Delay),
		logger:     s.logger,
		metrics:    s.metrics,
		runID:      s.runID,
	}, nil
}

// EffectiveParams returns the cleaned caller list, or the configured list,
// or DefaultParams, whichever is first non-empty.
func (f *Fuzzer) EffectiveParams(params []string) []string {
	if cleaned := CleanParams(params); len(cleaned) > 0 {
		return cleaned
	}
	if cleaned := CleanParams(f.config.Params); len(cleaned) > 0 {
		return cleaned
	}
	return append([]string(nil), DefaultParams...)
}

// resolveMethod falls back to the configured method when method is empty.
func (f *Fuzzer) resolveMethod(method string) (string, error) {
	if method == "" {
		return f.config.Method, nil
	}
	return NormalizeMethod(method)
}

// Fuzz probes targetURL and returns only the interesting probes.
func (f *Fuzzer) Fuzz(ctx context.Context, targetURL, method string, params []string) ([]ParameterProbe, error) {
	probes, err := f.Probe(ctx, targetURL, method, params)
	return filterInteresting(probes), err
}

// Probe sends one baseline request and one request per parameter, and
// returns a probe for every parameter in order. If the baseline fails every
// probe is marked baseline_failed; a failed test request marks only its own
// probe test_failed. On cancellation the probes gathered so far are returned
// with a cancellation error.
func (f *Fuzzer) Probe(ctx context.Context, targetURL, method string, params []string) ([]ParameterProbe, error) {
	seed, ok := scope.ParseSeed(targetURL)
	if !ok {
		return nil, errors.NewValidationError("url", fmt.Sprintf("not an absolute http(s) URL: %q", targetURL))
	}
	targetURL = seed.String()

	method, err := f.resolveMethod(method)
	if err != nil {
		return nil, err
	}

	params = f.EffectiveParams(params)

	log := f.logger.WithURL(targetURL)
	f.metrics.RecordURLFuzzed()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, errors.NewCancelledError(targetURL, "baseline")
	}

	baseline, err := f.send(ctx, method, targetURL, nil)
	f.metrics.RecordBaseline()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError(targetURL, "baseline")
		}
		log.ErrorEvent(err, targetURL, "baseline")
		return f.failAll(targetURL, method, params), nil
	}

	probes := make([]ParameterProbe, 0, len(params))
	for _, param := range params {
		if err := f.limiter.Wait(ctx); err != nil {
			return probes, errors.NewCancelledError(targetURL, "probe")
		}

		probe, err := f.probeOne(ctx, targetURL, method, param, baseline)
		if err != nil {
			return probes, err
		}

		f.metrics.RecordProbe(string(probe.Reason), probe.Interesting)
		log.ProbeEvent(targetURL, param, method, string(probe.Reason), probe.Interesting)
		probes = append(probes, probe)
	}

	return probes, nil
}

func (f *Fuzzer) probeOne(ctx context.Context, targetURL, method, param string, baseline *fhttp.Response) (ParameterProbe, error) {
	probe := ParameterProbe{
		URL:            targetURL,
		Param:          param,
		Method:         method,
		BaselineCode:   baseline.StatusCode,
		BaselineLength: len(baseline.Body),
	}

	values := url.Values{}
	values.Set(param, f.config.Sentinel)

	test, err := f.send(ctx, method, targetURL, values)
	if err != nil {
		if ctx.Err() != nil {
			return probe, errors.NewCancelledError(targetURL, "probe")
		}
		f.logger.ErrorEvent(err, targetURL, "probe "+param)
		probe.Reason = ReasonTestFailed
		return probe, nil
	}

	probe.TestCode = test.StatusCode
	probe.TestLength = len(test.Body)
	probe.Duration = test.Duration
	probe.Reason = f.classifier.Classify(&Observation{
		Param:        param,
		Sentinel:     f.config.Sentinel,
		BaselineCode: baseline.StatusCode,
		BaselineBody: baseline.Body,
		TestCode:     test.StatusCode,
		TestBody:     test.Body,
	})
	probe.Interesting = probe.Reason.Interesting()
	return probe, nil
}

func (f *Fuzzer) failAll(targetURL, method string, params []string) []ParameterProbe {
	probes := make([]ParameterProbe, 0, len(params))
	for _, param := range params {
		probes = append(probes, ParameterProbe{
			URL:    targetURL,
			Param:  param,
			Method: method,
			Reason: ReasonBaselineFailed,
		})
		f.metrics.RecordProbe(string(ReasonBaselineFailed), false)
	}
	return probes
}

// send issues one request and records it in the metrics collector.
func (f *Fuzzer) send(ctx context.Context, method, targetURL string, values url.Values) (*fhttp.Response, error) {
	f.metrics.RecordRequest()
	resp, err := f.client.Do(ctx, method, targetURL, values)
	if err != nil {
		f.metrics.RecordError(errors.GetErrorType(err).String())
		return nil, err
	}
	f.metrics.RecordStatusCode(resp.StatusCode)
	f.metrics.RecordResponseTime(resp.Duration)
	f.metrics.RecordBytes(int64(len(resp.Body)))
	return resp, nil
}

// FuzzAll fuzzes each URL in order and collects interesting probes per URL.
// Invalid URLs are logged and skipped. On cancellation the partial report is
// returned with Cancelled set.
func (f *Fuzzer) FuzzAll(ctx context.Context, urls []string, method string, params []string) (*FuzzReport, error) {
	method, err := f.resolveMethod(method)
	if err != nil {
		return nil, err
	}
	params = f.EffectiveParams(params)

	report := NewFuzzReport(method, params)
	report.RunID = f.runID
	defer func() {
		report.CompletedAt = time.Now()
	}()

	f.logger.Infof("Fuzzing %d URLs with %d parameters (%s)", len(urls), len(params), method)
	f.logger.Debugf("Classifier chain: %v", f.classifier.Rules())
	defer func() {
		pacing := f.limiter.Stats()
		f.logger.Debugf("Probe pacing: %d waits at %v spacing", pacing.Waits, pacing.Delay)
	}()

	for _, target := range urls {
		target = strings.TrimSpace(target)
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		probes, err := f.Probe(ctx, target, method, params)
		if err != nil {
			if errors.IsValidation(err) {
				f.logger.Warnf("Skipping %s: %v", target, err)
				continue
			}
			report.Add(target, probes)
			report.Cancelled = true
			break
		}
		report.Add(target, probes)
	}

	return report, nil
}

// Config returns the effective fuzz configuration.
func (f *Fuzzer) Config() FuzzConfig {
	return f.config
}

// RunID returns the run identifier.
func (f *Fuzzer) RunID() string {
	return f.runID
}

// Metrics returns the metrics collector.
func (f *Fuzzer) Metrics() *metrics.Collector {
	return f.metrics
}

// Close releases idle connections.
func (f *Fuzzer) Close() {
	f.client.Close()
}
