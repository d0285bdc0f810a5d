// Package http provides the HTTP client used for crawl fetches and fuzz probes.
package http

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PentesterFlow/ParamCrawl/internal/errors"
	"golang.org/x/net/html/charset"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Client wraps net/http with the crawl and probe request shapes.
type Client struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
	maxBody   int64
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	Timeout       time.Duration
	MaxRedirects  int
	UserAgent     string
	Headers       map[string]string
	SkipTLSVerify bool
	MaxBodySize   int64

	// SameHostRedirects stops at a redirect that leaves the original host
	// and returns the redirect response itself.
	SameHostRedirects bool
}

// DefaultClientConfig returns the crawl fetch defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:       15 * time.Second,
		MaxRedirects:  3,
		UserAgent:     DefaultUserAgent,
		SkipTLSVerify: true,
		MaxBodySize:   5 * 1024 * 1024,
	}
}

// ProbeClientConfig returns the fuzz probe defaults. Redirects are not followed.
func ProbeClientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Timeout = 10 * time.Second
	cfg.MaxRedirects = 0
	return cfg
}

// NewClient creates a new HTTP client.
func NewClient(config ClientConfig) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	maxRedirects := config.MaxRedirects
	sameHost := config.SameHostRedirects
	maxBody := config.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultClientConfig().MaxBodySize
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return http.ErrUseLastResponse
				}
				if sameHost && !strings.EqualFold(req.URL.Host, via[0].URL.Host) {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: userAgent,
		headers:   config.Headers,
		maxBody:   maxBody,
	}
}

// Response is a fetched HTTP response with its body fully read.
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Get fetches a page for crawling. Any status other than 200 is an error,
// but the response is still returned so callers can record the status.
// The body is decoded to UTF-8 according to the declared charset.
func (c *Client) Get(ctx context.Context, targetURL string) (*Response, error) {
	start := time.Now()
	result := &Response{URL: targetURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return result, errors.NewParseError(targetURL, "request_creation", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	c.applyHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return result, errors.Categorize(err, targetURL)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.FinalURL = resp.Request.URL.String()
	result.ContentType = resp.Header.Get("Content-Type")

	if resp.StatusCode != http.StatusOK {
		result.Duration = time.Since(start)
		return result, errors.NewStatusError(targetURL, resp.StatusCode)
	}

	var body io.Reader = io.LimitReader(resp.Body, c.maxBody)
	if decoded, err := charset.NewReader(body, result.ContentType); err == nil {
		body = decoded
	}

	result.Body, err = io.ReadAll(body)
	if err != nil {
		return result, errors.NewNetworkError(targetURL, "body_read", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Do sends a probe request. For GET the params are appended to the query
// string; for POST they are sent as a form body. Every status is returned
// as-is; only transport failures produce an error.
func (c *Client) Do(ctx context.Context, method, targetURL string, params url.Values) (*Response, error) {
	start := time.Now()
	method = strings.ToUpper(method)
	result := &Response{URL: targetURL}

	reqURL := targetURL
	var body io.Reader
	encoded := params.Encode()

	switch method {
	case http.MethodPost:
		body = strings.NewReader(encoded)
	default:
		if encoded != "" {
			sep := "?"
			if strings.Contains(targetURL, "?") {
				sep = "&"
			}
			reqURL = targetURL + sep + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return result, errors.NewParseError(targetURL, "request_creation", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	c.applyHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return result, errors.Categorize(err, targetURL)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.FinalURL = resp.Request.URL.String()
	result.ContentType = resp.Header.Get("Content-Type")

	result.Body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return result, errors.NewNetworkError(targetURL, "body_read", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

// Close closes idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
