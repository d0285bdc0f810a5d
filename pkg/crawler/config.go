package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/ParamCrawl/internal/errors"
	fhttp "github.com/PentesterFlow/ParamCrawl/internal/http"
)

// DefaultParams is the parameter list probed when the caller supplies none.
var DefaultParams = []string{
	"id", "page", "user", "name", "search", "query", "q", "category", "cat",
	"action", "view", "file", "path", "url", "redirect", "return", "src",
	"debug", "admin", "mode", "type", "lang", "language", "sort", "order",
	"limit", "offset", "start", "end", "date", "time", "email", "username",
	"password", "token", "key", "api_key", "session", "sid", "callback",
	"data", "value", "content", "text", "message", "title", "description",
}

// DefaultErrorPatterns are matched case-insensitively against probe responses.
var DefaultErrorPatterns = []string{
	"error", "warning", "exception", "undefined", "invalid", "missing", "required",
}

// Config holds all crawler and fuzzer configuration.
type Config struct {
	// Target URL to crawl
	Target string `json:"target" yaml:"target"`

	// Maximum link depth; the seed is depth 0
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// Maximum number of distinct URLs fetched
	MaxURLs int `json:"max_urls" yaml:"max_urls"`

	// Crawl request timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Redirects followed per crawl fetch
	MaxRedirects int `json:"max_redirects" yaml:"max_redirects"`

	// Pause between crawl fetches
	CrawlDelay time.Duration `json:"crawl_delay" yaml:"crawl_delay"`

	UserAgent     string            `json:"user_agent" yaml:"user_agent"`
	CustomHeaders map[string]string `json:"custom_headers" yaml:"custom_headers"`
	SkipTLSVerify bool              `json:"skip_tls_verify" yaml:"skip_tls_verify"`

	// Parameter fuzzing
	Fuzz FuzzConfig `json:"fuzz" yaml:"fuzz"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Web form server
	Server ServerConfig `json:"server" yaml:"server"`

	Verbose bool `json:"verbose" yaml:"verbose"`
	Debug   bool `json:"debug" yaml:"debug"`
}

// FuzzConfig holds parameter fuzzing configuration.
type FuzzConfig struct {
	// GET or POST
	Method string `json:"method" yaml:"method"`

	// Parameters to probe; empty means DefaultParams
	Params []string `json:"params" yaml:"params"`

	// Value injected for each parameter
	Sentinel string `json:"sentinel" yaml:"sentinel"`

	// Body length change, in bytes, that must be exceeded to count
	LengthThreshold int `json:"length_threshold" yaml:"length_threshold"`

	// Regular expressions matched case-insensitively against test bodies
	ErrorPatterns []string `json:"error_patterns" yaml:"error_patterns"`

	// Pause between probe requests
	Delay time.Duration `json:"delay" yaml:"delay"`

	// Probe request timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// OutputConfig holds report output configuration.
type OutputConfig struct {
	Format   string `json:"format" yaml:"format"`
	FilePath string `json:"file_path" yaml:"file_path"`
	Pretty   bool   `json:"pretty" yaml:"pretty"`
}

// ServerConfig holds the web form server configuration.
type ServerConfig struct {
	Listen      string `json:"listen" yaml:"listen"`
	MaxDepthCap int    `json:"max_depth_cap" yaml:"max_depth_cap"`
	MaxURLsCap  int    `json:"max_urls_cap" yaml:"max_urls_cap"`
}

// DefaultConfig returns a configuration with the stock crawl and probe settings.
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:      3,
		MaxURLs:       100,
		Timeout:       15 * time.Second,
		MaxRedirects:  3,
		UserAgent:     fhttp.DefaultUserAgent,
		SkipTLSVerify: true,
		Fuzz:          DefaultFuzzConfig(),
		Output: OutputConfig{
			Format: "json",
			Pretty: true,
		},
		Server: ServerConfig{
			Listen:      "127.0.0.1:8080",
			MaxDepthCap: 10,
			MaxURLsCap:  500,
		},
	}
}

// DefaultFuzzConfig returns the stock probe settings.
func DefaultFuzzConfig() FuzzConfig {
	return FuzzConfig{
		Method:          "GET",
		Sentinel:        "test123",
		LengthThreshold: 10,
		ErrorPatterns:   append([]string(nil), DefaultErrorPatterns...),
		Delay:           100 * time.Millisecond,
		Timeout:         10 * time.Second,
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration. The target is not required here;
// it is checked when a crawl starts.
func (c *Config) Validate() error {
	if c.MaxDepth < 1 {
		return errors.NewValidationError("max_depth", "must be at least 1")
	}

	if c.MaxURLs < 1 {
		return errors.NewValidationError("max_urls", "must be at least 1")
	}

	if c.Timeout <= 0 {
		return errors.NewValidationError("timeout", "must be positive")
	}

	if c.MaxRedirects < 0 {
		return errors.NewValidationError("max_redirects", "must not be negative")
	}

	if c.CrawlDelay < 0 {
		return errors.NewValidationError("crawl_delay", "must not be negative")
	}

	return c.Fuzz.Validate()
}

// Validate validates the fuzzing configuration.
func (f *FuzzConfig) Validate() error {
	if _, err := NormalizeMethod(f.Method); err != nil {
		return err
	}

	if f.Sentinel == "" {
		return errors.NewValidationError("sentinel", "must not be empty")
	}

	if f.LengthThreshold < 0 {
		return errors.NewValidationError("length_threshold", "must not be negative")
	}

	if f.Delay < 0 {
		return errors.NewValidationError("delay", "must not be negative")
	}

	if f.Timeout <= 0 {
		return errors.NewValidationError("fuzz_timeout", "must be positive")
	}

	if _, err := compilePatterns(f.ErrorPatterns); err != nil {
		return err
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}

// NormalizeMethod upper-cases method and accepts only GET and POST.
func NormalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case "GET", "POST":
		return m, nil
	default:
		return "", errors.NewValidationError("method", fmt.Sprintf("unsupported method %q, use GET or POST", method))
	}
}

// CleanParams trims names, drops blanks and drops repeats, keeping order.
func CleanParams(params []string) []string {
	seen := make(map[string]bool, len(params))
	out := make([]string, 0, len(params))
	for _, p := range params {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ParseParamList splits newline-separated parameter names.
func ParseParamList(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return CleanParams(strings.Split(text, "\n"))
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, errors.NewValidationError("error_patterns", fmt.Sprintf("invalid pattern %q: %v", p, err))
		}
		out = append(out, re)
	}
	return out, nil
}
