package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/PentesterFlow/ParamCrawl/internal/logger"
	"github.com/PentesterFlow/ParamCrawl/internal/metrics"
	"github.com/PentesterFlow/ParamCrawl/internal/output"
	"github.com/PentesterFlow/ParamCrawl/internal/progress"
	"github.com/PentesterFlow/ParamCrawl/internal/web"
	"github.com/PentesterFlow/ParamCrawl/pkg/crawler"
)

var (
	version = "1.0.0"

	// Global flags
	configFile   string
	verbose      bool
	debug        bool
	outputFile   string
	outputFormat string
	noColor      bool
	noProgress   bool

	// Crawl flags
	maxDepth     int
	maxURLs      int
	timeout      int
	maxRedirects int
	crawlDelay   time.Duration
	userAgent    string

	// Fuzz flags
	method            string
	params            []string
	paramsFile        string
	urlsFile          string
	sentinel          string
	lengthThreshold   int
	probeDelay        time.Duration
	includeDiscovered bool

	// Serve flags
	listenAddr string

	// Config flags
	forceOverwrite bool
)

const defaultConfigPath = "paramcrawl.yaml"

func main() {
	rootCmd := &cobra.Command{
		Use:   "paramcrawl",
		Short: "ParamCrawl - Website crawler and parameter fuzzer",
		Long: `ParamCrawl - Discover the pages of a website and fuzz them for hidden parameters.

Crawls a single host breadth-first, then probes each selected page with candidate
parameter names and reports the ones that change the response.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	crawlCmd := &cobra.Command{
		Use:   "crawl [target]",
		Short: "Crawl a target URL",
		Long:  "Crawl a target URL and list the pages discovered on its host.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawl,
	}

	fuzzCmd := &cobra.Command{
		Use:   "fuzz [url...]",
		Short: "Fuzz URLs for hidden parameters",
		Long:  "Probe each URL with candidate parameter names and report those that change the response.",
		RunE:  runFuzz,
	}

	scanCmd := &cobra.Command{
		Use:   "scan [target]",
		Short: "Crawl a target and fuzz every discovered page",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive crawl and fuzz form",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file",
		Long: `Write the default settings, or those loaded with --config, to path
(default ` + defaultConfigPath + `). A path ending in .json is written as JSON, anything else as YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfigInit,
	}
	configInitCmd.Flags().BoolVar(&forceOverwrite, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "", "Output format ("+strings.Join(output.Formats, ", ")+")")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored summary")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable the live status line")

	for _, cmd := range []*cobra.Command{crawlCmd, scanCmd, serveCmd} {
		cmd.Flags().IntVarP(&maxDepth, "max-depth", "d", 3, "Maximum crawl depth")
		cmd.Flags().IntVarP(&maxURLs, "max-urls", "m", 100, "Maximum number of URLs to crawl")
		cmd.Flags().IntVarP(&timeout, "timeout", "t", 15, "Crawl request timeout in seconds")
		cmd.Flags().IntVar(&maxRedirects, "max-redirects", 3, "Redirects followed per crawl request")
		cmd.Flags().DurationVar(&crawlDelay, "crawl-delay", 0, "Pause between crawl requests")
		cmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header")
	}

	for _, cmd := range []*cobra.Command{fuzzCmd, scanCmd, serveCmd} {
		cmd.Flags().StringVar(&sentinel, "sentinel", "test123", "Value injected for each parameter")
		cmd.Flags().IntVar(&lengthThreshold, "threshold", 10, "Body length change that must be exceeded")
		cmd.Flags().DurationVar(&probeDelay, "delay", 100*time.Millisecond, "Pause between probe requests")
	}

	for _, cmd := range []*cobra.Command{fuzzCmd, scanCmd} {
		cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method for probes (GET or POST)")
		cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Parameter to probe (repeatable, default: built-in list)")
		cmd.Flags().StringVar(&paramsFile, "params-file", "", "File with one parameter per line")
	}

	fuzzCmd.Flags().StringVar(&urlsFile, "urls-file", "", "File with one URL per line")
	scanCmd.Flags().BoolVar(&includeDiscovered, "include-discovered", false, "Also probe each page's query and form parameters")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (default 127.0.0.1:8080)")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(fuzzCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// loadConfig starts from the config file, or the defaults, and applies the
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*crawler.Config, error) {
	config := crawler.DefaultConfig()
	if configFile != "" {
		fileConfig, err := crawler.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	flags := cmd.Flags()
	if flags.Changed("max-depth") {
		config.MaxDepth = maxDepth
	}
	if flags.Changed("max-urls") {
		config.MaxURLs = maxURLs
	}
	if flags.Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if flags.Changed("max-redirects") {
		config.MaxRedirects = maxRedirects
	}
	if flags.Changed("crawl-delay") {
		config.CrawlDelay = crawlDelay
	}
	if flags.Changed("user-agent") {
		config.UserAgent = userAgent
	}
	if flags.Changed("method") {
		config.Fuzz.Method = method
	}
	if flags.Changed("sentinel") {
		config.Fuzz.Sentinel = sentinel
	}
	if flags.Changed("threshold") {
		config.Fuzz.LengthThreshold = lengthThreshold
	}
	if flags.Changed("delay") {
		config.Fuzz.Delay = probeDelay
	}
	if flags.Changed("format") {
		config.Output.Format = outputFormat
	}
	if flags.Changed("output") {
		config.Output.FilePath = outputFile
	}

	config.Verbose = config.Verbose || verbose
	config.Debug = config.Debug || debug

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func newLogger(config *crawler.Config) *logger.Logger {
	level := logger.WarnLevel
	if config.Debug {
		level = logger.DebugLevel
	} else if config.Verbose {
		level = logger.InfoLevel
	}
	return logger.New(logger.Config{
		Level:  level,
		Pretty: true,
		Output: os.Stderr,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// startProgress shows a live status line on an interactive stderr and
// returns the function that clears it.
func startProgress(ctx context.Context, config *crawler.Config, m *metrics.Collector, maxURLs int) func() {
	if noProgress || config.Verbose || config.Debug || !isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}
	d := progress.New(os.Stderr)
	d.Start(ctx, m, 250*time.Millisecond, maxURLs)
	return d.Stop
}

// collectParams merges --param values with the lines of --params-file.
func collectParams() ([]string, error) {
	list := append([]string(nil), params...)
	if paramsFile != "" {
		data, err := os.ReadFile(paramsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read params file: %w", err)
		}
		list = append(list, crawler.ParseParamList(string(data))...)
	}
	return crawler.CleanParams(list), nil
}

// collectURLs merges positional URLs with the lines of --urls-file.
func collectURLs(args []string) ([]string, error) {
	urls := append([]string(nil), args...)
	if urlsFile != "" {
		data, err := os.ReadFile(urlsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read urls file: %w", err)
		}
		urls = append(urls, crawler.ParseParamList(string(data))...)
	}
	return crawler.CleanParams(urls), nil
}

func newCrawler(config *crawler.Config, log *logger.Logger, m *metrics.Collector) (*crawler.Crawler, error) {
	c, err := crawler.New(
		crawler.WithConfig(config),
		crawler.WithLogger(log),
		crawler.WithMetrics(m),
		crawler.WithRunID(uuid.NewString()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create crawler: %w", err)
	}
	return c, nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	config.Target = args[0]

	m := metrics.New()
	c, err := newCrawler(config, newLogger(config), m)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signalContext()
	defer stop()

	printBanner("Crawl", config.Target, config)
	stopProgress := startProgress(ctx, config, m, config.MaxURLs)
	result, err := c.Start(ctx)
	stopProgress()
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	summary := crawler.Summarize(result, nil)
	if err := writeReport(config, summary.Report()); err != nil {
		return err
	}
	printSummary(summary, m.Snapshot())
	return nil
}

func runFuzz(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	urls, err := collectURLs(args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs to fuzz: pass them as arguments or with --urls-file")
	}
	paramList, err := collectParams()
	if err != nil {
		return err
	}

	m := metrics.New()
	f, err := crawler.NewFuzzer(
		crawler.WithConfig(config),
		crawler.WithLogger(newLogger(config)),
		crawler.WithMetrics(m),
		crawler.WithRunID(uuid.NewString()),
	)
	if err != nil {
		return fmt.Errorf("failed to create fuzzer: %w", err)
	}
	defer f.Close()

	ctx, stop := signalContext()
	defer stop()

	printBanner("Fuzz", fmt.Sprintf("%d URLs", len(urls)), config)
	stopProgress := startProgress(ctx, config, m, 0)
	report, err := f.FuzzAll(ctx, urls, config.Fuzz.Method, paramList)
	stopProgress()
	if err != nil {
		return fmt.Errorf("fuzz failed: %w", err)
	}

	summary := crawler.Summarize(nil, report)
	if len(urls) == 1 {
		summary.Target = urls[0]
	}
	if err := writeReport(config, summary.Report()); err != nil {
		return err
	}
	printSummary(summary, m.Snapshot())
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	config.Target = args[0]

	paramList, err := collectParams()
	if err != nil {
		return err
	}

	m := metrics.New()
	c, err := newCrawler(config, newLogger(config), m)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signalContext()
	defer stop()

	printBanner("Scan", config.Target, config)
	stopProgress := startProgress(ctx, config, m, 0)
	result, report, err := c.Scan(ctx, config.Target, config.MaxDepth, config.MaxURLs, config.Fuzz.Method, paramList, includeDiscovered)
	stopProgress()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	summary := crawler.Summarize(result, report)
	if err := writeReport(config, summary.Report()); err != nil {
		return err
	}
	printSummary(summary, m.Snapshot())
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		config.Server.Listen = listenAddr
	}

	log := newLogger(config)
	if !config.Debug && !config.Verbose {
		log.SetLevel(logger.InfoLevel)
	}

	srv, err := web.New(config, log, metrics.New())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Fprintf(os.Stderr, "%s http://%s\n", color.CyanString("Serving on"), config.Server.Listen)
	return srv.Run(ctx, config.Server.Listen)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := defaultConfigPath
	if len(args) == 1 {
		path = args[0]
	}
	if !forceOverwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.SaveToFile(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%s %s\n", color.GreenString("Wrote"), path)
	return nil
}

// createOutput opens the report file.
var createOutput = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeReport writes the report to the configured file, or stdout.
func writeReport(config *crawler.Config, report *output.Report) error {
	var w io.Writer = os.Stdout
	var file io.WriteCloser
	if config.Output.FilePath != "" {
		f, err := createOutput(config.Output.FilePath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w, file = f, f
	}

	writer, err := output.NewWriter(w, output.Config{
		Format: config.Output.Format,
		Pretty: config.Output.Pretty,
	})
	if err != nil {
		return err
	}

	if err := writer.WriteReport(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	if file != nil {
		return file.Close()
	}
	return nil
}
