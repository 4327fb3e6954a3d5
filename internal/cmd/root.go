// Package cmd provides the command-line interface for apiharvest.
// It handles command parsing, configuration loading and the harvest
// run loop over the selected targets.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/apiharvest/apiharvest/internal/config"
	"github.com/apiharvest/apiharvest/internal/crawl"
	"github.com/apiharvest/apiharvest/internal/extract"
	"github.com/apiharvest/apiharvest/internal/httpx"
	"github.com/apiharvest/apiharvest/internal/logging"
	"github.com/apiharvest/apiharvest/internal/metrics"
	"github.com/apiharvest/apiharvest/internal/sink"
	"github.com/apiharvest/apiharvest/internal/target"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apiharvest [target-id...]",
	Short: "A declarative crawler for paginated JSON APIs",
	Long: `ApiHarvest walks paginated HTTP APIs described in a targets file,
maps the raw items onto flat records and appends them to CSV, JSONL
or SQLite outputs. Without arguments every configured target is
harvested in file order.`,
	Args: cobra.ArbitraryArgs,
	RunE: runHarvest,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./apiharvest.yml)")

	// Configuration management flags
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Target selection flags
	rootCmd.Flags().String("targets", "./targets.yml", "Path to the targets YAML file")

	// Pagination flags
	rootCmd.Flags().StringP("strategy", "s", "auto", "Paging strategy: auto, sequential, batch or streaming")
	rootCmd.Flags().IntP("workers", "w", 2, "Number of concurrent page fetches")
	rootCmd.Flags().Int("detail-workers", 2, "Number of concurrent detail fetches per page")
	rootCmd.Flags().Int("batch-size", 0, "Pages per batch window (0=workers)")
	rootCmd.Flags().IntP("start-page", "p", 1, "First page number to fetch")
	rootCmd.Flags().Int("page-size", 20, "Fallback page size for targets that omit one")
	rootCmd.Flags().Int("empty-page-limit", 3, "Consecutive empty pages that end a session")

	// HTTP flags
	rootCmd.Flags().DurationP("timeout", "t", 30*time.Second, "HTTP request timeout per attempt")
	rootCmd.Flags().DurationP("delay", "r", 0, "Minimum spacing between requests per host")
	rootCmd.Flags().StringP("user-agent", "u", "apiharvest/1.0", "HTTP User-Agent header")

	// Retry backoff flags
	rootCmd.Flags().Float64("backoff-base", 3, "Retry backoff exponent base in seconds")
	rootCmd.Flags().Duration("backoff-jitter", 10*time.Second, "Upper bound of the random backoff jitter")
	rootCmd.Flags().Duration("backoff-cap", 10*time.Minute, "Ceiling on a single retry delay")

	// Business-failure flags
	rootCmd.Flags().StringSlice("failure-keywords", []string{}, "Extra keywords that mark a decoded response as failed")

	// Output flags
	rootCmd.Flags().StringP("format", "f", "csv", "Output format: csv, jsonl or sqlite")
	rootCmd.Flags().StringP("out-dir", "o", "./out", "Directory for file-based outputs")
	rootCmd.Flags().StringP("db", "d", "./apiharvest.db", "Path to SQLite database file")

	// Observability flags
	rootCmd.Flags().String("status-file", "", "Progress snapshot path (empty disables)")
	rootCmd.Flags().String("metrics-addr", "", "Prometheus listen address, e.g. :9090 (empty disables)")
	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.Flags().String("log-file", "", "Log file path (empty disables file logging)")

	// Bind flags to viper
	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"targets_path", "targets"},
		{"strategy", "strategy"},
		{"workers", "workers"},
		{"detail_workers", "detail-workers"},
		{"batch_size", "batch-size"},
		{"start_page", "start-page"},
		{"page_size", "page-size"},
		{"empty_page_limit", "empty-page-limit"},
		{"request_timeout", "timeout"},
		{"request_delay", "delay"},
		{"user_agent", "user-agent"},
		{"backoff_base", "backoff-base"},
		{"backoff_jitter", "backoff-jitter"},
		{"backoff_cap", "backoff-cap"},
		{"failure_keywords", "failure-keywords"},
		{"format", "format"},
		{"output_dir", "out-dir"},
		{"database_path", "db"},
		{"status_file", "status-file"},
		{"metrics_addr", "metrics-addr"},
		{"logging.level", "log-level"},
		{"logging.file", "log-file"},
	}

	for _, bind := range bindFlags {
		if err := viper.BindPFlag(bind.viperKey, rootCmd.Flags().Lookup(bind.flagName)); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("apiharvest")
	}

	viper.AutomaticEnv() // read in environment variables that match
	viper.SetEnvPrefix("AH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("apiharvest/%s", version)
	}
	return "apiharvest/dev"
}

func showCurrentConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	// Validate configuration before showing it
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	// Add header comment to the output
	fmt.Printf("# Current apiharvest configuration\n")
	fmt.Printf("# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("# Configuration file search paths: ./apiharvest.yml\n")
	fmt.Printf("# Environment variables prefix: AH_\n\n")

	fmt.Print(string(yamlData))

	// Add footer with additional information
	fmt.Printf("\n# Configuration source priority:\n")
	fmt.Printf("# 1. Command-line arguments (highest priority)\n")
	fmt.Printf("# 2. Environment variables (AH_ prefix)\n")
	fmt.Printf("# 3. Configuration file (apiharvest.yml)\n")
	fmt.Printf("# 4. Default values (lowest priority)\n")

	return nil
}

func runHarvest(cmd *cobra.Command, args []string) error {
	// Handle --show-config flag first
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg := config.DefaultConfig()

	// Override with viper values
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Update User-Agent with dynamic version if not explicitly set
	if !cmd.Flags().Changed("user-agent") && cfg.UserAgent == "apiharvest/1.0" {
		cfg.UserAgent = generateUserAgent()
	}

	// Handle --show-config: display current configuration and exit
	if showConfig {
		return showCurrentConfig(cfg)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCloser, err := logging.Setup(logging.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    cfg.Logging.Console,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	store, err := target.LoadFile(cfg.TargetsPath)
	if err != nil {
		return fmt.Errorf("failed to load targets from %s: %w", cfg.TargetsPath, err)
	}

	targets, err := resolveTargets(store, args)
	if err != nil {
		return err
	}

	logger.Info("Harvest starting",
		"targets", len(targets),
		"strategy", cfg.Strategy,
		"workers", cfg.Workers,
		"start_page", cfg.StartPage,
		"format", cfg.Format)

	harvester, err := initializeHarvester(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize harvester: %w", err)
	}
	defer harvester.Close()

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	return harvester.Run(ctx, targets)
}

// resolveTargets maps positional ids onto loaded targets. Without
// arguments every configured target is harvested in file order.
func resolveTargets(store target.Store, ids []string) ([]*target.Target, error) {
	if len(ids) == 0 {
		ids = store.IDs()
	}
	targets := make([]*target.Target, 0, len(ids))
	for _, id := range ids {
		t, ok := store.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown target %q (configured: %s)", id, strings.Join(store.IDs(), ", "))
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// harvester bundles the wired components of one CLI invocation.
type harvester struct {
	cfg           *config.Config
	logger        *slog.Logger
	metrics       *metrics.Metrics
	metricsServer *http.Server
	client        *httpx.Client
	engine        *crawl.Engine
	sink          sink.Sink
}

// initializeHarvester creates and configures the harvest components
func initializeHarvester(cfg *config.Config, logger *slog.Logger) (*harvester, error) {
	m := metrics.New()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		logger.Info("Metrics server listening", "addr", cfg.MetricsAddr)
	}

	snk, err := sink.New(cfg.Format, cfg.OutputDir, cfg.DatabasePath)
	if err != nil {
		if metricsServer != nil {
			_ = metricsServer.Close()
		}
		return nil, err
	}

	observer := newLogObserver(logger)

	client := httpx.New(httpx.Options{
		Timeout:      cfg.RequestTimeout,
		UserAgent:    cfg.UserAgent,
		PerHostDelay: cfg.RequestDelay,
		Backoff: httpx.Backoff{
			Base:   cfg.BackoffBase,
			Jitter: cfg.BackoffJitter,
			Cap:    cfg.BackoffCap,
		},
		FailureKeywords: cfg.FailureKeywords,
		Observer:        observer,
		Metrics:         m,
		Logger:          logger,
	})

	var progress crawl.Progress = crawl.NopProgress{}
	if cfg.StatusFile != "" {
		progress = crawl.NewFileProgress(cfg.StatusFile)
	}

	strategy, err := crawl.ParseStrategy(cfg.Strategy)
	if err != nil {
		client.Close()
		if metricsServer != nil {
			_ = metricsServer.Close()
		}
		return nil, err
	}

	engine := crawl.New(client, crawl.Options{
		Strategy:       strategy,
		Workers:        cfg.Workers,
		DetailWorkers:  cfg.DetailWorkers,
		BatchSize:      cfg.EffectiveBatchSize(),
		StartPage:      cfg.StartPage,
		PageSize:       cfg.PageSize,
		EmptyPageLimit: cfg.EmptyPageLimit,
		Metrics:        m,
		Events:         observer,
		Progress:       progress,
		Logger:         logger,
	})

	return &harvester{
		cfg:           cfg,
		logger:        logger,
		metrics:       m,
		metricsServer: metricsServer,
		client:        client,
		engine:        engine,
		sink:          snk,
	}, nil
}

// Run crawls each target in turn. A canceled context aborts the
// remaining targets and surfaces as the returned error.
func (h *harvester) Run(ctx context.Context, targets []*target.Target) error {
	var totalPages, totalRecords int

	for _, tgt := range targets {
		// A fresh session from page one replaces any previous output
		// for the target.
		if h.cfg.StartPage == 1 {
			if err := h.sink.Reset(tgt.ID); err != nil {
				return fmt.Errorf("failed to reset output for target %s: %w", tgt.ID, err)
			}
		}

		result, err := h.engine.Run(ctx, tgt, h.saveCallback(tgt))
		if result != nil {
			totalPages += result.Pages
			totalRecords += result.Records
		}
		if err != nil {
			return fmt.Errorf("target %s: %w", tgt.ID, err)
		}
	}

	h.logger.Info("Harvest finished",
		"targets", len(targets),
		"pages", totalPages,
		"records", totalRecords)
	return nil
}

// saveCallback appends each delivered page to the sink under the
// target's id. Empty pages are skipped; a failed save ends the session.
func (h *harvester) saveCallback(tgt *target.Target) crawl.Callback {
	columns := tgt.Columns()
	return func(page int, rows []extract.Row) error {
		if len(rows) == 0 {
			return nil
		}
		if err := h.sink.Save(rows, tgt.ID, columns); err != nil {
			h.metrics.IncSinkError()
			return fmt.Errorf("failed to save page %d: %w", page, err)
		}
		return nil
	}
}

// Close releases the harvester's resources in reverse setup order.
func (h *harvester) Close() {
	h.client.Close()
	if err := h.sink.Close(); err != nil {
		h.logger.Error("Failed to close sink", "error", err)
	}
	if h.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.metricsServer.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("Metrics server shutdown failed", "error", err)
		}
		cancel()
	}
}
