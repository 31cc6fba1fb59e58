package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/TrendGoat/internal/api"
	"github.com/IshaanNene/TrendGoat/internal/automation"
	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/dashboard"
	"github.com/IshaanNene/TrendGoat/internal/engine"
	"github.com/IshaanNene/TrendGoat/internal/fetcher"
	"github.com/IshaanNene/TrendGoat/internal/monitor"
	"github.com/IshaanNene/TrendGoat/internal/observability"
	"github.com/IshaanNene/TrendGoat/internal/storage"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trendgoat",
		Short: "TrendGoat — trending topics snapshotter",
		Long: `TrendGoat logs into the trends site with a headless browser, reads the
current trending topics, records the public IP the session was seen from and
stores each snapshot in MongoDB (or a local JSONL file).

The HTTP server exposes a one-button index page and GET /run-scraper.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(initDBCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg, logger, storage.Lazy())
			if err != nil {
				return err
			}
			defer app.Close()

			opts := []api.Option{}
			metricsPath := ""
			if cfg.Metrics.Enabled {
				metricsPath = cfg.Metrics.Path
				opts = append(opts, api.WithMetrics(metricsPath, app.metrics))
			}
			opts = append(opts, api.WithIndex(dashboard.NewDashboard(app.engine, metricsPath, logger)))

			srv := api.NewServer(cfg.Server, app.engine, app.recorder, logger, opts...)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scraper once and print the stored snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			snap, err := app.engine.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(snap.View())
		},
	}
}

// app holds everything a run needs.
type app struct {
	engine   *engine.Engine
	recorder *engine.Recorder
	metrics  *observability.Metrics
	store    storage.Store
	egress   *fetcher.EgressIdentifier
	logger   *slog.Logger
}

// newApp wires the pipeline components from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, storeOpts ...storage.Option) (*app, error) {
	launcher, err := fetcher.NewLauncher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create launcher: %w", err)
	}
	auth, err := automation.NewAuthenticator(&cfg.Login, logger)
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}
	extractor, err := automation.NewExtractor(&cfg.Extract, logger)
	if err != nil {
		return nil, fmt.Errorf("create extractor: %w", err)
	}
	egress, err := fetcher.NewEgressIdentifier(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create egress identifier: %w", err)
	}

	store, err := storage.New(ctx, &cfg.Storage, logger, storeOpts...)
	if err != nil {
		egress.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	metrics := observability.NewMetrics(logger)
	recorder := engine.NewRecorder(store, metrics, logger)
	eng := engine.New(cfg, engine.Components{
		Launcher:      launcher,
		Authenticator: auth,
		Extractor:     extractor,
		Egress:        egress,
		Recorder:      recorder,
		Metrics:       metrics,
		Changes:       monitor.NewChangeDetector(extractor.IsPlaceholder, logger),
	}, logger)

	logger.Info("pipeline ready",
		"storage", store.Name(),
		"strategy", extractor.Strategy(),
		"proxy", cfg.Proxy.Enabled,
	)

	return &app{
		engine:   eng,
		recorder: recorder,
		metrics:  metrics,
		store:    store,
		egress:   egress,
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("storage close failed", "error", err)
	}
	a.egress.Close()
}

// loadConfig loads, validates and builds the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}

// setupLogger creates a structured logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
