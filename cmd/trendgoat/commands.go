package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/TrendGoat/internal/automation"
	"github.com/IshaanNene/TrendGoat/internal/config"
	"github.com/IshaanNene/TrendGoat/internal/fetcher"
	"github.com/IshaanNene/TrendGoat/internal/storage"
	"github.com/IshaanNene/TrendGoat/internal/types"
)

// extractCmd creates the "extract" subcommand. It replays extraction over a
// saved page so selectors can be checked without logging in.
func extractCmd() *cobra.Command {
	var (
		htmlPath string
		strategy string
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run trend extraction over a saved HTML page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if strategy != "" {
				cfg.Extract.Strategy = strategy
			}

			page, err := fetcher.LoadStaticPage(htmlPath)
			if err != nil {
				return err
			}
			extractor, err := automation.NewExtractor(&cfg.Extract, logger)
			if err != nil {
				return err
			}

			res, err := extractor.Extract(cmd.Context(), page)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"strategy":     extractor.Strategy(),
				"trends":       res.Trends,
				"placeholders": res.Failed,
			})
		},
	}
	cmd.Flags().StringVar(&htmlPath, "html", "", "saved page to read")
	cmd.Flags().StringVar(&strategy, "strategy", "", "positional or pattern (overrides extract.strategy)")
	cmd.MarkFlagRequired("html")
	return cmd
}

// initDBCmd creates the "init-db" subcommand.
func initDBCmd() *cobra.Command {
	var sample bool
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the snapshot collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := storage.New(ctx, &cfg.Storage, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if mongo, ok := store.(*storage.MongoStorage); ok {
				created, err := mongo.EnsureCollection(ctx)
				if err != nil {
					return err
				}
				if created {
					fmt.Printf("Created collection %s.%s\n", cfg.Storage.Database, cfg.Storage.Collection)
				} else {
					fmt.Printf("Collection %s.%s already exists\n", cfg.Storage.Database, cfg.Storage.Collection)
				}
			}

			if sample {
				id, err := store.Insert(ctx, types.SampleSnapshot())
				if err != nil {
					return err
				}
				fmt.Printf("Inserted sample snapshot %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "insert a sample snapshot")
	return cmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("TrendGoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg := loaded.Redacted()
			fmt.Printf("Server:\n")
			fmt.Printf("  Address:           %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Printf("  Write Timeout:     %s\n", cfg.Server.WriteTimeout)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Window Size:       %s\n", cfg.Browser.WindowSize)
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  URL:               %s\n", cfg.Proxy.URL)
			fmt.Printf("  API Key:           %s\n", cfg.Proxy.APIKey)
			fmt.Printf("\nLogin:\n")
			fmt.Printf("  URL:               %s\n", cfg.Login.URL)
			fmt.Printf("  Handle:            %s\n", cfg.Login.Handle)
			fmt.Printf("  Password:          %s\n", cfg.Login.Password)
			fmt.Printf("  Home Pattern:      %s\n", cfg.Login.HomePattern)
			fmt.Printf("\nExtract:\n")
			fmt.Printf("  Strategy:          %s\n", cfg.Extract.Strategy)
			fmt.Printf("  Positions:         %d configured\n", len(cfg.Extract.Positions))
			fmt.Printf("  Pattern:           %s\n", cfg.Extract.Pattern)
			fmt.Printf("  Item Timeout:      %s\n", cfg.Extract.ItemTimeout)
			fmt.Printf("\nEgress:\n")
			fmt.Printf("  URL:               %s\n", cfg.Egress.URL)
			fmt.Printf("  Via Proxy:         %v\n", cfg.Egress.ViaProxy)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  URI:               %s\n", cfg.Storage.URI)
			fmt.Printf("  Collection:        %s.%s\n", cfg.Storage.Database, cfg.Storage.Collection)
			fmt.Printf("  Output Path:       %s\n", cfg.Storage.OutputPath)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Path:              %s\n", cfg.Metrics.Path)
			return nil
		},
	}
	return cmd
}
