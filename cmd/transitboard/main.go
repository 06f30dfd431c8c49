// Package main provides the transitboard CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dmvtransit/transitboard/internal/aggregator"
	"github.com/dmvtransit/transitboard/internal/catalog"
	"github.com/dmvtransit/transitboard/internal/display"
	"github.com/dmvtransit/transitboard/internal/mobilitydata"
	"github.com/dmvtransit/transitboard/internal/server"
	"github.com/dmvtransit/transitboard/pkg/browser"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags-injected version and falls back to
// module build info so `go install ...@vX.Y.Z` reports a real version.
func resolveVersion(v string, info *debug.BuildInfo) string {
	if v != "dev" {
		return v
	}
	if info != nil && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// newLogger builds the structured logger shared by the aggregation pipeline.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newRegistryClient builds the Mobility Database client from the environment.
func newRegistryClient() (*mobilitydata.Client, error) {
	opts := []mobilitydata.ClientOption{}
	if url := os.Getenv("TRANSITBOARD_API_URL"); url != "" {
		opts = append(opts, mobilitydata.WithBaseURL(url))
	}
	return mobilitydata.NewClientFromEnv(opts...)
}

// loadCatalog returns the operator-supplied catalog when configured, the
// embedded one otherwise.
func loadCatalog() (*catalog.Catalog, error) {
	if path := os.Getenv("TRANSITBOARD_CATALOG"); path != "" {
		return catalog.Load(path)
	}
	return catalog.Default()
}

// newRootCmd creates the root command for the transitboard CLI.
func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:     "transitboard",
		Short:   "Aggregate regional transit feed status from the Mobility Database",
		Long:    "Transitboard queries the Mobility Database registry and assembles a per-agency view of schedule and realtime feed health for the configured region.",
		Version: resolveVersion(version, buildInfo()),
	}

	rootCmd.SetVersionTemplate("transitboard version {{.Version}}\n")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newAgenciesCmd(&verbose))
	rootCmd.AddCommand(newFeedsCmd())
	rootCmd.AddCommand(newMetadataCmd())
	rootCmd.AddCommand(newServeCmd(&verbose))
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func buildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// newAgenciesCmd creates the agencies subcommand.
func newAgenciesCmd(verbose *bool) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "agencies",
		Short: "Aggregate and display agency feed status",
		Long:  "Fetch declared and regional feeds from the registry, join them to the configured agencies, and display status cards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			client, err := newRegistryClient()
			if err != nil {
				return err
			}
			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			agg := aggregator.New(client, cat, aggregator.WithLogger(newLogger(*verbose)))
			agencies, err := agg.Aggregate(ctx)
			if err != nil {
				return fmt.Errorf("aggregation failed: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(agencies)
			}

			formatter := display.NewTerminalFormatter()
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatAgencies(agencies))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output agencies as JSON")

	return cmd
}

// newFeedsCmd creates the feeds subcommand group.
func newFeedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Inspect individual registry feeds",
	}

	cmd.AddCommand(newFeedsSearchCmd())

	return cmd
}

// newFeedsSearchCmd creates the feeds search subcommand.
func newFeedsSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the registry by free text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			client, err := newRegistryClient()
			if err != nil {
				return err
			}

			result, err := client.SearchFeeds(ctx, mobilitydata.SearchFilter{
				SearchQuery: args[0],
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d feeds match %q\n", result.Total, args[0])
			for _, feed := range result.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s • %s • %s • %s\n", feed.ID, feed.DataType, feed.Provider, feed.Status)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of results")

	return cmd
}

// newMetadataCmd creates the metadata subcommand.
func newMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Show registry deployment metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			client, err := newRegistryClient()
			if err != nil {
				return err
			}

			meta, err := client.GetMetadata(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "registry version: %s\ncommit: %s\n", meta.Version, meta.CommitHash)
			return nil
		},
	}
}

// newServeCmd creates the serve subcommand.
func newServeCmd(verbose *bool) *cobra.Command {
	var addr string
	var open bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard JSON API",
		Long:  "Serve aggregated agency status over HTTP for the dashboard front end.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newRegistryClient()
			if err != nil {
				return err
			}
			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			logger := newLogger(*verbose)
			agg := aggregator.New(client, cat, aggregator.WithLogger(logger))
			srv := server.New(agg, logger)

			if open {
				if err := browser.Open("http://localhost" + addr); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\n", err)
				}
			}

			logger.Info("serving dashboard API", "addr", addr)
			return http.ListenAndServe(addr, srv.Handler())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Listen address")
	cmd.Flags().BoolVar(&open, "open", false, "Open the dashboard in the default browser")

	return cmd
}

// newConfigCmd creates the config subcommand.
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the active catalog configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			source := os.Getenv("TRANSITBOARD_CATALOG")
			if source == "" {
				source = "built-in"
			}

			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Catalog: %s\n", source)
			fmt.Fprintf(cmd.OutOrStdout(), "Subdivisions: %v\n", cat.Region.Subdivisions)
			fmt.Fprintf(cmd.OutOrStdout(), "Countries: %v\n", cat.Region.CountryCodes)
			fmt.Fprintf(cmd.OutOrStdout(), "Agencies: %d\n", len(cat.Agencies))
			return nil
		},
	}
}
