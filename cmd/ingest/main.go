// Command ingest scrapes the policy manual into run logs and loads them into
// the search indexes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"policy-manual-ai/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "ingest",
	Short:         "Build the policy manual search indexes",
	Long:          `Scrape USCIS Policy Manual chapters into run logs, import run logs into SQLite, Qdrant and Bleve, and query the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		opts := &slog.HandlerOptions{Level: cfg.LogLevel}
		var handler slog.Handler
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
