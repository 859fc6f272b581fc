// Package cmd defines the CLI commands for the bookcrawler executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/bookshelf-crawler/internal/config"
	"github.com/JakeFAU/bookshelf-crawler/internal/crawler"
	"github.com/JakeFAU/bookshelf-crawler/internal/server"
)

const closeTimeout = 10 * time.Second

// App is the surface commands need from the application container. Tests
// swap in a mock through newApp.
type App interface {
	Run(ctx context.Context) error
	Crawl(ctx context.Context) (crawler.Result, error)
	Close(ctx context.Context) error
}

var newApp = func(ctx context.Context, cfg *config.Config) (App, error) {
	return server.Build(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "bookcrawler",
		Short: "Crawls a paginated book catalog and serves it over a JSON API.",
		Long: `bookcrawler walks a catalog listing page by page, upserts every book it
finds keyed by detail URL, and serves the stored records through a filtered,
paginated query API.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newServeCmd(&cfgFile))
	cmd.AddCommand(newCrawlCmd(&cfgFile))
	return cmd
}

// withApp loads configuration, builds the App, and closes it after fn.
func withApp(cfgFile *string, fn func(*cobra.Command, App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(*cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		app, err := newApp(cmd.Context(), &cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize application services: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), closeTimeout)
			defer cancel()
			if cerr := app.Close(ctx); cerr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "close application: %v\n", cerr)
			}
		}()
		return fn(cmd, app)
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "bookcrawler: %v\n", err)
		return 1
	}
	return 0
}
