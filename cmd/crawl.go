package cmd

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newCrawlCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl and exits",
		Long: `Walks the catalog from crawler.root_url until no next page remains, then
prints the run summary as JSON. Exits non-zero if the run fails.`,
		RunE: withApp(cfgFile, runCrawl),
	}
}

func runCrawl(cmd *cobra.Command, app App) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := app.Crawl(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
