package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-scrape/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "advisor-scrape",
	Short: "Resilient web page fetching with provider fallback",
	Long:  "Fetches pages through a local HTTP fetcher with retries, falling back to Jina Reader and Firecrawl, and returns normalized text.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
