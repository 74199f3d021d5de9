package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-scrape/internal/scrape"
	"github.com/sells-group/advisor-scrape/internal/store"
)

var (
	scrapeTimeout int
	scrapeSave    bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Fetch one URL and print its text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if scrapeTimeout > 0 {
			cfg.Scrape.TimeoutSecs = scrapeTimeout
		}
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		chain, err := buildChain(cfg)
		if err != nil {
			return err
		}

		var st store.Store
		if scrapeSave {
			st, err = openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		return runScrape(ctx, cmd.OutOrStdout(), chain, st, args[0])
	},
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeTimeout, "timeout", 0, "per-attempt timeout in seconds (default from config)")
	scrapeCmd.Flags().BoolVar(&scrapeSave, "save", false, "persist the result to the store")
	rootCmd.AddCommand(scrapeCmd)
}

// runScrape prints the chain's text for targetURL. A nil store skips
// persistence; a save failure is logged but does not change the output.
func runScrape(ctx context.Context, out io.Writer, chain *scrape.Chain, st store.Store, targetURL string) error {
	result := chain.Run(ctx, targetURL)

	if st != nil {
		page := result.Page()
		if err := st.SavePage(ctx, &page); err != nil {
			zap.L().Warn("save page failed", zap.String("url", targetURL), zap.Error(err))
		}
	}

	_, err := fmt.Fprintln(out, result.Text())
	return err
}
