package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-scrape/internal/model"
	"github.com/sells-group/advisor-scrape/internal/scrape"
	"github.com/sells-group/advisor-scrape/internal/store"
	"github.com/sells-group/advisor-scrape/internal/urllist"
)

var (
	batchFile        string
	batchColumn      string
	batchSheet       string
	batchConcurrency int
	batchSave        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Fetch a list of URLs concurrently",
	Long: `Reads URLs from a text file (one per line, # comments skipped), a CSV or an
XLSX sheet, and prints ok|fail, provider, url and character count for each.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency > 0 {
			cfg.Batch.MaxConcurrent = batchConcurrency
		}
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		urls, err := urllist.Load(batchFile, cmd.InOrStdin(), urllist.Options{
			Column:    batchColumn,
			SheetName: batchSheet,
		})
		if err != nil {
			return err
		}

		chain, err := buildChain(cfg)
		if err != nil {
			return err
		}

		var st store.Store
		if batchSave {
			st, err = openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		return runBatch(ctx, cmd.OutOrStdout(), chain, st, urls, cfg.Batch.MaxConcurrent)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "URL list: .txt, .csv or .xlsx (- for stdin)")
	batchCmd.Flags().StringVar(&batchColumn, "column", "", "CSV/XLSX header of the URL column (default url, website, domain or link)")
	batchCmd.Flags().StringVar(&batchSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent URLs (default from config)")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist results to the store")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(ctx context.Context, out io.Writer, chain *scrape.Chain, st store.Store, urls []string, maxConcurrent int) error {
	results := chain.ScrapeAll(ctx, urls, maxConcurrent)

	w := bufio.NewWriter(out)
	var succeeded int
	pages := make([]model.ScrapedPage, 0, len(results))
	for _, r := range results {
		status := "fail"
		if r.OK {
			status = "ok"
			succeeded++
		}
		provider := r.Provider
		if provider == "" {
			provider = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", status, provider, r.URL, len([]rune(r.Content)))
		pages = append(pages, r.Page())
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "write results")
	}

	zap.L().Info("batch complete",
		zap.Int("total", len(results)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded),
	)

	if st != nil {
		if err := st.SavePages(ctx, pages); err != nil {
			return eris.Wrap(err, "save pages")
		}
	}
	return nil
}
