package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/advisor-scrape/internal/model"
	"github.com/sells-group/advisor-scrape/internal/store"
)

var (
	pagesURL         string
	pagesProvider    string
	pagesLimit       int
	pagesSuccessOnly bool
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List stored pages, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("pages"); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pages, err := st.ListPages(ctx, store.PageFilter{
			URL:         pagesURL,
			Provider:    pagesProvider,
			SuccessOnly: pagesSuccessOnly,
			Limit:       pagesLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list pages")
		}

		if len(pages) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No pages found.")
			return nil
		}

		formatPagesList(cmd.OutOrStdout(), pages)
		return nil
	},
}

func init() {
	pagesCmd.Flags().StringVar(&pagesURL, "url", "", "filter by URL")
	pagesCmd.Flags().StringVar(&pagesProvider, "provider", "", "filter by provider")
	pagesCmd.Flags().IntVar(&pagesLimit, "limit", 20, "max pages to list")
	pagesCmd.Flags().BoolVar(&pagesSuccessOnly, "success-only", false, "only list successful fetches")
	rootCmd.AddCommand(pagesCmd)
}

func formatPagesList(out io.Writer, pages []model.ScrapedPage) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FETCHED\tSTATUS\tPROVIDER\tCHARS\tURL")
	for _, p := range pages {
		status := "ok"
		if !p.Success {
			status = "fail"
		}
		provider := p.Provider
		if provider == "" {
			provider = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			p.FetchedAt.Local().Format(time.DateTime), status, provider, p.ContentLength(), p.URL)
	}
	_ = w.Flush()
}
