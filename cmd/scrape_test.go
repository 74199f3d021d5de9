package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/advisor-scrape/internal/scrape"
	"github.com/sells-group/advisor-scrape/internal/store"
)

func TestRunScrape_PrintsText(t *testing.T) {
	srv := pageServer(t)
	var out bytes.Buffer

	err := runScrape(context.Background(), &out, testChain(t, testConfig(t)), nil, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Acme Wealth management\n", out.String())
}

func TestRunScrape_AllFailedPrintsAggregate(t *testing.T) {
	srv := pageServer(t)
	var out bytes.Buffer

	err := runScrape(context.Background(), &out, testChain(t, testConfig(t)), nil, srv.URL+"/down")
	require.NoError(t, err)
	assert.Equal(t, scrape.FailureMessage(srv.URL+"/down")+"\n", out.String())
}

func TestRunScrape_Saves(t *testing.T) {
	srv := pageServer(t)
	c := testConfig(t)
	ctx := context.Background()

	st, err := openStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	var out bytes.Buffer
	require.NoError(t, runScrape(ctx, &out, testChain(t, c), st, srv.URL))

	page, err := st.LatestPage(ctx, srv.URL)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.True(t, page.Success)
	assert.Equal(t, scrape.ProviderLocal, page.Provider)
	assert.Equal(t, "Acme Wealth management", page.Content)
}

func TestRunScrape_SaveFailureKeepsOutput(t *testing.T) {
	srv := pageServer(t)
	c := testConfig(t)
	ctx := context.Background()

	st, err := store.NewSQLite(c.Store.DatabaseURL)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	var out bytes.Buffer
	require.NoError(t, runScrape(ctx, &out, testChain(t, c), st, srv.URL))
	assert.Equal(t, "Acme Wealth management\n", out.String())
}

func TestScrapeCommand_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Scrape.Providers = nil
	withConfig(t, c)
	scrapeCmd.SetContext(context.Background())

	err := scrapeCmd.RunE(scrapeCmd, []string{"https://acme.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.providers must not be empty")
}

func TestScrapeCommand_Run(t *testing.T) {
	srv := pageServer(t)
	withConfig(t, testConfig(t))

	var out bytes.Buffer
	scrapeCmd.SetOut(&out)
	scrapeCmd.SetContext(context.Background())
	t.Cleanup(func() { scrapeCmd.SetOut(nil) })

	require.NoError(t, scrapeCmd.RunE(scrapeCmd, []string{srv.URL}))
	assert.Equal(t, "Acme Wealth management\n", out.String())
}
