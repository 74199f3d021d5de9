package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/advisor-scrape/internal/api"
)

func TestServeCommand_InvalidPort(t *testing.T) {
	c := testConfig(t)
	c.Server.Port = 70000
	withConfig(t, c)
	serveCmd.SetContext(context.Background())

	err := serveCmd.RunE(serveCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0 and <= 65535")
}

func TestServe_EndToEnd(t *testing.T) {
	site := pageServer(t)
	c := testConfig(t)
	ctx := context.Background()

	st, err := openStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	srv := httptest.NewServer(api.NewServer(testChain(t, c), st, c.Server.CORSOrigins).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/scrape?save=true&url=" + url.QueryEscape(site.URL))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "local_http", body["provider"])
	assert.Equal(t, "Acme Wealth management", body["content"])

	page, err := st.LatestPage(ctx, site.URL)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, "Acme Wealth management", page.Content)
}
