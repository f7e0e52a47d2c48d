package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/svt-crawler/internal/app"
)

// fakeAPI serves one sport listing page with two articles. The second
// article fails until healed is set.
type fakeAPI struct {
	healed atomic.Bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/nss-api/page/sport/" && r.URL.Query().Get("q") == "auto":
		_, _ = fmt.Fprint(w, `{"auto":{"pagination":{"totalAvailableItems":2},"content":[
			{"url":"https://www.svt.se/sport/a1","published":"2021-04-01"},
			{"url":"https://www.svt.se/sport/a2","published":"2021-03-01"}]}}`)
	case r.URL.Path == "/nss-api/page/sport/a1":
		_, _ = fmt.Fprint(w, articleBody("a1", "2021-04-01T10:00:00+02:00"))
	case r.URL.Path == "/nss-api/page/sport/a2" && f.healed.Load():
		_, _ = fmt.Fprint(w, articleBody("a2", "2020-03-01T10:00:00+01:00"))
	default:
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
	}
}

func articleBody(id, published string) string {
	return fmt.Sprintf(`{"articles":{"content":[{"id":%q,"published":%q,"title":"Match %s",
		"url":"/sport/%s","structuredBody":[{"type":"p","children":[{"type":"text","content":"Mål!"}]}]}]}}`,
		id, published, id, id)
}

func setup(t *testing.T) (*fakeAPI, string, string) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`
api:
  base_url: %s/nss-api/page
  page_size: 2
crawler:
  topics: ["sport"]
storage:
  data_dir: %s
xml:
  output_dir: %s
logging:
  development: false
`, srv.URL, dataDir, filepath.Join(dir, "corpus"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return api, cfgPath, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out strings.Builder
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestCrawlRetrySummaryIndexXML(t *testing.T) {
	api, cfgPath, dir := setup(t)
	dataDir := filepath.Join(dir, "data")

	out, err := execute(t, "crawl", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Starting to crawl svt.se")
	assert.Contains(t, out, "Crawling sport: 2 items, 1 pages")
	assert.Contains(t, out, "sport: 1 new articles, 1 failed")

	var ledger map[string][]string
	readJSON(t, filepath.Join(dataDir, "crawled_pages.json"), &ledger)
	assert.Equal(t, map[string][]string{"/sport/a1": {"a1", "2021", "sport"}}, ledger)
	var failed []string
	readJSON(t, filepath.Join(dataDir, "failed_urls.json"), &failed)
	assert.Equal(t, []string{"/sport/a2"}, failed)
	assert.FileExists(t, filepath.Join(dataDir, "svt-2021", "sport", "a1.json"))

	api.healed.Store(true)
	out, err = execute(t, "crawl", "-r", "-f", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Trying to crawl pages that failed last time")
	assert.Contains(t, out, "Argument '--force' is ignored when recrawling failed pages.")
	assert.Contains(t, out, "Retried 1 URLs: 1 succeeded, 0 still failing")
	readJSON(t, filepath.Join(dataDir, "failed_urls.json"), &failed)
	assert.Empty(t, failed)
	assert.FileExists(t, filepath.Join(dataDir, "svt-2020", "sport", "a2.json"))

	out, err = execute(t, "crawl", "-r", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Can't find any URLs that failed previously")

	out, err = execute(t, "summary", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "SVT artiklar per år")
	assert.Contains(t, out, "Alla nyhetsartiklar\t2")

	out, err = execute(t, "build-index", "--out", "index.json", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Done writing index of crawled data to")
	var index map[string][]string
	readJSON(t, filepath.Join(dataDir, "index.json"), &index)
	assert.Equal(t, map[string][]string{
		"/sport/a1": {"a1", "2021", "sport"},
		"/sport/a2": {"a2", "2020", "sport"},
	}, index)

	out, err = execute(t, "xml", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Converted 2 articles into 2 files (0 skipped, 0 failed)")
	raw, err := os.ReadFile(filepath.Join(dir, "corpus", "svt-2021", "source", "sport", "1.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `<p type="title">Match a1</p><p>Mål!</p>`)
	assert.FileExists(t, filepath.Join(dir, "corpus", "svt-2020", "config.yaml"))

	out, err = execute(t, "xml", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Converted 0 articles into 0 files (2 skipped, 0 failed)")
}

func TestSummaryWithoutData(t *testing.T) {
	_, cfgPath, _ := setup(t)

	out, err := execute(t, "summary", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No crawled data available!")
}

func TestAppInitFailure(t *testing.T) {
	orig := newApp
	t.Cleanup(func() { newApp = orig })
	newApp = func(context.Context, app.Options) (*app.App, error) {
		return nil, errors.New("boom")
	}

	_, err := execute(t, "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize application services: boom")
}

func TestWantsDebug(t *testing.T) {
	cmd := newCrawlCmd()
	assert.False(t, wantsDebug(cmd))
	require.NoError(t, cmd.Flags().Set("retry", "true"))
	assert.True(t, wantsDebug(cmd))

	cmd = newCrawlCmd()
	require.NoError(t, cmd.Flags().Set("debug", "true"))
	assert.True(t, wantsDebug(cmd))

	assert.False(t, wantsDebug(newSummaryCmd()))
}

func TestResolveAppWithoutApp(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
