package crawler_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/svt-crawler/internal/crawler"
)

func TestWalkFetchesEveryPage(t *testing.T) {
	h := newHarness(t, 2, "sport")
	h.addListing("sport", 1, 6, "https://www.svt.se/sport/a1", "/sport/a2")
	h.addListing("sport", 2, 6, "/sport/a3", "", "/sport/a4")
	h.addListing("sport", 3, 6, "/sport/a5", "/sport/a6")

	st, err := h.engine.Walk(context.Background(), "sport", false)
	require.NoError(t, err)

	assert.Equal(t, crawler.TopicStats{Topic: "sport", Items: 6, Pages: 3, Stored: 6}, st)
	assert.Equal(t, 6, h.state.Ledger.Len())
	assert.True(t, h.state.Ledger.Has("/sport/a1"), "host prefix is stripped")
	assert.Equal(t, 1, countRequests(h, h.urls.ListingURL("sport", 1)), "page 1 is reused")
	assert.Contains(t, h.out.String(), "Crawling sport: 6 items, 3 pages")
	assert.Contains(t, h.out.String(), "sport: 6 new articles, 0 failed")

	persisted := h.persisted()
	assert.Equal(t, h.state.Ledger.URLs(), persisted.Ledger.URLs())
}

func TestWalkTruncatesFinalPartialPage(t *testing.T) {
	h := newHarness(t, 50, "kultur")
	page1 := shortURLs("/kultur", 1, 50)
	page2 := shortURLs("/kultur", 51, 100)
	h.addListing("kultur", 1, 120, page1...)
	h.addListing("kultur", 2, 120, page2...)
	partial := h.addListing("kultur", 3, 120, shortURLs("/kultur", 101, 120)...)

	st, err := h.engine.Walk(context.Background(), "kultur", false)
	require.NoError(t, err)

	assert.Equal(t, 2, st.Pages)
	assert.Equal(t, 100, st.Stored)
	assert.False(t, h.listings.requested(partial), "trailing partial page is not fetched")
	assert.False(t, h.state.Ledger.Has("/kultur/a101"))
}

func TestWalkFewerItemsThanOnePage(t *testing.T) {
	h := newHarness(t, 50, "vader")
	h.addListing("vader", 1, 30, shortURLs("/vader", 1, 30)...)

	st, err := h.engine.Walk(context.Background(), "vader", false)
	require.NoError(t, err)
	assert.Zero(t, st.Pages)
	assert.Zero(t, h.articles.totalCalls())
	assert.Contains(t, h.out.String(), "Crawling vader: 30 items, 0 pages")
}

func TestWalkEarlyStopEndsTopic(t *testing.T) {
	h := newHarness(t, 3, "sport")
	h.addListing("sport", 1, 9, "/sport/new1", "/sport/new2", "/sport/old1")
	h.addListing("sport", 2, 9, "/sport/old2", "/sport/old3", "/sport/old4")
	h.addListing("sport", 3, 9, "/sport/old5", "/sport/old6", "/sport/old7")
	h.state.Ledger.Put("/sport/old1", crawler.Record{ArticleID: "old1", Year: "2020", Topic: "sport"})

	st, err := h.engine.Walk(context.Background(), "sport", false)
	require.NoError(t, err)

	assert.True(t, st.EarlyStop)
	assert.Equal(t, 2, st.Stored)
	assert.False(t, h.listings.requested(h.urls.ListingURL("sport", 2)))
	assert.Zero(t, h.articles.callCount(h.articleURL("/sport/old1")))
}

func TestWalkForceIgnoresLedger(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2, "sport")
	h.addListing("sport", 1, 4, "/sport/a1", "/sport/a2")
	h.addListing("sport", 2, 4, "/sport/a3", "/sport/a4")
	h.state.Ledger.Put("/sport/a1", crawler.Record{ArticleID: "a1", Year: "2020", Topic: "sport"})
	_, err := h.store.PutObject(ctx, "svt-2020/sport/a1.json", "", strings.NewReader(`[{"id":"a1"}]`))
	require.NoError(t, err)

	st, err := h.engine.Walk(ctx, "sport", true)
	require.NoError(t, err)

	assert.False(t, st.EarlyStop)
	assert.Equal(t, 4, st.Stored)
	assert.Equal(t, 1, h.articles.callCount(h.articleURL("/sport/a1")))
	rec, _ := h.state.Ledger.Get("/sport/a1")
	assert.Equal(t, "2021", rec.Year, "forced refetch rewrites the record")

	_, err = h.store.GetObject(ctx, "svt-2021/sport/a1.json")
	require.NoError(t, err)
	_, err = h.store.GetObject(ctx, "svt-2020/sport/a1.json")
	assert.ErrorIs(t, err, crawler.ErrNotFound, "the file from the old year bucket is removed")
}

func TestWalkForcedRefetchFailureKeepsLedgerEntry(t *testing.T) {
	h := newHarness(t, 2, "sport")
	h.addListing("sport", 1, 2, "/sport/a1", "/sport/a2")
	saved := crawler.Record{ArticleID: "a1", Year: "2021", Topic: "sport"}
	h.state.Ledger.Put("/sport/a1", saved)
	h.articles.fail[h.articleURL("/sport/a1")] = true

	_, err := h.engine.Crawl(context.Background(), true)
	require.NoError(t, err)

	persisted := h.persisted()
	rec, ok := persisted.Ledger.Get("/sport/a1")
	require.True(t, ok)
	assert.Equal(t, saved, rec)
	assert.False(t, persisted.Failures.Contains("/sport/a1"), "a url is never in both ledger and failure queue")
	assert.True(t, persisted.Ledger.Has("/sport/a2"))
	assert.Contains(t, h.out.String(), "sport: 1 new articles, 1 failed")
}

func TestWalkRecordsFailuresAndContinues(t *testing.T) {
	h := newHarness(t, 2, "nyheter/inrikes")
	h.addListing("nyheter/inrikes", 1, 6, "/nyheter/inrikes/a1", "/nyheter/inrikes/a2")
	brokenPage := h.urls.ListingURL("nyheter/inrikes", 2)
	h.listings.fail[brokenPage] = true
	h.addListing("nyheter/inrikes", 3, 6, "/nyheter/inrikes/a5", "/nyheter/inrikes/a6")
	h.articles.fail[h.articleURL("/nyheter/inrikes/a2")] = true

	st, err := h.engine.Walk(context.Background(), "nyheter/inrikes", false)
	require.NoError(t, err)

	assert.Equal(t, 3, st.Stored)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.PagesFailed)
	assert.Equal(t, []string{"/nyheter/inrikes/a2", brokenPage}, h.state.Failures.URLs())
	assert.True(t, h.state.Ledger.Has("/nyheter/inrikes/a5"))

	rec, _ := h.state.Ledger.Get("/nyheter/inrikes/a1")
	assert.Equal(t, "inrikes", rec.Topic, "records use the last topic segment")
	assert.Equal(t, h.state.Failures.URLs(), h.persisted().Failures.URLs())
}

func TestWalkFirstPageFailure(t *testing.T) {
	h := newHarness(t, 2, "sport")
	first := h.urls.ListingURL("sport", 1)
	h.listings.fail[first] = true

	st, err := h.engine.Walk(context.Background(), "sport", false)
	require.NoError(t, err)

	assert.Equal(t, 1, st.PagesFailed)
	assert.Equal(t, []string{first}, h.persisted().Failures.URLs())
	assert.Zero(t, h.articles.totalCalls())
}

func TestWalkSucceededListingLeavesFailureQueue(t *testing.T) {
	h := newHarness(t, 2, "sport")
	h.addListing("sport", 1, 4, "/sport/a1", "/sport/a2")
	page2 := h.addListing("sport", 2, 4, "/sport/a3", "/sport/a4")
	h.state.Failures.Add(page2)

	_, err := h.engine.Walk(context.Background(), "sport", false)
	require.NoError(t, err)
	assert.False(t, h.state.Failures.Contains(page2))
}

func TestWalkFlushesAfterEveryPage(t *testing.T) {
	h := newHarness(t, 2, "sport")
	h.addListing("sport", 1, 8, "/sport/a1", "/sport/a2")
	h.addListing("sport", 2, 8, "/sport/a3", "/sport/a4")
	page3 := h.addListing("sport", 3, 8, "/sport/a5", "/sport/a6")
	h.addListing("sport", 4, 8, "/sport/a7", "/sport/a8")
	h.articles.fail[h.articleURL("/sport/a3")] = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.articles.onFetch = func(articleURL string) {
		if articleURL == h.articleURL("/sport/a4") {
			cancel()
		}
	}

	_, err := h.engine.Walk(ctx, "sport", false)
	require.ErrorIs(t, err, context.Canceled)

	// A restarted process sees everything up to and including page 2.
	persisted := h.persisted()
	assert.Equal(t, []string{"/sport/a1", "/sport/a2", "/sport/a4"}, persisted.Ledger.URLs())
	assert.Equal(t, []string{"/sport/a3"}, persisted.Failures.URLs())
	assert.False(t, h.listings.requested(page3))
	assert.Equal(t, 2, h.store.Puts(crawler.LedgerPath))
	assert.Equal(t, 2, h.store.Puts(crawler.FailuresPath))
}

func TestWalkStateFlushErrorAborts(t *testing.T) {
	h := newHarness(t, 2, "sport")
	h.addListing("sport", 1, 4, "/sport/a1", "/sport/a2")
	h.addListing("sport", 2, 4, "/sport/a3", "/sport/a4")
	diskFull := errors.New("no space left on device")
	h.store.FailOn(crawler.LedgerPath, diskFull)

	_, err := h.engine.Walk(context.Background(), "sport", false)
	require.ErrorIs(t, err, diskFull)
	assert.False(t, h.listings.requested(h.urls.ListingURL("sport", 2)))
}

func TestCrawlWalksTopicsInOrder(t *testing.T) {
	h := newHarness(t, 1, "sport", "nyheter/lokalt/ost")
	h.addListing("sport", 1, 1, "/sport/a1")
	h.addListing("nyheter/lokalt/ost", 1, 1, "/nyheter/lokalt/ost/b1")

	stats, err := h.engine.Crawl(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "sport", stats[0].Topic)
	assert.Equal(t, "nyheter/lokalt/ost", stats[1].Topic)

	rec, _ := h.state.Ledger.Get("/nyheter/lokalt/ost/b1")
	assert.Equal(t, crawler.Record{ArticleID: "b1", Year: "2021", Topic: "ost"}, rec)
}

func TestCrawlLedgerMatchesStoredFiles(t *testing.T) {
	h := newHarness(t, 2, "sport", "kultur")
	h.addListing("sport", 1, 4, "/sport/a1", "/sport/a2")
	h.addListing("sport", 2, 4, "/sport/a3", "/sport/a4")
	h.addListing("kultur", 1, 2, "/kultur/k1", "/kultur/k2")
	h.articles.fail[h.articleURL("/sport/a2")] = true
	h.articles.fail[h.articleURL("/kultur/k2")] = true

	_, err := h.engine.Crawl(context.Background(), false)
	require.NoError(t, err)

	persisted := h.persisted()
	for _, u := range persisted.Ledger.URLs() {
		rec, _ := persisted.Ledger.Get(u)
		_, err := h.store.GetObject(context.Background(), crawler.ArticlePath(rec.Year, rec.Topic, rec.ArticleID))
		require.NoError(t, err, u)
		assert.False(t, persisted.Failures.Contains(u), "%s is both saved and failed", u)
	}
	assert.ElementsMatch(t, []string{"/sport/a2", "/kultur/k2"}, persisted.Failures.URLs())
}

func countRequests(h *harness, url string) int {
	h.listings.mu.Lock()
	defer h.listings.mu.Unlock()
	n := 0
	for _, r := range h.listings.requests {
		if r == url {
			n++
		}
	}
	return n
}
