package crawler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/svt-crawler/internal/crawler"
	"github.com/JakeFAU/svt-crawler/internal/storage/memory"
)

const (
	testAPIBase    = "https://api.example.com/page"
	testSitePrefix = "https://www.svt.se"
)

var errUnavailable = errors.New("503 service unavailable")

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testClock = fixedClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}

// fakeListings serves listing pages by URL and records every request.
type fakeListings struct {
	mu       sync.Mutex
	pages    map[string]crawler.ListingPage
	fail     map[string]bool
	requests []string
	onFetch  func(url string)
}

func newFakeListings() *fakeListings {
	return &fakeListings{
		pages: make(map[string]crawler.ListingPage),
		fail:  make(map[string]bool),
	}
}

func (f *fakeListings) FetchListing(_ context.Context, pageURL string) (crawler.ListingPage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, pageURL)
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(pageURL)
	}
	if f.fail[pageURL] {
		return crawler.ListingPage{}, errUnavailable
	}
	page, ok := f.pages[pageURL]
	if !ok {
		return crawler.ListingPage{}, fmt.Errorf("no fixture for %s", pageURL)
	}
	return page, nil
}

func (f *fakeListings) requested(pageURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == pageURL {
			return true
		}
	}
	return false
}

// fakeArticles returns a dated entry for every article unless told otherwise.
type fakeArticles struct {
	mu      sync.Mutex
	entries map[string][]json.RawMessage
	fail    map[string]bool
	calls   map[string]int
	onFetch func(articleURL string)
}

func newFakeArticles() *fakeArticles {
	return &fakeArticles{
		entries: make(map[string][]json.RawMessage),
		fail:    make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeArticles) FetchArticle(_ context.Context, articleURL string) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.calls[articleURL]++
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(articleURL)
	}
	if f.fail[articleURL] {
		return nil, errUnavailable
	}
	if entries, ok := f.entries[articleURL]; ok {
		return entries, nil
	}
	short := strings.TrimSuffix(strings.TrimPrefix(articleURL, testAPIBase), "?q=articles")
	id := short[strings.LastIndex(short, "/")+1:]
	entry := fmt.Sprintf(`{"id":%q,"published":"2021-05-01T08:00:00+02:00","url":%q,"title":"Åäö <b>"}`, id, short)
	return []json.RawMessage{json.RawMessage(entry)}, nil
}

func (f *fakeArticles) callCount(articleURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[articleURL]
}

func (f *fakeArticles) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type harness struct {
	t        *testing.T
	urls     crawler.URLBuilder
	listings *fakeListings
	articles *fakeArticles
	store    *memory.BlobStore
	state    *crawler.State
	engine   *crawler.Engine
	out      *strings.Builder
	logger   *zap.Logger
	opts     []crawler.Option
}

func newHarness(t *testing.T, pageSize int, topics ...crawler.Topic) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		urls:     crawler.URLBuilder{APIBase: testAPIBase, SitePrefix: testSitePrefix, PageSize: pageSize},
		listings: newFakeListings(),
		articles: newFakeArticles(),
		store:    memory.NewBlobStore(),
		out:      &strings.Builder{},
		logger:   zap.NewNop(),
	}
	h.reload(topics...)
	return h
}

// reload rebuilds state and engine from the store, like a fresh process.
func (h *harness) reload(topics ...crawler.Topic) {
	h.t.Helper()
	state, err := crawler.LoadState(context.Background(), h.store)
	require.NoError(h.t, err)
	h.state = state
	opts := append([]crawler.Option{
		crawler.WithClock(testClock),
		crawler.WithOutput(h.out),
	}, h.opts...)
	h.engine = crawler.NewEngine(
		crawler.Config{
			APIBase:    testAPIBase,
			SitePrefix: testSitePrefix,
			PageSize:   h.urls.PageSize,
			MinYear:    2004,
			Topics:     topics,
		},
		h.listings,
		h.articles,
		h.store,
		state,
		h.logger,
		opts...,
	)
}

// addListing registers page n of topic with the given article short URLs.
func (h *harness) addListing(topic crawler.Topic, page, total int, shortURLs ...string) string {
	url := h.urls.ListingURL(topic, page)
	lp := crawler.ListingPage{}
	lp.Auto.Pagination.TotalAvailableItems = total
	for _, s := range shortURLs {
		lp.Auto.Content = append(lp.Auto.Content, crawler.ListingEntry{URL: s, Published: "2021-05-01"})
	}
	h.listings.pages[url] = lp
	return url
}

func (h *harness) articleURL(short string) string {
	return h.urls.ArticleURL(short)
}

// persisted decodes what is currently in the store, as a restarted process would see it.
func (h *harness) persisted() *crawler.State {
	h.t.Helper()
	state, err := crawler.LoadState(context.Background(), h.store)
	require.NoError(h.t, err)
	return state
}

func shortURLs(prefix string, from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("%s/a%d", prefix, i))
	}
	return out
}
