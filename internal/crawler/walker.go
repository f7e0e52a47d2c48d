package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Walk pages through one topic listing and fetches every new article.
//
// The page count is totalAvailableItems / PageSize using integer division,
// so a trailing partial page is never requested. Listings are sorted newest
// first: unless force is set, the first already saved article ends the walk
// for the whole topic. State is flushed after every page.
func (e *Engine) Walk(ctx context.Context, topic Topic, force bool) (TopicStats, error) {
	name := topic.Name()
	st := TopicStats{Topic: string(topic)}
	logger := e.logger.With(zap.String("topic", string(topic)))

	firstURL := e.urls.ListingURL(topic, 1)
	first, err := e.listings.FetchListing(ctx, firstURL)
	if err != nil {
		// Without the first page there is no page count to walk.
		logger.Debug("error when parsing listing", zap.String("url", firstURL), zap.Error(err))
		e.metrics.ObserveListing(name, StatusFailed)
		e.state.Failures.Add(firstURL)
		st.PagesFailed++
		e.printf("\nCrawling %s: first listing page failed\n", topic)
		if ferr := e.state.FlushFailures(ctx); ferr != nil {
			return st, ferr
		}
		return st, nil
	}

	st.Items = first.Auto.Pagination.TotalAvailableItems
	st.Pages = st.Items / e.cfg.PageSize
	e.printf("\nCrawling %s: %d items, %d pages\n", topic, st.Items, st.Pages)

	for page := 1; page <= st.Pages; page++ {
		if err := ctx.Err(); err != nil {
			return st, fmt.Errorf("walk canceled at page %d: %w", page, err)
		}
		pageURL := e.urls.ListingURL(topic, page)

		var entries []ListingEntry
		if page == 1 {
			entries = first.Auto.Content
			e.listingSucceeded(name, pageURL)
		} else {
			listing, err := e.listings.FetchListing(ctx, pageURL)
			if err != nil {
				logger.Debug("error when parsing listing", zap.String("url", pageURL), zap.Error(err))
				e.metrics.ObserveListing(name, StatusFailed)
				e.state.Failures.Add(pageURL)
				st.PagesFailed++
			} else {
				entries = listing.Auto.Content
				e.listingSucceeded(name, pageURL)
			}
		}

		done := e.processEntries(ctx, logger, name, entries, force, &st)
		if err := e.checkpoint(ctx); err != nil {
			return st, err
		}
		if done {
			st.EarlyStop = true
			break
		}
	}

	e.printf("  %s: %d new articles, %d failed\n", name, st.Stored, st.Failed)
	logger.Info("topic finished",
		zap.Int("stored", st.Stored),
		zap.Int("failed", st.Failed),
		zap.Int("pages_failed", st.PagesFailed),
		zap.Bool("early_stop", st.EarlyStop),
	)
	return st, nil
}

func (e *Engine) listingSucceeded(topicName, pageURL string) {
	e.metrics.ObserveListing(topicName, StatusOK)
	e.state.Failures.Remove(pageURL)
}

// processEntries fetches the articles of one page in order. It returns true
// when an already saved article was reached and the topic is done.
func (e *Engine) processEntries(
	ctx context.Context,
	logger *zap.Logger,
	topicName string,
	entries []ListingEntry,
	force bool,
	st *TopicStats,
) bool {
	for _, entry := range entries {
		shortURL := e.urls.ShortURL(entry.URL)
		if shortURL == "" {
			continue
		}
		if !force && e.state.Ledger.Has(shortURL) {
			logger.Debug("article already saved, skipping remaining",
				zap.String("url", shortURL),
				zap.String("published", entry.Published),
			)
			return true
		}
		if e.FetchArticle(ctx, shortURL, topicName, force) {
			st.Stored++
			continue
		}
		// A failed forced refetch keeps the saved copy; the URL stays in the ledger only.
		if !e.state.Ledger.Has(shortURL) {
			e.state.Failures.Add(shortURL)
		}
		st.Failed++
	}
	return false
}

// checkpoint persists the failure queue, and the ledger when it changed.
func (e *Engine) checkpoint(ctx context.Context) error {
	if err := e.state.FlushFailures(ctx); err != nil {
		return err
	}
	if e.state.Ledger.Dirty() {
		return e.state.FlushLedger(ctx)
	}
	return nil
}
