package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// RetryFailed replays every URL in the failure queue.
//
// Outcomes are tracked by the queued URL itself. A listing URL counts as
// succeeded only if the listing was fetched and every article on it
// succeeded; otherwise it stays queued. After the pass succeeded URLs are
// removed, failed ones are (re-)added and the state is flushed once.
func (e *Engine) RetryFailed(ctx context.Context) (RetryStats, error) {
	queued := e.state.Failures.URLs()
	if len(queued) == 0 {
		e.printf("Can't find any URLs that failed previously\n")
		return RetryStats{}, nil
	}
	e.logger.Info("retry started", zap.Int("queued", len(queued)))

	var (
		succeeded   []string
		newlyFailed []string
		stats       RetryStats
		runErr      error
	)
	for _, u := range queued {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("retry canceled: %w", err)
			break
		}
		stats.Attempted++
		if e.retryOne(ctx, u) {
			succeeded = append(succeeded, u)
			stats.Succeeded++
		} else {
			newlyFailed = append(newlyFailed, u)
			stats.Failed++
		}
	}

	for _, u := range succeeded {
		e.state.Failures.Remove(u)
	}
	for _, u := range newlyFailed {
		e.state.Failures.Add(u)
	}
	if err := e.state.Flush(ctx); err != nil {
		return stats, errors.Join(runErr, err)
	}

	e.printf("Retried %d URLs: %d succeeded, %d still failing\n", stats.Attempted, stats.Succeeded, stats.Failed)
	e.logger.Info("retry finished",
		zap.Int("attempted", stats.Attempted),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
	)
	return stats, runErr
}

func (e *Engine) retryOne(ctx context.Context, queuedURL string) bool {
	logger := e.logger.With(zap.String("url", queuedURL))
	isListing := e.urls.IsListingURL(queuedURL)

	target := queuedURL
	if !isListing {
		target = e.urls.ShortURL(queuedURL)
	}
	topicName := TopicFromURL(target, e.cfg.APIBase)
	if topicName == "" {
		logger.Warn("cannot derive topic from queued url")
		return false
	}

	if !isListing {
		ok := e.FetchArticle(ctx, target, topicName, false)
		e.metrics.ObserveRetry(KindArticle, retryStatus(ok))
		return ok
	}

	listing, err := e.listings.FetchListing(ctx, queuedURL)
	if err != nil {
		logger.Debug("error when parsing listing", zap.Error(err))
		e.metrics.ObserveListing(topicName, StatusFailed)
		e.metrics.ObserveRetry(KindListing, StatusFailed)
		return false
	}
	e.metrics.ObserveListing(topicName, StatusOK)

	allOK := true
	for _, entry := range listing.Auto.Content {
		shortURL := e.urls.ShortURL(entry.URL)
		if shortURL == "" {
			continue
		}
		if !e.FetchArticle(ctx, shortURL, topicName, false) {
			allOK = false
		}
	}
	e.metrics.ObserveRetry(KindListing, retryStatus(allOK))
	return allOK
}

func retryStatus(ok bool) string {
	if ok {
		return StatusOK
	}
	return StatusFailed
}
