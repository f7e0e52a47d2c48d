package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrEmptyContent means the API returned no article entries.
	ErrEmptyContent = errors.New("no data found in article")
	// ErrInvalidArticleID means the article id is missing or unusable as a file name.
	ErrInvalidArticleID = errors.New("invalid article id")
)

// FetchArticle makes sure the article behind shortURL is stored. It returns
// true when the article is already in the ledger (and force is false) or
// when it was fetched and written. Failures are logged and reported as
// false; the ledger is left untouched and the caller decides whether to
// queue the URL.
func (e *Engine) FetchArticle(ctx context.Context, shortURL, topicName string, force bool) bool {
	shortURL = e.urls.ShortURL(shortURL)
	if !force && e.state.Ledger.Has(shortURL) {
		e.metrics.ObserveArticle(topicName, StatusSkipped)
		return true
	}

	articleURL := e.urls.ArticleURL(shortURL)
	logger := e.logger.With(zap.String("url", articleURL), zap.String("topic", topicName))
	logger.Debug("new article")

	rec, err := e.storeArticle(ctx, logger, shortURL, articleURL, topicName)
	if err != nil {
		logger.Debug("error when parsing article", zap.Error(err))
		e.metrics.ObserveArticle(topicName, StatusFailed)
		return false
	}

	if prev, ok := e.state.Ledger.Get(shortURL); ok {
		e.removeStale(ctx, logger, prev, rec)
	}
	e.state.Ledger.Put(shortURL, rec)
	e.state.Failures.Remove(shortURL)
	e.metrics.ObserveArticle(topicName, StatusStored)
	return true
}

func (e *Engine) storeArticle(
	ctx context.Context,
	logger *zap.Logger,
	shortURL string,
	articleURL string,
	topicName string,
) (Record, error) {
	entries, err := e.articles.FetchArticle(ctx, articleURL)
	if err != nil {
		return Record{}, fmt.Errorf("fetch article: %w", err)
	}
	if len(entries) == 0 {
		return Record{}, ErrEmptyContent
	}
	if len(entries) > 1 {
		logger.Warn("found article with multiple content entries",
			zap.String("short_url", shortURL),
			zap.Int("entries", len(entries)),
		)
	}

	var meta ArticleMeta
	if err := json.Unmarshal(entries[0], &meta); err != nil {
		return Record{}, fmt.Errorf("decode article entry: %w", err)
	}
	id := string(meta.ID)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidArticleID, id)
	}

	year := YearBucket(meta.Published, meta.Modified, e.clock.Now().Year(), e.cfg.MinYear)
	objectPath := ArticlePath(year, topicName, id)
	data, err := encodeJSON(entries)
	if err != nil {
		return Record{}, fmt.Errorf("encode article: %w", err)
	}
	if _, err := e.store.PutObject(ctx, objectPath, jsonContentType, bytes.NewReader(data)); err != nil {
		return Record{}, fmt.Errorf("store article: %w", err)
	}
	if e.mirror != nil {
		if uri, err := e.mirror.PutObject(ctx, objectPath, jsonContentType, bytes.NewReader(data)); err != nil {
			logger.Warn("mirror upload failed", zap.String("path", objectPath), zap.Error(err))
		} else {
			logger.Debug("article mirrored", zap.String("uri", uri))
		}
	}

	return Record{ArticleID: id, Year: year, Topic: topicName}, nil
}

// removeStale deletes the file of a previous record that a forced refetch
// stored under a different year or topic, so the data tree keeps one copy.
func (e *Engine) removeStale(ctx context.Context, logger *zap.Logger, prev, rec Record) {
	oldPath := ArticlePath(prev.Year, prev.Topic, prev.ArticleID)
	if oldPath == ArticlePath(rec.Year, rec.Topic, rec.ArticleID) {
		return
	}
	if err := e.store.DeleteObject(ctx, oldPath); err != nil && !errors.Is(err, ErrNotFound) {
		logger.Warn("could not remove superseded article file", zap.String("path", oldPath), zap.Error(err))
		return
	}
	logger.Debug("removed superseded article file", zap.String("path", oldPath))
}

// ArticlePath is the store path of an article: svt-<year>/<topic>/<id>.json.
func ArticlePath(year, topicName, articleID string) string {
	return path.Join("svt-"+year, topicName, articleID+".json")
}

// YearBucket derives the storage year from the first four characters of
// published, falling back to modified when published is absent or not a
// number. Years outside [minYear, currentYear] and missing dates map to
// NoDate.
func YearBucket(published, modified string, currentYear, minYear int) string {
	for _, stamp := range []string{published, modified} {
		if len(stamp) < 4 {
			continue
		}
		year, err := strconv.Atoi(stamp[:4])
		if err != nil {
			continue
		}
		if year < minYear || year > currentYear {
			return NoDate
		}
		return strconv.Itoa(year)
	}
	return NoDate
}
