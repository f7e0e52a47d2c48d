package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Object paths of the persistent crawl state, relative to the data store.
const (
	LedgerPath   = "crawled_pages.json"
	FailuresPath = "failed_urls.json"
)

const jsonContentType = "application/json"

// Ledger maps the short URL of every saved article to its record.
type Ledger struct {
	records map[string]Record
	dirty   bool
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[string]Record)}
}

// Has reports whether shortURL has been saved.
func (l *Ledger) Has(shortURL string) bool {
	_, ok := l.records[shortURL]
	return ok
}

// Get returns the record for shortURL.
func (l *Ledger) Get(shortURL string) (Record, bool) {
	rec, ok := l.records[shortURL]
	return rec, ok
}

// Put records a saved article.
func (l *Ledger) Put(shortURL string, rec Record) {
	l.records[shortURL] = rec
	l.dirty = true
}

// Len returns the number of saved articles.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Dirty reports whether the ledger changed since it was loaded or last flushed.
func (l *Ledger) Dirty() bool {
	return l.dirty
}

// URLs returns the saved short URLs in sorted order.
func (l *Ledger) URLs() []string {
	urls := make([]string, 0, len(l.records))
	for u := range l.records {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// MarshalJSON implements json.Marshaler.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.records)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	records := make(map[string]Record)
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	if records == nil {
		records = make(map[string]Record)
	}
	l.records = records
	return nil
}

// FailureQueue is an insertion ordered set of URLs whose last attempt failed.
type FailureQueue struct {
	urls  []string
	index map[string]struct{}
}

// NewFailureQueue returns an empty queue.
func NewFailureQueue() *FailureQueue {
	return &FailureQueue{index: make(map[string]struct{})}
}

// Add appends url unless it is already queued. It reports whether it was added.
func (q *FailureQueue) Add(url string) bool {
	if _, ok := q.index[url]; ok {
		return false
	}
	q.index[url] = struct{}{}
	q.urls = append(q.urls, url)
	return true
}

// Remove drops url from the queue. It reports whether it was present.
func (q *FailureQueue) Remove(url string) bool {
	if _, ok := q.index[url]; !ok {
		return false
	}
	delete(q.index, url)
	q.urls = slices.DeleteFunc(q.urls, func(u string) bool { return u == url })
	return true
}

// Contains reports whether url is queued.
func (q *FailureQueue) Contains(url string) bool {
	_, ok := q.index[url]
	return ok
}

// Len returns the number of queued URLs.
func (q *FailureQueue) Len() int {
	return len(q.urls)
}

// URLs returns a copy of the queued URLs in insertion order.
func (q *FailureQueue) URLs() []string {
	return slices.Clone(q.urls)
}

// MarshalJSON implements json.Marshaler.
func (q *FailureQueue) MarshalJSON() ([]byte, error) {
	if q.urls == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(q.urls)
}

// UnmarshalJSON implements json.Unmarshaler. Duplicates are dropped.
func (q *FailureQueue) UnmarshalJSON(data []byte) error {
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return err
	}
	*q = *NewFailureQueue()
	for _, u := range urls {
		q.Add(u)
	}
	return nil
}

// State is the crawl state owned by a single crawl or retry run.
type State struct {
	Ledger   *Ledger
	Failures *FailureQueue
	store    ObjectStore
}

// LoadState reads the ledger and failure queue from store.
// Missing objects load as empty.
func LoadState(ctx context.Context, store ObjectStore) (*State, error) {
	s := &State{
		Ledger:   NewLedger(),
		Failures: NewFailureQueue(),
		store:    store,
	}
	if err := loadJSON(ctx, store, LedgerPath, s.Ledger); err != nil {
		return nil, err
	}
	if err := loadJSON(ctx, store, FailuresPath, s.Failures); err != nil {
		return nil, err
	}
	return s, nil
}

// FlushLedger overwrites the persisted ledger.
func (s *State) FlushLedger(ctx context.Context) error {
	if err := writeJSON(ctx, s.store, LedgerPath, s.Ledger); err != nil {
		return err
	}
	s.Ledger.dirty = false
	return nil
}

// FlushFailures overwrites the persisted failure queue.
func (s *State) FlushFailures(ctx context.Context) error {
	return writeJSON(ctx, s.store, FailuresPath, s.Failures)
}

// Flush persists both structures.
func (s *State) Flush(ctx context.Context) error {
	if err := s.FlushFailures(ctx); err != nil {
		return err
	}
	return s.FlushLedger(ctx)
}

func loadJSON(ctx context.Context, store ObjectStore, path string, v any) error {
	data, err := store.GetObject(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(ctx context.Context, store BlobStore, path string, v any) error {
	data, err := encodeJSON(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if _, err := store.PutObject(ctx, path, jsonContentType, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// encodeJSON indents with two spaces and keeps non-ASCII and HTML characters unescaped.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
