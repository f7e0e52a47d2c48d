package crawler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// NoDate is the year bucket used for articles without a usable date.
const NoDate = "nodate"

// ListingPage is one page of a topic listing as returned by the API.
type ListingPage struct {
	Auto ListingAuto `json:"auto"`
}

// ListingAuto wraps the paginated content of a listing.
type ListingAuto struct {
	Pagination Pagination     `json:"pagination"`
	Content    []ListingEntry `json:"content"`
}

// Pagination carries the total number of items available for a topic.
type Pagination struct {
	TotalAvailableItems int `json:"totalAvailableItems"`
}

// ListingEntry is a single article reference on a listing page.
type ListingEntry struct {
	URL       string `json:"url"`
	Published string `json:"published,omitempty"`
}

// ArticleMeta holds the fields of an article entry the engine depends on.
// The rest of the entry is stored verbatim.
type ArticleMeta struct {
	ID        ArticleID `json:"id"`
	Published string    `json:"published"`
	Modified  string    `json:"modified"`
	URL       string    `json:"url"`
}

// ArticleID accepts both numeric and string identifiers.
type ArticleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ArticleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("decode article id: %w", err)
		}
		*id = ArticleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode article id: %w", err)
	}
	*id = ArticleID(n.String())
	return nil
}

// Record is the ledger entry for one saved article.
// It is serialized as a three element array: [article_id, year, topic].
type Record struct {
	ArticleID string
	Year      string
	Topic     string
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{r.ArticleID, r.Year, r.Topic})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode ledger record: %w", err)
	}
	if len(fields) != 3 {
		return fmt.Errorf("decode ledger record: expected 3 fields, got %d", len(fields))
	}
	var id ArticleID
	if err := json.Unmarshal(fields[0], &id); err != nil {
		return fmt.Errorf("decode ledger record: %w", err)
	}
	var year, topic string
	if err := json.Unmarshal(fields[1], &year); err != nil {
		return fmt.Errorf("decode ledger record year: %w", err)
	}
	if err := json.Unmarshal(fields[2], &topic); err != nil {
		return fmt.Errorf("decode ledger record topic: %w", err)
	}
	r.ArticleID, r.Year, r.Topic = string(id), year, topic
	return nil
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// TopicStats summarizes the outcome of walking one topic.
type TopicStats struct {
	Topic       string
	Items       int
	Pages       int
	PagesFailed int
	Stored      int
	Failed      int
	EarlyStop   bool
}

// RetryStats summarizes one retry pass.
type RetryStats struct {
	Attempted int
	Succeeded int
	Failed    int
}
