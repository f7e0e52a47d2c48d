// Package svtapi decodes listing and article responses from the SVT content API.
package svtapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JakeFAU/svt-crawler/internal/crawler"
)

// ErrDecode wraps responses that are not the expected JSON shape.
var ErrDecode = errors.New("unexpected response body")

// Waiter paces outbound requests.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Client implements crawler.ListingClient and crawler.ArticleClient on top
// of a crawler.Fetcher.
type Client struct {
	fetcher crawler.Fetcher
	limiter Waiter
}

// Option customizes a Client.
type Option func(*Client)

// WithLimiter makes every request wait on l before it is sent.
func WithLimiter(l Waiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// New returns a Client.
func New(fetcher crawler.Fetcher, opts ...Option) *Client {
	c := &Client{fetcher: fetcher}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type articleResponse struct {
	Articles struct {
		Content []json.RawMessage `json:"content"`
	} `json:"articles"`
}

// FetchListing fetches and decodes one listing page.
func (c *Client) FetchListing(ctx context.Context, pageURL string) (crawler.ListingPage, error) {
	var page crawler.ListingPage
	if err := c.getJSON(ctx, pageURL, &page); err != nil {
		return crawler.ListingPage{}, err
	}
	return page, nil
}

// FetchArticle fetches an article and returns its raw content entries.
func (c *Client) FetchArticle(ctx context.Context, articleURL string) ([]json.RawMessage, error) {
	var resp articleResponse
	if err := c.getJSON(ctx, articleURL, &resp); err != nil {
		return nil, err
	}
	return resp.Articles.Content, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, rawURL); err != nil {
			return fmt.Errorf("get %s: %w", rawURL, err)
		}
	}
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: rawURL})
	if err != nil {
		return fmt.Errorf("get %s: %w", rawURL, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("get %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("%w from %s: %w", ErrDecode, rawURL, err)
	}
	return nil
}
