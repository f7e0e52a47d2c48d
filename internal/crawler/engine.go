package crawler

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/svt-crawler/internal/clock/system"
)

// Config holds the settings for a crawl session.
// It is decoupled from Viper so the engine can be tested in isolation.
type Config struct {
	APIBase    string
	SitePrefix string
	PageSize   int
	MinYear    int
	Topics     []Topic
}

func (c Config) urls() URLBuilder {
	return URLBuilder{APIBase: c.APIBase, SitePrefix: c.SitePrefix, PageSize: c.PageSize}
}

// Engine drives the pagination walker, the article fetcher and the retry
// coordinator over a single State. It is not safe for concurrent use.
type Engine struct {
	cfg      Config
	urls     URLBuilder
	listings ListingClient
	articles ArticleClient
	store    ObjectStore
	mirror   BlobStore
	state    *State
	clock    Clock
	metrics  Metrics
	out      io.Writer
	logger   *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMirror uploads every stored article to a secondary blob store.
func WithMirror(mirror BlobStore) Option {
	return func(e *Engine) { e.mirror = mirror }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithOutput sets where user-facing progress is printed.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		if w != nil {
			e.out = w
		}
	}
}

// WithClock overrides the clock used for year validation.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// NewEngine wires an Engine. The store holds both the article files and the
// persisted state.
func NewEngine(
	cfg Config,
	listings ListingClient,
	articles ArticleClient,
	store ObjectStore,
	state *State,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MinYear == 0 {
		cfg.MinYear = 2004
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = DefaultTopics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		urls:     cfg.urls(),
		listings: listings,
		articles: articles,
		store:    store,
		state:    state,
		clock:    system.New(),
		metrics:  noopMetrics{},
		out:      io.Discard,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State exposes the engine's crawl state.
func (e *Engine) State() *State {
	return e.state
}

// Crawl walks every configured topic in order. Only state persistence
// errors abort the run; fetch failures are recorded for a later retry.
func (e *Engine) Crawl(ctx context.Context, force bool) ([]TopicStats, error) {
	e.logger.Info("crawl started", zap.Int("topics", len(e.cfg.Topics)), zap.Bool("force", force))
	stats := make([]TopicStats, 0, len(e.cfg.Topics))
	for _, topic := range e.cfg.Topics {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("crawl canceled: %w", err)
		}
		st, err := e.Walk(ctx, topic, force)
		stats = append(stats, st)
		if err != nil {
			return stats, fmt.Errorf("walk %s: %w", topic, err)
		}
	}
	e.logger.Info("crawl finished",
		zap.Int("saved_total", e.state.Ledger.Len()),
		zap.Int("failed_total", e.state.Failures.Len()),
	)
	return stats, nil
}

func (e *Engine) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.out, format, args...)
}
