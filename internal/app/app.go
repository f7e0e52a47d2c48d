// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/svt-crawler/internal/clock/system"
	"github.com/JakeFAU/svt-crawler/internal/config"
	"github.com/JakeFAU/svt-crawler/internal/corpus"
	"github.com/JakeFAU/svt-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/svt-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/svt-crawler/internal/id/uuid"
	"github.com/JakeFAU/svt-crawler/internal/index"
	"github.com/JakeFAU/svt-crawler/internal/logging"
	"github.com/JakeFAU/svt-crawler/internal/metrics"
	"github.com/JakeFAU/svt-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/svt-crawler/internal/storage/gcs"
	"github.com/JakeFAU/svt-crawler/internal/storage/local"
	"github.com/JakeFAU/svt-crawler/internal/svtapi"
)

// Options are the per-invocation inputs that do not come from config.
type Options struct {
	ConfigPath string
	Debug      bool
	Out        io.Writer
}

// App holds the shared services for one command invocation.
// It is built once before a subcommand runs and closed after it returns.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	RunID   string
	Store   *local.BlobStore
	Mirror  *gcs.BlobStore
	API     *svtapi.Client
	Metrics *metrics.Recorder
	Clock   *system.Clock
	FS      afero.Fs
	Out     io.Writer
}

// GetLogger returns the run-scoped logger.
func (a *App) GetLogger() *zap.Logger {
	return a.Logger
}

// New creates and initializes an App from configuration.
// It fails fast if any configured service cannot be initialized.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	base, err := logging.New(cfg.Logging.Development, opts.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}
	l := base.With(zap.String("run_id", runID))

	store, err := local.New(local.Config{BaseDir: cfg.Storage.DataDir})
	if err != nil {
		return nil, fmt.Errorf("init data dir: %w", err)
	}

	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	var mirror *gcs.BlobStore
	if cfg.Storage.GCSBucket != "" {
		l.Info("Mirroring articles to GCS", zap.String("bucket", cfg.Storage.GCSBucket))
		mirror, err = gcs.Dial(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.GCSPrefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs mirror: %w", err)
		}
	}

	recorder := metrics.New()
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.HTTP.RequestsPerSecond,
		Burst: cfg.HTTP.Burst,
	}, recorder)

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	l.Debug("Application services initialized",
		zap.String("data_dir", store.BaseDir()),
		zap.String("api", cfg.API.BaseURL),
	)
	return &App{
		Config:  cfg,
		Logger:  l,
		RunID:   runID,
		Store:   store,
		Mirror:  mirror,
		API:     svtapi.New(fetcher, svtapi.WithLimiter(limiter)),
		Metrics: recorder,
		Clock:   system.New(),
		FS:      afero.NewOsFs(),
		Out:     out,
	}, nil
}

// LoadState reads the ledger and failure queue from the data directory.
func (a *App) LoadState(ctx context.Context) (*crawler.State, error) {
	return crawler.LoadState(ctx, a.Store)
}

// Engine builds a crawl engine over freshly loaded state.
func (a *App) Engine(ctx context.Context) (*crawler.Engine, error) {
	state, err := a.LoadState(ctx)
	if err != nil {
		return nil, err
	}
	opts := []crawler.Option{
		crawler.WithMetrics(a.Metrics),
		crawler.WithOutput(a.Out),
		crawler.WithClock(a.Clock),
	}
	if a.Mirror != nil {
		opts = append(opts, crawler.WithMirror(a.Mirror))
	}
	return crawler.NewEngine(
		crawler.Config{
			APIBase:    a.Config.API.BaseURL,
			SitePrefix: a.Config.API.SitePrefix,
			PageSize:   a.Config.API.PageSize,
			MinYear:    a.Config.Crawler.MinYear,
			Topics:     crawler.ParseTopics(a.Config.Crawler.Topics),
		},
		a.API,
		a.API,
		a.Store,
		state,
		a.Logger,
		opts...,
	), nil
}

// Converter builds the XML corpus converter.
func (a *App) Converter() *corpus.Converter {
	return corpus.New(a.FS, corpus.Config{
		DataDir:      a.Config.Storage.DataDir,
		OutputDir:    a.Config.XML.OutputDir,
		MaxFileBytes: a.Config.XML.MaxFileBytes,
		SitePrefix:   a.Config.API.SitePrefix,
		MinYear:      a.Config.Crawler.MinYear,
	}, a.Logger, corpus.WithClock(a.Clock), corpus.WithOutput(a.Out))
}

// Indexer builds the file-based index builder.
func (a *App) Indexer() *index.Builder {
	return index.New(a.FS, a.Config.Storage.DataDir, a.Logger)
}

// ObserveRun records run gauges from the final state.
func (a *App) ObserveRun(state *crawler.State, started time.Time) {
	a.Metrics.ObserveRun(state.Ledger.Len(), state.Failures.Len(), started, a.Clock.Now())
}

// Close gracefully shuts down all services in the App container.
// It is called by a Cobra hook after the command finishes execution.
func (a *App) Close() {
	if path := a.Config.Metrics.Textfile; path != "" {
		if err := a.Metrics.WriteTextfile(path); err != nil {
			a.Logger.Warn("Error writing metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	if a.Mirror != nil {
		if err := a.Mirror.Close(); err != nil {
			a.Logger.Warn("Error closing GCS client", zap.Error(err))
		}
	}
	// Sync fails on console outputs like /dev/stderr; there is nothing to do about it.
	_ = a.Logger.Sync()
}
