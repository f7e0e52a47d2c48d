// Package index rebuilds a ledger-shaped index from article files on disk.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/svt-crawler/internal/crawler"
)

// DefaultOutput is the file name used when none is given.
const DefaultOutput = "crawled_pages_from_files.json"

// Builder scans stored articles under a data directory.
type Builder struct {
	fs      afero.Fs
	dataDir string
	logger  *zap.Logger
}

// Result summarizes one index build.
type Result struct {
	Path    string
	Indexed int
	Skipped int
}

// New creates a Builder over fs rooted at dataDir.
func New(fs afero.Fs, dataDir string, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{fs: fs, dataDir: dataDir, logger: logger}
}

// Scan reads every svt-<year>/<topic>/<id>.json file and keys its record by
// the url of the first content entry. Unreadable files are skipped.
func (b *Builder) Scan() (*crawler.Ledger, int, error) {
	pattern := filepath.Join(b.dataDir, "svt-*", "*", "*.json")
	files, err := afero.Glob(b.fs, pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("glob %s: %w", pattern, err)
	}

	ledger := crawler.NewLedger()
	skipped := 0
	for _, file := range files {
		rec, url, err := b.readArticle(file)
		if err != nil {
			b.logger.Warn("skipping article file", zap.String("path", file), zap.Error(err))
			skipped++
			continue
		}
		ledger.Put(url, rec)
	}
	return ledger, skipped, nil
}

// Build scans the data directory and writes the index to dataDir/out.
func (b *Builder) Build(out string) (Result, error) {
	if out == "" {
		out = DefaultOutput
	}
	if strings.ContainsAny(out, `/\`) {
		return Result{}, fmt.Errorf("output %q must be a file name", out)
	}

	ledger, skipped, err := b.Scan()
	if err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ledger); err != nil {
		return Result{}, fmt.Errorf("encode index: %w", err)
	}

	target := filepath.Join(b.dataDir, out)
	if err := b.fs.MkdirAll(b.dataDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", b.dataDir, err)
	}
	if err := afero.WriteFile(b.fs, target, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", target, err)
	}

	b.logger.Info("index written",
		zap.String("path", target),
		zap.Int("indexed", ledger.Len()),
		zap.Int("skipped", skipped),
	)
	return Result{Path: target, Indexed: ledger.Len(), Skipped: skipped}, nil
}

func (b *Builder) readArticle(file string) (crawler.Record, string, error) {
	data, err := afero.ReadFile(b.fs, file)
	if err != nil {
		return crawler.Record{}, "", err
	}
	var entries []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return crawler.Record{}, "", fmt.Errorf("decode: %w", err)
	}
	if len(entries) == 0 || entries[0].URL == "" {
		return crawler.Record{}, "", crawler.ErrEmptyContent
	}

	topicDir := filepath.Dir(file)
	yearDir := filepath.Base(filepath.Dir(topicDir))
	rec := crawler.Record{
		ArticleID: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
		Year:      strings.TrimPrefix(yearDir, "svt-"),
		Topic:     filepath.Base(topicDir),
	}
	return rec, entries[0].URL, nil
}
