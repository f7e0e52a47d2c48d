package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/svt-crawler/internal/clock/system"
	"github.com/JakeFAU/svt-crawler/internal/crawler"
)

// ProcessedIndexPath is the processed-file index, relative to the data dir.
const ProcessedIndexPath = "processed_json.json"

const (
	batchHeader = "<articles>\n"
	batchFooter = "</articles>"
)

// Config controls where the corpus is read from and written to.
type Config struct {
	DataDir      string
	OutputDir    string
	MaxFileBytes int
	SitePrefix   string
	MinYear      int
}

// Stats summarizes one conversion run.
type Stats struct {
	Topics    int
	Converted int
	Skipped   int
	Failed    int
	Files     int
}

// Converter turns svt-<year>/<topic>/*.json into <year dir>/source/<topic>/<n>.xml.
type Converter struct {
	fs     afero.Fs
	cfg    Config
	clock  crawler.Clock
	out    io.Writer
	logger *zap.Logger
}

// Option customizes a Converter.
type Option func(*Converter)

// WithClock overrides the clock used for date validation.
func WithClock(c crawler.Clock) Option {
	return func(cv *Converter) { cv.clock = c }
}

// WithOutput sets where progress lines are printed.
func WithOutput(w io.Writer) Option {
	return func(cv *Converter) { cv.out = w }
}

// New creates a Converter.
func New(fsys afero.Fs, cfg Config, logger *zap.Logger, opts ...Option) *Converter {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 5000000
	}
	if cfg.MinYear == 0 {
		cfg.MinYear = 2004
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Converter{fs: fsys, cfg: cfg, clock: system.New(), out: io.Discard, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run converts every topic directory. Files already listed in the processed
// index are skipped unless override is set, in which case numbering restarts
// at 1 and existing batch files are overwritten.
func (c *Converter) Run(override bool) (Stats, error) {
	var st Stats
	processed, err := c.loadProcessed()
	if err != nil {
		return st, err
	}

	topicDirs, err := c.topicDirs()
	if err != nil {
		return st, err
	}

	renderer := Renderer{
		SitePrefix:  c.cfg.SitePrefix,
		CurrentYear: c.clock.Now().Year(),
		MinYear:     c.cfg.MinYear,
	}
	for _, topicDir := range topicDirs {
		st.Topics++
		if err := c.convertTopic(renderer, topicDir, override, processed, &st); err != nil {
			return st, err
		}
		if err := c.writeProcessed(processed); err != nil {
			return st, err
		}
	}

	c.logger.Info("xml conversion finished",
		zap.Int("topics", st.Topics),
		zap.Int("converted", st.Converted),
		zap.Int("skipped", st.Skipped),
		zap.Int("failed", st.Failed),
		zap.Int("files", st.Files),
	)
	return st, nil
}

func (c *Converter) convertTopic(
	renderer Renderer,
	topicDir string,
	override bool,
	processed map[string]string,
	st *Stats,
) error {
	yearDir := filepath.Base(filepath.Dir(topicDir))
	corpusDir := filepath.Join(c.cfg.OutputDir, yearDir)
	if err := c.writeCorpusConfig(yearDir, corpusDir); err != nil {
		return err
	}

	contentsDir := filepath.Join(corpusDir, "source", filepath.Base(topicDir))
	counter := 1
	if !override {
		next, err := c.nextBatchNumber(contentsDir)
		if err != nil {
			return err
		}
		counter = next
	}

	files, err := c.articleFiles(topicDir)
	if err != nil {
		return err
	}

	var batch strings.Builder
	batch.WriteString(batchHeader)
	for _, file := range files {
		if done, ok := processed[file]; ok && !override {
			c.printf("Skipping %s, already processed in %s\n", file, done)
			st.Skipped++
			continue
		}

		text, err := c.convertFile(renderer, file)
		if err != nil {
			c.logger.Warn("cannot convert article", zap.String("path", file), zap.Error(err))
			st.Failed++
			continue
		}
		c.logger.Debug("article converted", zap.String("path", file))
		batch.WriteString(text)
		batch.WriteString("\n")
		processed[file] = batchPath(contentsDir, counter)
		st.Converted++

		if batch.Len() > c.cfg.MaxFileBytes {
			if err := c.writeBatch(batch.String(), contentsDir, counter); err != nil {
				return err
			}
			st.Files++
			batch.Reset()
			batch.WriteString(batchHeader)
			counter++
		}
	}

	if batch.Len() > len(batchHeader) {
		if err := c.writeBatch(batch.String(), contentsDir, counter); err != nil {
			return err
		}
		st.Files++
	}
	return nil
}

func (c *Converter) convertFile(renderer Renderer, file string) (string, error) {
	data, err := afero.ReadFile(c.fs, file)
	if err != nil {
		return "", err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(entries) == 0 {
		return "", crawler.ErrEmptyContent
	}
	return renderer.Render(entries[0])
}

func (c *Converter) writeBatch(contents, dir string, n int) error {
	target := batchPath(dir, n)
	c.printf("writing file %s\n", target)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := afero.WriteFile(c.fs, target, []byte(contents+batchFooter), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

func batchPath(dir string, n int) string {
	return filepath.Join(dir, strconv.Itoa(n)+".xml")
}

// nextBatchNumber continues after the highest numbered existing batch file.
func (c *Converter) nextBatchNumber(dir string) (int, error) {
	matches, err := afero.Glob(c.fs, filepath.Join(dir, "*.xml"))
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", dir, err)
	}
	highest := 0
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimSuffix(filepath.Base(m), ".xml"))
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// topicDirs lists svt-*/<topic> directories in lexical order.
func (c *Converter) topicDirs() ([]string, error) {
	matches, err := afero.Glob(c.fs, filepath.Join(c.cfg.DataDir, "svt-*", "*"))
	if err != nil {
		return nil, fmt.Errorf("list topic dirs: %w", err)
	}
	var dirs []string
	for _, m := range matches {
		info, err := c.fs.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		if info.IsDir() {
			dirs = append(dirs, m)
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}

func (c *Converter) articleFiles(topicDir string) ([]string, error) {
	var files []string
	err := afero.Walk(c.fs, topicDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(p) == ".json" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", topicDir, err)
	}
	slices.Sort(files)
	return files, nil
}

func (c *Converter) loadProcessed() (map[string]string, error) {
	processed := make(map[string]string)
	path := filepath.Join(c.cfg.DataDir, ProcessedIndexPath)
	data, err := afero.ReadFile(c.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return processed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return processed, nil
	}
	if err := json.Unmarshal(data, &processed); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if processed == nil {
		processed = make(map[string]string)
	}
	return processed, nil
}

func (c *Converter) writeProcessed(processed map[string]string) error {
	data, err := json.MarshalIndent(processed, "", "  ")
	if err != nil {
		return fmt.Errorf("encode processed index: %w", err)
	}
	if err := c.fs.MkdirAll(c.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", c.cfg.DataDir, err)
	}
	path := filepath.Join(c.cfg.DataDir, ProcessedIndexPath)
	if err := afero.WriteFile(c.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (c *Converter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
