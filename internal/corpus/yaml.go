package corpus

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/svt-crawler/internal/crawler"
)

// CorpusConfig is the per-year corpus config.yaml.
type CorpusConfig struct {
	Parent   string         `yaml:"parent"`
	Metadata CorpusMetadata `yaml:"metadata"`
}

// CorpusMetadata identifies a year corpus.
type CorpusMetadata struct {
	ID   string      `yaml:"id"`
	Name CorpusNames `yaml:"name"`
}

// CorpusNames holds the display names per language.
type CorpusNames struct {
	Eng string `yaml:"eng"`
	Swe string `yaml:"swe"`
}

// NewCorpusConfig describes the corpus for a svt-<year> directory.
func NewCorpusConfig(corpusID string) CorpusConfig {
	year := corpusID[strings.LastIndex(corpusID, "-")+1:]
	eng, swe := year, year
	if year == crawler.NoDate {
		eng, swe = "unknown date", "okänt datum"
	}
	return CorpusConfig{
		Parent: "../config.yaml",
		Metadata: CorpusMetadata{
			ID: corpusID,
			Name: CorpusNames{
				Eng: "SVT news " + eng,
				Swe: "SVT nyheter " + swe,
			},
		},
	}
}

func (c *Converter) writeCorpusConfig(corpusID, dir string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(NewCorpusConfig(corpusID)); err != nil {
		return fmt.Errorf("encode corpus config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode corpus config: %w", err)
	}

	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	target := filepath.Join(dir, "config.yaml")
	if err := afero.WriteFile(c.fs, target, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	c.printf("%s written\n", target)
	return nil
}
