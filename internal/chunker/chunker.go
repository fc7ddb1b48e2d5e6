package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

// ErrInvalidConfig is returned for window settings that cannot advance.
var ErrInvalidConfig = errors.New("invalid chunk config")

// Config controls chunking behavior.
type Config struct {
	Size    int // Window size in words.
	Overlap int // Words repeated between consecutive windows.
}

// DefaultConfig returns the window used by the ingest endpoints.
func DefaultConfig() Config {
	return Config{
		Size:    600,
		Overlap: 100,
	}
}

// Validate rejects configurations whose window would not move forward.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidConfig, c.Overlap, c.Size)
	}
	return nil
}

// Words slides a window of cfg.Size words over each page, advancing by
// cfg.Size-cfg.Overlap. Windows never cross a page boundary.
func Words(pages []doctree.Page, cfg Config) ([]doctree.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chunks []doctree.Chunk
	for _, page := range pages {
		chunks = appendWindows(chunks, strings.Fields(page.Text), page.Number, cfg)
	}
	return chunks, nil
}

// BySection behaves like Words but also starts a new window at every line
// for which isHeading returns true, so no chunk mixes text from two sections.
func BySection(pages []doctree.Page, cfg Config, isHeading func(line string) bool) ([]doctree.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if isHeading == nil {
		return Words(pages, cfg)
	}

	var chunks []doctree.Chunk
	for _, page := range pages {
		for _, segment := range splitAtHeadings(page.Text, isHeading) {
			chunks = appendWindows(chunks, segment, page.Number, cfg)
		}
	}
	return chunks, nil
}

func appendWindows(chunks []doctree.Chunk, words []string, page int, cfg Config) []doctree.Chunk {
	step := cfg.Size - cfg.Overlap
	for start := 0; start < len(words); start += step {
		end := min(start+cfg.Size, len(words))
		chunks = append(chunks, doctree.Chunk{
			Text: strings.Join(words[start:end], " "),
			Page: page,
		})
	}
	return chunks
}

// splitAtHeadings groups the words of text into segments, each one opened by
// a heading line (except possibly the first).
func splitAtHeadings(text string, isHeading func(string) bool) [][]string {
	var segments [][]string
	var current []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isHeading(line) && len(current) > 0 {
			segments = append(segments, current)
			current = nil
		}
		current = append(current, strings.Fields(line)...)
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}
