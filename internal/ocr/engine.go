// Package ocr turns scanned PDFs into page text when no text layer exists.
package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

// Engine extracts page text from a PDF by recognizing rendered pages.
type Engine interface {
	// Name is reported as the extraction method, e.g. "ocr_tesseract".
	Name() string
	// ExtractPages returns non-blank pages. Numbering follows the source PDF.
	ExtractPages(ctx context.Context, pdf []byte) ([]doctree.Page, error)
	// Describe reports whether the engine can run and how it is configured.
	Describe(ctx context.Context) Info
}

// Info describes an engine for the health endpoint.
type Info struct {
	Engine    string   `json:"engine"`
	Available bool     `json:"available"`
	Version   string   `json:"version,omitempty"`
	Languages []string `json:"languages"`
	Error     string   `json:"error,omitempty"`
}

// Config controls OCR invocation.
type Config struct {
	Languages   string        // Tesseract languages joined with +, e.g. "ara+eng+fra".
	DPI         int           // Render resolution.
	PSM         int           // Tesseract page segmentation mode.
	Concurrency int           // Pages recognized in parallel.
	Timeout     time.Duration // Upper bound for one document.
	Binary      string        // ocrmypdf binary (OCRmyPDF engine only).
}

// DefaultConfig matches the settings the service has always used for
// Arabic course material.
func DefaultConfig() Config {
	return Config{
		Languages:   "ara+eng+fra",
		DPI:         300,
		PSM:         6,
		Concurrency: 4,
		Timeout:     5 * time.Minute,
		Binary:      "ocrmypdf",
	}
}

func (c Config) languageList() []string {
	var langs []string
	for _, l := range strings.Split(c.Languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// New returns the engine registered under name ("tesseract" or "ocrmypdf").
func New(name string, cfg Config) (Engine, error) {
	switch strings.ToLower(name) {
	case "", "tesseract":
		return NewTesseract(cfg), nil
	case "ocrmypdf":
		return NewOCRmyPDF(cfg), nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", name)
	}
}
