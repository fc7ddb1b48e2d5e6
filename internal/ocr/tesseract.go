package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

// Tesseract renders pages with MuPDF and recognizes them with libtesseract.
type Tesseract struct {
	cfg Config
}

// NewTesseract returns a Tesseract engine. Zero fields in cfg take defaults.
func NewTesseract(cfg Config) *Tesseract {
	d := DefaultConfig()
	if cfg.Languages == "" {
		cfg.Languages = d.Languages
	}
	if cfg.DPI <= 0 {
		cfg.DPI = d.DPI
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = d.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &Tesseract{cfg: cfg}
}

func (t *Tesseract) Name() string { return "ocr_tesseract" }

func (t *Tesseract) ExtractPages(ctx context.Context, pdf []byte) ([]doctree.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf for ocr: %w", err)
	}
	defer doc.Close()

	texts := make([]string, doc.NumPage())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Concurrency)
	for i := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := doc.ImagePNG(i, float64(t.cfg.DPI))
			if err != nil {
				return fmt.Errorf("render page %d: %w", i+1, err)
			}
			text, err := t.recognize(img)
			if err != nil {
				return fmt.Errorf("ocr page %d: %w", i+1, err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pages []doctree.Page
	for i, text := range texts {
		if text == "" {
			continue
		}
		pages = append(pages, doctree.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

func (t *Tesseract) recognize(img []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.cfg.languageList()...); err != nil {
		return "", err
	}
	if t.cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(t.cfg.PSM)); err != nil {
			return "", err
		}
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return "", err
	}
	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (t *Tesseract) Describe(ctx context.Context) Info {
	info := Info{Engine: "tesseract", Languages: t.cfg.languageList()}

	installed, err := gosseract.GetAvailableLanguages()
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Version = gosseract.Version()

	have := make(map[string]bool, len(installed))
	for _, l := range installed {
		have[l] = true
	}
	var missing []string
	for _, l := range info.Languages {
		if !have[l] {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		info.Error = "missing language data: " + strings.Join(missing, ", ")
		return info
	}
	info.Available = true
	return info
}
