package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/sectiongest/internal/doctree"
	"github.com/dgallion1/sectiongest/internal/ocr"
)

// Extraction methods reported in Document.Method.
const (
	MethodPDFText   = "pdf_text"
	MethodPdftotext = "pdftotext"
	MethodDOCX      = "docx"
	MethodMarkdown  = "markdown"
	MethodHTML      = "html"
	MethodText      = "text"
	MethodCSV       = "csv"
)

// ErrNoText is returned when every extraction method came back empty.
var ErrNoText = errors.New("no extractable text")

// Parser converts raw document bytes into page text.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, filename string) (*doctree.Document, error)
}

// Options configures the parsers returned by ForFile.
type Options struct {
	PDFFallbackPdftotext bool       // Try pdftotext when the Go PDF reader finds nothing.
	OCR                  ocr.Engine // Last resort for scanned PDFs. Nil disables OCR.
	DOCXPageChars        int        // Start a synthetic DOCX page after this many characters. 0 keeps one page.
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext, OCR: opts.OCR}, nil
	case ".docx":
		return &DOCXParser{PageChars: opts.DOCXPageChars}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var bidiMarks = strings.NewReplacer("\u200e", "", "\u200f", "")

// pagesFromTexts numbers texts from 1, strips directional marks and drops
// blank pages without renumbering the rest.
func pagesFromTexts(texts []string) []doctree.Page {
	var pages []doctree.Page
	for i, t := range texts {
		t = strings.TrimSpace(bidiMarks.Replace(t))
		if t == "" {
			continue
		}
		pages = append(pages, doctree.Page{Number: i + 1, Text: t})
	}
	return pages
}
