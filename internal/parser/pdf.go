package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/sectiongest/internal/doctree"
	"github.com/dgallion1/sectiongest/internal/ocr"
)

// PDFParser handles PDF files. It reads the text layer with the Go library,
// then falls back to pdftotext and finally to OCR for scanned documents.
type PDFParser struct {
	FallbackPdftotext bool
	OCR               ocr.Engine
}

type pdfMethod struct {
	name    string
	extract func(ctx context.Context, path string, data []byte) ([]doctree.Page, error)
}

func (p *PDFParser) methods() []pdfMethod {
	methods := []pdfMethod{{MethodPDFText, func(_ context.Context, path string, _ []byte) ([]doctree.Page, error) {
		texts, err := extractPDFText(path)
		return pagesFromTexts(texts), err
	}}}
	if p.FallbackPdftotext {
		methods = append(methods, pdfMethod{MethodPdftotext, func(ctx context.Context, path string, _ []byte) ([]doctree.Page, error) {
			texts, err := extractPdftotext(ctx, path)
			return pagesFromTexts(texts), err
		}})
	}
	if p.OCR != nil {
		methods = append(methods, pdfMethod{p.OCR.Name(), func(ctx context.Context, _ string, data []byte) ([]doctree.Page, error) {
			pages, err := p.OCR.ExtractPages(ctx, data)
			for i := range pages {
				pages[i].Text = strings.TrimSpace(bidiMarks.Replace(pages[i].Text))
			}
			return pages, err
		}})
	}
	return methods
}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	// ledongthuc/pdf and pdftotext both want a file on disk.
	tmp, err := os.CreateTemp("", "sectiongest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	doc := &doctree.Document{Title: titleFromFilename(filename)}

	var lastErr error
	for _, m := range p.methods() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := m.extract(ctx, tmpPath, data)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", m.name, err)
			continue
		}
		doc.Pages = pages
		if doc.HasText() {
			doc.Method = m.name
			return doc, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoText, lastErr)
	}
	return nil, ErrNoText
}

// extractPDFText returns one string per page of the PDF's text layer.
func extractPDFText(path string) (texts []string, err error) {
	// ledongthuc/pdf panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	texts = make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i-1] = text
	}
	return texts, nil
}

func extractPdftotext(ctx context.Context, path string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

func splitPages(text string) []string {
	return strings.Split(text, "\f")
}
