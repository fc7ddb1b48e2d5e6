package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

// OCRmyPDF shells out to the ocrmypdf CLI and reads its text sidecar.
type OCRmyPDF struct {
	cfg Config
}

// NewOCRmyPDF returns an OCRmyPDF engine. Zero fields in cfg take defaults.
func NewOCRmyPDF(cfg Config) *OCRmyPDF {
	d := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = d.Binary
	}
	if cfg.Languages == "" {
		cfg.Languages = d.Languages
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = d.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &OCRmyPDF{cfg: cfg}
}

func (o *OCRmyPDF) Name() string { return "ocr_ocrmypdf" }

func (o *OCRmyPDF) ExtractPages(ctx context.Context, pdf []byte) ([]doctree.Page, error) {
	input, err := writeTemp("ocr-input-*.pdf", pdf)
	if err != nil {
		return nil, err
	}
	defer os.Remove(input)

	sidecar, err := writeTemp("ocr-sidecar-*.txt", nil)
	if err != nil {
		return nil, err
	}
	defer os.Remove(sidecar)

	output, err := writeTemp("ocr-output-*.pdf", nil)
	if err != nil {
		return nil, err
	}
	defer os.Remove(output)

	cmdCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, o.cfg.Binary, o.args(input, output, sidecar)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ocrmypdf: %w - %s", err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(sidecar)
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	return parseSidecar(data), nil
}

func (o *OCRmyPDF) args(input, output, sidecar string) []string {
	args := []string{
		"--sidecar", sidecar,
		"--quiet",
		"--force-ocr",
		"--jobs", strconv.Itoa(o.cfg.Concurrency),
		"--language", o.cfg.Languages,
	}
	if o.cfg.PSM > 0 {
		args = append(args, "--tesseract-pagesegmode", strconv.Itoa(o.cfg.PSM))
	}
	if o.cfg.DPI > 0 {
		args = append(args, "--image-dpi", strconv.Itoa(o.cfg.DPI))
	}
	return append(args, input, output)
}

func (o *OCRmyPDF) Describe(ctx context.Context) Info {
	info := Info{Engine: "ocrmypdf", Languages: o.cfg.languageList()}

	path, err := exec.LookPath(o.cfg.Binary)
	if err != nil {
		info.Error = fmt.Sprintf("ocrmypdf binary not found (%s)", o.cfg.Binary)
		return info
	}
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		info.Error = fmt.Sprintf("ocrmypdf --version: %v", err)
		return info
	}
	info.Version = strings.TrimSpace(string(out))
	info.Available = true
	return info
}

// parseSidecar splits the sidecar on form feeds. Blank pages are skipped but
// still advance the page number.
func parseSidecar(data []byte) []doctree.Page {
	var pages []doctree.Page
	for i, raw := range strings.Split(string(data), "\f") {
		text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
		if text == "" {
			continue
		}
		pages = append(pages, doctree.Page{Number: i + 1, Text: text})
	}
	return pages
}

func writeTemp(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return f.Name(), nil
}
