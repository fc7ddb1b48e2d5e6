package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

// DOCXParser handles .docx files. Heading-styled paragraphs are reported as
// structural headings and also kept as lines of the page text.
type DOCXParser struct {
	PageChars int
}

func (p *DOCXParser) Parse(_ context.Context, r io.Reader, filename string) (*doctree.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "sectiongest-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	d, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	doc := &doctree.Document{Title: titleFromFilename(filename), Method: MethodDOCX}

	var texts []string
	var current strings.Builder
	currentChars := 0

	flushPage := func() {
		texts = append(texts, current.String())
		current.Reset()
		currentChars = 0
	}

	for _, item := range d.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		if docxIsHeading(para) {
			doc.Headings = append(doc.Headings, text)
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(text)
		currentChars += utf8.RuneCountInString(text)

		if p.PageChars > 0 && currentChars >= p.PageChars {
			flushPage()
		}
	}
	if current.Len() > 0 {
		flushPage()
	}

	doc.Pages = pagesFromTexts(texts)
	return doc, nil
}

func docxIsHeading(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	return style == "title" || (strings.HasPrefix(style, "heading") && len(style) == len("heading")+1)
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
