package parser

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

// TextParser handles plain text files. Form feeds separate pages, the way
// pdftotext output does.
type TextParser struct{}

func (p *TextParser) Parse(_ context.Context, r io.Reader, filename string) (*doctree.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var texts []string
	var current strings.Builder

	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "\f")
		for i, part := range parts {
			if i > 0 {
				texts = append(texts, current.String())
				current.Reset()
			}
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(part)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	texts = append(texts, current.String())

	return &doctree.Document{
		Title:  titleFromFilename(filename),
		Pages:  pagesFromTexts(texts),
		Method: MethodText,
	}, nil
}
