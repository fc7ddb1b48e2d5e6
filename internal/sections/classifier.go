// Package sections detects heading-like lines in extracted page text and
// tags word-window chunks with the heading they fall under.
package sections

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

var (
	numberedRe = regexp.MustCompile(`^(\d+|[٠-٩]+)[.\-:]\s*.+`)
	romanRe    = regexp.MustCompile(`(?i)^[IVX]+[.\-:]\s*.+`)
	arabicRe   = regexp.MustCompile(`^[\x{0600}-\x{06FF}\s]{3,40}$`)
	bulletRe   = regexp.MustCompile(`^[•\-*]\s*`)
)

// Classifier decides whether a single line of text looks like a section
// heading. It is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules    Rules
	keywords []string // lower-cased
	log      *slog.Logger
}

// NewClassifier builds a Classifier from rules. A nil logger discards output.
func NewClassifier(rules Rules, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	all := append(append([]string{}, rules.Keywords...), rules.ExtraKeywords...)
	keywords := make([]string, 0, len(all))
	for _, k := range all {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}

	return &Classifier{rules: rules, keywords: keywords, log: log}
}

var defaultClassifier = NewClassifier(DefaultRules(), nil)

// IsHeading reports whether line satisfies any one heading rule.
func (c *Classifier) IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	n := utf8.RuneCountInString(line)
	if n > c.rules.MaxLen || n < c.rules.MinLen {
		return false
	}

	lower := strings.ToLower(line)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}

	if numberedRe.MatchString(line) || romanRe.MatchString(line) {
		return true
	}

	if strings.Contains(line, ":") && n < c.rules.ColonMaxLen {
		return true
	}

	if isUpper(line) && n < c.rules.CapsMaxLen && len(strings.Fields(line)) < c.rules.CapsMaxWords {
		return true
	}

	return c.rules.ScriptFallback && arabicRe.MatchString(line)
}

// Extract returns the normalized heading lines of pages in encounter order.
// Duplicates are kept.
func (c *Classifier) Extract(pages []doctree.Page) []string {
	var headings []string
	for _, page := range pages {
		for _, line := range strings.Split(page.Text, "\n") {
			line = strings.TrimSpace(line)
			if !c.IsHeading(line) {
				continue
			}
			h := normalizeHeading(line)
			if h == "" {
				continue
			}
			c.log.Debug("heading detected", "page", page.Number, "heading", h)
			headings = append(headings, h)
		}
	}
	return headings
}

// Detect merges the structural headings reported by the parser with the ones
// found in the page text. Text headings are only consulted when fewer than
// three structural headings exist.
func (c *Classifier) Detect(doc *doctree.Document) []string {
	var headings []string
	for _, h := range doc.Headings {
		if h = normalizeHeading(h); utf8.RuneCountInString(h) > 3 {
			headings = append(headings, h)
		}
	}
	if len(headings) >= 3 {
		return headings
	}
	return append(headings, c.Extract(doc.Pages)...)
}

// Extract runs the default multilingual classifier over pages.
func Extract(pages []doctree.Page) []string {
	return defaultClassifier.Extract(pages)
}

// normalizeHeading strips a leading bullet and collapses whitespace runs.
func normalizeHeading(line string) string {
	line = bulletRe.ReplaceAllString(strings.TrimSpace(line), "")
	return strings.Join(strings.Fields(line), " ")
}

// isUpper mirrors the usual "all cased letters are upper case" test: at least
// one cased letter and no lower-case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
