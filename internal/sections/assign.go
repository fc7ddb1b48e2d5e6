package sections

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/sectiongest/internal/chunker"
	"github.com/dgallion1/sectiongest/internal/doctree"
)

// AssignOptions controls how chunks are tagged.
type AssignOptions struct {
	PrefixLen       int    // Runes of each chunk inspected for a heading. Default 400.
	PagePlaceholder string // Used when no headings exist, formatted with the page. Default "Page %d".
	SplitOnSection  bool   // ChunkAndTag starts a new chunk at every detected heading line.
}

// DefaultAssignOptions returns the options used by the ingest endpoints.
func DefaultAssignOptions() AssignOptions {
	return AssignOptions{
		PrefixLen:       400,
		PagePlaceholder: "Page %d",
	}
}

func (o AssignOptions) withDefaults() AssignOptions {
	d := DefaultAssignOptions()
	if o.PrefixLen <= 0 {
		o.PrefixLen = d.PrefixLen
	}
	if o.PagePlaceholder == "" {
		o.PagePlaceholder = d.PagePlaceholder
	}
	return o
}

func (o AssignOptions) placeholder(page int) string {
	if strings.Contains(o.PagePlaceholder, "%d") {
		return fmt.Sprintf(o.PagePlaceholder, page)
	}
	return fmt.Sprintf("%s %d", o.PagePlaceholder, page)
}

// Assign tags each chunk with a section. A chunk whose opening PrefixLen
// runes contain a section (raw, or with diacritics removed on both sides)
// takes the first such section in detection order; otherwise it inherits
// the section of the previous chunk. The output has one entry per chunk.
func Assign(chunks []doctree.Chunk, sections []string, opts AssignOptions) []doctree.EnrichedChunk {
	opts = opts.withDefaults()
	out := make([]doctree.EnrichedChunk, 0, len(chunks))

	if len(sections) == 0 {
		for _, c := range chunks {
			out = append(out, doctree.EnrichedChunk{
				Text: c.Text,
				Meta: doctree.Meta{Page: c.Page, Section: opts.placeholder(c.Page)},
			})
		}
		return out
	}

	stripped := make([]string, len(sections))
	for i, s := range sections {
		stripped[i] = stripMarks(s)
	}

	current := sections[0]
	for _, c := range chunks {
		prefix := runePrefix(c.Text, opts.PrefixLen)
		plain := stripMarks(prefix)
		for i, s := range sections {
			if s == "" {
				continue
			}
			if strings.Contains(prefix, s) || (stripped[i] != "" && strings.Contains(plain, stripped[i])) {
				current = s
				break
			}
		}
		out = append(out, doctree.EnrichedChunk{
			Text: c.Text,
			Meta: doctree.Meta{Page: c.Page, Section: current},
		})
	}
	return out
}

// ChunkAndTag chunks pages and assigns sections to the result. The only
// error it returns is the chunker's configuration error.
func ChunkAndTag(pages []doctree.Page, sections []string, cfg chunker.Config, opts AssignOptions) ([]doctree.EnrichedChunk, error) {
	var (
		chunks []doctree.Chunk
		err    error
	)
	if opts.SplitOnSection && len(sections) > 0 {
		chunks, err = chunker.BySection(pages, cfg, headingSet(sections))
	} else {
		chunks, err = chunker.Words(pages, cfg)
	}
	if err != nil {
		return nil, err
	}
	return Assign(chunks, sections, opts), nil
}

// headingSet matches lines that normalize to one of the detected sections.
func headingSet(sections []string) func(string) bool {
	set := make(map[string]struct{}, len(sections))
	for _, s := range sections {
		set[s] = struct{}{}
	}
	return func(line string) bool {
		_, ok := set[normalizeHeading(line)]
		return ok
	}
}

func runePrefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// stripMarks removes combining marks (Arabic harakat, Latin accents) so
// optional vowelling does not defeat a match. Hamza and madda (U+0653 to
// U+0655) are kept so NFC restores أ إ آ ؤ ئ.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(optionalMark), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

var optionalMark = runes.Predicate(func(r rune) bool {
	if r >= '\u0653' && r <= '\u0655' {
		return false
	}
	return unicode.Is(unicode.Mn, r)
})
