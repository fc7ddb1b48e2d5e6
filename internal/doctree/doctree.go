package doctree

import (
	"strings"
	"time"
)

// Document is the result of parsing one uploaded file.
type Document struct {
	Title    string   // Document title (from metadata or filename)
	Pages    []Page   // Page texts in document order
	Headings []string // Structural headings reported by the format itself (styles, <h1>, #)
	Method   string   // Extraction method that produced the pages
}

// Page is the raw text of one source page.
type Page struct {
	Number int    `json:"page"`
	Text   string `json:"text"`
}

// Chunk is a word window cut from a single page.
type Chunk struct {
	Text string
	Page int
}

// EnrichedChunk is a Chunk decorated with its resolved section.
type EnrichedChunk struct {
	Text string `json:"text"`
	Meta Meta   `json:"meta"`
}

// Meta carries the location of an EnrichedChunk.
type Meta struct {
	Page    int    `json:"page"`
	Section string `json:"section"`
}

// HasText reports whether any page carries non-blank text.
func (d *Document) HasText() bool {
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// Result is the outcome of ingesting one document: the enriched chunks plus
// what was detected along the way. It is what the API returns and what the
// store persists.
type Result struct {
	Success                bool          `json:"success"`
	DocID                  string        `json:"doc_id"`
	Filename               string        `json:"filename"`
	Title                  string        `json:"title"`
	ContentHash            string        `json:"content_hash"`
	Method                 string        `json:"method"`
	TotalPages             int           `json:"total_pages"`
	TotalChunks            int           `json:"total_chunks"`
	ChunkSize              int           `json:"chunk_size"`
	Overlap                int           `json:"overlap"`
	SplitOnSection         bool          `json:"split_on_section"`
	DetectedSections       []string      `json:"detected_sections"`
	SectionsCount          int           `json:"sections_count"`
	UniqueSectionsInChunks int           `json:"unique_sections_in_chunks"`
	Chunks                 []ResultChunk `json:"chunks"`
	CreatedAt              time.Time     `json:"created_at"`
}

// ResultChunk is an EnrichedChunk with a stable ID and its token count.
type ResultChunk struct {
	ID     string `json:"chunk_id"`
	Index  int    `json:"index"`
	Tokens int    `json:"tokens"`
	EnrichedChunk
}

// Summary is the listing view of a stored Result.
type Summary struct {
	DocID         string    `json:"doc_id"`
	Filename      string    `json:"filename"`
	Title         string    `json:"title"`
	Method        string    `json:"method"`
	TotalPages    int       `json:"total_pages"`
	TotalChunks   int       `json:"total_chunks"`
	SectionsCount int       `json:"sections_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *Result) Summary() Summary {
	return Summary{
		DocID:         r.DocID,
		Filename:      r.Filename,
		Title:         r.Title,
		Method:        r.Method,
		TotalPages:    r.TotalPages,
		TotalChunks:   r.TotalChunks,
		SectionsCount: r.SectionsCount,
		CreatedAt:     r.CreatedAt,
	}
}
