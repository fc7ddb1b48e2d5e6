package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dgallion1/sectiongest/internal/chunker"
	"github.com/dgallion1/sectiongest/internal/doctree"
	"github.com/dgallion1/sectiongest/internal/pipeline"
)

// MethodProvided marks results built from caller-supplied page text.
const MethodProvided = "provided"

type sectionsRequest struct {
	Title          string         `json:"title"`
	Pages          []doctree.Page `json:"pages"`
	ChunkSize      *int           `json:"chunk_size"`
	Overlap        *int           `json:"overlap"`
	SplitOnSection *bool          `json:"split_on_section"`
}

// handleSections runs heading detection and chunking on already-extracted
// pages. Nothing is stored.
func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req sectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resultError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var text strings.Builder
	pages := make([]doctree.Page, 0, len(req.Pages))
	for i, p := range req.Pages {
		if p.Number <= 0 {
			p.Number = i + 1
		}
		pages = append(pages, p)
		text.WriteString(p.Text)
		text.WriteString("\f")
	}

	doc := &doctree.Document{Title: req.Title, Pages: pages, Method: MethodProvided}
	ov := pipeline.Overrides{
		ChunkSize:      req.ChunkSize,
		Overlap:        req.Overlap,
		SplitOnSection: req.SplitOnSection,
	}
	src := pipeline.Source{
		DocID:       uuid.NewString(),
		ContentHash: pipeline.ContentHashHex([]byte(text.String())),
	}

	res, err := s.proc.Build(src, doc, s.proc.Sections(doc), ov)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, chunker.ErrInvalidConfig) {
			code = http.StatusBadRequest
		}
		resultError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
