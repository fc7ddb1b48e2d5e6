package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash"

	"github.com/dgallion1/sectiongest/internal/chunker"
	"github.com/dgallion1/sectiongest/internal/doctree"
	"github.com/dgallion1/sectiongest/internal/parser"
	"github.com/dgallion1/sectiongest/internal/sections"
	"github.com/dgallion1/sectiongest/internal/stats"
	"github.com/dgallion1/sectiongest/internal/store"
)

// Overrides are per-request adjustments to the processor defaults.
type Overrides struct {
	ChunkSize      *int
	Overlap        *int
	SplitOnSection *bool
	Title          string
	Force          bool // Re-ingest even when the content hash is already stored.
}

// Source identifies the upload a Result was built from.
type Source struct {
	DocID       string
	Filename    string
	ContentHash string
}

// ProcessorConfig holds the defaults applied to every document.
type ProcessorConfig struct {
	Chunk  chunker.Config
	Assign sections.AssignOptions
	Parser parser.Options
}

// Processor turns uploaded bytes into a tagged Result. It holds no
// per-document state and is shared by all workers.
type Processor struct {
	cfg        ProcessorConfig
	classifier *sections.Classifier
	store      store.Store
	latency    *stats.Latency
	log        *slog.Logger

	now     func() time.Time
	backoff func(attempt int) time.Duration
}

func NewProcessor(cfg ProcessorConfig, classifier *sections.Classifier, st store.Store, latency *stats.Latency, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if classifier == nil {
		classifier = sections.NewClassifier(sections.DefaultRules(), log)
	}
	if latency == nil {
		latency = stats.NewLatency(time.Hour)
	}
	return &Processor{
		cfg:        cfg,
		classifier: classifier,
		store:      st,
		latency:    latency,
		log:        log,
		now:        time.Now,
		backoff:    Backoff,
	}
}

// Store returns the result store used by Save.
func (p *Processor) Store() store.Store { return p.store }

// Latency returns the per-method extraction latency tracker.
func (p *Processor) Latency() *stats.Latency { return p.latency }

// ChunkConfig resolves the chunk window for a request.
func (p *Processor) ChunkConfig(ov Overrides) chunker.Config {
	cfg := p.cfg.Chunk
	if ov.ChunkSize != nil {
		cfg.Size = *ov.ChunkSize
	}
	if ov.Overlap != nil {
		cfg.Overlap = *ov.Overlap
	}
	return cfg
}

// Extract parses data and records how long the winning method took.
func (p *Processor) Extract(ctx context.Context, filename string, data []byte) (*doctree.Document, error) {
	ps, err := parser.ForFile(filename, p.cfg.Parser)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := ps.Parse(ctx, bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	p.latency.Record(doc.Method, time.Since(start))

	if !doc.HasText() {
		return nil, fmt.Errorf("parse %s: %w", filename, parser.ErrNoText)
	}
	return doc, nil
}

// Sections returns the headings used to tag doc's chunks.
func (p *Processor) Sections(doc *doctree.Document) []string {
	return p.classifier.Detect(doc)
}

// Build chunks doc, assigns sections and assembles the Result.
func (p *Processor) Build(src Source, doc *doctree.Document, detected []string, ov Overrides) (*doctree.Result, error) {
	cfg := p.ChunkConfig(ov)
	opts := p.cfg.Assign
	if ov.SplitOnSection != nil {
		opts.SplitOnSection = *ov.SplitOnSection
	}

	enriched, err := sections.ChunkAndTag(doc.Pages, detected, cfg, opts)
	if err != nil {
		return nil, err
	}

	title := doc.Title
	if ov.Title != "" {
		title = ov.Title
	}
	if detected == nil {
		detected = []string{}
	}

	res := &doctree.Result{
		Success:          true,
		DocID:            src.DocID,
		Filename:         src.Filename,
		Title:            title,
		ContentHash:      src.ContentHash,
		Method:           doc.Method,
		TotalPages:       len(doc.Pages),
		TotalChunks:      len(enriched),
		ChunkSize:        cfg.Size,
		Overlap:          cfg.Overlap,
		SplitOnSection:   opts.SplitOnSection,
		DetectedSections: detected,
		SectionsCount:    len(detected),
		Chunks:           make([]doctree.ResultChunk, len(enriched)),
		CreatedAt:        p.now().UTC(),
	}

	seen := make(map[string]struct{})
	for i, ec := range enriched {
		seen[ec.Meta.Section] = struct{}{}
		res.Chunks[i] = doctree.ResultChunk{
			ID:            chunkID(src.ContentHash, i, ec.Text),
			Index:         i,
			Tokens:        chunker.CountTokens(ec.Text),
			EnrichedChunk: ec,
		}
	}
	res.UniqueSectionsInChunks = len(seen)
	return res, nil
}

// Run extracts, sections and chunks one upload without storing it.
func (p *Processor) Run(ctx context.Context, src Source, data []byte, ov Overrides) (*doctree.Result, error) {
	doc, err := p.Extract(ctx, src.Filename, data)
	if err != nil {
		return nil, err
	}
	return p.Build(src, doc, p.Sections(doc), ov)
}

// FindDuplicate returns the stored document ID for hash, or "" when none exists.
func (p *Processor) FindDuplicate(ctx context.Context, hash string) (string, error) {
	if p.store == nil {
		return "", nil
	}
	id, err := p.store.FindByHash(ctx, hash)
	if err == nil {
		return id, nil
	}
	if isNotFound(err) {
		return "", nil
	}
	return "", err
}

// Save writes r to the store, retrying transient failures.
func (p *Processor) Save(ctx context.Context, r *doctree.Result) error {
	if p.store == nil {
		return nil
	}
	var err error
	for attempt := range MaxRetries {
		err = p.store.Put(ctx, r)
		if err == nil || !IsRetryable(err) {
			break
		}
		p.log.Warn("retryable store error", "doc_id", r.DocID, "attempt", attempt, "error", err)
		if attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("store result %s: %w", r.DocID, err)
	}
	return nil
}

func chunkID(contentHash string, index int, text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64([]byte(fmt.Sprintf("%s:%d:%s", contentHash, index, text))))
}
