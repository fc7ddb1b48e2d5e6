package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/sectiongest/internal/chunker"
	"github.com/dgallion1/sectiongest/internal/config"
	"github.com/dgallion1/sectiongest/internal/doctree"
	"github.com/dgallion1/sectiongest/internal/parser"
	"github.com/dgallion1/sectiongest/internal/sections"
	"github.com/dgallion1/sectiongest/internal/store"
)

const twoPageText = "Introduction\nalpha beta gamma delta\fChapter 2: Methods\nepsilon zeta eta theta"

func testProcessor(st store.Store) *Processor {
	p := NewProcessor(ProcessorConfig{
		Chunk:  chunker.Config{Size: 4, Overlap: 0},
		Assign: sections.DefaultAssignOptions(),
	}, nil, st, nil, nil)
	p.backoff = func(int) time.Duration { return 0 }
	return p
}

func TestProcessor_Run(t *testing.T) {
	p := testProcessor(nil)
	src := Source{DocID: "doc-1", Filename: "guide.txt", ContentHash: ContentHashHex([]byte(twoPageText))}

	res, err := p.Run(context.Background(), src, []byte(twoPageText), Overrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Success || res.DocID != "doc-1" || res.Method != parser.MethodText {
		t.Errorf("unexpected result header: %+v", res.Summary())
	}
	if res.Title != "guide" {
		t.Errorf("expected title from filename, got %q", res.Title)
	}
	if res.TotalPages != 2 {
		t.Errorf("expected 2 pages, got %d", res.TotalPages)
	}
	wantSections := []string{"Introduction", "Chapter 2: Methods"}
	if strings.Join(res.DetectedSections, "|") != strings.Join(wantSections, "|") {
		t.Errorf("expected sections %v, got %v", wantSections, res.DetectedSections)
	}
	if res.SectionsCount != 2 || res.UniqueSectionsInChunks != 2 {
		t.Errorf("expected 2 sections used, got %d/%d", res.SectionsCount, res.UniqueSectionsInChunks)
	}

	want := []struct {
		text    string
		page    int
		section string
	}{
		{"Introduction alpha beta gamma", 1, "Introduction"},
		{"delta", 1, "Introduction"},
		{"Chapter 2: Methods epsilon", 2, "Chapter 2: Methods"},
		{"zeta eta theta", 2, "Chapter 2: Methods"},
	}
	if res.TotalChunks != len(want) || len(res.Chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(res.Chunks))
	}
	seen := map[string]bool{}
	for i, w := range want {
		c := res.Chunks[i]
		if c.Text != w.text || c.Meta.Page != w.page || c.Meta.Section != w.section {
			t.Errorf("chunk %d: expected %q p%d %q, got %q p%d %q", i, w.text, w.page, w.section, c.Text, c.Meta.Page, c.Meta.Section)
		}
		if c.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
		}
		if c.Tokens <= 0 {
			t.Errorf("chunk %d: expected positive token count", i)
		}
		if len(c.ID) != 16 || seen[c.ID] {
			t.Errorf("chunk %d: expected unique 16-hex ID, got %q", i, c.ID)
		}
		seen[c.ID] = true
	}
}

func TestProcessor_ChunkIDsStable(t *testing.T) {
	p := testProcessor(nil)
	src := Source{DocID: "a", Filename: "x.txt", ContentHash: "h"}

	r1, err := p.Run(context.Background(), src, []byte(twoPageText), Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	src.DocID = "b"
	r2, err := p.Run(context.Background(), src, []byte(twoPageText), Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	for i := range r1.Chunks {
		if r1.Chunks[i].ID != r2.Chunks[i].ID {
			t.Errorf("chunk %d: expected identical IDs across runs, got %q and %q", i, r1.Chunks[i].ID, r2.Chunks[i].ID)
		}
	}
}

func TestProcessor_Overrides(t *testing.T) {
	p := testProcessor(nil)
	size, overlap, split := 100, 10, true

	res, err := p.Run(context.Background(), Source{Filename: "guide.txt"}, []byte(twoPageText), Overrides{
		ChunkSize:      &size,
		Overlap:        &overlap,
		SplitOnSection: &split,
		Title:          "Field Guide",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunkSize != 100 || res.Overlap != 10 || !res.SplitOnSection {
		t.Errorf("expected overrides in result, got size=%d overlap=%d split=%v", res.ChunkSize, res.Overlap, res.SplitOnSection)
	}
	if res.Title != "Field Guide" {
		t.Errorf("expected title override, got %q", res.Title)
	}
	if res.TotalChunks != 2 {
		t.Errorf("expected one chunk per page, got %d", res.TotalChunks)
	}
}

func TestProcessor_InvalidChunkConfig(t *testing.T) {
	p := testProcessor(nil)
	overlap := 4

	_, err := p.Run(context.Background(), Source{Filename: "guide.txt"}, []byte(twoPageText), Overrides{Overlap: &overlap})
	if !errors.Is(err, chunker.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestProcessor_NoText(t *testing.T) {
	p := testProcessor(nil)

	_, err := p.Run(context.Background(), Source{Filename: "blank.txt"}, []byte("  \n\f \n"), Overrides{})
	if !errors.Is(err, parser.ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestProcessor_UnsupportedFormat(t *testing.T) {
	p := testProcessor(nil)

	_, err := p.Run(context.Background(), Source{Filename: "image.png"}, []byte("x"), Overrides{})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestProcessor_RecordsLatency(t *testing.T) {
	p := testProcessor(nil)
	if _, err := p.Extract(context.Background(), "guide.txt", []byte(twoPageText)); err != nil {
		t.Fatal(err)
	}
	snap := p.Latency().Snapshot()
	if s, ok := snap[parser.MethodText]; !ok || s.Count != 1 {
		t.Errorf("expected one text sample, got %+v", snap)
	}
}

func TestProcessor_SaveAndFindDuplicate(t *testing.T) {
	st := store.NewMemory()
	p := testProcessor(st)
	ctx := context.Background()

	id, err := p.FindDuplicate(ctx, "hash-1")
	if err != nil || id != "" {
		t.Fatalf("expected no duplicate, got %q, %v", id, err)
	}

	res := &doctree.Result{DocID: "doc-1", ContentHash: "hash-1", CreatedAt: time.Now()}
	if err := p.Save(ctx, res); err != nil {
		t.Fatal(err)
	}
	id, err = p.FindDuplicate(ctx, "hash-1")
	if err != nil || id != "doc-1" {
		t.Fatalf("expected duplicate doc-1, got %q, %v", id, err)
	}
}

// flakyStore fails Put with a retryable error a fixed number of times.
type flakyStore struct {
	*store.Memory
	mu       sync.Mutex
	failures int
	calls    int
	fatal    bool
}

func (f *flakyStore) Put(ctx context.Context, r *doctree.Result) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if f.fatal {
		return errors.New("disk full")
	}
	if fail {
		return &store.RetryableError{Op: "put", Err: errors.New("connection reset")}
	}
	return f.Memory.Put(ctx, r)
}

func TestProcessor_SaveRetries(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), failures: 2}
	p := testProcessor(st)

	if err := p.Save(context.Background(), &doctree.Result{DocID: "doc-1"}); err != nil {
		t.Fatalf("expected save to succeed after retries, got %v", err)
	}
	if st.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", st.calls)
	}
}

func TestProcessor_SaveGivesUp(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), failures: 10}
	p := testProcessor(st)

	err := p.Save(context.Background(), &doctree.Result{DocID: "doc-1"})
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error after exhausting retries, got %v", err)
	}
	if st.calls != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, st.calls)
	}
}

func TestProcessor_SaveNoWaitAfterLastAttempt(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), failures: 10}
	p := testProcessor(st)
	var waits []int
	p.backoff = func(attempt int) time.Duration {
		waits = append(waits, attempt)
		return 0
	}

	if err := p.Save(context.Background(), &doctree.Result{DocID: "doc-1"}); err == nil {
		t.Fatal("expected error")
	}
	if len(waits) != MaxRetries-1 {
		t.Errorf("expected %d backoff waits, got %v", MaxRetries-1, waits)
	}
}

func TestProcessor_SaveNonRetryable(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), fatal: true}
	p := testProcessor(st)

	if err := p.Save(context.Background(), &doctree.Result{DocID: "doc-1"}); err == nil {
		t.Fatal("expected error")
	}
	if st.calls != 1 {
		t.Errorf("expected a single attempt, got %d", st.calls)
	}
}

func TestBackoff_Capped(t *testing.T) {
	for attempt := range 10 {
		d := Backoff(attempt)
		if d <= 0 || d > 45*time.Second {
			t.Errorf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestWorker_Process(t *testing.T) {
	st := store.NewMemory()
	w := NewWorker(testProcessor(st), discardLogger())
	job := NewJob("guide.txt", []byte(twoPageText), Overrides{})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalPages != 2 || snap.Progress.SectionsDetected != 2 || snap.Progress.TotalChunks != 4 {
		t.Errorf("unexpected progress: %+v", snap.Progress)
	}
	if job.FileData() != nil {
		t.Error("expected upload to be released after storing")
	}

	res, err := st.Get(context.Background(), job.DocID)
	if err != nil {
		t.Fatalf("expected stored result, got %v", err)
	}
	if res.ContentHash != job.ContentHash || res.TotalChunks != 4 {
		t.Errorf("unexpected stored result: %+v", res.Summary())
	}
}

func TestWorker_DuplicateSkipped(t *testing.T) {
	st := store.NewMemory()
	w := NewWorker(testProcessor(st), discardLogger())

	first := NewJob("guide.txt", []byte(twoPageText), Overrides{})
	w.Process(context.Background(), first)

	second := NewJob("copy.txt", []byte(twoPageText), Overrides{})
	w.Process(context.Background(), second)

	snap := second.Snapshot()
	if snap.Status != StatusDupSkipped {
		t.Fatalf("expected duplicate_skipped, got %q", snap.Status)
	}
	if snap.DocID != first.DocID {
		t.Errorf("expected duplicate to point at %q, got %q", first.DocID, snap.DocID)
	}

	forced := NewJob("copy.txt", []byte(twoPageText), Overrides{Force: true})
	w.Process(context.Background(), forced)
	if s := forced.Snapshot(); s.Status != StatusCompleted || s.DocID == first.DocID {
		t.Errorf("expected forced re-ingest to complete as a new document, got %q %q", s.Status, s.DocID)
	}
}

func TestWorker_ParseFailure(t *testing.T) {
	w := NewWorker(testProcessor(store.NewMemory()), discardLogger())
	job := NewJob("blank.txt", []byte("   "), Overrides{})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("expected failed at parsing, got %q/%q", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected one error, got %v", snap.Progress.Errors)
	}
}

func TestWorker_ChunkFailure(t *testing.T) {
	w := NewWorker(testProcessor(store.NewMemory()), discardLogger())
	size := 0
	job := NewJob("guide.txt", []byte(twoPageText), Overrides{ChunkSize: &size})

	w.Process(context.Background(), job)

	if snap := job.Snapshot(); snap.Status != StatusFailed || snap.Phase != "chunking" {
		t.Errorf("expected failed at chunking, got %q/%q", snap.Status, snap.Phase)
	}
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 4, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, testProcessor(store.NewMemory()), discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("guide.txt", []byte(twoPageText), Overrides{})
	if err := o.Submit(job); err != nil {
		t.Fatal(err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("expected job to be registered")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := job.Snapshot().Status; s == StatusCompleted || s == StatusFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s := job.Snapshot().Status; s != StatusCompleted {
		t.Fatalf("expected completed, got %q", s)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	// Not started, so nothing drains the queue.
	o := NewOrchestrator(cfg, testProcessor(store.NewMemory()), discardLogger())

	if err := o.Submit(NewJob("a.txt", []byte("a"), Overrides{})); err != nil {
		t.Fatal(err)
	}
	full := NewJob("b.txt", []byte("b"), Overrides{})
	if err := o.Submit(full); err == nil {
		t.Fatal("expected queue full error")
	}
	if full.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed")
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 4, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, testProcessor(store.NewMemory()), discardLogger())
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	job := NewJob("late.txt", []byte(twoPageText), Overrides{})
	if err := o.Submit(job); err == nil {
		t.Fatal("expected error submitting to a stopped pipeline")
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", job.Snapshot().Status)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
