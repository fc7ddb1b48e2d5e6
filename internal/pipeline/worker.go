package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// Worker processes a single document job.
type Worker struct {
	proc *Processor
	log  *slog.Logger
}

func NewWorker(proc *Processor, log *slog.Logger) *Worker {
	return &Worker{proc: proc, log: log}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)

	// Phase 0: Dedup check on the raw upload.
	if !job.overrides.Force {
		existing, err := w.proc.FindDuplicate(ctx, job.ContentHash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if existing != "" {
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			job.SetDocID(existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := w.proc.Extract(ctx, job.Filename, job.FileData())
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetExtracted(doc.Method, len(doc.Pages))
	log.Info("parsed document", "method", doc.Method, "pages", len(doc.Pages))

	// Phase 2: Detect sections
	job.SetStatus(StatusSectioning, "sectioning")
	detected := w.proc.Sections(doc)
	job.SetSectionsDetected(len(detected))

	// Phase 3: Chunk and tag
	job.SetStatus(StatusChunking, "chunking")
	src := Source{DocID: job.DocID, Filename: job.Filename, ContentHash: job.ContentHash}
	res, err := w.proc.Build(src, doc, detected, job.overrides)
	if err != nil {
		log.Error("chunking failed", "error", err)
		job.AddError(fmt.Sprintf("chunk: %s", err))
		job.SetStatus(StatusFailed, "chunking")
		return
	}
	job.SetTotalChunks(res.TotalChunks)
	log.Info("chunked document", "chunks", res.TotalChunks, "sections", res.SectionsCount)

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	if err := w.proc.Save(ctx, res); err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	// The upload is no longer needed once the result is stored.
	job.SetFileData(nil)
	job.SetStatus(StatusCompleted, "done")
}
