package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/sectiongest/internal/api"
	"github.com/dgallion1/sectiongest/internal/chunker"
	"github.com/dgallion1/sectiongest/internal/config"
	"github.com/dgallion1/sectiongest/internal/ocr"
	"github.com/dgallion1/sectiongest/internal/parser"
	"github.com/dgallion1/sectiongest/internal/pipeline"
	"github.com/dgallion1/sectiongest/internal/sections"
	"github.com/dgallion1/sectiongest/internal/stats"
	"github.com/dgallion1/sectiongest/internal/store"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rules, err := sections.LoadRules(cfg.HeadingRulesFile)
	if err != nil {
		log.Error("invalid heading rules", "path", cfg.HeadingRulesFile, "error", err)
		os.Exit(1)
	}

	var engine ocr.Engine
	if cfg.OCREnabled {
		engine, err = ocr.New(cfg.OCREngine, ocr.Config{
			Languages:   cfg.OCRLanguages,
			DPI:         cfg.OCRDPI,
			PSM:         cfg.OCRPSM,
			Concurrency: cfg.OCRConcurrency,
			Timeout:     cfg.OCRTimeout,
			Binary:      "ocrmypdf",
		})
		if err != nil {
			log.Error("invalid ocr engine", "error", err)
			os.Exit(1)
		}
		if info := engine.Describe(ctx); !info.Available {
			log.Warn("ocr engine unavailable, scanned PDFs will fail", "engine", info.Engine, "error", info.Error)
		}
	}

	st, err := store.Open(ctx, store.Config{
		Backend:       cfg.StoreBackend,
		BoltPath:      cfg.BoltPath,
		RedisAddr:     cfg.RedisAddr,
		RedisDB:       cfg.RedisDB,
		RedisPassword: cfg.RedisPassword,
		TTL:           cfg.ResultTTL,
	})
	if err != nil {
		log.Error("open result store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	proc := pipeline.NewProcessor(pipeline.ProcessorConfig{
		Chunk: chunker.Config{Size: cfg.DefaultChunkSize, Overlap: cfg.DefaultChunkOverlap},
		Assign: sections.AssignOptions{
			PrefixLen:       cfg.SectionPrefixLen,
			PagePlaceholder: cfg.PagePlaceholder,
			SplitOnSection:  cfg.SplitOnSection,
		},
		Parser: parser.Options{
			PDFFallbackPdftotext: cfg.PDFFallbackPdftotext,
			OCR:                  engine,
			DOCXPageChars:        cfg.DOCXPageChars,
		},
	}, sections.NewClassifier(rules, log), st, stats.NewLatency(time.Hour), log)

	orch := pipeline.NewOrchestrator(cfg, proc, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, engine, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.OCRTimeout + 30*time.Second, // sync /ingest may OCR
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if err := st.Close(); err != nil {
			log.Error("close result store", "error", err)
		}
	}()

	log.Info("starting sectiongest",
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"ocr_enabled", cfg.OCREnabled,
		"chunk_size", cfg.DefaultChunkSize,
		"overlap", cfg.DefaultChunkOverlap,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
