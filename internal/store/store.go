// Package store persists ingestion results so they can be listed, fetched
// and deduplicated by content hash.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

// ErrNotFound is returned when a document or hash has no stored result.
var ErrNotFound = errors.New("document not found")

// RetryableError marks a transient backend failure worth retrying.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (%s): %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Store keeps ingestion results keyed by document ID.
type Store interface {
	Put(ctx context.Context, r *doctree.Result) error
	Get(ctx context.Context, docID string) (*doctree.Result, error)
	List(ctx context.Context) ([]doctree.Summary, error)
	Delete(ctx context.Context, docID string) error
	// FindByHash returns the ID of the document stored for a content hash.
	FindByHash(ctx context.Context, hash string) (string, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend       string // bolt, redis or memory
	BoltPath      string
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	TTL           time.Duration // Redis only. Zero keeps results forever.
}

// Open returns the backend named in cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "bolt":
		b, err := NewBolt(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "redis":
		r, err := NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// sortSummaries orders newest first, then by ID for stable output.
func sortSummaries(s []doctree.Summary) {
	slices.SortFunc(s, func(a, b doctree.Summary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	})
}
