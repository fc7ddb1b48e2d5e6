package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

var (
	documentsBucket = []byte("documents")
	hashBucket      = []byte("by_hash")
)

// Bolt stores results in a single BoltDB file.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the database at path and ensures its buckets exist.
func NewBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, errors.New("bolt path is required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, &RetryableError{Op: "open bolt", Err: err}
		}
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{documentsBucket, hashBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Put(_ context.Context, r *doctree.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(documentsBucket).Put([]byte(r.DocID), data); err != nil {
			return fmt.Errorf("put document: %w", err)
		}
		if r.ContentHash != "" {
			if err := tx.Bucket(hashBucket).Put([]byte(r.ContentHash), []byte(r.DocID)); err != nil {
				return fmt.Errorf("put hash: %w", err)
			}
		}
		return nil
	})
}

func (b *Bolt) Get(_ context.Context, docID string) (*doctree.Result, error) {
	var result *doctree.Result
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		result, err = getResult(tx, docID)
		return err
	})
	return result, err
}

func getResult(tx *bolt.Tx, docID string) (*doctree.Result, error) {
	data := tx.Bucket(documentsBucket).Get([]byte(docID))
	if data == nil {
		return nil, ErrNotFound
	}
	var r doctree.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", docID, err)
	}
	return &r, nil
}

func (b *Bolt) List(_ context.Context) ([]doctree.Summary, error) {
	summaries := []doctree.Summary{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).ForEach(func(k, v []byte) error {
			var r doctree.Result
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode document %s: %w", k, err)
			}
			summaries = append(summaries, r.Summary())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortSummaries(summaries)
	return summaries, nil
}

func (b *Bolt) Delete(_ context.Context, docID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		r, err := getResult(tx, docID)
		if err != nil {
			return err
		}
		if r.ContentHash != "" {
			hashes := tx.Bucket(hashBucket)
			if string(hashes.Get([]byte(r.ContentHash))) == docID {
				if err := hashes.Delete([]byte(r.ContentHash)); err != nil {
					return fmt.Errorf("delete hash: %w", err)
				}
			}
		}
		return tx.Bucket(documentsBucket).Delete([]byte(docID))
	})
}

func (b *Bolt) FindByHash(_ context.Context, hash string) (string, error) {
	var docID string
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(hashBucket).Get([]byte(hash))
		if v == nil {
			return ErrNotFound
		}
		docID = string(v)
		return nil
	})
	return docID, err
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
