package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgallion1/sectiongest/internal/doctree"
)

// Memory is a process-local Store, used in tests and when persistence is
// not wanted. Results are stored as JSON so callers never share pointers.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	hashes map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string][]byte),
		hashes: make(map[string]string),
	}
}

func (m *Memory) Put(_ context.Context, r *doctree.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[r.DocID] = data
	if r.ContentHash != "" {
		m.hashes[r.ContentHash] = r.DocID
	}
	return nil
}

func (m *Memory) Get(_ context.Context, docID string) (*doctree.Result, error) {
	m.mu.RLock()
	data, ok := m.docs[docID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var r doctree.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", docID, err)
	}
	return &r, nil
}

func (m *Memory) List(_ context.Context) ([]doctree.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]doctree.Summary, 0, len(m.docs))
	for id, data := range m.docs {
		var r doctree.Result
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		summaries = append(summaries, r.Summary())
	}
	sortSummaries(summaries)
	return summaries, nil
}

func (m *Memory) Delete(ctx context.Context, docID string) error {
	r, err := m.Get(ctx, docID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, docID)
	if m.hashes[r.ContentHash] == docID {
		delete(m.hashes, r.ContentHash)
	}
	return nil
}

func (m *Memory) FindByHash(_ context.Context, hash string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.hashes[hash]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *Memory) Close() error { return nil }
