package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a Store held in process memory. It is used when no database is
// configured and in tests.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]Record
}

func NewMemory() *Memory {
	return &Memory{runs: make(map[string]Record)}
}

func (m *Memory) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	m.runs[rec.ID] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	rec, ok := m.runs[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	out := make([]RunSummary, 0, len(m.runs))
	for _, rec := range m.runs {
		out = append(out, rec.Summary())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, rec := range m.runs {
		if rec.CreatedAt.Before(cutoff) {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}
