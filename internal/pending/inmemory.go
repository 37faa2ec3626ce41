package pending

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryQueue is an in-memory Queue for tests and throwaway sessions. Data is
// lost on restart; production sessions use SQLiteQueue.
type MemoryQueue struct {
	mu   sync.RWMutex
	recs map[string]*Record
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{recs: make(map[string]*Record)}
}

// Get implements Queue.
func (q *MemoryQueue) Get(ctx context.Context, id string) (*Record, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	rec, ok := q.recs[id]
	if !ok {
		return nil, nil
	}
	// Return a copy to avoid external modifications
	cp := *rec
	return &cp, nil
}

// Put implements Queue.
func (q *MemoryQueue) Put(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return errors.New("pending put: record id is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	cp := *rec
	q.recs[rec.ID] = &cp
	return nil
}

// Delete implements Queue.
func (q *MemoryQueue) Delete(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.recs, id)
	return nil
}

// ListAll implements Queue, oldest staged first.
func (q *MemoryQueue) ListAll(ctx context.Context) ([]*Record, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]*Record, 0, len(q.recs))
	for _, rec := range q.recs {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StagedAt.Before(out[j].StagedAt)
	})
	return out, nil
}

// Close implements Queue.
func (q *MemoryQueue) Close() error { return nil }

// Ensure MemoryQueue implements the Queue interface.
var _ Queue = (*MemoryQueue)(nil)
