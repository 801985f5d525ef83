package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reelforge/internal/services"
)

// MemoryStore keeps jobs in process memory. It backs tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	jobs  map[string]*RenderJob
	logs  map[string][]LogEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*RenderJob),
		logs: make(map[string][]LogEntry),
	}
}

func (m *MemoryStore) Create(_ context.Context, job *RenderJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id is required", services.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, job.ID)
	}
	stored := job.Clone()
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.jobs[job.ID] = stored
	m.order = append(m.order, job.ID)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*RenderJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id].Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, job *RenderJob) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", services.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return fmt.Errorf("%w: job %s", services.ErrNotFound, job.ID)
	}
	stored := job.Clone()
	stored.UpdatedAt = time.Now().UTC()
	m.jobs[job.ID] = stored
	return nil
}

func (m *MemoryStore) AppendLog(_ context.Context, id string, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	m.logs[id] = append(m.logs[id], entry)
	return nil
}

func (m *MemoryStore) Logs(_ context.Context, id string) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.logs[id]
	out := make([]LogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MemoryStore) List(_ context.Context, filter ListFilter) ([]*RenderJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*RenderJob, 0, len(m.order))
	for _, id := range m.order {
		job := m.jobs[id]
		if !filter.matches(job.Status) {
			continue
		}
		out = append(out, job.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
