package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harishchavandke01/FaceClear/internal/model"
)

// Memory keeps every job in a map for the life of the process.
type Memory struct {
	mu     sync.RWMutex
	jobs   map[string]*model.Job
	logger *slog.Logger
	now    func() time.Time
}

func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		jobs:   make(map[string]*model.Job),
		logger: logger,
		now:    time.Now,
	}
}

func (m *Memory) Create(_ context.Context, id, uploadName string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[id]; exists {
		return model.Job{}, model.ErrDuplicateID
	}
	job := newJob(id, uploadName, m.now)
	m.jobs[id] = &job
	return job.Clone(), nil
}

func (m *Memory) Get(_ context.Context, id string) (model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[id]
	if !exists {
		return model.Job{}, model.ErrNotFound
	}
	return job.Clone(), nil
}

func (m *Memory) Update(_ context.Context, id string, patch model.JobPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[id]
	if !exists {
		m.logger.Warn("update for unknown job", "job_id", id)
		return
	}
	if !patch.Apply(job, m.now().UTC()) {
		m.logger.Warn("job update rejected", "job_id", id, "status", job.Status)
	}
}

func (m *Memory) Close() error { return nil }
