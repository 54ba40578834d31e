// Package memory provides an in-process TaskRepository with the same
// ordering and guard semantics as the postgres adapter. It backs unit tests
// and single-node development runs where no database is available.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

// TaskRepo is a mutex-guarded task table.
type TaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

// NewTaskRepo constructs an empty repository.
func NewTaskRepo() *TaskRepo {
	return &TaskRepo{tasks: map[string]*domain.Task{}}
}

// Create implements domain.TaskRepository.
func (r *TaskRepo) Create(_ context.Context, t domain.Task) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.Status = domain.TaskPending
	t.CreatedAt = time.Now().UTC()
	cp := t
	r.tasks[t.ID] = &cp
	return t.ID, nil
}

// LeaseNext implements domain.TaskRepository with the same ordering as the
// postgres lease statement: priority DESC, created_at ASC.
func (r *TaskRepo) LeaseNext(_ context.Context, workerID string) (domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.Task
	for _, t := range r.tasks {
		if t.Status != domain.TaskPending {
			continue
		}
		if best == nil || t.Priority > best.Priority ||
			(t.Priority == best.Priority && t.CreatedAt.Before(best.CreatedAt)) {
			best = t
		}
	}
	if best == nil {
		return domain.Task{}, fmt.Errorf("op=task.lease_next: %w", domain.ErrNoTask)
	}
	now := time.Now().UTC()
	best.Status = domain.TaskProcessing
	best.WorkerID = workerID
	best.StartedAt = &now
	return *best, nil
}

// Complete implements domain.TaskRepository.
func (r *TaskRepo) Complete(_ context.Context, id string, status domain.TaskStatus, resultPath, errMsg, workerID string) (bool, error) {
	if status != domain.TaskCompleted && status != domain.TaskFailed {
		return false, fmt.Errorf("op=task.complete: %w: status %q", domain.ErrInvalidArgument, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != domain.TaskProcessing || t.WorkerID != workerID {
		return false, nil
	}
	now := time.Now().UTC()
	t.Status = status
	t.ResultPath = resultPath
	t.ErrorMessage = errMsg
	t.CompletedAt = &now
	return true, nil
}

// Cancel implements domain.TaskRepository.
func (r *TaskRepo) Cancel(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != domain.TaskPending {
		return false, nil
	}
	now := time.Now().UTC()
	t.Status = domain.TaskCancelled
	t.CompletedAt = &now
	return true, nil
}

// Get implements domain.TaskRepository.
func (r *TaskRepo) Get(_ context.Context, id string) (domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("op=task.get: %w", domain.ErrNotFound)
	}
	return *t, nil
}

// List implements domain.TaskRepository, newest first.
func (r *TaskRepo) List(_ context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Task
	for _, t := range r.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.UserID != "" && t.UserID != f.UserID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats implements domain.TaskRepository.
func (r *TaskRepo) Stats(_ context.Context) (map[domain.TaskStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[domain.TaskStatus]int64{
		domain.TaskPending: 0, domain.TaskProcessing: 0, domain.TaskCompleted: 0,
		domain.TaskFailed: 0, domain.TaskCancelled: 0,
	}
	for _, t := range r.tasks {
		out[t.Status]++
	}
	return out, nil
}

// ResetStale implements domain.TaskRepository.
func (r *TaskRepo) ResetStale(_ context.Context, timeout time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().UTC().Add(-timeout)
	var n int64
	for _, t := range r.tasks {
		if t.Status == domain.TaskProcessing && t.StartedAt != nil && t.StartedAt.Before(cutoff) {
			t.Status = domain.TaskPending
			t.WorkerID = ""
			t.StartedAt = nil
			t.RetryCount++
			n++
		}
	}
	return n, nil
}

// CleanupOld implements domain.TaskRepository.
func (r *TaskRepo) CleanupOld(_ context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().UTC().Add(-age)
	var n int64
	for id, t := range r.tasks {
		if t.Status.Terminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

// ExpiredResults implements domain.TaskRepository.
func (r *TaskRepo) ExpiredResults(_ context.Context, age time.Duration, limit int) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().UTC().Add(-age)
	var out []domain.Task
	for _, t := range r.tasks {
		if (t.Status == domain.TaskCompleted || t.Status == domain.TaskFailed) &&
			t.ResultPath != "" && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ClearResultPath implements domain.TaskRepository.
func (r *TaskRepo) ClearResultPath(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.ResultPath = ""
	}
	return nil
}

// SetCreatedAt backdates a task, test support for ordering and retention
// scenarios.
func (r *TaskRepo) SetCreatedAt(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.CreatedAt = at
	}
}

// SetStartedAt backdates a lease, test support for stale recovery.
func (r *TaskRepo) SetStartedAt(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.StartedAt = &at
	}
}

// SetCompletedAt backdates completion, test support for retention.
func (r *TaskRepo) SetCompletedAt(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.CompletedAt = &at
	}
}
