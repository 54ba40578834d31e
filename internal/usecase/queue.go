package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fairyhunter13/docqueue/internal/adapter/observability"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// QueueService exposes queue-wide reads and the admin operations.
type QueueService struct {
	Repo domain.TaskRepository
}

// NewQueueService constructs a QueueService.
func NewQueueService(repo domain.TaskRepository) QueueService {
	return QueueService{Repo: repo}
}

// Stats returns per-status counts. Requires QUEUE_VIEW.
func (s QueueService) Stats(ctx context.Context, identity domain.Identity) (map[domain.TaskStatus]int64, error) {
	if !identity.HasPermission(domain.PermQueueView) {
		return nil, fmt.Errorf("op=queue.stats: %w", domain.ErrForbidden)
	}
	return s.Repo.Stats(ctx)
}

// List returns tasks visible to the identity. Callers without TASK_VIEW_ALL
// are silently narrowed to their own tasks.
func (s QueueService) List(ctx context.Context, identity domain.Identity, f domain.TaskFilter) ([]domain.Task, error) {
	if !identity.HasPermission(domain.PermTaskViewAll) {
		f.UserID = identity.UserID
	}
	return s.Repo.List(ctx, f)
}

// Cancel cancels a pending task. Owner or TASK_DELETE_ALL; cancelling a
// task that already left pending is an invalid request.
func (s QueueService) Cancel(ctx context.Context, identity domain.Identity, id string) error {
	task, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !identity.CanAccessTask(task, domain.PermTaskDeleteAll) {
		return fmt.Errorf("op=queue.cancel: %w", domain.ErrForbidden)
	}
	applied, err := s.Repo.Cancel(ctx, id)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("op=queue.cancel: %w: only pending tasks can be cancelled (status %s)", domain.ErrInvalidArgument, task.Status)
	}
	// The staged upload is no longer needed once cancelled. A leftover file
	// is picked up by retention later, so a failed remove is not an error.
	if task.FilePath != "" {
		if err := os.Remove(task.FilePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("staged upload cleanup failed",
				slog.String("task_id", id), slog.String("path", task.FilePath), slog.Any("error", err))
		}
	}
	return nil
}

// Cleanup deletes expired terminal rows. Requires QUEUE_MANAGE.
func (s QueueService) Cleanup(ctx context.Context, identity domain.Identity, age time.Duration) (int64, error) {
	if !identity.HasPermission(domain.PermQueueManage) {
		return 0, fmt.Errorf("op=queue.cleanup: %w", domain.ErrForbidden)
	}
	return s.Repo.CleanupOld(ctx, age)
}

// ResetStale returns stuck processing tasks to pending. Requires
// QUEUE_MANAGE.
func (s QueueService) ResetStale(ctx context.Context, identity domain.Identity, timeout time.Duration) (int64, error) {
	if !identity.HasPermission(domain.PermQueueManage) {
		return 0, fmt.Errorf("op=queue.reset_stale: %w", domain.ErrForbidden)
	}
	n, err := s.Repo.ResetStale(ctx, timeout)
	if err != nil {
		return 0, err
	}
	observability.StaleResetsTotal.Add(float64(n))
	return n, nil
}
