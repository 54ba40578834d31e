package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

// TaskRepo persists and leases tasks in PostgreSQL using a minimal pgx pool.
type TaskRepo struct{ Pool PgxPool }

// NewTaskRepo constructs a TaskRepo with the given pool.
func NewTaskRepo(p PgxPool) *TaskRepo { return &TaskRepo{Pool: p} }

const taskColumns = `task_id, user_id, file_name, file_path, backend, options, priority, status, worker_id, retry_count, result_path, error_message, created_at, started_at, completed_at`

// scanner matches both pgx.Row and pgx.Rows.
type scanner interface{ Scan(dest ...any) error }

func scanTask(row scanner) (domain.Task, error) {
	var t domain.Task
	var opts []byte
	if err := row.Scan(&t.ID, &t.UserID, &t.FileName, &t.FilePath, &t.Backend, &opts,
		&t.Priority, &t.Status, &t.WorkerID, &t.RetryCount, &t.ResultPath, &t.ErrorMessage,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
		return domain.Task{}, err
	}
	if len(opts) > 0 {
		if err := json.Unmarshal(opts, &t.Options); err != nil {
			return domain.Task{}, fmt.Errorf("decode options: %w", err)
		}
	}
	return t, nil
}

// Create inserts a new pending task and returns its id.
func (r *TaskRepo) Create(ctx context.Context, t domain.Task) (string, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Create")
	defer span.End()
	id := t.ID
	if id == "" {
		id = uuid.New().String()
	}
	opts, err := json.Marshal(t.Options)
	if err != nil {
		return "", fmt.Errorf("op=task.create: %w: options: %v", domain.ErrInvalidArgument, err)
	}
	if t.Options == nil {
		opts = []byte(`{}`)
	}
	q := `INSERT INTO tasks (task_id, user_id, file_name, file_path, backend, options, priority, status, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = r.Pool.Exec(ctx, q, id, t.UserID, t.FileName, t.FilePath, t.Backend, opts,
		t.Priority, domain.TaskPending, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=task.create: %w", err)
	}
	return id, nil
}

// LeaseNext atomically claims the best pending task for workerID. The inner
// select orders by priority DESC, created_at ASC and skips rows locked by
// concurrent leases, so exactly one caller wins each task.
func (r *TaskRepo) LeaseNext(ctx context.Context, workerID string) (domain.Task, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.LeaseNext")
	defer span.End()
	q := `UPDATE tasks
	      SET status = $2, worker_id = $1, started_at = now()
	      WHERE task_id = (
	          SELECT task_id FROM tasks
	          WHERE status = $3
	          ORDER BY priority DESC, created_at ASC
	          LIMIT 1
	          FOR UPDATE SKIP LOCKED
	      )
	      RETURNING ` + taskColumns
	row := r.Pool.QueryRow(ctx, q, workerID, domain.TaskProcessing, domain.TaskPending)
	t, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Task{}, fmt.Errorf("op=task.lease_next: %w", domain.ErrNoTask)
		}
		return domain.Task{}, fmt.Errorf("op=task.lease_next: %w", err)
	}
	return t, nil
}

// Complete finalizes a processing task as completed or failed. The guard on
// worker_id makes the update a no-op when the lease has been reassigned;
// applied=false tells the caller it lost the race.
func (r *TaskRepo) Complete(ctx context.Context, id string, status domain.TaskStatus, resultPath, errMsg, workerID string) (bool, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Complete")
	defer span.End()
	if status != domain.TaskCompleted && status != domain.TaskFailed {
		return false, fmt.Errorf("op=task.complete: %w: status %q", domain.ErrInvalidArgument, status)
	}
	q := `UPDATE tasks
	      SET status = $2, result_path = $3, error_message = $4, completed_at = now()
	      WHERE task_id = $1 AND status = $5 AND worker_id = $6`
	tag, err := r.Pool.Exec(ctx, q, id, status, resultPath, errMsg, domain.TaskProcessing, workerID)
	if err != nil {
		return false, fmt.Errorf("op=task.complete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Cancel transitions a pending task to cancelled. Tasks in any other state
// are left untouched and applied=false is returned.
func (r *TaskRepo) Cancel(ctx context.Context, id string) (bool, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Cancel")
	defer span.End()
	q := `UPDATE tasks SET status = $2, completed_at = now() WHERE task_id = $1 AND status = $3`
	tag, err := r.Pool.Exec(ctx, q, id, domain.TaskCancelled, domain.TaskPending)
	if err != nil {
		return false, fmt.Errorf("op=task.cancel: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get loads a task by id.
func (r *TaskRepo) Get(ctx context.Context, id string) (domain.Task, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Get")
	defer span.End()
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE task_id = $1`
	t, err := scanTask(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Task{}, fmt.Errorf("op=task.get: %w", domain.ErrNotFound)
		}
		return domain.Task{}, fmt.Errorf("op=task.get: %w", err)
	}
	return t, nil
}

// List returns tasks newest-first, narrowed by the filter.
func (r *TaskRepo) List(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.List")
	defer span.End()
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		q += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("op=task.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("op=task.list: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=task.list: %w", err)
	}
	return out, nil
}

// Stats returns per-status task counts. Statuses with no rows are reported
// as zero so callers always see the full breakdown.
func (r *TaskRepo) Stats(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Stats")
	defer span.End()
	out := map[domain.TaskStatus]int64{
		domain.TaskPending: 0, domain.TaskProcessing: 0, domain.TaskCompleted: 0,
		domain.TaskFailed: 0, domain.TaskCancelled: 0,
	}
	rows, err := r.Pool.Query(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("op=task.stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s domain.TaskStatus
		var n int64
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("op=task.stats: %w", err)
		}
		out[s] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=task.stats: %w", err)
	}
	return out, nil
}

// ResetStale returns long-running processing tasks to pending so another
// worker can pick them up. retry_count records how often that happened.
func (r *TaskRepo) ResetStale(ctx context.Context, timeout time.Duration) (int64, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.ResetStale")
	defer span.End()
	cutoff := time.Now().UTC().Add(-timeout)
	q := `UPDATE tasks
	      SET status = $1, worker_id = '', started_at = NULL, retry_count = retry_count + 1
	      WHERE status = $2 AND started_at < $3`
	tag, err := r.Pool.Exec(ctx, q, domain.TaskPending, domain.TaskProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=task.reset_stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CleanupOld deletes terminal rows that finished more than age ago.
func (r *TaskRepo) CleanupOld(ctx context.Context, age time.Duration) (int64, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.CleanupOld")
	defer span.End()
	cutoff := time.Now().UTC().Add(-age)
	q := `DELETE FROM tasks
	      WHERE status IN ($1, $2, $3) AND completed_at IS NOT NULL AND completed_at < $4`
	tag, err := r.Pool.Exec(ctx, q, domain.TaskCompleted, domain.TaskFailed, domain.TaskCancelled, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=task.cleanup_old: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpiredResults lists terminal tasks past the retention window that still
// reference a result directory on disk.
func (r *TaskRepo) ExpiredResults(ctx context.Context, age time.Duration, limit int) ([]domain.Task, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.ExpiredResults")
	defer span.End()
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().UTC().Add(-age)
	q := `SELECT ` + taskColumns + ` FROM tasks
	      WHERE status IN ($1, $2) AND result_path <> '' AND completed_at IS NOT NULL AND completed_at < $3
	      ORDER BY completed_at ASC LIMIT $4`
	rows, err := r.Pool.Query(ctx, q, domain.TaskCompleted, domain.TaskFailed, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("op=task.expired_results: %w", err)
	}
	defer rows.Close()
	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("op=task.expired_results: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=task.expired_results: %w", err)
	}
	return out, nil
}

// ClearResultPath marks a task's result directory as swept from disk.
func (r *TaskRepo) ClearResultPath(ctx context.Context, id string) error {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.ClearResultPath")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE tasks SET result_path = '' WHERE task_id = $1`, id)
	if err != nil {
		return fmt.Errorf("op=task.clear_result_path: %w", err)
	}
	return nil
}
