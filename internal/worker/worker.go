// Package worker implements the poll/lease/execute loops that drain the
// task queue. A Pool owns one Worker per device slot; each worker leases
// tasks from the store, resolves the engine through dispatch and records the
// terminal outcome with its own worker id so a reassigned lease can never be
// overwritten.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/docqueue/internal/adapter/engine"
	"github.com/fairyhunter13/docqueue/internal/adapter/observability"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// Worker is a single poll loop bound to one device.
type Worker struct {
	ID         string
	Device     int
	repo       domain.TaskRepository
	engines    *engine.Registry
	outputRoot string
	poll       time.Duration
	log        *slog.Logger
}

// NewWorker constructs a worker.
func NewWorker(id string, device int, repo domain.TaskRepository, engines *engine.Registry, outputRoot string, poll time.Duration, log *slog.Logger) *Worker {
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Worker{
		ID: id, Device: device,
		repo: repo, engines: engines,
		outputRoot: outputRoot, poll: poll,
		log: log.With(slog.String("worker_id", id), slog.Int("device", device)),
	}
}

// Run polls for work until ctx is cancelled. An in-flight task is always
// driven to a terminal state before returning.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started")
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		task, err := w.repo.LeaseNext(ctx, w.ID)
		switch {
		case err == nil:
			w.process(ctx, task)
			// Immediately try for the next task while the queue has work.
			continue
		case errors.Is(err, domain.ErrNoTask):
		case ctx.Err() != nil:
			w.log.Info("worker stopping")
			return nil
		default:
			w.log.Error("lease failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			w.log.Info("worker stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// process runs one leased task to a terminal state. The engine runs under
// context.WithoutCancel so shutdown does not abandon a lease mid-flight.
func (w *Worker) process(ctx context.Context, task domain.Task) {
	tracer := otel.Tracer("worker")
	ctx, span := tracer.Start(context.WithoutCancel(ctx), "worker.process")
	defer span.End()

	log := w.log.With(slog.String("task_id", task.ID), slog.String("file", task.FileName))
	observability.TasksProcessing.Inc()
	defer observability.TasksProcessing.Dec()

	eng, err := w.engines.Resolve(task.FileName, task.Backend)
	if err != nil {
		w.finish(ctx, task, "", fmt.Sprintf("no engine for %q (backend %q)", task.FileName, task.Backend), "")
		return
	}
	name := eng.Info().Name
	observability.TasksLeasedTotal.WithLabelValues(name).Inc()
	log = log.With(slog.String("engine", name))

	if err := eng.Available(); err != nil {
		log.Warn("engine unavailable", slog.Any("error", err))
		w.finish(ctx, task, "", fmt.Sprintf("%s engine not available: %v", name, err), name)
		return
	}

	outDir := filepath.Join(w.outputRoot, task.ID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		w.finish(ctx, task, "", fmt.Sprintf("create output dir: %v", err), name)
		return
	}

	start := time.Now()
	err = eng.Parse(ctx, domain.ParseRequest{
		TaskID:    task.ID,
		FileName:  task.FileName,
		FilePath:  task.FilePath,
		OutputDir: outDir,
		Backend:   task.Backend,
		Options:   task.Options,
	})
	observability.TaskDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("task failed", slog.Any("error", err), slog.Duration("took", time.Since(start)))
		w.finish(ctx, task, "", err.Error(), name)
		return
	}
	log.Info("task completed", slog.Duration("took", time.Since(start)))
	w.finish(ctx, task, outDir, "", name)
}

// finish records the terminal state and cleans up the inbound file. When the
// guarded update reports the lease was reassigned, the inbound file is kept
// so the winning worker can still read it.
func (w *Worker) finish(ctx context.Context, task domain.Task, resultPath, errMsg, engineName string) {
	status := domain.TaskCompleted
	if errMsg != "" {
		status = domain.TaskFailed
	}
	applied, err := w.repo.Complete(ctx, task.ID, status, resultPath, errMsg, w.ID)
	if err != nil {
		w.log.Error("complete failed", slog.String("task_id", task.ID), slog.Any("error", err))
		return
	}
	if !applied {
		w.log.Warn("lease reassigned, outcome discarded", slog.String("task_id", task.ID))
		return
	}
	if engineName != "" {
		if status == domain.TaskCompleted {
			observability.TasksCompletedTotal.WithLabelValues(engineName).Inc()
		} else {
			observability.TasksFailedTotal.WithLabelValues(engineName).Inc()
		}
	}
	if task.FilePath != "" {
		if err := os.Remove(task.FilePath); err != nil && !os.IsNotExist(err) {
			w.log.Warn("inbound file cleanup failed", slog.String("path", task.FilePath), slog.Any("error", err))
		}
	}
}
