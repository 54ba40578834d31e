package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/docqueue/internal/adapter/observability"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// sweepBatchSize bounds how many result directories one sweep pass removes.
const sweepBatchSize = 200

// Maintenance runs the background upkeep loops of the API process: removing
// expired result directories from the shared volume, deleting old terminal
// rows, and recycling tasks whose worker died mid-lease.
type Maintenance struct {
	Repo domain.TaskRepository
	Log  *slog.Logger

	RetentionAge time.Duration
	StaleTimeout time.Duration

	SweepInterval time.Duration
	// CleanupInterval <= 0 disables periodic row deletion.
	CleanupInterval time.Duration
	// StaleInterval <= 0 disables the periodic stale reset; the admin
	// endpoint still covers manual recovery.
	StaleInterval time.Duration
}

// Run blocks until ctx is cancelled, driving all enabled loops.
func (m *Maintenance) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if m.SweepInterval > 0 {
		g.Go(func() error { return m.loop(ctx, m.SweepInterval, m.sweepResults) })
	}
	if m.CleanupInterval > 0 {
		g.Go(func() error { return m.loop(ctx, m.CleanupInterval, m.cleanupRows) })
	}
	if m.StaleInterval > 0 {
		g.Go(func() error { return m.loop(ctx, m.StaleInterval, m.resetStale) })
	}
	return g.Wait()
}

func (m *Maintenance) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// sweepResults removes result directories past the retention age and marks
// the rows as swept so task status stays queryable with data=null.
func (m *Maintenance) sweepResults(ctx context.Context) {
	tasks, err := m.Repo.ExpiredResults(ctx, m.RetentionAge, sweepBatchSize)
	if err != nil {
		m.Log.Error("result sweep query failed", "error", err)
		return
	}
	var swept int
	for _, t := range tasks {
		if t.ResultPath == "" {
			continue
		}
		if err := os.RemoveAll(t.ResultPath); err != nil {
			m.Log.Error("result sweep remove failed", "task_id", t.ID, "path", t.ResultPath, "error", err)
			continue
		}
		if err := m.Repo.ClearResultPath(ctx, t.ID); err != nil {
			m.Log.Error("result sweep clear failed", "task_id", t.ID, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		m.Log.Info("result sweep", "swept", swept, "age", m.RetentionAge)
	}
}

func (m *Maintenance) cleanupRows(ctx context.Context) {
	n, err := m.Repo.CleanupOld(ctx, m.RetentionAge)
	if err != nil {
		m.Log.Error("row cleanup failed", "error", err)
		return
	}
	if n > 0 {
		m.Log.Info("row cleanup", "deleted", n, "age", m.RetentionAge)
	}
}

func (m *Maintenance) resetStale(ctx context.Context) {
	n, err := m.Repo.ResetStale(ctx, m.StaleTimeout)
	if err != nil {
		m.Log.Error("stale reset failed", "error", err)
		return
	}
	if n > 0 {
		observability.StaleResetsTotal.Add(float64(n))
		m.Log.Warn("stale tasks recycled", "count", n, "timeout", m.StaleTimeout)
	}
}
