package postgres_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/docqueue/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

func TestTaskRepo_Create_AssignsID(t *testing.T) {
	t.Parallel()
	pool := &poolStub{}
	repo := postgres.NewTaskRepo(pool)

	id, err := repo.Create(context.Background(), domain.Task{
		UserID:   "u-1",
		FileName: "doc.pdf",
		FilePath: "/uploads/x_doc.pdf",
		Backend:  "pipeline",
		Options:  domain.Options{"lang": "en"},
		Priority: 5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Contains(t, pool.lastSQL, "INSERT INTO tasks")
	// status is always forced to pending on insert
	assert.Contains(t, pool.lastArgs, domain.TaskPending)
}

func TestTaskRepo_Create_PoolError(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execErr: errors.New("boom")}
	repo := postgres.NewTaskRepo(pool)

	_, err := repo.Create(context.Background(), domain.Task{UserID: "u-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=task.create")
}

func TestTaskRepo_LeaseNext_Claims(t *testing.T) {
	t.Parallel()
	started := time.Now().UTC()
	want := domain.Task{
		ID: "t-1", UserID: "u-1", FileName: "doc.pdf", Backend: "pipeline",
		Status: domain.TaskProcessing, WorkerID: "w-host-0-1", Priority: 9,
		CreatedAt: started.Add(-time.Minute), StartedAt: &started,
	}
	pool := &poolStub{row: rowStub{scan: scanTaskRow(want)}}
	repo := postgres.NewTaskRepo(pool)

	got, err := repo.LeaseNext(context.Background(), "w-host-0-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, domain.TaskProcessing, got.Status)
	assert.Equal(t, "w-host-0-1", got.WorkerID)
	assert.Contains(t, pool.lastSQL, "FOR UPDATE SKIP LOCKED")
	assert.Contains(t, pool.lastSQL, "ORDER BY priority DESC, created_at ASC")
}

func TestTaskRepo_LeaseNext_Empty(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewTaskRepo(pool)

	_, err := repo.LeaseNext(context.Background(), "w-1")
	require.ErrorIs(t, err, domain.ErrNoTask)
}

func TestTaskRepo_Complete_Applied(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewTaskRepo(pool)

	applied, err := repo.Complete(context.Background(), "t-1", domain.TaskCompleted, "/results/t-1", "", "w-1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Contains(t, pool.lastSQL, "worker_id = $6")
}

func TestTaskRepo_Complete_WorkerMismatch(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := postgres.NewTaskRepo(pool)

	applied, err := repo.Complete(context.Background(), "t-1", domain.TaskFailed, "", "engine crashed", "w-stale")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestTaskRepo_Complete_RejectsNonTerminalStatus(t *testing.T) {
	t.Parallel()
	repo := postgres.NewTaskRepo(&poolStub{})

	_, err := repo.Complete(context.Background(), "t-1", domain.TaskPending, "", "", "w-1")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestTaskRepo_Cancel_PendingOnly(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := postgres.NewTaskRepo(pool)

	applied, err := repo.Cancel(context.Background(), "t-1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Contains(t, pool.lastArgs, domain.TaskPending)

	pool.execTag = pgconn.NewCommandTag("UPDATE 0")
	applied, err = repo.Cancel(context.Background(), "t-2")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestTaskRepo_Get_NotFound(t *testing.T) {
	t.Parallel()
	pool := &poolStub{row: rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}}
	repo := postgres.NewTaskRepo(pool)

	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskRepo_Get_DecodesOptions(t *testing.T) {
	t.Parallel()
	want := domain.Task{
		ID: "t-1", UserID: "u-1", Status: domain.TaskCompleted,
		Options: domain.Options{"lang": "ch", "formula_enable": true},
	}
	pool := &poolStub{row: rowStub{scan: scanTaskRow(want)}}
	repo := postgres.NewTaskRepo(pool)

	got, err := repo.Get(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "ch", got.Options.String("lang", ""))
	assert.True(t, got.Options.Bool("formula_enable", false))
}

func TestTaskRepo_List_Filters(t *testing.T) {
	t.Parallel()
	pool := &poolStub{rows: &rowsStub{scans: []func(dest ...any) error{
		scanTaskRow(domain.Task{ID: "t-2", UserID: "u-1", Status: domain.TaskPending}),
		scanTaskRow(domain.Task{ID: "t-1", UserID: "u-1", Status: domain.TaskPending}),
	}}}
	repo := postgres.NewTaskRepo(pool)

	out, err := repo.List(context.Background(), domain.TaskFilter{Status: domain.TaskPending, UserID: "u-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "t-2", out[0].ID)
	assert.Contains(t, pool.lastSQL, "status = $1")
	assert.Contains(t, pool.lastSQL, "user_id = $2")
	assert.Equal(t, []any{domain.TaskPending, "u-1", 10}, pool.lastArgs)
}

func TestTaskRepo_Stats_FillsZeroes(t *testing.T) {
	t.Parallel()
	pool := &poolStub{rows: &rowsStub{scans: []func(dest ...any) error{
		func(dest ...any) error {
			*dest[0].(*domain.TaskStatus) = domain.TaskPending
			*dest[1].(*int64) = 3
			return nil
		},
	}}}
	repo := postgres.NewTaskRepo(pool)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats[domain.TaskPending])
	assert.Equal(t, int64(0), stats[domain.TaskProcessing])
	assert.Len(t, stats, 5)
}

func TestTaskRepo_ResetStale(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTag: pgconn.NewCommandTag("UPDATE 2")}
	repo := postgres.NewTaskRepo(pool)

	n, err := repo.ResetStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, pool.lastSQL, "retry_count = retry_count + 1")
	cutoff, ok := pool.lastArgs[2].(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().UTC().Add(-time.Hour), cutoff, 5*time.Second)
}

func TestTaskRepo_CleanupOld(t *testing.T) {
	t.Parallel()
	pool := &poolStub{execTag: pgconn.NewCommandTag("DELETE 4")}
	repo := postgres.NewTaskRepo(pool)

	n, err := repo.CleanupOld(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.True(t, strings.Contains(pool.lastSQL, "DELETE FROM tasks"))
}

func TestTaskRepo_ExpiredResults_And_Clear(t *testing.T) {
	t.Parallel()
	done := time.Now().UTC().Add(-8 * 24 * time.Hour)
	pool := &poolStub{rows: &rowsStub{scans: []func(dest ...any) error{
		scanTaskRow(domain.Task{ID: "t-old", Status: domain.TaskCompleted, ResultPath: "/results/t-old", CompletedAt: &done}),
	}}}
	repo := postgres.NewTaskRepo(pool)

	out, err := repo.ExpiredResults(context.Background(), 7*24*time.Hour, 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/results/t-old", out[0].ResultPath)

	require.NoError(t, repo.ClearResultPath(context.Background(), "t-old"))
	assert.Contains(t, pool.lastSQL, "result_path = ''")
}
