package redisreg_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/docqueue/internal/adapter/registry/redisreg"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

func newRegistry(t *testing.T) (*redisreg.Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisreg.New(client, 30*time.Second), mr
}

func status(name string, available bool, detail string) domain.EngineStatus {
	return domain.EngineStatus{
		EngineInfo: domain.EngineInfo{Name: name, Category: "document"},
		Available:  available,
		Detail:     detail,
	}
}

func TestPublishAndSnapshot(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Publish(ctx, "w-1", []domain.EngineStatus{
		status("mineru", true, ""),
		status("sensevoice", false, "binary not found"),
	}))

	snap, err := reg.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	// Sorted by name.
	assert.Equal(t, "mineru", snap[0].Name)
	assert.True(t, snap[0].Available)
	assert.Equal(t, "sensevoice", snap[1].Name)
	assert.Equal(t, "binary not found", snap[1].Detail)
}

func TestSnapshot_MergesWorkers(t *testing.T) {
	t.Parallel()
	reg, _ := newRegistry(t)
	ctx := context.Background()

	// One worker lacks the sensevoice binary, another has it.
	require.NoError(t, reg.Publish(ctx, "w-1", []domain.EngineStatus{
		status("sensevoice", false, "binary not found"),
	}))
	require.NoError(t, reg.Publish(ctx, "w-2", []domain.EngineStatus{
		status("sensevoice", true, ""),
		status("markitdown", true, ""),
	}))

	snap, err := reg.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	byName := map[string]domain.EngineStatus{}
	for _, e := range snap {
		byName[e.Name] = e
	}
	assert.True(t, byName["sensevoice"].Available, "any available worker wins")
	assert.True(t, byName["markitdown"].Available)
}

func TestSnapshot_DeadWorkerAgesOut(t *testing.T) {
	t.Parallel()
	reg, mr := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Publish(ctx, "w-1", []domain.EngineStatus{status("mineru", true, "")}))
	mr.FastForward(2 * time.Minute)

	snap, err := reg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestPublish_RefreshesTTL(t *testing.T) {
	t.Parallel()
	reg, mr := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Publish(ctx, "w-1", []domain.EngineStatus{status("mineru", true, "")}))
	mr.FastForward(time.Minute)
	require.NoError(t, reg.Publish(ctx, "w-1", []domain.EngineStatus{status("mineru", true, "")}))
	mr.FastForward(time.Minute)

	snap, err := reg.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "mineru", snap[0].Name)
}
