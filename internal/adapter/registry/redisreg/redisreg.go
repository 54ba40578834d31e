// Package redisreg shares the worker engine inventory through Redis. Each
// worker pool publishes its engine list under a per-worker key with a TTL;
// the API merges the live keys into one snapshot, so dead workers age out
// without explicit deregistration.
package redisreg

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

const keyPrefix = "docqueue:engines:"

// Registry implements both the worker-side publisher and the API-side
// domain.EngineRegistry over one Redis client.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a registry. The TTL should exceed the heartbeat interval so a
// single missed beat does not drop a worker from the inventory.
func New(client *redis.Client, heartbeat time.Duration) *Registry {
	ttl := 3 * heartbeat
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Registry{client: client, ttl: ttl}
}

// Publish stores the worker's engine inventory, refreshing the TTL.
func (r *Registry) Publish(ctx context.Context, workerID string, engines []domain.EngineStatus) error {
	payload, err := json.Marshal(engines)
	if err != nil {
		return fmt.Errorf("op=redisreg.Publish: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+workerID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("op=redisreg.Publish: %w", err)
	}
	return nil
}

// Snapshot merges the inventories of all live workers. An engine reported
// available by any worker counts as available; otherwise the last reported
// detail wins.
func (r *Registry) Snapshot(ctx context.Context) ([]domain.EngineStatus, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("op=redisreg.Snapshot: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	merged := map[string]domain.EngineStatus{}
	for _, key := range keys {
		raw, err := r.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// Key expired between SCAN and GET.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("op=redisreg.Snapshot: %w", err)
		}
		var engines []domain.EngineStatus
		if err := json.Unmarshal(raw, &engines); err != nil {
			return nil, fmt.Errorf("op=redisreg.Snapshot: decode %s: %w", key, err)
		}
		for _, e := range engines {
			cur, seen := merged[e.Name]
			if !seen || (e.Available && !cur.Available) {
				merged[e.Name] = e
			}
		}
	}

	out := make([]domain.EngineStatus, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
