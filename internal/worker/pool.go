package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/docqueue/internal/adapter/engine"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// Publisher pushes a worker's engine inventory and heartbeat to the shared
// registry so the API can report live availability.
type Publisher interface {
	Publish(ctx context.Context, workerID string, engines []domain.EngineStatus) error
}

// PoolConfig describes the worker topology.
type PoolConfig struct {
	Prefix           string
	Devices          []int
	WorkersPerDevice int
	OutputRoot       string
	PollInterval     time.Duration
	// MinerUModelsDir and FFmpegBin are passed through to engine
	// construction.
	MinerUModelsDir string
	FFmpegBin       string
	// HeartbeatInterval <= 0 disables registry publishing.
	HeartbeatInterval time.Duration
}

// Pool runs one worker per device slot until the context is cancelled.
type Pool struct {
	workers   []*Worker
	registry  *engine.Registry
	publisher Publisher
	heartbeat time.Duration
	log       *slog.Logger
}

// NewPool builds the device-bound workers. Worker ids follow
// {prefix}-{host}-{device}-{pid}-{slot} so every loop writes a distinct
// lease owner.
func NewPool(cfg PoolConfig, repo domain.TaskRepository, publisher Publisher, log *slog.Logger) *Pool {
	devices := cfg.Devices
	if len(devices) == 0 {
		devices = []int{-1}
	}
	per := cfg.WorkersPerDevice
	if per < 1 {
		per = 1
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	pid := os.Getpid()

	p := &Pool{publisher: publisher, heartbeat: cfg.HeartbeatInterval, log: log}
	for _, dev := range devices {
		reg := engine.NewRegistry(engine.Options{
			Device:          dev,
			MinerUModelsDir: cfg.MinerUModelsDir,
			FFmpegBin:       cfg.FFmpegBin,
		})
		if p.registry == nil {
			p.registry = reg
		}
		for slot := 0; slot < per; slot++ {
			id := fmt.Sprintf("%s-%s-%d-%d-%d", cfg.Prefix, host, dev, pid, slot)
			p.workers = append(p.workers, NewWorker(id, dev, repo, reg, cfg.OutputRoot, cfg.PollInterval, log))
		}
	}
	return p
}

// Workers exposes the constructed workers, mainly for logging and tests.
func (p *Pool) Workers() []*Worker { return p.workers }

// Registry returns the engine registry of the first device, which carries
// the pool-wide inventory.
func (p *Pool) Registry() *engine.Registry { return p.registry }

// Run starts every worker plus the heartbeat loop and blocks until all have
// returned after ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error { return w.Run(ctx) })
	}
	if p.publisher != nil && p.heartbeat > 0 {
		g.Go(func() error { return p.heartbeatLoop(ctx) })
	}
	return g.Wait()
}

func (p *Pool) heartbeatLoop(ctx context.Context) error {
	id := p.workers[0].ID
	publish := func() {
		if err := p.publisher.Publish(ctx, id, p.registry.Probe()); err != nil {
			p.log.Warn("registry publish failed", slog.Any("error", err))
		}
	}
	publish()
	ticker := time.NewTicker(p.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			publish()
		}
	}
}
