package engine

import (
	"fmt"
	"sort"

	"github.com/fairyhunter13/docqueue/internal/adapter/engine/bioformats"
	"github.com/fairyhunter13/docqueue/internal/dispatch"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// Registry holds the engine set a worker (or the API's local fallback)
// operates with, keyed by dispatch engine name.
type Registry struct {
	engines map[string]domain.Engine
}

// Options for building the default registry.
type Options struct {
	Device          int
	MinerUModelsDir string
	FFmpegBin       string
}

// NewRegistry builds the full engine set bound to one device.
func NewRegistry(opts Options) *Registry {
	run := Runner{Device: opts.Device}
	engines := []domain.Engine{
		NewMinerU(run, opts.MinerUModelsDir),
		NewMarkItDown(run),
		NewDeepSeekOCR(run),
		NewPaddleOCRVL(run),
		NewSenseVoice(run),
		NewVideo(run, opts.FFmpegBin),
		bioformats.NewFASTA(),
		bioformats.NewGenBank(),
	}
	m := make(map[string]domain.Engine, len(engines))
	for _, e := range engines {
		m[e.Info().Name] = e
	}
	return &Registry{engines: m}
}

// NewRegistryFrom builds a registry over an explicit engine set, mainly for
// tests.
func NewRegistryFrom(engines ...domain.Engine) *Registry {
	m := make(map[string]domain.Engine, len(engines))
	for _, e := range engines {
		m[e.Info().Name] = e
	}
	return &Registry{engines: m}
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (domain.Engine, error) {
	e, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("op=engine.get: %w: %q", domain.ErrEngineUnavailable, name)
	}
	return e, nil
}

// Resolve dispatches fileName/backend to a registered engine.
func (r *Registry) Resolve(fileName, backend string) (domain.Engine, error) {
	return r.Get(dispatch.ChooseEngine(fileName, backend))
}

// Probe reports every registered engine with its live availability, sorted
// by name for stable output.
func (r *Registry) Probe() []domain.EngineStatus {
	out := make([]domain.EngineStatus, 0, len(r.engines))
	for _, e := range r.engines {
		st := domain.EngineStatus{EngineInfo: e.Info(), Available: true}
		if err := e.Available(); err != nil {
			st.Available = false
			st.Detail = err.Error()
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
