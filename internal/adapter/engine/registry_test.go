package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

type fakeEngine struct {
	name   string
	availE error
}

func (f fakeEngine) Info() domain.EngineInfo {
	return domain.EngineInfo{Name: f.name, Category: "test"}
}
func (f fakeEngine) Available() error                                 { return f.availE }
func (f fakeEngine) Parse(context.Context, domain.ParseRequest) error { return nil }

func TestRegistry_GetAndResolve(t *testing.T) {
	t.Parallel()
	reg := NewRegistryFrom(
		fakeEngine{name: "mineru"},
		fakeEngine{name: "markitdown"},
	)

	e, err := reg.Get("mineru")
	require.NoError(t, err)
	assert.Equal(t, "mineru", e.Info().Name)

	_, err = reg.Get("sensevoice")
	require.ErrorIs(t, err, domain.ErrEngineUnavailable)

	e, err = reg.Resolve("report.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "mineru", e.Info().Name)

	e, err = reg.Resolve("notes.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "markitdown", e.Info().Name)
}

func TestRegistry_Probe(t *testing.T) {
	t.Parallel()
	reg := NewRegistryFrom(
		fakeEngine{name: "b-engine"},
		fakeEngine{name: "a-engine", availE: errors.New("binary missing")},
	)

	statuses := reg.Probe()
	require.Len(t, statuses, 2)
	// Sorted by name.
	assert.Equal(t, "a-engine", statuses[0].Name)
	assert.False(t, statuses[0].Available)
	assert.Equal(t, "binary missing", statuses[0].Detail)
	assert.True(t, statuses[1].Available)
	assert.Empty(t, statuses[1].Detail)
}

func TestNewRegistry_CoversAllDispatchTargets(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(Options{Device: -1})
	for _, name := range []string{"mineru", "markitdown", "deepseek-ocr", "paddleocr-vl", "sensevoice", "video", "fasta", "genbank"} {
		_, err := reg.Get(name)
		require.NoError(t, err, name)
	}
}

func TestRunner_DeviceBinding(t *testing.T) {
	t.Setenv("CUDA_VISIBLE_DEVICES", "")
	out, err := Runner{Device: 3}.RunCapture(context.Background(), "sh", "-c", `printf %s "$CUDA_VISIBLE_DEVICES"`)
	require.NoError(t, err)
	assert.Equal(t, "3", string(out))

	out, err = Runner{Device: -1}.RunCapture(context.Background(), "sh", "-c", `printf %s "${CUDA_VISIBLE_DEVICES:-unset}"`)
	require.NoError(t, err)
	assert.Equal(t, "unset", string(out))
}

func TestRunner_ErrorCarriesStderrTail(t *testing.T) {
	t.Parallel()
	err := Runner{Device: -1}.Run(context.Background(), "sh", "-c", `echo "model checkpoint missing" >&2; exit 3`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model checkpoint missing")
}
