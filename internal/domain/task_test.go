package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	t.Parallel()
	allowed := []struct{ from, to TaskStatus }{
		{TaskPending, TaskProcessing},
		{TaskPending, TaskCancelled},
		{TaskProcessing, TaskCompleted},
		{TaskProcessing, TaskFailed},
		{TaskProcessing, TaskPending},
	}
	for _, tc := range allowed {
		assert.True(t, ValidTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
	denied := []struct{ from, to TaskStatus }{
		{TaskPending, TaskCompleted},
		{TaskPending, TaskFailed},
		{TaskProcessing, TaskCancelled},
		{TaskCompleted, TaskPending},
		{TaskFailed, TaskProcessing},
		{TaskCancelled, TaskPending},
	}
	for _, tc := range denied {
		assert.False(t, ValidTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()
	assert.False(t, TaskPending.Terminal())
	assert.False(t, TaskProcessing.Terminal())
	assert.True(t, TaskCompleted.Terminal())
	assert.True(t, TaskFailed.Terminal())
	assert.True(t, TaskCancelled.Terminal())
}

func TestOptionsGetters(t *testing.T) {
	t.Parallel()
	o := Options{
		"lang":           "ch",
		"formula_enable": true,
		"table_enable":   "false",
		"priority":       float64(7),
	}
	assert.Equal(t, "ch", o.String("lang", "en"))
	assert.Equal(t, "en", o.String("missing", "en"))
	assert.True(t, o.Bool("formula_enable", false))
	assert.False(t, o.Bool("table_enable", true))
	assert.True(t, o.Bool("absent", true))
	assert.Equal(t, 7.0, o.Float("priority", 0))
	assert.Equal(t, 3.0, o.Float("absent", 3))

	// Form submissions arrive as strings; numeric getters parse them.
	s := Options{"watermark_conf_threshold": "0.35", "bad": "x"}
	assert.Equal(t, 0.35, s.Float("watermark_conf_threshold", 0))
	assert.Equal(t, 1.0, s.Float("bad", 1))
}
