package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New(true, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(false, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestWithFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithFields(zap.New(core), zap.String("project_id", "p1")).Info("assigned")

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "p1", entries[0].ContextMap()["project_id"])

	assert.NotPanics(t, func() { WithFields(nil, zap.String("a", "b")).Info("noop") })
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "要件定...", Truncate("要件定義書", 3))
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "", Truncate("abc", 0))
}
