package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLoggerIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Infow("ignored", "k", "v")
		Sync()
	})
}

func TestSetRoutesPackageFunctions(t *testing.T) {
	prev := L()
	t.Cleanup(func() { sugar.Store(prev) })

	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))

	Infow("run started", "run_id", "r1")
	Warnw("embedding degraded", "count", 2)
	Debugw("batch done", "batch", 3)

	require.Equal(t, 3, logs.Len())
	entries := logs.All()
	assert.Equal(t, "run started", entries[0].Message)
	assert.Equal(t, "r1", entries[0].ContextMap()["run_id"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestInitWritesLogFile(t *testing.T) {
	prev := L()
	t.Cleanup(func() { sugar.Store(prev) })

	dir := t.TempDir()
	require.NoError(t, Init("debug", "json", dir))
	Infow("hello")
	Sync()
	assert.FileExists(t, dir+"/ragbench.log")
}
