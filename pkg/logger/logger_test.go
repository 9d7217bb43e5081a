package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSet_ReplacesGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	S().Infow("publisher.publish_success", "subject", "evt.x")
	L().Debug("dropped")

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "publisher.publish_success", entries[0].Message)
	assert.Equal(t, "evt.x", entries[0].ContextMap()["subject"])
}

func TestInit_LevelOverride(t *testing.T) {
	t.Cleanup(func() { Set(zap.NewNop()) })

	Init("serasa-adapter", "prod", "warn")
	assert.False(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, L().Core().Enabled(zapcore.WarnLevel))

	InitWithOutput("serasactl", "local", "not-a-level", "stderr")
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))
}
