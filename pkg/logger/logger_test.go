package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLoggerDefaults(t *testing.T) {
	l, err := newLogger(Config{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestFromContextAddsValues(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithKind(ctx, "order")
	ctx = WithConnector(ctx, "rest")

	FromContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "order", fields["kind"])
	assert.Equal(t, "rest", fields["connector"])
}

func TestInitReplacesGlobal(t *testing.T) {
	prev := Get()
	t.Cleanup(func() { Set(prev) })

	require.NoError(t, Init(Config{Level: "debug", Encoding: "console"}))
	assert.NotSame(t, prev, Get())
	assert.True(t, Get().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Init(Config{Level: "warn"}))
	assert.False(t, Get().Core().Enabled(zap.InfoLevel))
}
