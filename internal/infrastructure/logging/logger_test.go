package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	log, err := New(Config{Level: "debug", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	dev, err := New(Config{Level: "warn", Development: true, OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.False(t, dev.Core().Enabled(zapcore.InfoLevel))

	_, err = New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, err := parseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)
}

func TestForInstanceFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	root := (&Logger{Logger: zap.New(core)}).Named("webview")

	ForInstance(root.Logger, "wv_123", "web", false).Info("Instance created")
	ForInstance(root.Logger, "wv_456", "", false).Info("No platform")

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "webview", first.LoggerName)
	assert.Equal(t, "wv_123", first.ContextMap()["instance_id"])
	assert.Equal(t, "web", first.ContextMap()["platform"])
	assert.NotContains(t, logs.All()[1].ContextMap(), "platform")
}

func TestForInstanceDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	root := zap.New(core)

	quiet := ForInstance(root, "wv_quiet", "web", false)
	loud := ForInstance(root, "wv_loud", "web", true)

	quiet.Debug("dropped")
	loud.Debug("kept", zap.String("url", "https://a.test"))
	loud.Named("document").With(zap.Int("n", 1)).Debug("kept by child")
	root.Debug("dropped at root")
	loud.Info("info passes")

	require.Equal(t, 3, logs.Len())
	entries := logs.All()
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "wv_loud", entries[0].ContextMap()["instance_id"])
	assert.Equal(t, "https://a.test", entries[0].ContextMap()["url"])

	assert.Equal(t, "kept by child", entries[1].Message)
	assert.Equal(t, "document", entries[1].LoggerName)
	assert.Equal(t, int64(1), entries[1].ContextMap()["n"])

	assert.Equal(t, "info passes", entries[2].Message)
	assert.True(t, loud.Core().Enabled(zapcore.DebugLevel))
	assert.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
}

func TestForInstanceNil(t *testing.T) {
	assert.NotPanics(t, func() {
		ForInstance(nil, "wv_1", "web", true).Debug("discarded")
	})
}
