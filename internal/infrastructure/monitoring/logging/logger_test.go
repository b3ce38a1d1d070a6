package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestLogger_EmitsFields(t *testing.T) {
	log, logs := newObserved(zapcore.DebugLevel)

	log.Info("valuation completed",
		String("strategy", "hedonic"),
		Int("comparables_used", 7),
		Float64("confidence", 81),
		Bool("cached", false),
		Duration("elapsed", 12*time.Millisecond),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "valuation completed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "hedonic", fields["strategy"])
	assert.Equal(t, int64(7), fields["comparables_used"])
	assert.Equal(t, 81.0, fields["confidence"])
	assert.Equal(t, false, fields["cached"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	log, logs := newObserved(zapcore.WarnLevel)
	log.Debug("dropped")
	log.Info("dropped too")
	log.Warn("kept")
	log.Error("kept as well")
	assert.Equal(t, 2, logs.Len())
}

func TestErr_NilAndNonNil(t *testing.T) {
	log, logs := newObserved(zapcore.DebugLevel)
	log.Error("archive failed", Err(errors.New("disk full")))
	log.Warn("no cause", Err(nil))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "disk full", logs.All()[0].ContextMap()["error"])
	assert.Equal(t, "<nil>", logs.All()[1].ContextMap()["error"])
}

func TestWith_ChildCarriesFields(t *testing.T) {
	log, logs := newObserved(zapcore.DebugLevel)
	child := log.With(String("request_id", "req-1"))
	child.Info("first")
	log.Info("second")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
	_, parentHasField := logs.All()[1].ContextMap()["request_id"]
	assert.False(t, parentHasField)
}

func TestNamed(t *testing.T) {
	log, logs := newObserved(zapcore.DebugLevel)
	log.Named("http").Named("valuation").Info("ping")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "http.valuation", logs.All()[0].LoggerName)
}

func TestNewLogger_Defaults(t *testing.T) {
	log, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	_, err := NewLogger(LogConfig{OutputPaths: []string{"/no/such/dir/appraisal.log"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestDefaultLogger(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	assert.NotNil(t, Default())
	log, _ := newObserved(zapcore.InfoLevel)
	SetDefault(log)
	assert.Equal(t, log, Default())
	SetDefault(nil) // ignored
	assert.Equal(t, log, Default())
}

func TestSetLevel_AppliesToWholeLoggerTree(t *testing.T) {
	log, err := NewLogger(LogConfig{Level: "info", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)

	zl, ok := log.(*zapLogger)
	require.True(t, ok)
	assert.False(t, zl.z.Core().Enabled(zapcore.DebugLevel))

	setter, ok := log.(LevelSetter)
	require.True(t, ok)
	setter.SetLevel("debug")
	assert.True(t, zl.z.Core().Enabled(zapcore.DebugLevel))

	// Children created before or after share the same level handle.
	child := log.Named("child").(*zapLogger)
	assert.True(t, child.z.Core().Enabled(zapcore.DebugLevel))
	setter.SetLevel("error")
	assert.False(t, child.z.Core().Enabled(zapcore.InfoLevel))
}

func TestSetLevel_NoOpForRawCoreLogger(t *testing.T) {
	log, _ := newObserved(zapcore.InfoLevel)
	setter, ok := log.(LevelSetter)
	require.True(t, ok)
	assert.NotPanics(t, func() { setter.SetLevel("debug") })
}
