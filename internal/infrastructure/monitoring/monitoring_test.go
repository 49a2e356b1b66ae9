package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

func TestZapLogger_FieldsAndSanitizing(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewLoggerFromCore(core).WithComponent("test")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	ctx = context.WithValue(ctx, constants.ContextKeyRequestID, "req-1")

	log.Info(ctx, "issued",
		logger.String("subject", "alice@example.com"),
		logger.String("cookie_value", "CfDJ8AAAAAAAAAAAAAAAAAAAAAAA"),
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "test", fields["component"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, "alice@example.com", fields["subject"])
	assert.Equal(t, "CfDJ***AAAA", fields["cookie_value"])
}

func TestZapLogger_ErrorAndWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewLoggerFromCore(core).WithFields(logger.String("instance", "a"))

	log.Debug(context.Background(), "dropped")
	log.Error(context.Background(), "refresh failed", errors.ErrKeyStore("load", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "a", entry.ContextMap()["instance"])
	assert.Contains(t, entry.ContextMap()["error"], "key store load failed")
}

func TestNewZapLogger(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	log, err := NewZapLogger(&config.LogConfig{Level: "debug", Format: "console", OutputPath: out})
	require.NoError(t, err)
	log.Info(context.Background(), "hello")

	_, err = NewZapLogger(&config.LogConfig{Level: "info", Format: "json", OutputPath: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestMetrics_RecordsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSessionIssue(true, "", time.Millisecond)
	m.RecordSessionIssue(false, "no_key_available", time.Millisecond)
	m.RecordSessionValidate("ok", time.Microsecond)
	m.RecordSessionValidate("expired", time.Microsecond)
	m.RecordSessionValidate("expired", time.Microsecond)
	m.RecordKeyRingRefresh(true, 3)
	m.RecordKeyRingRefresh(false, 0)
	m.RecordKeyStoreOperation("file", "load", time.Millisecond, nil)
	m.RecordKeyStoreOperation("file", "load", time.Millisecond, errors.ErrKeyStore("load", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsIssued.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsIssued.WithLabelValues("no_key_available")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsValidated.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyRingRefreshes.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.KeyRingKeys), "failed refresh keeps the last gauge value")
	assert.Greater(t, testutil.ToFloat64(m.KeyRingLastSuccess), 0.0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.KeyStoreLatency))
}

func TestTracingManager_Disabled(t *testing.T) {
	cfg := config.Default()
	tm, err := NewTracingManager(cfg, logger.NewNoopLogger())
	require.NoError(t, err)
	assert.False(t, tm.Enabled())
	assert.NotNil(t, tm.Tracer())
	assert.NoError(t, tm.Shutdown(context.Background()))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
