package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

type zapLogger struct {
	*zap.Logger
}

// NewZapLogger builds the process logger from the log section of the configuration.
func NewZapLogger(cfg *config.LogConfig) (logger.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	output := cfg.OutputPath
	if output == "" {
		output = "stdout"
	}
	sink, _, err := zap.Open(output)
	if err != nil {
		return nil, fmt.Errorf("open log output %s: %w", output, err)
	}

	return NewLoggerFromCore(zapcore.NewCore(encoder, sink, level)), nil
}

// NewLoggerFromCore wraps an arbitrary zap core, e.g. an observer in tests.
func NewLoggerFromCore(core zapcore.Core) logger.Logger {
	return &zapLogger{zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))}
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {
	l.Logger.Debug(msg, l.convertFields(ctx, fields...)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...logger.Field) {
	l.Logger.Info(msg, l.convertFields(ctx, fields...)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...logger.Field) {
	l.Logger.Warn(msg, l.convertFields(ctx, fields...)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.Logger.Error(msg, append(l.convertFields(ctx, fields...), zap.Error(err))...)
}

func (l *zapLogger) Fatal(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.Logger.Fatal(msg, append(l.convertFields(ctx, fields...), zap.Error(err))...)
}

func (l *zapLogger) WithFields(fields ...logger.Field) logger.Logger {
	return &zapLogger{l.Logger.With(l.convertFields(context.Background(), fields...)...)}
}

func (l *zapLogger) WithComponent(component string) logger.Logger {
	return &zapLogger{l.Logger.With(zap.String("component", component))}
}

func (l *zapLogger) convertFields(ctx context.Context, fields ...logger.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+2)
	if ctx != nil {
		if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
			zapFields = append(zapFields, zap.String("request_id", requestID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			zapFields = append(zapFields, zap.String("trace_id", sc.TraceID().String()))
		}
	}

	for _, f := range fields {
		f = logger.Sanitize(f)
		if err, ok := f.Value.(error); ok {
			zapFields = append(zapFields, zap.NamedError(f.Key, err))
			continue
		}
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}
