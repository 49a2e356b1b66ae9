// Package monitoring 提供日志、指标与分布式追踪的实现
package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

// TracingManager 管理 OpenTelemetry 追踪
type TracingManager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	logger   logger.Logger
}

// NewTracingManager 创建追踪管理器，未启用时使用全局（空操作）TracerProvider
func NewTracingManager(cfg *config.Config, log logger.Logger) (*TracingManager, error) {
	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = "sharedcookie"
	}

	if !cfg.Tracing.Enabled {
		log.Info(context.Background(), "Tracing is disabled")
		return &TracingManager{
			tracer: otel.Tracer(serviceName),
			logger: log,
		}, nil
	}

	// 创建 Jaeger exporter
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(cfg.Tracing.JaegerEndpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("deployment.environment", cfg.Server.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SampleRate))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(context.Background(), "Tracing initialized successfully",
		logger.String("endpoint", cfg.Tracing.JaegerEndpoint),
		logger.Any("sample_rate", cfg.Tracing.SampleRate),
	)

	return &TracingManager{
		tracer:   provider.Tracer(serviceName),
		provider: provider,
		logger:   log,
	}, nil
}

// Tracer 返回服务级 Tracer
func (tm *TracingManager) Tracer() trace.Tracer {
	return tm.tracer
}

// Enabled 报告是否导出追踪数据
func (tm *TracingManager) Enabled() bool {
	return tm.provider != nil
}

// RecordError 记录错误到当前 Span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext 获取当前 Trace ID
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Shutdown 刷新并关闭追踪提供者
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}

	if err := tm.provider.Shutdown(ctx); err != nil {
		tm.logger.Error(ctx, "Failed to shutdown tracing provider", err)
		return err
	}

	tm.logger.Info(ctx, "Tracing provider shutdown successfully")
	return nil
}
