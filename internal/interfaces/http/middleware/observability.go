package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/sharedcookie/pkg/logger"
)

// Observability returns a Gin middleware that integrates Prometheus metrics and OpenTelemetry tracing.
// Each request gets a server span named "METHOD /route/template"; the incoming
// W3C trace context is honoured. Metrics are labeled with the route template so
// their cardinality stays bounded.
// Observability 返回一个集成了 Prometheus 指标和 OpenTelemetry 跟踪的 Gin 中间件。
func Observability(
	tracer trace.Tracer,
	httpRequestsTotal *prometheus.CounterVec,
	httpRequestDuration *prometheus.HistogramVec,
) gin.HandlerFunc {
	if tracer == nil {
		tracer = otel.Tracer("github.com/turtacn/sharedcookie/internal/interfaces/http")
	}
	propagator := propagation.TraceContext{}

	return func(c *gin.Context) {
		start := time.Now()

		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.FullPath(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}
		status := c.Writer.Status()

		if httpRequestsTotal != nil {
			httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		}
		if httpRequestDuration != nil {
			httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		}

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", path),
			attribute.Int("http.status_code", status),
			attribute.String("http.client_ip", c.ClientIP()),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Warn(c.Request.Context(), "Request failed", fields...)
		default:
			log.Info(c.Request.Context(), "Request processed", fields...)
		}
	}
}
