// Package logger provides the structured logging contract used across the shared cookie service.
// The zap-backed implementation lives in internal/infrastructure/monitoring.
package logger

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/sharedcookie/pkg/constants"
)

// ================================================================================
// Logger Interface
// ================================================================================

// Logger defines the interface for structured logging
type Logger interface {
	// Debug logs a debug message
	Debug(ctx context.Context, message string, fields ...Field)

	// Info logs an informational message
	Info(ctx context.Context, message string, fields ...Field)

	// Warn logs a warning message
	Warn(ctx context.Context, message string, fields ...Field)

	// Error logs an error message
	Error(ctx context.Context, message string, err error, fields ...Field)

	// Fatal logs a fatal message and exits the application
	Fatal(ctx context.Context, message string, err error, fields ...Field)

	// WithFields creates a new logger with additional fields
	WithFields(fields ...Field) Logger

	// WithComponent creates a new logger for a specific component
	WithComponent(component string) Logger
}

// ================================================================================
// Field Type for Structured Logging
// ================================================================================

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key string, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Error creates an error field
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time creates a time field
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.UTC().Format(time.RFC3339)}
}

// Any creates a field with any type
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// ================================================================================
// Sanitization
// ================================================================================

var sensitiveKeys = []string{
	"password",
	"secret",
	"material",
	"cookie",
	"authorization",
	"ticket_value",
}

// Sanitize masks the value of fields whose key names sensitive data.
// Implementations call it before handing fields to the backend.
func Sanitize(f Field) Field {
	keyLower := strings.ToLower(f.Key)
	for _, sensitiveKey := range sensitiveKeys {
		if !strings.Contains(keyLower, sensitiveKey) {
			continue
		}
		if str, ok := f.Value.(string); ok && len(str) > 0 {
			return Field{Key: f.Key, Value: maskString(str)}
		}
		if _, ok := f.Value.([]byte); ok {
			return Field{Key: f.Key, Value: "***REDACTED***"}
		}
	}
	return f
}

// maskString partially masks a string value
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}

// ================================================================================
// Context Helpers
// ================================================================================

// RequestIDFromContext returns the request id stored by the HTTP layer, if any
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// ================================================================================
// Audit Logging
// ================================================================================

// AuditLogger records security relevant events under the "audit" component
type AuditLogger struct {
	logger Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(l Logger) *AuditLogger {
	return &AuditLogger{logger: l.WithComponent("audit")}
}

// LogSessionIssued records a cookie issued at login
func (a *AuditLogger) LogSessionIssued(ctx context.Context, subject, keyID string, expiresAt time.Time) {
	a.logger.Info(ctx, "session issued",
		String("event", "session_issued"),
		String("subject", subject),
		String("key_id", keyID),
		Time("expires_at", expiresAt),
	)
}

// LogSessionRejected records a cookie that failed validation
func (a *AuditLogger) LogSessionRejected(ctx context.Context, kind string, reason error) {
	a.logger.Warn(ctx, "session rejected",
		String("event", "session_rejected"),
		String("kind", kind),
		Error(reason),
	)
}

// LogKeyGenerated records a new key ring entry
func (a *AuditLogger) LogKeyGenerated(ctx context.Context, keyID string, activatesAt, expiresAt time.Time) {
	a.logger.Info(ctx, "key generated",
		String("event", "key_generated"),
		String("key_id", keyID),
		Time("activates_at", activatesAt),
		Time("expires_at", expiresAt),
	)
}

// LogKeyRevoked records a revoked key ring entry
func (a *AuditLogger) LogKeyRevoked(ctx context.Context, keyID, reason string) {
	a.logger.Warn(ctx, "key revoked",
		String("event", "key_revoked"),
		String("key_id", keyID),
		String("reason", reason),
	)
}

// LogKeyPurged records a deleted key ring entry
func (a *AuditLogger) LogKeyPurged(ctx context.Context, keyID string) {
	a.logger.Warn(ctx, "key purged",
		String("event", "key_purged"),
		String("key_id", keyID),
	)
}
