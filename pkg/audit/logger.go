package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/clinicaccess/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// contextKey is the type for context keys
type contextKey string

// AuditLoggerKey is the context key for the audit logger
const AuditLoggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NoOp()
}

// NoOp returns a logger that drops every event
func NoOp() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }

func (noOpLogger) Close() error { return nil }

// Mutation describes one change to the access-control state
type Mutation struct {
	EventType    EventType
	ResourceType ResourceType
	ResourceID   string
	Changes      *ChangeDetails
	Metadata     map[string]interface{}
	Err          error
}

// NewEvent builds an event for a mutation, taking request context from ctx and r.
// r may be nil for mutations that do not come from HTTP.
func NewEvent(ctx context.Context, r *http.Request, m Mutation) *AuditEvent {
	event := &AuditEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    m.EventType,
		Status:       EventStatusSuccess,
		ResourceType: m.ResourceType,
		ResourceID:   m.ResourceID,
		RequestID:    observability.GetRequestID(ctx),
		Changes:      m.Changes,
		Metadata:     m.Metadata,
	}
	if m.Err != nil {
		event.Status = EventStatusFailure
		event.ErrorMessage = m.Err.Error()
	}
	if r != nil {
		event.Method = r.Method
		event.Path = r.URL.Path
	}
	return event
}

// LogMutation records a mutation through the context logger
func LogMutation(ctx context.Context, r *http.Request, m Mutation) error {
	return FromContext(ctx).Log(ctx, NewEvent(ctx, r, m))
}

// Middleware makes logger available to handlers through FromContext
func Middleware(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}
