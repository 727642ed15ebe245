package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events as JSON lines through a dedicated logrus logger
type LogrusLogger struct {
	logger *logrus.Logger
	closer io.Closer
	mu     sync.Mutex
	closed bool
}

// NewLogrusLogger creates an audit logger that writes to w
func NewLogrusLogger(w io.Writer) *LogrusLogger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "logged_at",
			logrus.FieldKeyMsg:  "msg",
		},
	})
	return &LogrusLogger{logger: logger}
}

// NewFileLogger appends audit events to the file at path, creating it and its directory when missing
func NewFileLogger(path string) (*LogrusLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	l := NewLogrusLogger(file)
	l.closer = file
	return l, nil
}

// Log writes one event
func (l *LogrusLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("audit logger is closed")
	}

	fields := logrus.Fields{
		"audit":       true,
		"timestamp":   event.Timestamp,
		"event_type":  event.EventType,
		"status":      event.Status,
		"resource_id": event.ResourceID,
	}
	if event.ResourceType != "" {
		fields["resource_type"] = event.ResourceType
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Method != "" {
		fields["method"] = event.Method
		fields["path"] = event.Path
	}
	if event.ErrorMessage != "" {
		fields["error_message"] = event.ErrorMessage
	}
	if len(event.Metadata) > 0 {
		fields["metadata"] = event.Metadata
	}
	if event.Changes != nil {
		fields["changes"] = event.Changes
	}

	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}
	l.logger.WithFields(fields).Info(msg)
	return nil
}

// Close closes the underlying file, if any
func (l *LogrusLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
