package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Role events
	EventTypeRoleCreate      EventType = "role.create"
	EventTypeRoleUpdate      EventType = "role.update"
	EventTypeRolePermissions EventType = "role.permissions"
	EventTypeRoleDelete      EventType = "role.delete"

	// Group events
	EventTypeGroupSave    EventType = "group.save"
	EventTypeGroupMembers EventType = "group.members"
	EventTypeGroupDelete  EventType = "group.delete"

	// User events
	EventTypeUserCreate EventType = "user.create"
	EventTypeUserUpdate EventType = "user.update"
	EventTypeUserDelete EventType = "user.delete"

	// State events
	EventTypeSnapshotRestore EventType = "snapshot.restore"
	EventTypeSeedApply       EventType = "seed.apply"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
)

// ResourceType represents the type of resource being changed
type ResourceType string

const (
	ResourceTypeRole     ResourceType = "role"
	ResourceTypeGroup    ResourceType = "group"
	ResourceTypeUser     ResourceType = "user"
	ResourceTypeSnapshot ResourceType = "snapshot"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	// Core fields
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Changes tracking (before/after for updates)
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before interface{} `json:"before,omitempty"`
	After  interface{} `json:"after,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*AuditEvent, error) {
	var event AuditEvent
	err := json.Unmarshal(data, &event)
	return &event, err
}
