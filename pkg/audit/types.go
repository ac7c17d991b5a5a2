package audit

import (
	"fmt"
	"time"
)

// Result represents the outcome of an audited action.
type Result string

const (
	ResultAccepted Result = "accepted"
	ResultRejected Result = "rejected"
)

// Well-known audit actions emitted by the notification pipeline.
const (
	ActionSend           = "notification.send"
	ActionAdminSend      = "notification.admin_send"
	ActionSystemOverride = "notification.system_override"
	ActionReplay         = "notification.replay"
)

// Event represents a single audit trail entry for a notification decision.
type Event struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	ActorID     string         `json:"actor_id"`
	ActorRole   string         `json:"actor_role,omitempty"`
	MessageID   string         `json:"message_id,omitempty"`
	RecipientID string         `json:"recipient_id,omitempty"`
	Category    string         `json:"category,omitempty"`
	Result      Result         `json:"result"`
	Reason      string         `json:"reason,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// WithMessageID attaches the message identifier to the event.
func WithMessageID(id string) EventOption {
	return func(e *Event) { e.MessageID = id }
}

// WithRecipientID attaches the recipient identifier to the event.
func WithRecipientID(id string) EventOption {
	return func(e *Event) { e.RecipientID = id }
}

// WithCategory attaches the message category to the event.
func WithCategory(category string) EventOption {
	return func(e *Event) { e.Category = category }
}

// WithActor attaches the acting identity and its role to the event.
func WithActor(id, role string) EventOption {
	return func(e *Event) {
		e.ActorID = id
		e.ActorRole = role
	}
}

// WithMetadata merges additional structured context into the event.
func WithMetadata(md map[string]any) EventOption {
	return func(e *Event) {
		if len(md) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(md))
		}
		for k, v := range md {
			e.Metadata[k] = v
		}
	}
}

// Criteria filters audit events in queries.
type Criteria struct {
	ActorID     string
	RecipientID string
	Action      string
	Result      Result
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}
