package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger records audit events for notification authorization decisions.
type Logger interface {
	// Accepted records a permitted action.
	Accepted(ctx context.Context, action string, opts ...EventOption) error

	// Rejected records a denied action with the denial reason.
	Rejected(ctx context.Context, action string, reason error, opts ...EventOption) error
}

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, event Event) error
	Query(ctx context.Context, criteria Criteria) ([]Event, error)
}

type logger struct {
	storage Storage
}

// NewLogger creates a new audit logger backed by the given storage.
func NewLogger(storage Storage) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &logger{storage: storage}
}

func (l *logger) Accepted(ctx context.Context, action string, opts ...EventOption) error {
	return l.store(ctx, action, ResultAccepted, "", opts)
}

func (l *logger) Rejected(ctx context.Context, action string, reason error, opts ...EventOption) error {
	msg := ""
	if reason != nil {
		msg = reason.Error()
	}
	return l.store(ctx, action, ResultRejected, msg, opts)
}

func (l *logger) store(ctx context.Context, action string, result Result, reason string, opts []EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    result,
		Reason:    reason,
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}

	return l.storage.Store(ctx, event)
}
