package store

import (
	"context"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/notification"
)

// Storage is the durable record of messages, delivery status, and the replay
// queue per recipient.
//
// Implementations must make Store atomic with respect to recipient fan-out:
// either all delivery records are created or none are. The mark operations
// are idempotent. GetPending returns creation order (oldest first) because
// replay must preserve causal order; History is newest first for human
// scanning.
type Storage interface {
	// Store durably writes the message and one delivery record per recipient.
	Store(ctx context.Context, msg notification.Message, recipientIDs []string) error

	// GetPending returns undelivered, non-expired messages for a recipient in
	// creation order (oldest first). Delivery state on the returned messages
	// reflects the recipient's records.
	GetPending(ctx context.Context, recipientID string, limit int) ([]notification.Message, error)

	// History returns the recipient's messages most-recent-first.
	History(ctx context.Context, recipientID string, limit, offset int) ([]notification.Message, error)

	// MarkDelivered marks the (message, recipient) pair delivered. Idempotent.
	MarkDelivered(ctx context.Context, messageID, recipientID string) error

	// MarkRead marks the pair read, implying delivery. Idempotent.
	MarkRead(ctx context.Context, messageID, recipientID string) error

	// MarkAllRead marks every unread message of the recipient read,
	// returning how many messages were affected.
	MarkAllRead(ctx context.Context, recipientID string) (int, error)

	// RecordAttempt increments the delivery attempt counter for the pair.
	RecordAttempt(ctx context.Context, messageID, recipientID string) error

	// IncrementOccurrences bumps the coalescing counter of a stored message.
	IncrementOccurrences(ctx context.Context, messageID string) error

	// CountUnread returns the number of unread, non-expired messages.
	CountUnread(ctx context.Context, recipientID string) (int, error)

	// PurgeExpired removes expired messages and delivered messages older than
	// the retention window, returning the number of messages removed. It
	// never removes a pending, non-expired message regardless of age.
	PurgeExpired(ctx context.Context, retention time.Duration) (int, error)
}
