package transport

import (
	"context"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/notification"
)

// Envelope is a single delivery unit addressed to one recipient.
type Envelope struct {
	Message     notification.Message
	RecipientID string
	Attempt     int
	Replayed    bool // true when re-sent from the pending backlog
	SentAt      time.Time
}

// Transport pushes envelopes toward connected clients.
//
// Dispatch returns nil once the envelope has been buffered on at least one
// active connection for the recipient. Typed errors signal the reason a
// dispatch could not be buffered:
//
//   - ErrRecipientOffline: no active connection, the message stays pending
//   - ErrSlowConsumer: all connection buffers are full, worth retrying
//   - ErrTransportClosed: the transport has shut down
type Transport interface {
	Dispatch(ctx context.Context, env Envelope) error
	IsOnline(recipientID string) bool
}

// AckHandler is invoked when a client confirms receipt of a message.
type AckHandler func(messageID, recipientID string)

// ConnectionHandler is invoked when a recipient gains or loses its first
// or last connection respectively.
type ConnectionHandler func(recipientID string)

// AckSource is implemented by transports that surface client acknowledgments.
type AckSource interface {
	OnAck(fn AckHandler)
}

// PresenceSource is implemented by transports that surface connection
// lifecycle events, used to trigger pending-message replay on reconnect.
type PresenceSource interface {
	OnConnect(fn ConnectionHandler)
	OnDisconnect(fn ConnectionHandler)
}
