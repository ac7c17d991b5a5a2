package manager

import (
	"time"

	"github.com/dmitrymomot/pushkit/pkg/router"
)

// Status classifies the end state of an Emit call.
type Status string

const (
	// StatusDelivered means the recipient acknowledged the live push.
	StatusDelivered Status = "delivered"
	// StatusQueued means the message is stored and waits for the recipient
	// to come online.
	StatusQueued Status = "queued"
	// StatusDegraded means the message is stored but the live push kept
	// failing; it will be replayed on the next reconnect.
	StatusDegraded Status = "degraded"
	// StatusCoalesced means the message was folded into a recent
	// near-duplicate instead of being stored again.
	StatusCoalesced Status = "coalesced"
	// StatusRejected means the message was refused before persistence.
	StatusRejected Status = "rejected"
)

// Outcome reports what happened to an emitted message. On rejection Err
// carries the typed reason: authz.ErrUnauthorized, authz.ErrInvalidTarget,
// notification.ErrMalformedMessage, ErrRateLimited, or ErrPersistenceFailed.
type Outcome struct {
	Status    Status
	MessageID string
	Err       error

	// RetryAfter hints when a rate-limited sender may try again.
	RetryAfter time.Duration

	// Occurrences is set on coalesced outcomes: total deliveries folded
	// into the surviving message.
	Occurrences int

	// Broadcast carries per-recipient counts for fan-out targets.
	Broadcast *router.BroadcastResult
}
