package notification

import "time"

// DeliveryRecord tracks the delivery state of one (message, recipient) pair.
// A broadcast is stored once as a Message with one DeliveryRecord per
// resolved recipient. Attempts only ever increments.
type DeliveryRecord struct {
	MessageID     string     `json:"message_id"`
	RecipientID   string     `json:"recipient_id"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// Pending reports whether the record still awaits delivery.
func (r *DeliveryRecord) Pending() bool {
	return r.DeliveredAt == nil
}

// MarkDelivered stamps the record with the current time. Idempotent: a record
// already delivered keeps its original timestamp.
func (r *DeliveryRecord) MarkDelivered() {
	if r.DeliveredAt != nil {
		return
	}
	now := time.Now()
	r.DeliveredAt = &now
}

// MarkRead stamps the read time. Idempotent, and implies delivery.
func (r *DeliveryRecord) MarkRead() {
	r.MarkDelivered()
	if r.ReadAt != nil {
		return
	}
	now := time.Now()
	r.ReadAt = &now
}

// RecordAttempt increments the attempt counter and updates the last attempt
// timestamp.
func (r *DeliveryRecord) RecordAttempt() {
	r.Attempts++
	now := time.Now()
	r.LastAttemptAt = &now
}
