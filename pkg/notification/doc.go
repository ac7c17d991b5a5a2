// Package notification defines the canonical notification envelope shared by
// the delivery pipeline: the Message model, per-recipient DeliveryRecord, and
// schema validation.
//
// A Message carries a category (system, user, admin) that drives routing and
// authorization, a severity, bounded title/body text, an optional structured
// payload limited to three levels of nesting, and an optional call-to-action
// whose URL is checked against a scheme allow-list. Unsafe schemes such as
// javascript:, data:, vbscript: and file: are rejected during validation.
//
// A broadcast message is stored once; delivery state is tracked per recipient
// through DeliveryRecord values whose attempt counter only increments and
// whose mark operations are idempotent.
//
// # Usage
//
//	msg := notification.Message{
//	    Category: notification.CategoryUser,
//	    Severity: notification.SeverityInfo,
//	    Title:    "Export finished",
//	    Body:     "Your export is ready for download.",
//	}
//	if err := msg.Validate(); err != nil {
//	    // errors.Is(err, notification.ErrMalformedMessage) == true
//	}
package notification
