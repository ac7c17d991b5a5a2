package manager

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pushkit/pkg/audit"
	"github.com/dmitrymomot/pushkit/pkg/authz"
	"github.com/dmitrymomot/pushkit/pkg/guard"
	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/notification"
	"github.com/dmitrymomot/pushkit/pkg/router"
)

// TargetKind selects the audience of an emitted message.
type TargetKind string

const (
	// TargetUser addresses a single recipient.
	TargetUser TargetKind = "user"
	// TargetAdmins fans out to every admin account.
	TargetAdmins TargetKind = "admins"
	// TargetEveryone fans out to all known users.
	TargetEveryone TargetKind = "everyone"
)

// Target names the audience of an Emit call.
type Target struct {
	Kind   TargetKind
	UserID string
}

// ToUser targets a single recipient.
func ToUser(userID string) Target {
	return Target{Kind: TargetUser, UserID: userID}
}

// ToAdmins targets every admin account.
func ToAdmins() Target {
	return Target{Kind: TargetAdmins}
}

// ToEveryone targets all known users.
func ToEveryone() Target {
	return Target{Kind: TargetEveryone}
}

// SendToUser validates, guards, persists, and routes one message to one
// recipient.
func (m *Manager) SendToUser(ctx context.Context, sender authz.Sender, recipientID string, msg notification.Message) (Outcome, error) {
	return m.Emit(ctx, sender, ToUser(recipientID), msg)
}

// SendToAdmins fans a message out to every admin. The message is stamped
// with the admin category and role gate so the router's re-check applies.
func (m *Manager) SendToAdmins(ctx context.Context, sender authz.Sender, msg notification.Message) (Outcome, error) {
	return m.Emit(ctx, sender, ToAdmins(), msg)
}

// BroadcastSystem sends a platform-originated message to all users.
func (m *Manager) BroadcastSystem(ctx context.Context, msg notification.Message) (Outcome, error) {
	return m.Emit(ctx, authz.Sender{System: true}, ToEveryone(), msg)
}

// Emit runs the full pipeline for one message: authorization, rate and
// abuse guarding, atomic persistence with bounded retries, and routing.
// The returned Outcome classifies the result; on rejection its Err carries
// the typed reason and nothing was stored.
func (m *Manager) Emit(ctx context.Context, sender authz.Sender, target Target, msg notification.Message) (Outcome, error) {
	m.stamp(&msg, target)

	if err := m.validator.Validate(ctx, sender, msg); err != nil {
		// Rejections are audit-logged inside the validator.
		return Outcome{Status: StatusRejected, MessageID: msg.ID, Err: err}, err
	}

	if out, done := m.checkGuard(ctx, sender, msg); done {
		return out, out.Err
	}

	recipients, err := m.resolveRecipients(ctx, target, msg)
	if err != nil {
		m.auditReject(ctx, sender, msg, err)
		return Outcome{Status: StatusRejected, MessageID: msg.ID, Err: err}, err
	}

	if err := m.persist(ctx, msg, recipients); err != nil {
		m.auditReject(ctx, sender, msg, err)
		return Outcome{Status: StatusRejected, MessageID: msg.ID, Err: err}, err
	}

	if target.Kind == TargetUser {
		return m.routeSingle(ctx, msg, recipients[0])
	}
	return m.routeBroadcast(ctx, msg, recipients)
}

// stamp fills in defaults and audience-derived fields before validation.
func (m *Manager) stamp(msg *notification.Message, target Target) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	switch target.Kind {
	case TargetUser:
		msg.TargetUserID = target.UserID
	case TargetAdmins:
		msg.TargetUserID = ""
		if msg.Category == "" {
			msg.Category = notification.CategoryAdmin
		}
		if msg.RequiresRole == "" {
			msg.RequiresRole = notification.RoleAdmin
		}
	case TargetEveryone:
		msg.TargetUserID = ""
		if msg.Category == "" {
			msg.Category = notification.CategorySystem
		}
	}
}

// checkGuard applies rate and abuse limits. System senders bypass the guard
// entirely; infrastructure failures fail open so messaging never hinges on
// the limiter backend.
func (m *Manager) checkGuard(ctx context.Context, sender authz.Sender, msg notification.Message) (Outcome, bool) {
	if m.guard == nil || sender.System {
		return Outcome{}, false
	}

	verdict, err := m.guard.Check(ctx, guard.Identity{ID: sender.ID, Role: sender.Role}, msg)
	if err != nil {
		m.log.ErrorContext(ctx, "guard check failed, allowing",
			logger.SenderID(sender.ID),
			logger.MessageID(msg.ID),
			logger.Error(err),
		)
		return Outcome{}, false
	}

	switch verdict.Decision {
	case guard.DecisionThrottle:
		m.auditReject(ctx, sender, msg, ErrRateLimited)
		out := Outcome{
			Status:     StatusRejected,
			MessageID:  msg.ID,
			Err:        ErrRateLimited,
			RetryAfter: verdict.RetryAfter,
		}
		return out, true

	case guard.DecisionCoalesce:
		if err := m.storage.IncrementOccurrences(ctx, verdict.CoalescedWith); err != nil {
			m.log.WarnContext(ctx, "bump coalesced occurrences",
				logger.MessageID(verdict.CoalescedWith),
				logger.Error(err),
			)
		}
		out := Outcome{
			Status:      StatusCoalesced,
			MessageID:   verdict.CoalescedWith,
			Occurrences: verdict.Occurrences,
		}
		return out, true
	}

	return Outcome{}, false
}

func (m *Manager) resolveRecipients(ctx context.Context, target Target, msg notification.Message) ([]string, error) {
	switch target.Kind {
	case TargetUser:
		return []string{target.UserID}, nil
	case TargetAdmins:
		ids, err := m.directory.ListByRole(ctx, notification.RoleAdmin)
		if err != nil {
			return nil, errors.Join(ErrNoRecipients, err)
		}
		if len(ids) == 0 {
			return nil, ErrNoRecipients
		}
		return ids, nil
	case TargetEveryone:
		ids, err := m.directory.ListAll(ctx)
		if err != nil {
			return nil, errors.Join(ErrNoRecipients, err)
		}
		if len(ids) == 0 {
			return nil, ErrNoRecipients
		}
		return ids, nil
	default:
		return nil, authz.ErrInvalidTarget
	}
}

// persist stores the message atomically with bounded retries on transient
// storage failures.
func (m *Manager) persist(ctx context.Context, msg notification.Message, recipients []string) error {
	var lastErr error
	for attempt := 1; attempt <= m.persistRetries; attempt++ {
		lastErr = m.storage.Store(ctx, msg, recipients)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		m.log.WarnContext(ctx, "store notification",
			logger.MessageID(msg.ID),
			logger.Attempt(attempt),
			logger.Error(lastErr),
		)
		select {
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		case <-ctx.Done():
			return errors.Join(ErrPersistenceFailed, ctx.Err())
		}
	}
	return errors.Join(ErrPersistenceFailed, lastErr)
}

func (m *Manager) routeSingle(ctx context.Context, msg notification.Message, recipientID string) (Outcome, error) {
	res, err := m.router.Route(ctx, msg, recipientID)
	if err != nil {
		// The message is stored; the recipient picks it up on reconnect or,
		// for an ineligible recipient, never.
		m.log.WarnContext(ctx, "route notification",
			logger.MessageID(msg.ID),
			logger.RecipientID(recipientID),
			logger.Error(err),
		)
		return Outcome{Status: StatusQueued, MessageID: msg.ID}, nil
	}

	out := Outcome{MessageID: msg.ID}
	switch {
	case res.State == router.StateAcked:
		out.Status = StatusDelivered
	case res.Dispatches > 0:
		// Live push kept failing even though the recipient looked online.
		out.Status = StatusDegraded
	default:
		out.Status = StatusQueued
	}
	return out, nil
}

func (m *Manager) routeBroadcast(ctx context.Context, msg notification.Message, recipients []string) (Outcome, error) {
	res, err := m.router.RouteBroadcast(ctx, msg, recipients)
	if err != nil {
		m.log.WarnContext(ctx, "broadcast notification",
			logger.MessageID(msg.ID),
			logger.Error(err),
		)
	}

	out := Outcome{MessageID: msg.ID, Broadcast: &res}
	if res.Failed > 0 {
		out.Status = StatusDegraded
	} else {
		out.Status = StatusQueued
	}
	return out, nil
}

func (m *Manager) auditReject(ctx context.Context, sender authz.Sender, msg notification.Message, reason error) {
	if m.audit == nil {
		return
	}
	err := m.audit.Rejected(ctx, audit.ActionSend, reason,
		audit.WithActor(sender.ID, string(sender.Role)),
		audit.WithMessageID(msg.ID),
		audit.WithCategory(string(msg.Category)),
	)
	if err != nil {
		m.log.ErrorContext(ctx, "write audit event", logger.Error(err))
	}
}
