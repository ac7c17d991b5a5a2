package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/pushkit/pkg/audit"
	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/notification"
)

// Sender describes the identity producing a message. System marks messages
// originated by the platform itself rather than an authenticated caller.
type Sender struct {
	ID     string
	Role   notification.Role
	System bool
}

// Directory resolves recipient identities. It is the identity/session
// collaborator; the validator does not own identity state.
type Directory interface {
	// Exists reports whether the identity is known.
	Exists(ctx context.Context, id string) (bool, error)

	// ResolveRole returns the role of a known identity.
	ResolveRole(ctx context.Context, id string) (notification.Role, error)
}

// Validator checks whether a sender/recipient/category combination is
// permitted. All checks run against a precomputed rule table; rejections and
// admin-category acceptances are audit-logged as a side effect.
type Validator struct {
	rules     RuleTable
	directory Directory
	audit     audit.Logger
	log       *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the slog logger for the validator.
func WithLogger(log *slog.Logger) Option {
	return func(v *Validator) {
		if log != nil {
			v.log = log
		}
	}
}

// NewValidator creates a Validator with rules from the given source.
// The directory resolves message targets; the audit logger records decisions.
func NewValidator(ctx context.Context, source RuleSource, directory Directory, auditLog audit.Logger, opts ...Option) (*Validator, error) {
	if source == nil {
		source = NewStaticSource(DefaultRules())
	}
	if auditLog == nil {
		return nil, ErrAuditRequired
	}

	rules, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}

	v := &Validator{
		rules:     rules,
		directory: directory,
		audit:     auditLog,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate checks the message against the rule table and the directory.
// It returns nil when the sender may produce the message, otherwise one of
// ErrUnauthorized, ErrInvalidTarget, or notification.ErrMalformedMessage.
func (v *Validator) Validate(ctx context.Context, sender Sender, msg notification.Message) error {
	if err := msg.Validate(); err != nil {
		return v.reject(ctx, sender, msg, err)
	}

	// System-originated messages bypass the role table and the cross-user
	// guard, but the override is flagged and audit-logged.
	if sender.System {
		if err := v.audit.Accepted(ctx, audit.ActionSystemOverride,
			audit.WithActor(sender.ID, string(sender.Role)),
			audit.WithMessageID(msg.ID),
			audit.WithCategory(string(msg.Category)),
		); err != nil {
			v.log.LogAttrs(ctx, slog.LevelWarn, "failed to audit system override",
				logger.SenderID(sender.ID),
				logger.Error(err),
			)
		}
		return v.checkTarget(ctx, sender, msg)
	}

	if !v.rules.Allows(msg.Category, sender.Role) {
		return v.reject(ctx, sender, msg,
			fmt.Errorf("%w: role %q may not send %q messages", ErrUnauthorized, sender.Role, msg.Category))
	}

	// Cross-user impersonation guard: a sender may always address itself;
	// addressing another user requires at least moderator rank.
	if msg.TargetUserID != "" && msg.TargetUserID != sender.ID &&
		!sender.Role.AtLeast(notification.RoleModerator) {
		return v.reject(ctx, sender, msg,
			fmt.Errorf("%w: sender %q may not message user %q", ErrUnauthorized, sender.ID, msg.TargetUserID))
	}

	if err := v.checkTarget(ctx, sender, msg); err != nil {
		return err
	}

	if msg.Category == notification.CategoryAdmin {
		if err := v.audit.Accepted(ctx, audit.ActionAdminSend,
			audit.WithActor(sender.ID, string(sender.Role)),
			audit.WithMessageID(msg.ID),
			audit.WithCategory(string(msg.Category)),
		); err != nil {
			v.log.LogAttrs(ctx, slog.LevelWarn, "failed to audit admin acceptance",
				logger.SenderID(sender.ID),
				logger.Error(err),
			)
		}
	}

	return nil
}

// checkTarget verifies target existence and that a targeted message with a
// role requirement can actually be seen by its target. The latter is a
// defensive check against misconfigured callers.
func (v *Validator) checkTarget(ctx context.Context, sender Sender, msg notification.Message) error {
	if msg.TargetUserID == "" || v.directory == nil {
		return nil
	}

	exists, err := v.directory.Exists(ctx, msg.TargetUserID)
	if err != nil {
		return fmt.Errorf("resolve target %q: %w", msg.TargetUserID, err)
	}
	if !exists {
		return v.reject(ctx, sender, msg,
			fmt.Errorf("%w: user %q does not exist", ErrInvalidTarget, msg.TargetUserID))
	}

	if msg.RequiresRole != "" {
		role, err := v.directory.ResolveRole(ctx, msg.TargetUserID)
		if err != nil {
			return fmt.Errorf("resolve role of %q: %w", msg.TargetUserID, err)
		}
		if !role.AtLeast(msg.RequiresRole) {
			return v.reject(ctx, sender, msg,
				fmt.Errorf("%w: user %q cannot satisfy required role %q", ErrInvalidTarget, msg.TargetUserID, msg.RequiresRole))
		}
	}

	return nil
}

// reject audit-logs the denial and returns the denial reason unchanged.
func (v *Validator) reject(ctx context.Context, sender Sender, msg notification.Message, reason error) error {
	if err := v.audit.Rejected(ctx, audit.ActionSend, reason,
		audit.WithActor(sender.ID, string(sender.Role)),
		audit.WithMessageID(msg.ID),
		audit.WithCategory(string(msg.Category)),
	); err != nil {
		v.log.LogAttrs(ctx, slog.LevelWarn, "failed to audit rejection",
			logger.SenderID(sender.ID),
			logger.Error(err),
		)
	}
	return reason
}
