package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/notification"
)

// Identity is the sending identity checked by the guard.
type Identity struct {
	ID   string
	Role notification.Role
}

// Decision is the guard's verdict for one message.
type Decision string

const (
	// DecisionAllow lets the message proceed through the pipeline.
	DecisionAllow Decision = "allow"
	// DecisionThrottle rejects the message with a retry hint.
	DecisionThrottle Decision = "throttle"
	// DecisionCoalesce folds the message into an earlier near-duplicate.
	DecisionCoalesce Decision = "coalesce"
)

// Verdict is the outcome of a guard check.
type Verdict struct {
	Decision Decision

	// RetryAfter hints when a throttled identity may try again.
	RetryAfter time.Duration

	// CoalescedWith is the ID of the earlier message absorbing this one.
	CoalescedWith string

	// Occurrences counts deliveries folded together, including this one.
	Occurrences int
}

// Guard throttles per-identity send rates and detects abuse patterns.
// Critical-severity messages bypass throttling entirely; authorization is not
// the guard's concern and happens before it in the pipeline.
type Guard struct {
	store  Store
	signal AbuseSignal
	burst  *burstTracker
	cfg    Config
	log    *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithSignal replaces the default similarity detector.
func WithSignal(signal AbuseSignal) Option {
	return func(g *Guard) {
		if signal != nil {
			g.signal = signal
		}
	}
}

// WithLogger sets the slog logger for the guard.
func WithLogger(log *slog.Logger) Option {
	return func(g *Guard) {
		if log != nil {
			g.log = log
		}
	}
}

// New creates a Guard with the given token store and configuration.
func New(store Store, cfg Config, opts ...Option) (*Guard, error) {
	if store == nil {
		return nil, ErrStoreUnavailable
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Guard{
		store:  store,
		signal: NewSimilaritySignal(cfg.SimilarityWindow, cfg.SimilarityThreshold),
		burst:  newBurstTracker(cfg.BurstThreshold, cfg.BurstWindow, cfg.CooldownBase, cfg.CooldownMax),
		cfg:    cfg,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Check evaluates a message against rate limits and abuse signals.
// The returned Verdict is never nil when err is nil.
func (g *Guard) Check(ctx context.Context, identity Identity, msg notification.Message) (*Verdict, error) {
	// Critical messages bypass throttling entirely. They remain subject to
	// authorization upstream.
	if msg.Severity == notification.SeverityCritical {
		return &Verdict{Decision: DecisionAllow, Occurrences: 1}, nil
	}

	finding, err := g.signal.Inspect(ctx, identity.ID, msg)
	if err != nil {
		return nil, err
	}
	if finding.Duplicate {
		g.log.LogAttrs(ctx, slog.LevelDebug, "coalescing near-duplicate message",
			logger.SenderID(identity.ID),
			logger.MessageID(msg.ID),
			slog.String("coalesced_with", finding.OfMessageID),
			slog.Int("occurrences", finding.Occurrences),
		)
		return &Verdict{
			Decision:      DecisionCoalesce,
			CoalescedWith: finding.OfMessageID,
			Occurrences:   finding.Occurrences,
		}, nil
	}

	if cooldown := g.burst.observe(identity.ID, time.Now()); cooldown > 0 {
		g.log.LogAttrs(ctx, slog.LevelInfo, "burst cool-down active",
			logger.SenderID(identity.ID),
			slog.Duration("retry_after", cooldown),
		)
		return &Verdict{Decision: DecisionThrottle, RetryAfter: cooldown}, nil
	}

	remaining, resetAt, err := g.store.ConsumeTokens(ctx, identity.ID, 1, g.cfg.bucketFor(identity.Role))
	if err != nil {
		return nil, err
	}
	if remaining < 0 {
		return &Verdict{
			Decision:   DecisionThrottle,
			RetryAfter: time.Until(resetAt),
		}, nil
	}

	// Register the content only now that every throttle check has passed.
	// A throttled message is never persisted, so it must not become a
	// coalescing target for a later retry.
	if err := g.signal.Record(ctx, identity.ID, msg); err != nil {
		return nil, err
	}

	return &Verdict{Decision: DecisionAllow, Occurrences: finding.Occurrences}, nil
}

// Reset clears all guard state for an identity.
func (g *Guard) Reset(ctx context.Context, identityID string) error {
	g.burst.reset(identityID)
	return g.store.Reset(ctx, identityID)
}
