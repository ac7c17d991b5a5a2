package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/notification"
	"github.com/dmitrymomot/pushkit/pkg/transport"
)

// DeliveryStore is the slice of storage the router needs to track attempts
// and settle deliveries.
type DeliveryStore interface {
	MarkDelivered(ctx context.Context, messageID, recipientID string) error
	RecordAttempt(ctx context.Context, messageID, recipientID string) error
}

// RoleDirectory resolves a user's current role. The router uses it as a
// second, independent check before pushing role-gated messages, so a stale
// fan-out list cannot leak admin content to a demoted account.
type RoleDirectory interface {
	ResolveRole(ctx context.Context, userID string) (notification.Role, error)
}

// RecipientLocker serializes routing per recipient. The caller that owns
// per-recipient ordering (typically the manager) injects its keyed lock;
// the default is a no-op.
type RecipientLocker interface {
	Acquire(recipientID string) (release func())
}

type noopLocker struct{}

func (noopLocker) Acquire(string) func() { return func() {} }

// Result describes the outcome of routing one message to one recipient.
type Result struct {
	MessageID   string
	RecipientID string
	State       AttemptState
	Dispatches  int
}

// BroadcastResult aggregates per-recipient outcomes of a fan-out.
type BroadcastResult struct {
	Acked   int
	Pending int
	Failed  int
}

// Router drives the delivery attempt lifecycle: dispatch through the
// transport, wait for the client acknowledgment, retry with exponential
// backoff, and park undeliverable messages back in the pending backlog.
type Router struct {
	transport transport.Transport
	store     DeliveryStore
	directory RoleDirectory
	locker    RecipientLocker
	log       *slog.Logger

	maxDispatches int
	ackTimeout    time.Duration
	backoffBase   time.Duration
	backoffMax    time.Duration
	chunkSize     int
	concurrency   int

	waitersMu sync.Mutex
	waiters   map[dedupKey]chan struct{}
	dedup     *dedupTracker
}

// Option configures a Router.
type Option func(*Router)

// WithMaxDispatches bounds how many times one routing pass pushes the same
// envelope before giving up. Minimum 1.
func WithMaxDispatches(n int) Option {
	return func(r *Router) { r.maxDispatches = max(n, 1) }
}

// WithAckTimeout sets how long a dispatched envelope waits for the client
// acknowledgment before the attempt is considered failed.
func WithAckTimeout(d time.Duration) Option {
	return func(r *Router) { r.ackTimeout = d }
}

// WithBackoff sets the retry backoff base and cap. The delay doubles per
// failed dispatch.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(r *Router) {
		r.backoffBase = base
		r.backoffMax = maxDelay
	}
}

// WithChunkSize sets how many recipients a broadcast processes per batch.
func WithChunkSize(n int) Option {
	return func(r *Router) { r.chunkSize = max(n, 1) }
}

// WithConcurrency bounds parallel per-recipient routing during broadcasts.
func WithConcurrency(n int) Option {
	return func(r *Router) { r.concurrency = max(n, 1) }
}

// WithRoleDirectory enables the pre-dispatch role re-check for role-gated
// messages.
func WithRoleDirectory(dir RoleDirectory) Option {
	return func(r *Router) { r.directory = dir }
}

// WithRecipientLocker injects the per-recipient serialization lock.
func WithRecipientLocker(l RecipientLocker) Option {
	return func(r *Router) { r.locker = l }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Router) { r.log = log }
}

// WithDedupCapacity bounds the recently-acknowledged tracker used to detect
// replay conflicts.
func WithDedupCapacity(n int) Option {
	return func(r *Router) { r.dedup = newDedupTracker(n) }
}

// New creates a Router. If the transport also implements transport.AckSource,
// client acknowledgments are wired to Confirm automatically.
func New(tr transport.Transport, store DeliveryStore, opts ...Option) (*Router, error) {
	if tr == nil {
		return nil, ErrTransportRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	r := &Router{
		transport:     tr,
		store:         store,
		locker:        noopLocker{},
		log:           slog.Default(),
		maxDispatches: 3,
		ackTimeout:    5 * time.Second,
		backoffBase:   200 * time.Millisecond,
		backoffMax:    5 * time.Second,
		chunkSize:     100,
		concurrency:   8,
		waiters:       make(map[dedupKey]chan struct{}),
		dedup:         newDedupTracker(4096),
	}
	for _, opt := range opts {
		opt(r)
	}

	if src, ok := tr.(transport.AckSource); ok {
		src.OnAck(r.Confirm)
	}

	return r, nil
}

// Route delivers one message to one recipient, walking the attempt through
// its full lifecycle. The returned Result's State is one of StateAcked,
// StatePending, or StateFailedTerminal.
func (r *Router) Route(ctx context.Context, msg notification.Message, recipientID string) (Result, error) {
	release := r.locker.Acquire(recipientID)
	defer release()

	return r.route(ctx, msg, recipientID, false)
}

// Replay re-delivers a pending message after a reconnect. It refuses to
// race a delivery already in flight or acknowledged moments ago, returning
// ErrReplayConflict in both cases.
func (r *Router) Replay(ctx context.Context, msg notification.Message, recipientID string) (Result, error) {
	release := r.locker.Acquire(recipientID)
	defer release()

	// Checked under the recipient lock: a delivery in flight when Replay is
	// called has settled by the time the lock is held, so its ack is visible
	// here and the message is not dispatched a second time.
	if r.dedup.seen(msg.ID, recipientID) {
		return Result{MessageID: msg.ID, RecipientID: recipientID, State: StateAcked}, ErrReplayConflict
	}

	res, err := r.route(ctx, msg, recipientID, true)
	if errors.Is(err, ErrInFlight) {
		err = ErrReplayConflict
	}
	return res, err
}

// RouteBroadcast fans one message out to many recipients, processing them in
// chunks with bounded parallelism. Recipients are independent: one failure
// never blocks the rest.
func (r *Router) RouteBroadcast(ctx context.Context, msg notification.Message, recipientIDs []string) (BroadcastResult, error) {
	var (
		result BroadcastResult
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, r.concurrency)

	for start := 0; start < len(recipientIDs); start += r.chunkSize {
		end := min(start+r.chunkSize, len(recipientIDs))
		for _, rid := range recipientIDs[start:end] {
			select {
			case <-ctx.Done():
				wg.Wait()
				return result, ctx.Err()
			case sem <- struct{}{}:
			}

			wg.Add(1)
			go func(rid string) {
				defer wg.Done()
				defer func() { <-sem }()

				release := r.locker.Acquire(rid)
				res, err := r.route(ctx, msg, rid, false)
				release()

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil, res.State == StateFailedTerminal:
					result.Failed++
				case res.State == StateAcked:
					result.Acked++
				default:
					result.Pending++
				}
			}(rid)
		}
	}

	wg.Wait()
	return result, nil
}

// Confirm records a client acknowledgment. It resolves the in-flight waiter
// when one exists; a late ack (after the waiter timed out) still settles the
// delivery in storage.
func (r *Router) Confirm(messageID, recipientID string) {
	key := dedupKey{messageID: messageID, recipientID: recipientID}

	r.waitersMu.Lock()
	waiter, ok := r.waiters[key]
	if ok {
		delete(r.waiters, key)
	}
	r.waitersMu.Unlock()

	if ok {
		close(waiter)
		return
	}

	// Late ack: the routing pass already gave up, settle directly.
	r.dedup.remember(messageID, recipientID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.MarkDelivered(ctx, messageID, recipientID); err != nil {
		r.log.ErrorContext(ctx, "settle late ack",
			logger.MessageID(messageID),
			logger.RecipientID(recipientID),
			logger.Error(err),
		)
	}
}

func (r *Router) route(ctx context.Context, msg notification.Message, recipientID string, replayed bool) (Result, error) {
	a := newAttempt(msg.ID, recipientID)
	result := func() Result {
		return Result{
			MessageID:   msg.ID,
			RecipientID: recipientID,
			State:       a.state,
			Dispatches:  a.dispatches,
		}
	}

	if err := r.checkEligibility(ctx, msg, recipientID); err != nil {
		_ = a.transition(StateFailedTerminal)
		return result(), err
	}

	key := dedupKey{messageID: msg.ID, recipientID: recipientID}
	waiter := make(chan struct{})
	r.waitersMu.Lock()
	if _, exists := r.waiters[key]; exists {
		r.waitersMu.Unlock()
		return result(), ErrInFlight
	}
	r.waiters[key] = waiter
	r.waitersMu.Unlock()
	defer func() {
		r.waitersMu.Lock()
		delete(r.waiters, key)
		r.waitersMu.Unlock()
	}()

	for {
		if !r.transport.IsOnline(recipientID) {
			if err := a.transition(StatePending); err != nil {
				return result(), err
			}
			return result(), nil
		}

		if err := a.transition(StateDispatched); err != nil {
			return result(), err
		}
		a.dispatches++

		if err := r.store.RecordAttempt(ctx, msg.ID, recipientID); err != nil {
			r.log.WarnContext(ctx, "record delivery attempt",
				logger.MessageID(msg.ID),
				logger.RecipientID(recipientID),
				logger.Error(err),
			)
		}

		env := transport.Envelope{
			Message:     msg,
			RecipientID: recipientID,
			Attempt:     a.dispatches,
			Replayed:    replayed,
			SentAt:      time.Now(),
		}

		dispatchErr := r.transport.Dispatch(ctx, env)
		if dispatchErr == nil {
			acked, err := r.awaitAck(ctx, waiter)
			if err != nil {
				return result(), err
			}
			if acked {
				if err := a.transition(StateAcked); err != nil {
					return result(), err
				}
				r.dedup.remember(msg.ID, recipientID)
				if err := r.store.MarkDelivered(ctx, msg.ID, recipientID); err != nil {
					r.log.ErrorContext(ctx, "settle delivery",
						logger.MessageID(msg.ID),
						logger.RecipientID(recipientID),
						logger.Error(err),
					)
				}
				return result(), nil
			}
			// No ack within the window.
			dispatchErr = context.DeadlineExceeded
		}

		if errors.Is(dispatchErr, context.Canceled) {
			return result(), dispatchErr
		}

		if err := a.transition(StateFailedRetryable); err != nil {
			return result(), err
		}

		// Went offline between the presence check and the dispatch: park
		// the message for replay instead of burning retries.
		if errors.Is(dispatchErr, transport.ErrRecipientOffline) {
			if err := a.transition(StatePending); err != nil {
				return result(), err
			}
			return result(), nil
		}

		if a.dispatches >= r.maxDispatches {
			if err := a.transition(StateFailedTerminal); err != nil {
				return result(), err
			}
			// Terminal for this pass: the message stays pending for replay.
			if err := a.transition(StatePending); err != nil {
				return result(), err
			}
			r.log.WarnContext(ctx, "delivery attempts exhausted",
				logger.MessageID(msg.ID),
				logger.RecipientID(recipientID),
				logger.Attempt(a.dispatches),
			)
			return result(), nil
		}

		if err := r.sleep(ctx, r.backoff(a.dispatches)); err != nil {
			return result(), err
		}
	}
}

// checkEligibility re-verifies restricted messages against the directory.
// Admin-category content is restricted even without an explicit RequiresRole.
// It runs on every dispatch path regardless of upstream authorization.
func (r *Router) checkEligibility(ctx context.Context, msg notification.Message, recipientID string) error {
	if r.directory == nil {
		return nil
	}
	if msg.Category != notification.CategoryAdmin && msg.RequiresRole == "" {
		return nil
	}
	role, err := r.directory.ResolveRole(ctx, recipientID)
	if err != nil {
		return errors.Join(ErrRecipientIneligible, err)
	}
	if !msg.VisibleTo(role) {
		return ErrRecipientIneligible
	}
	return nil
}

// awaitAck waits for the client acknowledgment. Returns false on timeout.
func (r *Router) awaitAck(ctx context.Context, waiter chan struct{}) (bool, error) {
	timer := time.NewTimer(r.ackTimeout)
	defer timer.Stop()

	select {
	case <-waiter:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (r *Router) backoff(dispatches int) time.Duration {
	d := r.backoffBase << (dispatches - 1)
	if d > r.backoffMax || d <= 0 {
		d = r.backoffMax
	}
	return d
}

func (r *Router) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
