package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/audit"
	"github.com/dmitrymomot/pushkit/pkg/authz"
	"github.com/dmitrymomot/pushkit/pkg/guard"
	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/notification"
	"github.com/dmitrymomot/pushkit/pkg/router"
	"github.com/dmitrymomot/pushkit/pkg/store"
	"github.com/dmitrymomot/pushkit/pkg/transport"
)

// Directory resolves recipient identities and enumerates fan-out audiences.
type Directory interface {
	authz.Directory

	// ListByRole returns the IDs of every user whose role is at least the
	// given minimum.
	ListByRole(ctx context.Context, minimum notification.Role) ([]string, error)

	// ListAll returns the IDs of every known user.
	ListAll(ctx context.Context) ([]string, error)
}

// Manager is the single entry point of the notification pipeline. It chains
// authorization, rate guarding, persistence, and routing, serializes work per
// recipient, and replays pending messages when recipients reconnect.
type Manager struct {
	storage   store.Storage
	validator *authz.Validator
	guard     *guard.Guard
	router    *router.Router
	transport transport.Transport
	directory Directory
	audit     audit.Logger
	log       *slog.Logger
	locks     *keyedMutex

	replayLimit    int
	persistRetries int
	purgeInterval  time.Duration
	retention      time.Duration

	mu      sync.Mutex
	runCtx  context.Context
	replays map[string]*replaySession
	wg      sync.WaitGroup
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	guard          *guard.Guard
	audit          audit.Logger
	log            *slog.Logger
	replayLimit    int
	persistRetries int
	purgeInterval  time.Duration
	retention      time.Duration
	routerOpts     []router.Option
}

// WithGuard enables rate limiting and abuse detection on the send path.
func WithGuard(g *guard.Guard) Option {
	return func(o *options) { o.guard = g }
}

// WithAudit sets the audit logger for guard rejections. The validator keeps
// its own audit wiring.
func WithAudit(a audit.Logger) Option {
	return func(o *options) { o.audit = a }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithReplayLimit bounds how many pending messages one reconnect replays.
func WithReplayLimit(n int) Option {
	return func(o *options) { o.replayLimit = max(n, 1) }
}

// WithPersistRetries bounds internal retries on storage failures.
func WithPersistRetries(n int) Option {
	return func(o *options) { o.persistRetries = max(n, 1) }
}

// WithPurge enables the background cleanup loop: every interval, expired
// messages and settled messages older than retention are removed.
func WithPurge(interval, retention time.Duration) Option {
	return func(o *options) {
		o.purgeInterval = interval
		o.retention = retention
	}
}

// WithRouterOptions forwards options to the internally constructed router.
func WithRouterOptions(opts ...router.Option) Option {
	return func(o *options) { o.routerOpts = append(o.routerOpts, opts...) }
}

// New wires the notification pipeline. The router is constructed internally
// so that per-recipient serialization and the role re-check share the
// manager's state.
func New(storage store.Storage, validator *authz.Validator, tr transport.Transport, directory Directory, opts ...Option) (*Manager, error) {
	if storage == nil {
		return nil, ErrStorageRequired
	}
	if validator == nil {
		return nil, ErrValidatorRequired
	}
	if tr == nil {
		return nil, router.ErrTransportRequired
	}
	if directory == nil {
		return nil, ErrDirectoryRequired
	}

	o := &options{
		log:            slog.Default(),
		replayLimit:    100,
		persistRetries: 3,
	}
	for _, opt := range opts {
		opt(o)
	}

	m := &Manager{
		storage:        storage,
		validator:      validator,
		guard:          o.guard,
		transport:      tr,
		directory:      directory,
		audit:          o.audit,
		log:            o.log,
		locks:          newKeyedMutex(),
		replayLimit:    o.replayLimit,
		persistRetries: o.persistRetries,
		purgeInterval:  o.purgeInterval,
		retention:      o.retention,
		replays:        make(map[string]*replaySession),
	}

	routerOpts := append([]router.Option{
		router.WithRecipientLocker(m.locks),
		router.WithRoleDirectory(directory),
		router.WithLogger(m.log),
	}, o.routerOpts...)

	rt, err := router.New(tr, storage, routerOpts...)
	if err != nil {
		return nil, err
	}
	m.router = rt

	return m, nil
}

// Run operates the manager until the context is cancelled: it subscribes to
// connection events for reconnect replay and drives the purge loop. Blocks.
func (m *Manager) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	m.runCtx = runCtx
	m.mu.Unlock()

	if ps, ok := m.transport.(transport.PresenceSource); ok {
		ps.OnConnect(m.handleConnect)
		ps.OnDisconnect(m.handleDisconnect)
	}

	if m.purgeInterval > 0 {
		m.wg.Add(1)
		go m.purgeLoop(runCtx)
	}

	<-ctx.Done()

	m.mu.Lock()
	m.runCtx = nil
	for _, session := range m.replays {
		session.cancel()
	}
	clear(m.replays)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// GetPending returns the recipient's undelivered messages oldest first.
func (m *Manager) GetPending(ctx context.Context, recipientID string, limit int) ([]notification.Message, error) {
	return m.storage.GetPending(ctx, recipientID, limit)
}

// GetHistory returns the recipient's messages newest first.
func (m *Manager) GetHistory(ctx context.Context, recipientID string, limit, offset int) ([]notification.Message, error) {
	return m.storage.History(ctx, recipientID, limit, offset)
}

// MarkRead marks one message read for the recipient. Idempotent.
func (m *Manager) MarkRead(ctx context.Context, messageID, recipientID string) error {
	return m.storage.MarkRead(ctx, messageID, recipientID)
}

// MarkAllRead marks everything read for the recipient, returning the number
// of affected messages.
func (m *Manager) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	return m.storage.MarkAllRead(ctx, recipientID)
}

// CountUnread returns the recipient's unread badge count.
func (m *Manager) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return m.storage.CountUnread(ctx, recipientID)
}

func (m *Manager) purgeLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purged, err := m.storage.PurgeExpired(ctx, m.retention)
			if err != nil {
				m.log.ErrorContext(ctx, "purge expired notifications", logger.Error(err))
				continue
			}
			if purged > 0 {
				m.log.InfoContext(ctx, "purged notifications", slog.Int("count", purged))
			}
		case <-ctx.Done():
			return
		}
	}
}
