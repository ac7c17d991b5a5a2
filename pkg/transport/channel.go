package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ChannelTransport is an in-process Transport backed by per-connection Go
// channels. Each client connection gets its own buffered envelope channel;
// dispatch never blocks on a slow consumer. All methods are safe for
// concurrent use.
type ChannelTransport struct {
	recipients map[string]map[string]*Connection
	bufferSize int
	closed     bool
	mu         sync.RWMutex

	handlersMu   sync.RWMutex
	ackFns       []AckHandler
	connectFns   []ConnectionHandler
	disconnectFn []ConnectionHandler

	cleanupWg sync.WaitGroup
}

// ChannelOption configures a ChannelTransport.
type ChannelOption func(*ChannelTransport)

// WithBufferSize sets the per-connection envelope buffer. A minimum of 1 is
// enforced so that sends stay non-blocking.
func WithBufferSize(size int) ChannelOption {
	return func(t *ChannelTransport) {
		t.bufferSize = max(size, 1)
	}
}

// NewChannelTransport creates an in-process transport.
func NewChannelTransport(opts ...ChannelOption) *ChannelTransport {
	t := &ChannelTransport{
		recipients: make(map[string]map[string]*Connection),
		bufferSize: 64,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect registers a client connection for a recipient. The connection is
// automatically closed when the context is cancelled. The first connection
// for a recipient fires the OnConnect handlers.
func (t *ChannelTransport) Connect(ctx context.Context, recipientID string) (*Connection, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}

	conn := &Connection{
		id:          uuid.NewString(),
		recipientID: recipientID,
		events:      make(chan Envelope, t.bufferSize),
		closedCh:    make(chan struct{}),
		transport:   t,
	}

	conns, exists := t.recipients[recipientID]
	if !exists {
		conns = make(map[string]*Connection)
		t.recipients[recipientID] = conns
	}
	first := len(conns) == 0
	conns[conn.id] = conn
	t.mu.Unlock()

	if first {
		t.notifyConnect(recipientID)
	}

	if ctx.Done() != nil {
		t.cleanupWg.Add(1)
		go func() {
			defer t.cleanupWg.Done()
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-conn.closedCh:
			}
		}()
	}

	return conn, nil
}

// Dispatch buffers the envelope on every active connection of the recipient.
// It succeeds if at least one connection accepted the envelope.
func (t *ChannelTransport) Dispatch(ctx context.Context, env Envelope) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrTransportClosed
	}
	conns := make([]*Connection, 0, len(t.recipients[env.RecipientID]))
	for _, conn := range t.recipients[env.RecipientID] {
		conns = append(conns, conn)
	}
	t.mu.RUnlock()

	if len(conns) == 0 {
		return ErrRecipientOffline
	}

	buffered := false
	for _, conn := range conns {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if conn.push(env) {
			buffered = true
		}
	}
	if !buffered {
		return ErrSlowConsumer
	}
	return nil
}

// IsOnline reports whether the recipient has at least one active connection.
func (t *ChannelTransport) IsOnline(recipientID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.recipients[recipientID]) > 0
}

// OnAck registers a handler for client acknowledgments.
func (t *ChannelTransport) OnAck(fn AckHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.ackFns = append(t.ackFns, fn)
}

// OnConnect registers a handler fired when a recipient comes online.
func (t *ChannelTransport) OnConnect(fn ConnectionHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.connectFns = append(t.connectFns, fn)
}

// OnDisconnect registers a handler fired when a recipient's last connection
// closes.
func (t *ChannelTransport) OnDisconnect(fn ConnectionHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.disconnectFn = append(t.disconnectFn, fn)
}

// Close shuts down the transport and closes every connection. Safe to call
// multiple times.
func (t *ChannelTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	conns := make([]*Connection, 0)
	for _, byID := range t.recipients {
		for _, conn := range byID {
			conns = append(conns, conn)
		}
	}
	clear(t.recipients)
	t.mu.Unlock()

	for _, conn := range conns {
		conn.shutdown()
	}

	t.cleanupWg.Wait()
	return nil
}

func (t *ChannelTransport) notifyAck(messageID, recipientID string) {
	t.handlersMu.RLock()
	fns := t.ackFns
	t.handlersMu.RUnlock()
	for _, fn := range fns {
		fn(messageID, recipientID)
	}
}

func (t *ChannelTransport) notifyConnect(recipientID string) {
	t.handlersMu.RLock()
	fns := t.connectFns
	t.handlersMu.RUnlock()
	for _, fn := range fns {
		fn(recipientID)
	}
}

func (t *ChannelTransport) notifyDisconnect(recipientID string) {
	t.handlersMu.RLock()
	fns := t.disconnectFn
	t.handlersMu.RUnlock()
	for _, fn := range fns {
		fn(recipientID)
	}
}

func (t *ChannelTransport) unregister(conn *Connection) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	conns, exists := t.recipients[conn.recipientID]
	if exists {
		delete(conns, conn.id)
		if len(conns) == 0 {
			delete(t.recipients, conn.recipientID)
		}
	}
	last := exists && len(conns) == 0
	t.mu.Unlock()

	if last {
		t.notifyDisconnect(conn.recipientID)
	}
}
