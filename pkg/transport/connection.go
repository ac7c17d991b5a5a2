package transport

import (
	"sync"
)

// Connection is a single client attachment to the ChannelTransport. Read
// envelopes from Events and confirm receipt with Ack.
type Connection struct {
	id          string
	recipientID string
	events      chan Envelope
	closedCh    chan struct{}
	transport   *ChannelTransport

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// ID returns the unique connection identifier.
func (c *Connection) ID() string { return c.id }

// RecipientID returns the recipient this connection belongs to.
func (c *Connection) RecipientID() string { return c.recipientID }

// Events returns the channel of incoming envelopes. The channel is closed
// when the connection closes.
func (c *Connection) Events() <-chan Envelope {
	return c.events
}

// Ack confirms receipt of a message to the transport, which forwards it to
// the registered ack handlers.
func (c *Connection) Ack(messageID string) {
	c.transport.notifyAck(messageID, c.recipientID)
}

// Close detaches the connection. Buffered envelopes are discarded; they stay
// pending in storage and are replayed on the next connect. Idempotent.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.transport.unregister(c)
		c.teardown()
	})
	return nil
}

// shutdown closes the connection without unregistering, used by the
// transport's own Close which already cleared the registry.
func (c *Connection) shutdown() {
	c.closeOnce.Do(c.teardown)
}

func (c *Connection) teardown() {
	c.mu.Lock()
	c.closed = true
	close(c.events)
	c.mu.Unlock()

	close(c.closedCh)
}

func (c *Connection) push(env Envelope) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.events <- env:
		return true
	default:
		return false
	}
}
