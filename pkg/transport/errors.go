package transport

import "errors"

var (
	// ErrRecipientOffline is returned when the recipient has no active
	// connection. The message remains pending for replay on reconnect.
	ErrRecipientOffline = errors.New("transport: recipient offline")

	// ErrSlowConsumer is returned when every connection buffer for the
	// recipient is full. The dispatch is worth retrying.
	ErrSlowConsumer = errors.New("transport: slow consumer")

	// ErrTransportClosed is returned after Close.
	ErrTransportClosed = errors.New("transport: closed")
)
