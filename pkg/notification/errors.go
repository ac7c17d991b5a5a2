package notification

import "errors"

var (
	// ErrMalformedMessage indicates a schema or length violation in a message.
	ErrMalformedMessage = errors.New("malformed message")
)
