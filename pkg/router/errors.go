package router

import "errors"

var (
	// ErrTransportRequired is returned by New when no transport is given.
	ErrTransportRequired = errors.New("router: transport is required")

	// ErrStoreRequired is returned by New when no delivery store is given.
	ErrStoreRequired = errors.New("router: delivery store is required")

	// ErrInvalidTransition indicates a disallowed attempt state change.
	ErrInvalidTransition = errors.New("router: invalid attempt transition")

	// ErrInFlight is returned when a route for the same message and
	// recipient is already in progress.
	ErrInFlight = errors.New("router: delivery already in flight")

	// ErrReplayConflict is returned by Replay when the message was already
	// dispatched or acknowledged through another path.
	ErrReplayConflict = errors.New("router: replay conflict")

	// ErrRecipientIneligible is returned when the pre-dispatch role check
	// finds the recipient no longer qualifies for the message.
	ErrRecipientIneligible = errors.New("router: recipient ineligible")
)
