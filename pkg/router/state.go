package router

import "fmt"

// AttemptState tracks a single delivery attempt through its lifecycle.
type AttemptState string

const (
	// StateNew is the initial state before any dispatch.
	StateNew AttemptState = "new"
	// StateDispatched means the envelope was handed to the transport and
	// the router is waiting for a client acknowledgment.
	StateDispatched AttemptState = "dispatched"
	// StateAcked is terminal: the client confirmed receipt.
	StateAcked AttemptState = "acked"
	// StateFailedRetryable means the dispatch or its acknowledgment failed
	// in a way worth retrying.
	StateFailedRetryable AttemptState = "failed_retryable"
	// StateFailedTerminal means retries are exhausted. The message returns
	// to the pending backlog for replay on the next reconnect.
	StateFailedTerminal AttemptState = "failed_terminal"
	// StatePending is terminal for this routing pass: the message stays in
	// storage awaiting the recipient.
	StatePending AttemptState = "pending"
)

// validTransitions encodes the allowed attempt lifecycle. Anything else is a
// programming error.
var validTransitions = map[AttemptState][]AttemptState{
	StateNew:             {StateDispatched, StatePending, StateFailedTerminal},
	StateDispatched:      {StateAcked, StateFailedRetryable},
	StateFailedRetryable: {StateDispatched, StateFailedTerminal, StatePending},
	StateFailedTerminal:  {StatePending},
}

// attempt is the per-recipient delivery attempt tracked by the router.
type attempt struct {
	messageID   string
	recipientID string
	state       AttemptState
	dispatches  int
}

func newAttempt(messageID, recipientID string) *attempt {
	return &attempt{
		messageID:   messageID,
		recipientID: recipientID,
		state:       StateNew,
	}
}

func (a *attempt) transition(to AttemptState) error {
	for _, allowed := range validTransitions[a.state] {
		if allowed == to {
			a.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.state, to)
}
