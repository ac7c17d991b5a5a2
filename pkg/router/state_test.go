package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptTransitions(t *testing.T) {
	t.Parallel()

	t.Run("full ack path", func(t *testing.T) {
		t.Parallel()

		a := newAttempt("m1", "u1")
		require.Equal(t, StateNew, a.state)
		require.NoError(t, a.transition(StateDispatched))
		require.NoError(t, a.transition(StateAcked))
	})

	t.Run("retry path ends pending", func(t *testing.T) {
		t.Parallel()

		a := newAttempt("m1", "u1")
		require.NoError(t, a.transition(StateDispatched))
		require.NoError(t, a.transition(StateFailedRetryable))
		require.NoError(t, a.transition(StateDispatched))
		require.NoError(t, a.transition(StateFailedRetryable))
		require.NoError(t, a.transition(StateFailedTerminal))
		require.NoError(t, a.transition(StatePending))
	})

	t.Run("rejects illegal transitions", func(t *testing.T) {
		t.Parallel()

		a := newAttempt("m1", "u1")
		err := a.transition(StateAcked)
		require.ErrorIs(t, err, ErrInvalidTransition)

		require.NoError(t, a.transition(StateDispatched))
		err = a.transition(StateDispatched)
		require.ErrorIs(t, err, ErrInvalidTransition)

		require.NoError(t, a.transition(StateAcked))
		err = a.transition(StateFailedRetryable)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}
