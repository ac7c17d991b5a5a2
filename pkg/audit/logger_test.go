package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/audit"
)

func TestLogger_Accepted(t *testing.T) {
	storage := audit.NewMemoryStorage(100)
	logger := audit.NewLogger(storage)
	ctx := context.Background()

	err := logger.Accepted(ctx, audit.ActionAdminSend,
		audit.WithActor("admin-1", "admin"),
		audit.WithMessageID("m1"),
		audit.WithCategory("admin"),
	)
	require.NoError(t, err)

	events, err := storage.Query(ctx, audit.Criteria{ActorID: "admin-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, audit.ResultAccepted, e.Result)
	assert.Equal(t, audit.ActionAdminSend, e.Action)
	assert.Equal(t, "m1", e.MessageID)
	assert.Equal(t, "admin", e.ActorRole)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestLogger_Rejected(t *testing.T) {
	storage := audit.NewMemoryStorage(100)
	logger := audit.NewLogger(storage)
	ctx := context.Background()

	reason := errors.New("sender lacks admin role")
	require.NoError(t, logger.Rejected(ctx, audit.ActionSend, reason,
		audit.WithActor("user-7", "user"),
	))

	events, err := storage.Query(ctx, audit.Criteria{Result: audit.ResultRejected})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sender lacks admin role", events[0].Reason)
}

func TestLogger_EmptyActionRejected(t *testing.T) {
	logger := audit.NewLogger(audit.NewMemoryStorage(10))
	err := logger.Accepted(context.Background(), "")
	assert.ErrorIs(t, err, audit.ErrEventValidation)
}

func TestMemoryStorage_CapacityBound(t *testing.T) {
	storage := audit.NewMemoryStorage(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, storage.Store(ctx, audit.Event{
			ID:        string(rune('a' + i)),
			Action:    audit.ActionSend,
			Result:    audit.ResultAccepted,
			CreatedAt: time.Now(),
		}))
	}

	events, err := storage.Query(ctx, audit.Criteria{})
	require.NoError(t, err)
	assert.Len(t, events, 3, "oldest events are evicted at capacity")
}

func TestMemoryStorage_QueryFilters(t *testing.T) {
	storage := audit.NewMemoryStorage(100)
	ctx := context.Background()
	base := time.Now()

	seed := []audit.Event{
		{ID: "1", Action: audit.ActionSend, ActorID: "a", Result: audit.ResultAccepted, CreatedAt: base.Add(-2 * time.Hour)},
		{ID: "2", Action: audit.ActionSend, ActorID: "b", Result: audit.ResultRejected, CreatedAt: base.Add(-time.Hour)},
		{ID: "3", Action: audit.ActionReplay, ActorID: "a", RecipientID: "r1", Result: audit.ResultAccepted, CreatedAt: base},
	}
	for _, e := range seed {
		require.NoError(t, storage.Store(ctx, e))
	}

	t.Run("by actor", func(t *testing.T) {
		events, err := storage.Query(ctx, audit.Criteria{ActorID: "a"})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("by action and recipient", func(t *testing.T) {
		events, err := storage.Query(ctx, audit.Criteria{Action: audit.ActionReplay, RecipientID: "r1"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "3", events[0].ID)
	})

	t.Run("since filter", func(t *testing.T) {
		since := base.Add(-90 * time.Minute)
		events, err := storage.Query(ctx, audit.Criteria{Since: &since})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("newest first with limit", func(t *testing.T) {
		events, err := storage.Query(ctx, audit.Criteria{Limit: 1})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "3", events[0].ID)
	})
}
