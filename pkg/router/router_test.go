package router_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/notification"
	"github.com/dmitrymomot/pushkit/pkg/router"
	"github.com/dmitrymomot/pushkit/pkg/store"
	"github.com/dmitrymomot/pushkit/pkg/transport"
)

func newMessage() notification.Message {
	return notification.Message{
		ID:        uuid.NewString(),
		Category:  notification.CategoryUser,
		Severity:  notification.SeverityInfo,
		Title:     "ping",
		Body:      "pong",
		CreatedAt: time.Now(),
	}
}

// autoAck reads envelopes from the connection and acknowledges each one.
func autoAck(t *testing.T, conn *transport.Connection) {
	t.Helper()
	go func() {
		for env := range conn.Events() {
			conn.Ack(env.Message.ID)
		}
	}()
}

func newRouter(t *testing.T, tr transport.Transport, st router.DeliveryStore, opts ...router.Option) *router.Router {
	t.Helper()
	base := []router.Option{
		router.WithAckTimeout(200 * time.Millisecond),
		router.WithBackoff(10*time.Millisecond, 50*time.Millisecond),
	}
	r, err := router.New(tr, st, append(base, opts...)...)
	require.NoError(t, err)
	return r
}

func TestRouter_Route(t *testing.T) {
	t.Parallel()

	t.Run("acks online recipient", func(t *testing.T) {
		t.Parallel()

		tr := transport.NewChannelTransport()
		defer tr.Close()
		st := store.NewMemoryStorage()
		r := newRouter(t, tr, st)

		msg := newMessage()
		require.NoError(t, st.Store(context.Background(), msg, []string{"u1"}))

		conn, err := tr.Connect(context.Background(), "u1")
		require.NoError(t, err)
		autoAck(t, conn)

		res, err := r.Route(context.Background(), msg, "u1")
		require.NoError(t, err)
		assert.Equal(t, router.StateAcked, res.State)
		assert.Equal(t, 1, res.Dispatches)

		pending, err := st.GetPending(context.Background(), "u1", 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("offline recipient stays pending", func(t *testing.T) {
		t.Parallel()

		tr := transport.NewChannelTransport()
		defer tr.Close()
		st := store.NewMemoryStorage()
		r := newRouter(t, tr, st)

		msg := newMessage()
		require.NoError(t, st.Store(context.Background(), msg, []string{"u1"}))

		res, err := r.Route(context.Background(), msg, "u1")
		require.NoError(t, err)
		assert.Equal(t, router.StatePending, res.State)
		assert.Zero(t, res.Dispatches)

		pending, err := st.GetPending(context.Background(), "u1", 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("unacked dispatches exhaust into pending", func(t *testing.T) {
		t.Parallel()

		tr := transport.NewChannelTransport()
		defer tr.Close()
		st := store.NewMemoryStorage()
		r := newRouter(t, tr, st, router.WithMaxDispatches(2))

		msg := newMessage()
		require.NoError(t, st.Store(context.Background(), msg, []string{"u1"}))

		// Connected but never acking.
		_, err := tr.Connect(context.Background(), "u1")
		require.NoError(t, err)

		res, err := r.Route(context.Background(), msg, "u1")
		require.NoError(t, err)
		assert.Equal(t, router.StatePending, res.State)
		assert.Equal(t, 2, res.Dispatches)

		// Every dispatch was recorded against the delivery.
		hist, err := st.History(context.Background(), "u1", 1, 0)
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.False(t, hist[0].Delivered)
	})

	t.Run("role recheck blocks ineligible recipient", func(t *testing.T) {
		t.Parallel()

		tr := transport.NewChannelTransport()
		defer tr.Close()
		st := store.NewMemoryStorage()
		r := newRouter(t, tr, st, router.WithRoleDirectory(staticRoles{
			"mod": notification.RoleModerator,
		}))

		conn, err := tr.Connect(context.Background(), "mod")
		require.NoError(t, err)
		autoAck(t, conn)

		msg := newMessage()
		msg.Category = notification.CategoryAdmin
		msg.RequiresRole = notification.RoleAdmin

		res, err := r.Route(context.Background(), msg, "mod")
		require.ErrorIs(t, err, router.ErrRecipientIneligible)
		assert.Equal(t, router.StateFailedTerminal, res.State)
		assert.Zero(t, res.Dispatches)
	})

	t.Run("admin category blocked without explicit role gate", func(t *testing.T) {
		t.Parallel()

		tr := transport.NewChannelTransport()
		defer tr.Close()
		st := store.NewMemoryStorage()
		r := newRouter(t, tr, st, router.WithRoleDirectory(staticRoles{
			"bob": notification.RoleUser,
		}))

		conn, err := tr.Connect(context.Background(), "bob")
		require.NoError(t, err)

		// Admin-category content is restricted even when RequiresRole is
		// left empty.
		msg := newMessage()
		msg.Category = notification.CategoryAdmin

		res, err := r.Route(context.Background(), msg, "bob")
		require.ErrorIs(t, err, router.ErrRecipientIneligible)
		assert.Equal(t, router.StateFailedTerminal, res.State)
		assert.Zero(t, res.Dispatches)

		select {
		case env := <-conn.Events():
			t.Fatalf("unexpected envelope pushed: %s", env.Message.ID)
		default:
		}
	})
}

type staticRoles map[string]notification.Role

func (s staticRoles) ResolveRole(_ context.Context, userID string) (notification.Role, error) {
	if role, ok := s[userID]; ok {
		return role, nil
	}
	return notification.RoleUser, nil
}

func TestRouter_Replay(t *testing.T) {
	t.Parallel()

	t.Run("replays pending message", func(t *testing.T) {
		t.Parallel()

		tr := transport.NewChannelTransport()
		defer tr.Close()
		st := store.NewMemoryStorage()
		r := newRouter(t, tr, st)

		msg := newMessage()
		require.NoError(t, st.Store(context.Background(), msg, []string{"u1"}))

		conn, err := tr.Connect(context.Background(), "u1")
		require.NoError(t, err)

		got := make(chan transport.Envelope, 1)
		go func() {
			for env := range conn.Events() {
				got <- env
				conn.Ack(env.Message.ID)
			}
		}()

		res, err := r.Replay(context.Background(), msg, "u1")
		require.NoError(t, err)
		assert.Equal(t, router.StateAcked, res.State)

		env := <-got
		assert.True(t, env.Replayed)
	})

	t.Run("conflict on recently acked message", func(t *testing.T) {
		t.Parallel()

		tr := transport.NewChannelTransport()
		defer tr.Close()
		st := store.NewMemoryStorage()
		r := newRouter(t, tr, st)

		msg := newMessage()
		require.NoError(t, st.Store(context.Background(), msg, []string{"u1"}))

		conn, err := tr.Connect(context.Background(), "u1")
		require.NoError(t, err)
		autoAck(t, conn)

		_, err = r.Route(context.Background(), msg, "u1")
		require.NoError(t, err)

		_, err = r.Replay(context.Background(), msg, "u1")
		require.ErrorIs(t, err, router.ErrReplayConflict)
	})

	t.Run("waits for in-flight delivery before conflicting", func(t *testing.T) {
		t.Parallel()

		tr := transport.NewChannelTransport()
		defer tr.Close()
		st := store.NewMemoryStorage()
		r := newRouter(t, tr, st, router.WithRecipientLocker(&mutexLocker{}))

		msg := newMessage()
		require.NoError(t, st.Store(context.Background(), msg, []string{"u1"}))

		conn, err := tr.Connect(context.Background(), "u1")
		require.NoError(t, err)

		routed := make(chan router.Result, 1)
		go func() {
			res, routeErr := r.Route(context.Background(), msg, "u1")
			if routeErr == nil {
				routed <- res
			}
		}()

		// The envelope is out but deliberately unacked, so the routing pass
		// still holds the recipient lock.
		var env transport.Envelope
		select {
		case env = <-conn.Events():
		case <-time.After(time.Second):
			t.Fatal("envelope never dispatched")
		}
		go func() {
			time.Sleep(50 * time.Millisecond)
			conn.Ack(env.Message.ID)
		}()

		// Replay must block on the lock until the live delivery settles,
		// then observe its ack instead of dispatching a second copy.
		res, err := r.Replay(context.Background(), msg, "u1")
		require.ErrorIs(t, err, router.ErrReplayConflict)
		assert.Equal(t, router.StateAcked, res.State)

		select {
		case first := <-routed:
			assert.Equal(t, router.StateAcked, first.State)
		case <-time.After(time.Second):
			t.Fatal("routing pass never finished")
		}

		select {
		case extra := <-conn.Events():
			t.Fatalf("message dispatched twice: %s", extra.Message.ID)
		default:
		}
	})
}

func TestRouter_Confirm(t *testing.T) {
	t.Parallel()

	t.Run("late ack settles delivery", func(t *testing.T) {
		t.Parallel()

		tr := transport.NewChannelTransport()
		defer tr.Close()
		st := store.NewMemoryStorage()
		r := newRouter(t, tr, st)

		msg := newMessage()
		require.NoError(t, st.Store(context.Background(), msg, []string{"u1"}))

		// Ack arrives with no routing pass in flight.
		r.Confirm(msg.ID, "u1")

		pending, err := st.GetPending(context.Background(), "u1", 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestRouter_RouteBroadcast(t *testing.T) {
	t.Parallel()

	tr := transport.NewChannelTransport()
	defer tr.Close()
	st := store.NewMemoryStorage()
	r := newRouter(t, tr, st, router.WithChunkSize(2), router.WithConcurrency(4))

	recipients := []string{"u1", "u2", "u3", "u4", "u5"}
	msg := newMessage()
	require.NoError(t, st.Store(context.Background(), msg, recipients))

	// u1 and u2 online and acking, the rest offline.
	for _, rid := range []string{"u1", "u2"} {
		conn, err := tr.Connect(context.Background(), rid)
		require.NoError(t, err)
		autoAck(t, conn)
	}

	res, err := r.RouteBroadcast(context.Background(), msg, recipients)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Acked)
	assert.Equal(t, 3, res.Pending)
	assert.Zero(t, res.Failed)
}

func TestRouter_RecipientLocker(t *testing.T) {
	t.Parallel()

	tr := transport.NewChannelTransport()
	defer tr.Close()
	st := store.NewMemoryStorage()

	locker := &countingLocker{}
	r := newRouter(t, tr, st, router.WithRecipientLocker(locker))

	msg := newMessage()
	require.NoError(t, st.Store(context.Background(), msg, []string{"u1"}))

	_, err := r.Route(context.Background(), msg, "u1")
	require.NoError(t, err)

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Equal(t, []string{"u1"}, locker.acquired)
}

// mutexLocker serializes every recipient behind one mutex, standing in for
// the manager's keyed lock.
type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) Acquire(string) func() {
	l.mu.Lock()
	return l.mu.Unlock
}

type countingLocker struct {
	mu       sync.Mutex
	acquired []string
}

func (l *countingLocker) Acquire(recipientID string) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired = append(l.acquired, recipientID)
	return func() {}
}
