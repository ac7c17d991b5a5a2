package notification_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/pushkit/pkg/notification"
)

func TestRole_Ordering(t *testing.T) {
	assert.True(t, notification.RoleAdmin.Level() > notification.RoleModerator.Level())
	assert.True(t, notification.RoleModerator.Level() > notification.RoleUser.Level())
	assert.True(t, notification.RoleUser.Level() > notification.Role("ghost").Level())
}

func TestRole_AtLeast(t *testing.T) {
	assert.True(t, notification.RoleAdmin.AtLeast(notification.RoleUser))
	assert.True(t, notification.RoleModerator.AtLeast(notification.RoleModerator))
	assert.False(t, notification.RoleUser.AtLeast(notification.RoleAdmin))
}

func TestMessage_IsExpired(t *testing.T) {
	t.Run("no expiry", func(t *testing.T) {
		m := notification.Message{}
		assert.False(t, m.IsExpired())
	})

	t.Run("future expiry", func(t *testing.T) {
		exp := time.Now().Add(time.Hour)
		m := notification.Message{ExpiresAt: &exp}
		assert.False(t, m.IsExpired())
	})

	t.Run("past expiry", func(t *testing.T) {
		exp := time.Now().Add(-time.Minute)
		m := notification.Message{ExpiresAt: &exp}
		assert.True(t, m.IsExpired())
	})
}

func TestMessage_VisibleTo(t *testing.T) {
	tests := []struct {
		name string
		msg  notification.Message
		role notification.Role
		want bool
	}{
		{
			name: "user message visible to user",
			msg:  notification.Message{Category: notification.CategoryUser},
			role: notification.RoleUser,
			want: true,
		},
		{
			name: "admin message hidden from user",
			msg:  notification.Message{Category: notification.CategoryAdmin},
			role: notification.RoleUser,
			want: false,
		},
		{
			name: "admin message visible to admin",
			msg:  notification.Message{Category: notification.CategoryAdmin},
			role: notification.RoleAdmin,
			want: true,
		},
		{
			name: "required role enforced",
			msg:  notification.Message{Category: notification.CategoryUser, RequiresRole: notification.RoleModerator},
			role: notification.RoleUser,
			want: false,
		},
		{
			name: "required role satisfied by higher role",
			msg:  notification.Message{Category: notification.CategoryUser, RequiresRole: notification.RoleModerator},
			role: notification.RoleAdmin,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.VisibleTo(tt.role))
		})
	}
}

func TestDeliveryRecord_Idempotence(t *testing.T) {
	r := notification.DeliveryRecord{MessageID: "m1", RecipientID: "u1"}

	r.MarkDelivered()
	first := *r.DeliveredAt

	time.Sleep(time.Millisecond)
	r.MarkDelivered()
	assert.Equal(t, first, *r.DeliveredAt, "second MarkDelivered must not move the timestamp")

	r.MarkRead()
	readAt := *r.ReadAt
	time.Sleep(time.Millisecond)
	r.MarkRead()
	assert.Equal(t, readAt, *r.ReadAt, "second MarkRead must not move the timestamp")
}

func TestDeliveryRecord_MarkReadImpliesDelivered(t *testing.T) {
	r := notification.DeliveryRecord{MessageID: "m1", RecipientID: "u1"}
	r.MarkRead()
	assert.NotNil(t, r.DeliveredAt)
	assert.NotNil(t, r.ReadAt)
	assert.False(t, r.Pending())
}

func TestDeliveryRecord_RecordAttempt(t *testing.T) {
	r := notification.DeliveryRecord{}
	r.RecordAttempt()
	r.RecordAttempt()
	assert.Equal(t, 2, r.Attempts)
	assert.NotNil(t, r.LastAttemptAt)
}
