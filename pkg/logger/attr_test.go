package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/pushkit/pkg/logger"
)

func TestError(t *testing.T) {
	t.Run("nil error returns empty attr", func(t *testing.T) {
		attr := logger.Error(nil)
		assert.Equal(t, slog.Attr{}, attr)
	})

	t.Run("non-nil error", func(t *testing.T) {
		err := errors.New("boom")
		attr := logger.Error(err)
		assert.Equal(t, "error", attr.Key)
	})
}

func TestErrors(t *testing.T) {
	t.Run("all nil returns empty attr", func(t *testing.T) {
		attr := logger.Errors(nil, nil)
		assert.Equal(t, slog.Attr{}, attr)
	})

	t.Run("mixed nils are filtered", func(t *testing.T) {
		attr := logger.Errors(nil, errors.New("boom"), nil)
		assert.Equal(t, "errors", attr.Key)
		assert.Len(t, attr.Value.Group(), 1)
	})
}

func TestIdentityAttrs(t *testing.T) {
	assert.Equal(t, slog.Attr{}, logger.RecipientID(nil))
	assert.Equal(t, "recipient_id", logger.RecipientID("u1").Key)
	assert.Equal(t, "sender_id", logger.SenderID("u2").Key)
	assert.Equal(t, "message_id", logger.MessageID("m1").Key)
	assert.Equal(t, "role", logger.Role("admin").Key)
	assert.Equal(t, "attempt", logger.Attempt(3).Key)
	assert.Equal(t, "channel", logger.Channel("admins").Key)
}
