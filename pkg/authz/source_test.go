package authz_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/authz"
	"github.com/dmitrymomot/pushkit/pkg/notification"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestYAMLSource_Load(t *testing.T) {
	path := writePolicy(t, `
categories:
  admin:
    allow: [admin]
  user:
    allow: [user, moderator, admin]
  system:
    allow: [admin]
`)

	table, err := authz.NewYAMLSource(path).Load(context.Background())
	require.NoError(t, err)

	assert.True(t, table.Allows(notification.CategoryAdmin, notification.RoleAdmin))
	assert.False(t, table.Allows(notification.CategoryAdmin, notification.RoleModerator))
	assert.True(t, table.Allows(notification.CategoryUser, notification.RoleUser))
	assert.False(t, table.Allows(notification.CategorySystem, notification.RoleUser))
}

func TestYAMLSource_UnknownCategory(t *testing.T) {
	path := writePolicy(t, `
categories:
  gossip:
    allow: [admin]
`)

	_, err := authz.NewYAMLSource(path).Load(context.Background())
	assert.ErrorIs(t, err, authz.ErrPolicyLoad)
}

func TestYAMLSource_UnknownRole(t *testing.T) {
	path := writePolicy(t, `
categories:
  user:
    allow: [superuser]
`)

	_, err := authz.NewYAMLSource(path).Load(context.Background())
	assert.ErrorIs(t, err, authz.ErrPolicyLoad)
}

func TestYAMLSource_MissingFile(t *testing.T) {
	_, err := authz.NewYAMLSource("does/not/exist.yaml").Load(context.Background())
	assert.ErrorIs(t, err, authz.ErrPolicyLoad)
}

func TestRuleTable_UnknownCategoryDenied(t *testing.T) {
	table := authz.DefaultRules()
	assert.False(t, table.Allows("gossip", notification.RoleAdmin))
}
