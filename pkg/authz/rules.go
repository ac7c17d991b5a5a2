package authz

import (
	"context"

	"github.com/dmitrymomot/pushkit/pkg/notification"
)

// RuleTable declares which sender roles may produce which message categories.
// The table is treated as immutable after the validator is constructed.
type RuleTable map[notification.Category]map[notification.Role]bool

// Allows reports whether the given role may send messages of the category.
func (t RuleTable) Allows(category notification.Category, role notification.Role) bool {
	roles, ok := t[category]
	if !ok {
		return false
	}
	return roles[role]
}

// RuleSource provides the rule table for validator construction.
type RuleSource interface {
	// Load returns the complete category-to-roles table.
	Load(ctx context.Context) (RuleTable, error)
}

// StaticSource is a RuleSource backed by an in-memory table.
type StaticSource struct {
	table RuleTable
}

// NewStaticSource creates a RuleSource from a fixed table.
func NewStaticSource(table RuleTable) *StaticSource {
	return &StaticSource{table: table}
}

func (s *StaticSource) Load(ctx context.Context) (RuleTable, error) {
	return s.table, nil
}

// DefaultRules returns the standard policy: admin and system categories are
// restricted to admin senders, user-category messages may be produced by any
// authenticated role.
func DefaultRules() RuleTable {
	return RuleTable{
		notification.CategoryAdmin: {
			notification.RoleAdmin: true,
		},
		notification.CategorySystem: {
			notification.RoleAdmin: true,
		},
		notification.CategoryUser: {
			notification.RoleUser:      true,
			notification.RoleModerator: true,
			notification.RoleAdmin:     true,
		},
	}
}
