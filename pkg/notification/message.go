package notification

import (
	"time"
)

// Category determines routing and authorization rules for a message.
type Category string

const (
	CategorySystem Category = "system"
	CategoryUser   Category = "user"
	CategoryAdmin  Category = "admin"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategorySystem, CategoryUser, CategoryAdmin:
		return true
	}
	return false
}

// Severity represents the notification severity level.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Valid reports whether the severity is one of the known values.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Role identifies the privilege tier of an identity. Relative ordering is
// contractual: RoleAdmin > RoleModerator > RoleUser.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Level returns the numeric rank of the role for comparisons.
// Unknown roles rank below RoleUser.
func (r Role) Level() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}

// AtLeast reports whether the role satisfies the given minimum role.
func (r Role) AtLeast(minimum Role) bool {
	return r.Level() >= minimum.Level()
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r.Level() > 0
}

// Message is the canonical notification envelope. ID and CreatedAt are set
// once at creation and never rewritten. Delivered and Read are owned by the
// manager and persistence layer; producers must leave them zero.
type Message struct {
	ID           string         `json:"id"`
	Category     Category       `json:"category"`
	Severity     Severity       `json:"severity"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	TargetUserID string         `json:"target_user_id,omitempty"`
	RequiresRole Role           `json:"requires_role,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	ActionURL    string         `json:"action_url,omitempty"`
	ActionText   string         `json:"action_text,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	Delivered    bool           `json:"delivered"`
	Read         bool           `json:"read"`

	// Occurrences counts near-duplicate messages coalesced into this one.
	// Always at least 1 once persisted.
	Occurrences int `json:"occurrences,omitempty"`
}

// IsExpired returns true if the message is past its expiry and no longer
// eligible for replay.
func (m *Message) IsExpired() bool {
	if m.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*m.ExpiresAt)
}

// IsBroadcast reports whether the message targets no single user and fans out
// at routing time.
func (m *Message) IsBroadcast() bool {
	return m.TargetUserID == ""
}

// VisibleTo reports whether an identity with the given role may view the
// message. Admin-category content and messages with RequiresRole set are
// restricted.
func (m *Message) VisibleTo(role Role) bool {
	if m.Category == CategoryAdmin && !role.AtLeast(RoleAdmin) {
		return false
	}
	if m.RequiresRole != "" && !role.AtLeast(m.RequiresRole) {
		return false
	}
	return true
}
