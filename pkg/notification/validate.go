package notification

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// MaxTitleLength is the upper bound for the message title.
	MaxTitleLength = 200
	// MaxBodyLength is the upper bound for the message body.
	MaxBodyLength = 2000
	// MaxPayloadDepth bounds the nesting of the structured payload.
	MaxPayloadDepth = 3
)

// allowedActionSchemes is the allow-list for action URLs. Anything outside
// this set (javascript:, data:, vbscript:, file:, ...) is rejected outright.
var allowedActionSchemes = map[string]struct{}{
	"http":   {},
	"https":  {},
	"mailto": {},
}

// Validate checks the message against the schema constraints. Overflow is a
// validation error, never silent truncation. All failures wrap
// ErrMalformedMessage so callers can match with errors.Is.
func (m *Message) Validate() error {
	if !m.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrMalformedMessage, m.Category)
	}
	if !m.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrMalformedMessage, m.Severity)
	}
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrMalformedMessage)
	}
	if len(m.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrMalformedMessage, MaxTitleLength)
	}
	if len(m.Body) > MaxBodyLength {
		return fmt.Errorf("%w: body exceeds %d characters", ErrMalformedMessage, MaxBodyLength)
	}
	if m.RequiresRole != "" && !m.RequiresRole.Valid() {
		return fmt.Errorf("%w: unknown required role %q", ErrMalformedMessage, m.RequiresRole)
	}
	if depth := payloadDepth(m.Payload, 1); depth > MaxPayloadDepth {
		return fmt.Errorf("%w: payload nesting exceeds %d levels", ErrMalformedMessage, MaxPayloadDepth)
	}
	if m.ActionURL != "" {
		if err := validateActionURL(m.ActionURL); err != nil {
			return err
		}
	}
	if m.ActionText != "" && m.ActionURL == "" {
		return fmt.Errorf("%w: action text without action URL", ErrMalformedMessage)
	}
	return nil
}

// payloadDepth returns the deepest nesting level of the payload. A flat map
// counts as depth 1; an empty or nil payload as 0.
func payloadDepth(v any, level int) int {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			return 0
		}
		deepest := level
		for _, child := range val {
			if d := payloadDepth(child, level+1); d > deepest {
				deepest = d
			}
		}
		return deepest
	case []any:
		deepest := level
		for _, child := range val {
			if d := payloadDepth(child, level+1); d > deepest {
				deepest = d
			}
		}
		return deepest
	default:
		if v == nil {
			return 0
		}
		return level
	}
}

func validateActionURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: invalid action URL: %v", ErrMalformedMessage, err)
	}
	// Relative URLs stay within the application and are always safe.
	if u.Scheme == "" {
		return nil
	}
	if _, ok := allowedActionSchemes[strings.ToLower(u.Scheme)]; !ok {
		return fmt.Errorf("%w: action URL scheme %q is not allowed", ErrMalformedMessage, u.Scheme)
	}
	return nil
}
