package audit

import "errors"

var (
	// ErrEventValidation indicates an audit event is missing required fields.
	ErrEventValidation = errors.New("audit event validation failed")
)
