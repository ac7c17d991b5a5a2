package authz

import "errors"

var (
	// ErrUnauthorized indicates the sender lacks rights for the message.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTarget indicates the target does not exist or is not eligible.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrPolicyLoad indicates the rule table could not be loaded.
	ErrPolicyLoad = errors.New("failed to load authorization policy")

	// ErrAuditRequired indicates the validator was constructed without an audit logger.
	ErrAuditRequired = errors.New("audit logger is required")
)
