package manager

import "errors"

var (
	// ErrRateLimited is returned when the sender exceeded their rate budget
	// or is inside a burst cool-down window.
	ErrRateLimited = errors.New("manager: rate limited")

	// ErrPersistenceFailed is returned when the message could not be stored
	// after bounded internal retries. Nothing was delivered.
	ErrPersistenceFailed = errors.New("manager: persistence failed")

	// ErrNoRecipients is returned when a fan-out target resolves to an
	// empty recipient set.
	ErrNoRecipients = errors.New("manager: no recipients resolved")

	// ErrStorageRequired, ErrValidatorRequired, ErrRouterRequired, and
	// ErrDirectoryRequired guard the constructor against nil dependencies.
	ErrStorageRequired   = errors.New("manager: storage is required")
	ErrValidatorRequired = errors.New("manager: validator is required")
	ErrRouterRequired    = errors.New("manager: router is required")
	ErrDirectoryRequired = errors.New("manager: directory is required")
)
