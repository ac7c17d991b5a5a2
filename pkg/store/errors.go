package store

import "errors"

var (
	// ErrMessageIDRequired indicates a message without an ID was stored.
	ErrMessageIDRequired = errors.New("message ID is required")

	// ErrNoRecipients indicates a store call without any resolved recipients.
	ErrNoRecipients = errors.New("at least one recipient is required")

	// ErrDuplicateMessage indicates a message with the same ID already exists.
	ErrDuplicateMessage = errors.New("message already stored")

	// ErrMessageNotFound is returned when a message is not found.
	ErrMessageNotFound = errors.New("message not found")

	// ErrDeliveryNotFound is returned when no delivery record exists for the
	// (message, recipient) pair.
	ErrDeliveryNotFound = errors.New("delivery record not found")

	// ErrFailedToParseConfig indicates an invalid Postgres connection config.
	ErrFailedToParseConfig = errors.New("failed to parse postgres config")

	// ErrFailedToConnect indicates the Postgres pool could not be opened.
	ErrFailedToConnect = errors.New("failed to connect to postgres")

	// ErrMigrationFailed indicates schema migrations could not be applied.
	ErrMigrationFailed = errors.New("failed to apply migrations")
)
