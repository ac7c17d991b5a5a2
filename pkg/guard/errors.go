package guard

import "errors"

var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid guard configuration")

	// ErrStoreUnavailable indicates that the store backend is unavailable.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")

	// ErrInvalidRedisURL indicates an unparseable Redis connection string.
	ErrInvalidRedisURL = errors.New("invalid redis connection url")

	// ErrRedisNotReady indicates the Redis server did not become reachable
	// within the configured retry budget.
	ErrRedisNotReady = errors.New("redis is not ready")
)
