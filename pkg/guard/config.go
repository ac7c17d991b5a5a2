package guard

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/notification"
)

// Config holds the guard configuration. Budgets are per identity per minute;
// the relative ordering admin > moderator > user is contractual and enforced
// by validation.
type Config struct {
	UserPerMinute      int `env:"GUARD_USER_PER_MINUTE" envDefault:"20"`
	ModeratorPerMinute int `env:"GUARD_MODERATOR_PER_MINUTE" envDefault:"60"`
	AdminPerMinute     int `env:"GUARD_ADMIN_PER_MINUTE" envDefault:"120"`

	BurstThreshold int           `env:"GUARD_BURST_THRESHOLD" envDefault:"10"`
	BurstWindow    time.Duration `env:"GUARD_BURST_WINDOW" envDefault:"60s"`
	CooldownBase   time.Duration `env:"GUARD_COOLDOWN_BASE" envDefault:"2s"`
	CooldownMax    time.Duration `env:"GUARD_COOLDOWN_MAX" envDefault:"5m"`

	SimilarityWindow    time.Duration `env:"GUARD_SIMILARITY_WINDOW" envDefault:"30s"`
	SimilarityThreshold float64       `env:"GUARD_SIMILARITY_THRESHOLD" envDefault:"0.85"`
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.UserPerMinute <= 0 || c.ModeratorPerMinute <= 0 || c.AdminPerMinute <= 0 {
		return fmt.Errorf("%w: budgets must be positive", ErrInvalidConfig)
	}
	if !(c.AdminPerMinute > c.ModeratorPerMinute && c.ModeratorPerMinute > c.UserPerMinute) {
		return fmt.Errorf("%w: budget ordering admin > moderator > user must hold", ErrInvalidConfig)
	}
	if c.BurstThreshold <= 0 || c.BurstWindow <= 0 {
		return fmt.Errorf("%w: burst threshold and window must be positive", ErrInvalidConfig)
	}
	if c.CooldownBase <= 0 || c.CooldownMax < c.CooldownBase {
		return fmt.Errorf("%w: cooldown base must be positive and not exceed the cap", ErrInvalidConfig)
	}
	return nil
}

// bucketFor maps a role to its token bucket. Unknown roles get the standard
// user budget.
func (c Config) bucketFor(role notification.Role) BucketConfig {
	perMinute := c.UserPerMinute
	switch role {
	case notification.RoleAdmin:
		perMinute = c.AdminPerMinute
	case notification.RoleModerator:
		perMinute = c.ModeratorPerMinute
	}
	return BucketConfig{
		Capacity:       perMinute,
		RefillRate:     perMinute,
		RefillInterval: time.Minute,
	}
}
