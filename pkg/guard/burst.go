package guard

import (
	"sync"
	"time"
)

// burstState tracks arrivals and cool-down for one identity.
type burstState struct {
	arrivals      []time.Time
	cooldownUntil time.Time
	offences      int
	lastOffence   time.Time
}

// burstTracker detects runaway send loops. When more than threshold messages
// arrive inside the window, subsequent messages enter a cool-down that doubles
// with each consecutive offence up to a cap, so legitimate bursts recover
// quickly while loops are shut down.
type burstTracker struct {
	threshold int
	window    time.Duration
	base      time.Duration
	max       time.Duration

	mu     sync.Mutex
	states map[string]*burstState
}

func newBurstTracker(threshold int, window, base, max time.Duration) *burstTracker {
	return &burstTracker{
		threshold: threshold,
		window:    window,
		base:      base,
		max:       max,
		states:    make(map[string]*burstState),
	}
}

// observe records an arrival and returns the remaining cool-down if the
// identity is throttled, or zero if the message may proceed.
func (bt *burstTracker) observe(identityID string, now time.Time) time.Duration {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	st, ok := bt.states[identityID]
	if !ok {
		st = &burstState{}
		bt.states[identityID] = st
	}

	if now.Before(st.cooldownUntil) {
		return st.cooldownUntil.Sub(now)
	}

	// Offence streak resets once the identity stays quiet for two windows.
	if st.offences > 0 && now.Sub(st.lastOffence) > 2*bt.window {
		st.offences = 0
	}

	cutoff := now.Add(-bt.window)
	kept := st.arrivals[:0]
	for _, t := range st.arrivals {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	st.arrivals = append(kept, now)

	if len(st.arrivals) > bt.threshold {
		st.offences++
		st.lastOffence = now

		cooldown := bt.base << (st.offences - 1)
		if cooldown > bt.max || cooldown <= 0 {
			cooldown = bt.max
		}
		st.cooldownUntil = now.Add(cooldown)
		st.arrivals = st.arrivals[:0]
		return cooldown
	}

	return 0
}

// reset clears burst state for an identity.
func (bt *burstTracker) reset(identityID string) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	delete(bt.states, identityID)
}
