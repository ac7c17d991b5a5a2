// Package guard throttles notification producers and detects abuse patterns
// before messages reach persistence and routing.
//
// Three mechanisms compose the guard:
//
//   - A token bucket per identity with role-scaled budgets. The exact numbers
//     are configuration; the relative ordering admin > moderator > user is an
//     invariant enforced at construction. State lives behind the Store
//     interface with in-memory and Redis implementations, the latter giving
//     atomic check-and-increment semantics across instances via a Lua script.
//
//   - Burst detection. More than the configured number of arrivals inside a
//     short window triggers a cool-down that grows exponentially with each
//     consecutive offence, so a legitimate batch completes while a runaway
//     loop is shut down.
//
//   - Content-similarity coalescing behind the pluggable AbuseSignal
//     interface. Near-duplicate messages (same category, near-identical text
//     by trigram similarity over NFKC-normalized content) from one identity
//     are folded into a single delivery with an occurrence counter instead of
//     being delivered N times.
//
// Critical-severity messages bypass throttling entirely but remain subject to
// authorization upstream.
package guard
