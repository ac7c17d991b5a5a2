package guard

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/dmitrymomot/pushkit/pkg/notification"
)

// Finding is the result of inspecting a message for abuse patterns.
type Finding struct {
	// Duplicate is true when the message is a near-duplicate of a recent one
	// from the same identity and should be coalesced rather than delivered.
	Duplicate bool

	// OfMessageID is the ID of the earlier message this one duplicates.
	OfMessageID string

	// Occurrences counts how many times the content has been seen inside the
	// window, including this one.
	Occurrences int
}

// AbuseSignal is a pluggable detection strategy. Implementations can be
// swapped or tuned without touching the manager pipeline.
type AbuseSignal interface {
	// Inspect examines a message from the given identity and reports a
	// Finding. It never registers new content; that is Record's job.
	Inspect(ctx context.Context, identityID string, msg notification.Message) (Finding, error)

	// Record registers the message content so later near-duplicates coalesce
	// into it. The guard calls it only once the message has cleared every
	// throttle check, so rejected content never becomes a coalescing target.
	Record(ctx context.Context, identityID string, msg notification.Message) error
}

// contentEntry tracks recently observed content for one identity.
type contentEntry struct {
	messageID  string
	category   notification.Category
	normalized string
	trigrams   map[string]struct{}
	count      int
	seenAt     time.Time
}

// SimilaritySignal detects near-duplicate messages (same category plus
// near-identical body) from the same identity within a sliding window, using
// trigram Jaccard similarity over normalized text.
type SimilaritySignal struct {
	window    time.Duration
	threshold float64

	mu      sync.Mutex
	entries map[string][]*contentEntry // identityID -> recent content
}

// NewSimilaritySignal creates a similarity detector. Messages whose trigram
// similarity meets or exceeds threshold (0..1) within the window are reported
// as duplicates.
func NewSimilaritySignal(window time.Duration, threshold float64) *SimilaritySignal {
	if window <= 0 {
		window = 30 * time.Second
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &SimilaritySignal{
		window:    window,
		threshold: threshold,
		entries:   make(map[string][]*contentEntry),
	}
}

func (s *SimilaritySignal) Inspect(ctx context.Context, identityID string, msg notification.Message) (Finding, error) {
	normalized := normalizeText(msg.Title + " " + msg.Body)
	grams := trigrams(normalized)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.entries[identityID][:0]
	var match *contentEntry
	for _, e := range s.entries[identityID] {
		if now.Sub(e.seenAt) > s.window {
			continue
		}
		recent = append(recent, e)
		if match == nil && e.category == msg.Category && jaccard(e.trigrams, grams) >= s.threshold {
			match = e
		}
	}
	s.entries[identityID] = recent

	if match != nil {
		match.count++
		match.seenAt = now
		return Finding{
			Duplicate:   true,
			OfMessageID: match.messageID,
			Occurrences: match.count,
		}, nil
	}
	return Finding{Occurrences: 1}, nil
}

func (s *SimilaritySignal) Record(ctx context.Context, identityID string, msg notification.Message) error {
	normalized := normalizeText(msg.Title + " " + msg.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[identityID] = append(s.entries[identityID], &contentEntry{
		messageID:  msg.ID,
		category:   msg.Category,
		normalized: normalized,
		trigrams:   trigrams(normalized),
		count:      1,
		seenAt:     time.Now(),
	})
	return nil
}

// normalizeText lowercases, collapses whitespace, and applies NFKC so that
// visually identical unicode variants compare equal.
func normalizeText(s string) string {
	folded := strings.ToLower(strings.Join(strings.Fields(s), " "))
	return norm.NFKC.String(folded)
}

func trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{})
	if len(runes) < 3 {
		if len(runes) > 0 {
			set[string(runes)] = struct{}{}
		}
		return set
	}
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for g := range a {
		if _, ok := b[g]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// NoOpSignal reports every message as unique. Useful for testing or when
// similarity detection is not wanted.
type NoOpSignal struct{}

func (NoOpSignal) Inspect(ctx context.Context, identityID string, msg notification.Message) (Finding, error) {
	return Finding{Occurrences: 1}, nil
}

func (NoOpSignal) Record(ctx context.Context, identityID string, msg notification.Message) error {
	return nil
}
