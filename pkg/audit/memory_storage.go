package audit

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory bounded implementation of Storage.
// Suitable for development and testing. When the capacity is reached the
// oldest events are discarded.
type MemoryStorage struct {
	events   []Event
	capacity int
	mu       sync.RWMutex
}

// DefaultMemoryCapacity bounds the in-memory audit trail.
const DefaultMemoryCapacity = 10000

// NewMemoryStorage creates a bounded in-memory audit storage.
// A non-positive capacity falls back to DefaultMemoryCapacity.
func NewMemoryStorage(capacity int) *MemoryStorage {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStorage{capacity: capacity}
}

func (s *MemoryStorage) Store(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if len(s.events) > s.capacity {
		s.events = s.events[len(s.events)-s.capacity:]
	}
	return nil
}

func (s *MemoryStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Event
	// Newest first for human inspection.
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if !matches(e, criteria) {
			continue
		}
		matched = append(matched, e)
	}

	start := criteria.Offset
	if start > len(matched) {
		return []Event{}, nil
	}
	end := len(matched)
	if criteria.Limit > 0 && start+criteria.Limit < end {
		end = start + criteria.Limit
	}
	return matched[start:end], nil
}

func matches(e Event, c Criteria) bool {
	if c.ActorID != "" && e.ActorID != c.ActorID {
		return false
	}
	if c.RecipientID != "" && e.RecipientID != c.RecipientID {
		return false
	}
	if c.Action != "" && e.Action != c.Action {
		return false
	}
	if c.Result != "" && e.Result != c.Result {
		return false
	}
	if c.Since != nil && e.CreatedAt.Before(*c.Since) {
		return false
	}
	if c.Until != nil && e.CreatedAt.After(*c.Until) {
		return false
	}
	return true
}
