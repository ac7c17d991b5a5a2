package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/notification"
)

type storedMessage struct {
	msg notification.Message
	seq uint64 // Insertion order tiebreaker for equal creation times
}

// MemoryStorage is an in-memory implementation of Storage.
// Suitable for development and testing.
type MemoryStorage struct {
	messages   map[string]*storedMessage
	deliveries map[string]map[string]*notification.DeliveryRecord // recipientID -> messageID -> record
	nextSeq    uint64
	mu         sync.RWMutex
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		messages:   make(map[string]*storedMessage),
		deliveries: make(map[string]map[string]*notification.DeliveryRecord),
	}
}

func (s *MemoryStorage) Store(ctx context.Context, msg notification.Message, recipientIDs []string) error {
	if msg.ID == "" {
		return ErrMessageIDRequired
	}
	if len(recipientIDs) == 0 {
		return ErrNoRecipients
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[msg.ID]; exists {
		return ErrDuplicateMessage
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Occurrences == 0 {
		msg.Occurrences = 1
	}

	// Single lock scope makes the fan-out atomic: the message and all its
	// delivery records become visible together.
	s.nextSeq++
	s.messages[msg.ID] = &storedMessage{msg: msg, seq: s.nextSeq}

	for _, rid := range recipientIDs {
		records, ok := s.deliveries[rid]
		if !ok {
			records = make(map[string]*notification.DeliveryRecord)
			s.deliveries[rid] = records
		}
		records[msg.ID] = &notification.DeliveryRecord{
			MessageID:   msg.ID,
			RecipientID: rid,
		}
	}

	return nil
}

func (s *MemoryStorage) GetPending(ctx context.Context, recipientID string, limit int) ([]notification.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*storedMessage
	for msgID, record := range s.deliveries[recipientID] {
		if !record.Pending() {
			continue
		}
		sm, ok := s.messages[msgID]
		if !ok || sm.msg.IsExpired() {
			continue
		}
		pending = append(pending, sm)
	}

	// Oldest first; the seq breaks ties between equal creation times.
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].msg.CreatedAt.Equal(pending[j].msg.CreatedAt) {
			return pending[i].seq < pending[j].seq
		}
		return pending[i].msg.CreatedAt.Before(pending[j].msg.CreatedAt)
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]notification.Message, 0, len(pending))
	for _, sm := range pending {
		out = append(out, s.viewLocked(sm, recipientID))
	}
	return out, nil
}

func (s *MemoryStorage) History(ctx context.Context, recipientID string, limit, offset int) ([]notification.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*storedMessage
	for msgID := range s.deliveries[recipientID] {
		sm, ok := s.messages[msgID]
		if !ok {
			continue
		}
		all = append(all, sm)
	}

	// Newest first for human scanning, the inverse of GetPending.
	sort.Slice(all, func(i, j int) bool {
		if all[i].msg.CreatedAt.Equal(all[j].msg.CreatedAt) {
			return all[i].seq > all[j].seq
		}
		return all[i].msg.CreatedAt.After(all[j].msg.CreatedAt)
	})

	if offset > len(all) {
		return []notification.Message{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]notification.Message, 0, len(all))
	for _, sm := range all {
		out = append(out, s.viewLocked(sm, recipientID))
	}
	return out, nil
}

func (s *MemoryStorage) MarkDelivered(ctx context.Context, messageID, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.recordLocked(messageID, recipientID)
	if err != nil {
		return err
	}
	record.MarkDelivered()
	return nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, messageID, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.recordLocked(messageID, recipientID)
	if err != nil {
		return err
	}
	record.MarkRead()
	return nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.deliveries[recipientID] {
		if record.ReadAt == nil {
			record.MarkRead()
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) RecordAttempt(ctx context.Context, messageID, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.recordLocked(messageID, recipientID)
	if err != nil {
		return err
	}
	record.RecordAttempt()
	return nil
}

func (s *MemoryStorage) IncrementOccurrences(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sm, ok := s.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	sm.msg.Occurrences++
	return nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, recipientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for msgID, record := range s.deliveries[recipientID] {
		if record.ReadAt != nil {
			continue
		}
		sm, ok := s.messages[msgID]
		if !ok || sm.msg.IsExpired() {
			continue
		}
		count++
	}
	return count, nil
}

func (s *MemoryStorage) PurgeExpired(ctx context.Context, retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	removed := 0

	for msgID, sm := range s.messages {
		// Expired messages stay visible in history until retention has
		// elapsed past their expiry.
		expiredPastRetention := sm.msg.ExpiresAt != nil && sm.msg.ExpiresAt.Before(cutoff)
		oldAndSettled := sm.msg.CreatedAt.Before(cutoff) && !s.hasPendingLocked(msgID)

		if !expiredPastRetention && !oldAndSettled {
			continue
		}

		delete(s.messages, msgID)
		for _, records := range s.deliveries {
			delete(records, msgID)
		}
		removed++
	}

	return removed, nil
}

// hasPendingLocked reports whether any recipient still awaits the message.
func (s *MemoryStorage) hasPendingLocked(messageID string) bool {
	for _, records := range s.deliveries {
		if record, ok := records[messageID]; ok && record.Pending() {
			return true
		}
	}
	return false
}

func (s *MemoryStorage) recordLocked(messageID, recipientID string) (*notification.DeliveryRecord, error) {
	records, ok := s.deliveries[recipientID]
	if !ok {
		return nil, ErrDeliveryNotFound
	}
	record, ok := records[messageID]
	if !ok {
		return nil, ErrDeliveryNotFound
	}
	return record, nil
}

// viewLocked returns a copy of the message with the recipient's delivery
// state applied. Callers never see internal pointers.
func (s *MemoryStorage) viewLocked(sm *storedMessage, recipientID string) notification.Message {
	msg := sm.msg
	if records, ok := s.deliveries[recipientID]; ok {
		if record, ok := records[msg.ID]; ok {
			msg.Delivered = record.DeliveredAt != nil
			msg.Read = record.ReadAt != nil
		}
	}
	return msg
}
