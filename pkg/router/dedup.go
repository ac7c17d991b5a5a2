package router

import (
	"container/list"
	"sync"
)

type dedupKey struct {
	messageID   string
	recipientID string
}

// dedupTracker remembers recently acknowledged deliveries so that a replay
// racing a just-committed ack does not push the same message twice. Bounded
// LRU: oldest entries fall off once capacity is reached.
type dedupTracker struct {
	capacity int
	items    map[dedupKey]*list.Element
	eviction *list.List
	mu       sync.Mutex
}

func newDedupTracker(capacity int) *dedupTracker {
	return &dedupTracker{
		capacity: max(capacity, 1),
		items:    make(map[dedupKey]*list.Element),
		eviction: list.New(),
	}
}

func (d *dedupTracker) remember(messageID, recipientID string) {
	key := dedupKey{messageID: messageID, recipientID: recipientID}

	d.mu.Lock()
	defer d.mu.Unlock()

	if elem, ok := d.items[key]; ok {
		d.eviction.MoveToFront(elem)
		return
	}

	d.items[key] = d.eviction.PushFront(key)
	if d.eviction.Len() > d.capacity {
		oldest := d.eviction.Back()
		d.eviction.Remove(oldest)
		delete(d.items, oldest.Value.(dedupKey))
	}
}

func (d *dedupTracker) seen(messageID, recipientID string) bool {
	key := dedupKey{messageID: messageID, recipientID: recipientID}

	d.mu.Lock()
	defer d.mu.Unlock()

	elem, ok := d.items[key]
	if ok {
		d.eviction.MoveToFront(elem)
	}
	return ok
}
