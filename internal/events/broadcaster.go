// Package events provides a progress event broadcaster for the
// ingestion pipeline.
package events

import (
	"sync"

	"github.com/cloudvault/cloudvault/internal/metrics"
	"github.com/cloudvault/cloudvault/internal/model"
)

// Broadcaster manages subscribers and publishes ingestion progress.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan model.Progress]struct{}
}

// NewBroadcaster creates a new progress broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan model.Progress]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan model.Progress {
	ch := make(chan model.Progress, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	metrics.SetProgressSubscribers(int64(b.Count()))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Safe to
// call more than once for the same channel.
func (b *Broadcaster) Unsubscribe(ch chan model.Progress) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
	metrics.SetProgressSubscribers(int64(b.Count()))
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event model.Progress) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
