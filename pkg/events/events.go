// Package events provides an in-memory change-feed broker: local
// subscribers that want to react to commits as they land, without
// going through the sync engine's peer-facing protocol. Grounded on
// cuemby-warren/pkg/events.go's Broker (buffered channel fan-out,
// non-blocking publish, per-subscriber buffer), repointed from
// cluster/service/task events at entry-commit notifications.
package events

import (
	"sync"
	"time"

	"github.com/eideticadb/eidetica/pkg/types"
)

// EventType names the kind of local occurrence a Broker fans out.
type EventType string

const (
	EventEntryCommitted  EventType = "entry.committed"
	EventDatabaseCreated EventType = "database.created"
	EventSyncStarted     EventType = "sync.started"
	EventSyncStopped     EventType = "sync.stopped"
)

// Event is a single notification delivered to subscribers.
type Event struct {
	Type      EventType
	Tree      types.ID
	EntryID   types.ID
	Height    int
	Timestamp time.Time
}

// Subscriber is a channel that receives Events.
type Subscriber chan Event

// Broker manages subscriptions and fans out published Events to every
// active subscriber without blocking the publisher.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan Event
	stopCh      chan struct{}
}

// NewBroker returns a Broker with its distribution loop not yet
// started; call Start before Publish has any subscribers to reach.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop in a goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts the distribution loop. Subscriber channels are left open;
// callers still holding one should Unsubscribe.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscription and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes sub.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish enqueues event for broadcast. It blocks while the broker's
// 100-event queue is full; once the broker is stopped it returns
// without waiting, and the event may be dropped.
func (b *Broker) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full; drop rather than block the
			// publisher. A change feed, not a delivery guarantee.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
