package events

import (
	"testing"
	"time"

	"github.com/eideticadb/eidetica/pkg/types"
)

func TestBrokerPublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(Event{Type: EventEntryCommitted, Tree: types.ID("tree1"), EntryID: types.ID("e1"), Height: 1})

	select {
	case ev := <-sub:
		if ev.Type != EventEntryCommitted || ev.EntryID != types.ID("e1") {
			t.Errorf("got %+v, want EventEntryCommitted for e1", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerFansOutToMultipleSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	if got := b.SubscriberCount(); got != 2 {
		t.Fatalf("SubscriberCount() = %d, want 2", got)
	}

	b.Publish(Event{Type: EventDatabaseCreated, Tree: types.ID("tree2")})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			if ev.Type != EventDatabaseCreated {
				t.Errorf("got %+v, want EventDatabaseCreated", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", got)
	}

	if _, ok := <-sub; ok {
		t.Fatal("expected subscriber channel to be closed")
	}
}

func TestBrokerUnsubscribeUnknownSubscriberIsNoop(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	stray := make(Subscriber, 1)
	b.Unsubscribe(stray) // must not panic on a channel it never registered
}
