/*
Package events provides a local change feed: a Broker that fans out
Events to in-process subscribers as entries commit, independent of the
sync engine's peer protocol. It exists for callers that want to react
to local writes (live views, audit logs, cache invalidation) without
polling a Database's tip set.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		for ev := range sub {
			fmt.Printf("%s: %s@%s height=%d\n", ev.Type, ev.EntryID, ev.Tree, ev.Height)
		}
	}()

Delivery is best-effort: a subscriber with a full buffer misses events
rather than stalling the publisher (Publish itself waits only while
the broker's internal queue is full), so this is a live feed, not a
durable log. Instance wires a Broker's
Publish into its commit path when EnableEvents is called; see
pkg/instance.
*/
package events
