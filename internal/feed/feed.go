// Package feed is the change-notification bridge. Every committed
// mutation is published as a Change on a party- or session-scoped feed;
// subscribed clients receive it asynchronously. Delivery is
// at-least-once and ordered only per feed, so consumers reconcile with
// the version carried on each change rather than trusting arrival
// order across tables.
package feed

import (
	"context"
	"fmt"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Change is one row-level notification.
type Change struct {
	Table     string `json:"table"`
	Op        Op     `json:"op"`
	RowID     uint64 `json:"row_id"`
	PartyID   uint64 `json:"party_id,omitempty"`
	SessionID uint64 `json:"session_id,omitempty"`
	Version   uint64 `json:"version"`
	Row       any    `json:"row,omitempty"`
}

func PartyScope(partyID uint64) string     { return fmt.Sprintf("party/%d", partyID) }
func SessionScope(sessionID uint64) string { return fmt.Sprintf("session/%d", sessionID) }

type Msg interface{ isFeedMsg() }

type Subscribe struct {
	SubscriberID string
	Outbox       chan Change // where this subscriber receives changes
}

func (Subscribe) isFeedMsg() {}

type Unsubscribe struct{ SubscriberID string }

func (Unsubscribe) isFeedMsg() {}

type Publish struct{ Change Change }

func (Publish) isFeedMsg() {}

type Shutdown struct{}

func (Shutdown) isFeedMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isFeedMsg() {}

// View is a test-only reflection of feed internals without data races.
type View struct {
	NumSubscribers int
	Delivered      int
}

// Feed is a single-goroutine actor owning the subscriber set for one
// scope. All interaction goes through the inbox.
type Feed struct {
	inbox       chan Msg
	subscribers map[string]chan Change
	delivered   int
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewFeed(parent context.Context) *Feed {
	ctx, cancel := context.WithCancel(parent)

	f := &Feed{
		inbox:       make(chan Msg, 64),
		subscribers: make(map[string]chan Change),
		ctx:         ctx,
		cancel:      cancel,
	}

	go f.loop()
	return f
}

func (f *Feed) Inbox() chan<- Msg { return f.inbox }

func (f *Feed) loop() {
	for {
		select {
		case <-f.ctx.Done():
			f.shutdown()
			return

		case m := <-f.inbox:
			switch msg := m.(type) {
			case Subscribe:
				f.subscribers[msg.SubscriberID] = msg.Outbox

			case Unsubscribe:
				if out, ok := f.subscribers[msg.SubscriberID]; ok {
					close(out) // releases the subscriber's writer
					delete(f.subscribers, msg.SubscriberID)
				}

			case Publish:
				f.broadcast(msg.Change)

			case GetState:
				msg.Reply <- View{
					NumSubscribers: len(f.subscribers),
					Delivered:      f.delivered,
				}

			case Shutdown:
				f.shutdown()
				return
			}
		}
	}
}

func (f *Feed) shutdown() {
	for id, ch := range f.subscribers {
		close(ch) // tell subscriber no more changes
		delete(f.subscribers, id)
	}
	f.cancel()
}

func (f *Feed) broadcast(ch Change) {
	for id, out := range f.subscribers {
		select {
		case out <- ch:
			f.delivered++
		default:
			// Subscriber is slow/full - drop them. They re-fetch
			// authoritative rows when they reconnect.
			close(out)
			delete(f.subscribers, id)
		}
	}
}
