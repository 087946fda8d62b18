package feed

import "context"

type HubMsg interface{ isHubMsg() }

type EnsureFeed struct {
	Scope string
	Reply chan *Feed
}

type GetFeed struct {
	Scope string
	Reply chan *Feed
}

type RemoveFeed struct{ Scope string }

type PublishTo struct {
	Scope  string
	Change Change
}

type ShutdownHub struct{}

func (EnsureFeed) isHubMsg()  {}
func (GetFeed) isHubMsg()     {}
func (RemoveFeed) isHubMsg()  {}
func (PublishTo) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

// Publisher is what the authoritative services see: fire-and-forget
// publication of a committed change to one scope, plus retirement of a
// scope whose lifecycle ended.
type Publisher interface {
	Publish(scope string, change Change)
	Remove(scope string)
}

// Hub owns all feeds, keyed by scope ("party/<id>", "session/<id>").
// Like Feed it is a single-goroutine actor.
type Hub struct {
	inbox  chan HubMsg
	feeds  map[string]*Feed
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		feeds:  make(map[string]*Feed),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Ensure returns the feed for scope, creating it if needed.
func (h *Hub) Ensure(scope string) *Feed {
	reply := make(chan *Feed, 1)
	h.inbox <- EnsureFeed{Scope: scope, Reply: reply}
	return <-reply
}

// Publish routes a change to the scope's feed. A scope nobody ever
// subscribed to has no feed and the change is dropped; subscribers
// always re-fetch on subscribe, so nothing is lost.
func (h *Hub) Publish(scope string, change Change) {
	h.inbox <- PublishTo{Scope: scope, Change: change}
}

// Remove shuts down a scope's feed and closes its subscriber outboxes.
// Publications to a removed scope are dropped like any unknown scope.
func (h *Hub) Remove(scope string) {
	h.inbox <- RemoveFeed{Scope: scope}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureFeed:
				if f := h.feeds[msg.Scope]; f != nil {
					msg.Reply <- f
					break
				}
				f := NewFeed(h.ctx)
				h.feeds[msg.Scope] = f
				msg.Reply <- f

			case GetFeed:
				msg.Reply <- h.feeds[msg.Scope] // may be nil

			case PublishTo:
				if f := h.feeds[msg.Scope]; f != nil {
					f.Inbox() <- Publish{Change: msg.Change}
				}

			case RemoveFeed:
				if f := h.feeds[msg.Scope]; f != nil {
					f.Inbox() <- Shutdown{}
					delete(h.feeds, msg.Scope)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for scope, f := range h.feeds {
		f.Inbox() <- Shutdown{}
		delete(h.feeds, scope)
	}
	h.cancel()
}
