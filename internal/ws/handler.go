// Package ws exposes the change feed over a websocket. A client
// subscribes to one scope per connection and only receives changes for
// parties and sessions it is a member of. Commands never travel this
// way; all authoritative operations are HTTP calls.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/party-trivia-backend/internal/auth"
	"github.com/DoyleJ11/party-trivia-backend/internal/authz"
	"github.com/DoyleJ11/party-trivia-backend/internal/feed"
	"github.com/DoyleJ11/party-trivia-backend/pkg/types"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type Handler struct {
	Hub   *feed.Hub
	Guard *authz.Guard
	Log   *zap.Logger
}

func NewHandler(hub *feed.Hub, guard *authz.Guard, log *zap.Logger) *Handler {
	return &Handler{Hub: hub, Guard: guard, Log: log}
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	scope := r.URL.Query().Get("scope")
	if err := h.authorizeScope(r.Context(), scope, userID); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	out := make(chan feed.Change, 16)
	subID := uuid.NewString()

	f := h.Hub.Ensure(scope)
	f.Inbox() <- feed.Subscribe{SubscriberID: subID, Outbox: out}
	defer func() { f.Inbox() <- feed.Unsubscribe{SubscriberID: subID} }()

	h.Log.Debug("feed subscribed",
		zap.String("scope", scope),
		zap.Uint64("user_id", userID))

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for change := range out {
			c := change
			msg := types.FeedMessage{Type: "Change", Change: &c}
			payload, _ := json.Marshal(msg)
			ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
			_ = conn.Write(ctx, websocket.MessageText, payload)
			cancel()
		}
	}()

	// Reader loop: the client sends nothing meaningful; reads exist to
	// notice the connection dying. Unsubscribe happens in the defer.
	for {
		_, _, err := conn.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			return
		}
	}
}

// authorizeScope parses "party/<id>" or "session/<id>" and checks
// membership on the referenced party.
func (h *Handler) authorizeScope(ctx context.Context, scope string, userID uint64) error {
	kind, rawID, found := strings.Cut(scope, "/")
	if !found {
		return errBadScope
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return errBadScope
	}

	switch kind {
	case "party":
		return h.Guard.RequireMember(ctx, id, userID)
	case "session":
		_, err := h.Guard.RequireSessionMember(ctx, id, userID)
		return err
	default:
		return errBadScope
	}
}

type scopeError string

func (e scopeError) Error() string { return string(e) }

const errBadScope = scopeError("bad scope")
