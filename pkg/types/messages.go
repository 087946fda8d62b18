// Package types holds the wire shapes shared between the server and
// its clients.
package types

import (
	"github.com/DoyleJ11/party-trivia-backend/internal/feed"
	"github.com/DoyleJ11/party-trivia-backend/internal/models"
)

// Client -> Server (HTTP bodies)

type CreatePartyRequest struct {
	RequiredPicks int `json:"required_picks"`
}

type JoinPartyRequest struct {
	Code string `json:"code"`
}

type SubmitPicksRequest struct {
	QuestionIDs []uint64 `json:"question_ids"`
}

type RevealRequest struct {
	RoundIndex int `json:"round_index"`
}

// Server -> Client (HTTP bodies)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type PartyResponse struct {
	Party   models.Party        `json:"party"`
	Members []models.Membership `json:"members"`
}

type SessionResponse struct {
	Session      models.Session       `json:"session"`
	PlayerStates []models.PlayerState `json:"player_states"`
}

// Server -> Client (websocket feed)

type FeedMessage struct {
	Type   string       `json:"type"` // "Change" | "Error"
	Change *feed.Change `json:"change,omitempty"`
	Error  string       `json:"error,omitempty"`
}
