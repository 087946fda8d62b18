package models

import "time"

type PartyStatus string

const (
	PartyStatusLobby   PartyStatus = "lobby"
	PartyStatusPicking PartyStatus = "picking"
	PartyStatusClosed  PartyStatus = "closed"
)

type SessionStatus string

const (
	SessionStatusCollectingPicks SessionStatus = "collecting_picks"
	SessionStatusActive          SessionStatus = "active"
	SessionStatusFinished        SessionStatus = "finished"
)

// Party is a lobby of users identified by a short shareable code.
// Status only moves forward: lobby -> picking -> closed.
type Party struct {
	ID            uint64      `json:"id" gorm:"primaryKey"`
	Code          string      `json:"code" gorm:"size:6;uniqueIndex;not null"`
	LeaderID      uint64      `json:"leader_id" gorm:"not null;index"`
	RequiredPicks int         `json:"required_picks" gorm:"not null"`
	Status        PartyStatus `json:"status" gorm:"size:16;not null;default:'lobby'"`
	Version       uint64      `json:"version" gorm:"not null;default:1"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Membership struct {
	ID       uint64    `json:"id" gorm:"primaryKey"`
	PartyID  uint64    `json:"party_id" gorm:"not null;uniqueIndex:uq_membership_party_user"`
	UserID   uint64    `json:"user_id" gorm:"not null;uniqueIndex:uq_membership_party_user"`
	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"`
}

// Session is one play-through belonging to a party. The current session
// of a party is the most recently created one.
type Session struct {
	ID           uint64        `json:"id" gorm:"primaryKey"`
	PartyID      uint64        `json:"party_id" gorm:"not null;index"`
	Status       SessionStatus `json:"status" gorm:"size:20;not null;default:'collecting_picks'"`
	CurrentIndex int           `json:"current_index" gorm:"not null;default:0"`
	Version      uint64        `json:"version" gorm:"not null;default:1"`
	CreatedAt    time.Time     `json:"created_at"`
}

// PlayerState tracks per-member readiness within a session. IsReady flips
// to true exactly once, as a side effect of a valid pick submission.
type PlayerState struct {
	ID        uint64    `json:"id" gorm:"primaryKey"`
	SessionID uint64    `json:"session_id" gorm:"not null;uniqueIndex:uq_player_state_session_user"`
	UserID    uint64    `json:"user_id" gorm:"not null;uniqueIndex:uq_player_state_session_user"`
	IsReady   bool      `json:"is_ready" gorm:"not null;default:false"`
	Version   uint64    `json:"version" gorm:"not null;default:1"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pick is a question a user contributes from their own rated pool.
// Exactly requiredPicks rows exist per (session, user), inserted as one
// batch and immutable afterwards.
type Pick struct {
	ID         uint64    `json:"id" gorm:"primaryKey"`
	SessionID  uint64    `json:"session_id" gorm:"not null;uniqueIndex:uq_pick_session_user_question"`
	UserID     uint64    `json:"user_id" gorm:"not null;uniqueIndex:uq_pick_session_user_question"`
	QuestionID uint64    `json:"question_id" gorm:"not null;uniqueIndex:uq_pick_session_user_question"`
	CreatedAt  time.Time `json:"created_at"`
}

// Round is one shuffled pick. RoundIndex is a dense 0-based permutation
// over every pick submitted to the session.
type Round struct {
	ID            uint64 `json:"id" gorm:"primaryKey"`
	SessionID     uint64 `json:"session_id" gorm:"not null;uniqueIndex:uq_round_session_index"`
	RoundIndex    int    `json:"round_index" gorm:"not null;uniqueIndex:uq_round_session_index"`
	QuestionID    uint64 `json:"question_id" gorm:"not null"`
	ContributorID uint64 `json:"contributor_id" gorm:"not null"`
}

// RevealEvent is an append-only log entry: a user disclosed the answer
// for a round to themselves. Fan-out is informational only; delivery is
// at-least-once and consumers dedupe by (user, round_index).
type RevealEvent struct {
	ID         uint64    `json:"id" gorm:"primaryKey"`
	SessionID  uint64    `json:"session_id" gorm:"not null;index"`
	RoundIndex int       `json:"round_index" gorm:"not null"`
	UserID     uint64    `json:"user_id" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// Question is a catalog row. The catalog is maintained by an external
// pipeline; this service only reads it.
type Question struct {
	ID       uint64 `json:"id" gorm:"primaryKey"`
	Text     string `json:"text" gorm:"not null"`
	Answer   string `json:"answer" gorm:"not null"`
	Comment  string `json:"comment"`
	Source   string `json:"source"`
	Packet   string `json:"packet"`
	ImageURL string `json:"image_url"`
	Author   string `json:"author"`
}

// QuestionRating is a user's prior rating of a question plus how often
// they have played it. The rated set gates which questions a user may
// contribute as picks.
type QuestionRating struct {
	ID           uint64     `json:"id" gorm:"primaryKey"`
	UserID       uint64     `json:"user_id" gorm:"not null;uniqueIndex:uq_rating_user_question"`
	QuestionID   uint64     `json:"question_id" gorm:"not null;uniqueIndex:uq_rating_user_question"`
	Rating       int        `json:"rating" gorm:"not null"`
	PlayCount    int        `json:"play_count" gorm:"not null;default:0"`
	LastPlayedAt *time.Time `json:"last_played_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
