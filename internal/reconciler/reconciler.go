// Package reconciler is the client-side half of the protocol: a
// single-owner state machine that folds authoritative rows and feed
// changes into one of five observable phases. It assumes at-least-once,
// cross-table-unordered delivery, so every status change is treated as
// a trigger to re-fetch dependent rows, never as proof they are already
// visible. Callers drive it from one goroutine; it holds no locks.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DoyleJ11/party-trivia-backend/internal/feed"
	"github.com/DoyleJ11/party-trivia-backend/internal/models"
)

type Phase string

const (
	PhaseHome     Phase = "home"
	PhaseLobby    Phase = "lobby"
	PhasePicking  Phase = "picking"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// Fetcher reads authoritative rows. Implementations call the HTTP API;
// tests hand the services in directly.
type Fetcher interface {
	Party(ctx context.Context, partyID uint64) (*models.Party, []models.Membership, error)
	CurrentSession(ctx context.Context, partyID uint64) (*models.Session, []models.PlayerState, error)
	Session(ctx context.Context, sessionID uint64) (*models.Session, []models.PlayerState, error)
	Rounds(ctx context.Context, sessionID uint64) ([]models.Round, error)
}

type revealKey struct {
	UserID     uint64
	RoundIndex int
}

type Reconciler struct {
	userID  uint64
	fetcher Fetcher

	phase        Phase
	party        *models.Party
	members      []models.Membership
	session      *models.Session
	playerStates []models.PlayerState

	rounds        []models.Round
	roundsFetched bool
	currentIndex  int
	revealedByMe  bool
	reveals       map[revealKey]bool

	// last applied version per row, keyed table/rowID; stale or
	// duplicate deliveries that do not advance it are dropped.
	versions map[string]uint64
}

func New(userID uint64, fetcher Fetcher) *Reconciler {
	return &Reconciler{
		userID:   userID,
		fetcher:  fetcher,
		phase:    PhaseHome,
		reveals:  make(map[revealKey]bool),
		versions: make(map[string]uint64),
	}
}

func (r *Reconciler) Phase() Phase                       { return r.phase }
func (r *Reconciler) Party() *models.Party               { return r.party }
func (r *Reconciler) Members() []models.Membership       { return r.members }
func (r *Reconciler) Session() *models.Session           { return r.session }
func (r *Reconciler) PlayerStates() []models.PlayerState { return r.playerStates }
func (r *Reconciler) Rounds() []models.Round             { return r.rounds }
func (r *Reconciler) CurrentIndex() int                  { return r.currentIndex }
func (r *Reconciler) RevealedByMe() bool                 { return r.revealedByMe }

// RevealedBy reports whether a reveal by userID for roundIndex has been
// observed. Duplicate feed deliveries collapse into one entry.
func (r *Reconciler) RevealedBy(userID uint64, roundIndex int) bool {
	return r.reveals[revealKey{UserID: userID, RoundIndex: roundIndex}]
}

// JoinParty seeds local state after the join call succeeded and the
// party-scoped subscription is up.
func (r *Reconciler) JoinParty(ctx context.Context, partyID uint64) error {
	party, members, err := r.fetcher.Party(ctx, partyID)
	if err != nil {
		return err
	}
	r.party = party
	r.members = members
	r.phase = PhaseLobby
	if party.Status != models.PartyStatusLobby {
		return r.enterPicking(ctx)
	}
	return nil
}

// Leave resets to home and discards everything local. It does not
// mutate any shared state; memberships and picks stay where they are.
func (r *Reconciler) Leave() {
	r.phase = PhaseHome
	r.party = nil
	r.members = nil
	r.session = nil
	r.playerStates = nil
	r.resetRoundState()
	r.rounds = nil
	r.roundsFetched = false
	r.currentIndex = 0
	r.reveals = make(map[revealKey]bool)
	r.versions = make(map[string]uint64)
}

// Resync re-fetches every authoritative row and re-derives the phase.
// This is the whole reconnect story: no notification replay, just
// current truth.
func (r *Reconciler) Resync(ctx context.Context) error {
	if r.party == nil {
		return nil
	}
	party, members, err := r.fetcher.Party(ctx, r.party.ID)
	if err != nil {
		return err
	}
	r.party = party
	r.members = members

	if party.Status == models.PartyStatusLobby {
		r.phase = PhaseLobby
		return nil
	}
	return r.enterPicking(ctx)
}

// Apply folds one feed change into local state. Idempotent: replays and
// stale deliveries are no-ops.
func (r *Reconciler) Apply(ctx context.Context, ch feed.Change) error {
	if r.phase == PhaseHome {
		return nil
	}

	// Reveal events are append-only: dedupe by actor and round instead
	// of row version.
	if ch.Table == "reveal_events" {
		return r.applyReveal(ch)
	}

	key := fmt.Sprintf("%s/%d", ch.Table, ch.RowID)
	if ch.Version <= r.versions[key] {
		return nil
	}

	var err error
	switch ch.Table {
	case "parties":
		err = r.applyParty(ctx, ch)
	case "memberships":
		err = r.refreshMembers(ctx)
	case "sessions":
		err = r.applySession(ctx, ch)
	case "player_states":
		err = r.refreshPlayerStates(ctx)
	}
	if err != nil {
		return err
	}
	// Record the version only once the handler's fetches succeeded, so an
	// at-least-once redelivery can retry a failed transition.
	r.versions[key] = ch.Version
	return nil
}

func (r *Reconciler) applyParty(ctx context.Context, ch feed.Change) error {
	var party models.Party
	if err := decodeRow(ch.Row, &party); err != nil {
		return err
	}
	r.party = &party

	if party.Status == models.PartyStatusPicking && r.phase == PhaseLobby {
		return r.enterPicking(ctx)
	}
	return nil
}

func (r *Reconciler) applySession(ctx context.Context, ch feed.Change) error {
	var session models.Session
	if err := decodeRow(ch.Row, &session); err != nil {
		return err
	}
	if r.session != nil && r.session.ID != session.ID {
		return nil // an older session of the same party
	}
	r.session = &session

	switch session.Status {
	case models.SessionStatusCollectingPicks:
		if r.phase == PhaseLobby {
			r.phase = PhasePicking
			return r.refreshPlayerStates(ctx)
		}
	case models.SessionStatusActive:
		return r.enterActive(ctx, &session)
	case models.SessionStatusFinished:
		r.phase = PhaseFinished
	}
	return nil
}

func (r *Reconciler) applyReveal(ch feed.Change) error {
	var ev models.RevealEvent
	if err := decodeRow(ch.Row, &ev); err != nil {
		return err
	}
	r.reveals[revealKey{UserID: ev.UserID, RoundIndex: ev.RoundIndex}] = true
	if ev.UserID == r.userID && ev.RoundIndex == r.currentIndex {
		r.revealedByMe = true
	}
	return nil
}

// enterPicking runs the fetches a party status change demands: the
// current session and its player states. The session may itself already
// be active or finished; the derived phase follows it.
func (r *Reconciler) enterPicking(ctx context.Context) error {
	session, states, err := r.fetcher.CurrentSession(ctx, r.party.ID)
	if err != nil {
		return err
	}
	r.session = session
	r.playerStates = states

	switch session.Status {
	case models.SessionStatusActive:
		return r.enterActive(ctx, session)
	case models.SessionStatusFinished:
		r.phase = PhaseFinished
	default:
		r.phase = PhasePicking
	}
	return nil
}

// enterActive fetches rounds exactly once, snapshots the round cursor
// and resets per-round flags. Later session updates inside active only
// move the cursor.
func (r *Reconciler) enterActive(ctx context.Context, session *models.Session) error {
	if !r.roundsFetched {
		rounds, err := r.fetcher.Rounds(ctx, session.ID)
		if err != nil {
			return err
		}
		r.rounds = rounds
		r.roundsFetched = true
	}
	if r.phase != PhaseActive || session.CurrentIndex != r.currentIndex {
		r.currentIndex = session.CurrentIndex
		r.resetRoundState()
	}
	r.phase = PhaseActive
	return nil
}

func (r *Reconciler) refreshMembers(ctx context.Context) error {
	if r.party == nil {
		return nil
	}
	party, members, err := r.fetcher.Party(ctx, r.party.ID)
	if err != nil {
		return err
	}
	r.party = party
	r.members = members
	return nil
}

func (r *Reconciler) refreshPlayerStates(ctx context.Context) error {
	if r.session == nil {
		return nil
	}
	session, states, err := r.fetcher.Session(ctx, r.session.ID)
	if err != nil {
		return err
	}
	r.session = session
	r.playerStates = states
	return nil
}

func (r *Reconciler) resetRoundState() {
	r.revealedByMe = false
}

// decodeRow tolerates both in-process rows (typed structs) and rows
// that crossed the wire (decoded into map[string]any).
func decodeRow(row any, out any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
