package rounds_test

import (
	"context"
	"testing"

	"github.com/DoyleJ11/party-trivia-backend/internal/apperr"
	"github.com/DoyleJ11/party-trivia-backend/internal/feed"
	"github.com/DoyleJ11/party-trivia-backend/internal/models"
	"github.com/DoyleJ11/party-trivia-backend/internal/testutil"

	"github.com/stretchr/testify/require"
)

// setupActive brings a single-member session all the way to active with
// `rounds` rounds.
func setupActive(t *testing.T, env *testutil.Env, leader uint64, rounds int) (sessionID uint64) {
	t.Helper()
	ctx := context.Background()

	p, err := env.Party.CreateParty(ctx, leader, rounds)
	require.NoError(t, err)

	ids := make([]uint64, 0, rounds)
	for i := 1; i <= rounds; i++ {
		ids = append(ids, leader*100+uint64(i))
	}
	testutil.SeedQuestions(t, env.DB, ids...)
	testutil.RateQuestions(t, env.DB, leader, ids...)

	session, err := env.Party.StartGame(ctx, leader, p.ID)
	require.NoError(t, err)
	require.NoError(t, env.Picks.SubmitPicks(ctx, leader, session.ID, ids))
	require.NoError(t, env.Picks.BeginGame(ctx, leader, session.ID))
	return session.ID
}

func TestRevealAnswer_CurrentRoundOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sessionID := setupActive(t, env, 1, 3)

	err := env.Rounds.RevealAnswer(ctx, 1, sessionID, 1)
	require.ErrorIs(t, err, apperr.ErrState, "not the current round")

	require.NoError(t, env.Rounds.RevealAnswer(ctx, 1, sessionID, 0))

	var events []models.RevealEvent
	require.NoError(t, env.DB.Where("session_id = ?", sessionID).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, 0, events[0].RoundIndex)
	require.EqualValues(t, 1, events[0].UserID)
}

func TestRevealAnswer_BumpsPlayCount(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sessionID := setupActive(t, env, 1, 1)

	var round models.Round
	require.NoError(t, env.DB.Where("session_id = ? AND round_index = 0", sessionID).First(&round).Error)

	require.NoError(t, env.Rounds.RevealAnswer(ctx, 1, sessionID, 0))

	var rating models.QuestionRating
	require.NoError(t, env.DB.
		Where("user_id = ? AND question_id = ?", 1, round.QuestionID).
		First(&rating).Error)
	require.Equal(t, 1, rating.PlayCount)
	require.NotNil(t, rating.LastPlayedAt)
}

func TestRevealAnswer_ActiveSessionsOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	p, err := env.Party.CreateParty(ctx, 1, 1)
	require.NoError(t, err)
	session, err := env.Party.StartGame(ctx, 1, p.ID)
	require.NoError(t, err)

	err = env.Rounds.RevealAnswer(ctx, 1, session.ID, 0)
	require.ErrorIs(t, err, apperr.ErrState)
}

func TestNextRound_AdvancesThenFinishes(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sessionID := setupActive(t, env, 1, 3)

	var session models.Session
	for want := 1; want <= 2; want++ {
		require.NoError(t, env.Rounds.NextRound(ctx, 1, sessionID))
		require.NoError(t, env.DB.First(&session, sessionID).Error)
		require.Equal(t, models.SessionStatusActive, session.Status)
		require.Equal(t, want, session.CurrentIndex)
	}
	require.Empty(t, env.Rec.Removed(), "feed retired before the session finished")

	// Advancing on the last round finishes instead of incrementing.
	require.NoError(t, env.Rounds.NextRound(ctx, 1, sessionID))
	require.NoError(t, env.DB.First(&session, sessionID).Error)
	require.Equal(t, models.SessionStatusFinished, session.Status)
	require.Equal(t, 2, session.CurrentIndex, "current_index never exceeds totalRounds-1")
	require.Contains(t, env.Rec.Removed(), feed.SessionScope(sessionID))

	err := env.Rounds.NextRound(ctx, 1, sessionID)
	require.ErrorIs(t, err, apperr.ErrState)
}

func TestNextRound_LeaderOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sessionID := setupActive(t, env, 1, 2)

	err := env.Rounds.NextRound(ctx, 5, sessionID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

// TestFullSessionScenario walks the whole contract: three members, two
// picks each, six rounds, five advances, finished.
func TestFullSessionScenario(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	leader := uint64(1)
	users := []uint64{1, 2, 3}

	p, err := env.Party.CreateParty(ctx, leader, 2)
	require.NoError(t, err)
	for _, u := range users[1:] {
		_, err := env.Party.JoinParty(ctx, u, p.Code)
		require.NoError(t, err)
	}

	submitted := map[uint64]uint64{}
	for _, u := range users {
		ids := []uint64{u * 100, u*100 + 1}
		testutil.SeedQuestions(t, env.DB, ids...)
		testutil.RateQuestions(t, env.DB, u, ids...)
		for _, id := range ids {
			submitted[id] = u
		}
	}

	session, err := env.Party.StartGame(ctx, leader, p.ID)
	require.NoError(t, err)

	var fresh models.Party
	require.NoError(t, env.DB.First(&fresh, p.ID).Error)
	require.Equal(t, models.PartyStatusPicking, fresh.Status)

	var states []models.PlayerState
	require.NoError(t, env.DB.Where("session_id = ?", session.ID).Find(&states).Error)
	require.Len(t, states, 3)
	for _, st := range states {
		require.False(t, st.IsReady)
	}

	for _, u := range users {
		require.NoError(t, env.Picks.SubmitPicks(ctx, u, session.ID, []uint64{u * 100, u*100 + 1}))
	}
	require.NoError(t, env.DB.Where("session_id = ?", session.ID).Find(&states).Error)
	for _, st := range states {
		require.True(t, st.IsReady)
	}

	require.NoError(t, env.Picks.BeginGame(ctx, leader, session.ID))

	var rounds []models.Round
	require.NoError(t, env.DB.Where("session_id = ?", session.ID).
		Order("round_index asc").Find(&rounds).Error)
	require.Len(t, rounds, 6)
	for i, r := range rounds {
		require.Equal(t, i, r.RoundIndex)
		require.Equal(t, submitted[r.QuestionID], r.ContributorID)
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, env.Rounds.NextRound(ctx, leader, session.ID))
	}
	var final models.Session
	require.NoError(t, env.DB.First(&final, session.ID).Error)
	require.Equal(t, models.SessionStatusFinished, final.Status)
}
