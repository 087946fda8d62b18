package picks_test

import (
	"context"
	"testing"

	"github.com/DoyleJ11/party-trivia-backend/internal/apperr"
	"github.com/DoyleJ11/party-trivia-backend/internal/models"
	"github.com/DoyleJ11/party-trivia-backend/internal/testutil"

	"github.com/stretchr/testify/require"
)

// setupCollecting creates a party with the given members, rates enough
// questions for each, and starts the game. Question IDs for user u are
// u*100+1 .. u*100+requiredPicks+1.
func setupCollecting(t *testing.T, env *testutil.Env, leader uint64, members []uint64, requiredPicks int) (partyID, sessionID uint64) {
	t.Helper()
	ctx := context.Background()

	p, err := env.Party.CreateParty(ctx, leader, requiredPicks)
	require.NoError(t, err)
	for _, m := range members {
		if m == leader {
			continue
		}
		_, err := env.Party.JoinParty(ctx, m, p.Code)
		require.NoError(t, err)
	}

	for _, m := range members {
		ids := questionIDs(m, requiredPicks+1)
		testutil.SeedQuestions(t, env.DB, ids...)
		testutil.RateQuestions(t, env.DB, m, ids...)
	}

	session, err := env.Party.StartGame(ctx, leader, p.ID)
	require.NoError(t, err)
	return p.ID, session.ID
}

func questionIDs(userID uint64, n int) []uint64 {
	ids := make([]uint64, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, userID*100+uint64(i))
	}
	return ids
}

func TestSubmitPicks_Validation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, sessionID := setupCollecting(t, env, 1, []uint64{1}, 2)

	// Wrong count.
	err := env.Picks.SubmitPicks(ctx, 1, sessionID, []uint64{101})
	require.ErrorIs(t, err, apperr.ErrValidation)

	// Duplicate item.
	err = env.Picks.SubmitPicks(ctx, 1, sessionID, []uint64{101, 101})
	require.ErrorIs(t, err, apperr.ErrValidation)

	// Item outside the caller's rated set.
	err = env.Picks.SubmitPicks(ctx, 1, sessionID, []uint64{101, 999})
	require.ErrorIs(t, err, apperr.ErrValidation)

	// Nothing observable happened.
	var n int64
	require.NoError(t, env.DB.Model(&models.Pick{}).Where("session_id = ?", sessionID).Count(&n).Error)
	require.EqualValues(t, 0, n)
	var st models.PlayerState
	require.NoError(t, env.DB.Where("session_id = ? AND user_id = ?", sessionID, 1).First(&st).Error)
	require.False(t, st.IsReady)
}

func TestSubmitPicks_ExactlyOnce(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, sessionID := setupCollecting(t, env, 1, []uint64{1}, 2)

	require.NoError(t, env.Picks.SubmitPicks(ctx, 1, sessionID, []uint64{101, 102}))

	var st models.PlayerState
	require.NoError(t, env.DB.Where("session_id = ? AND user_id = ?", sessionID, 1).First(&st).Error)
	require.True(t, st.IsReady)

	// Second submission is rejected, never merged.
	err := env.Picks.SubmitPicks(ctx, 1, sessionID, []uint64{102, 103})
	require.ErrorIs(t, err, apperr.ErrConflict)

	var n int64
	require.NoError(t, env.DB.Model(&models.Pick{}).
		Where("session_id = ? AND user_id = ?", sessionID, 1).Count(&n).Error)
	require.EqualValues(t, 2, n)
}

func TestSubmitPicks_MemberOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, sessionID := setupCollecting(t, env, 1, []uint64{1}, 1)

	testutil.SeedQuestions(t, env.DB, 901)
	testutil.RateQuestions(t, env.DB, 9, 901)
	err := env.Picks.SubmitPicks(ctx, 9, sessionID, []uint64{901})
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestBeginGame_RequiresAllReady(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, sessionID := setupCollecting(t, env, 1, []uint64{1, 2}, 1)

	require.NoError(t, env.Picks.SubmitPicks(ctx, 1, sessionID, []uint64{101}))

	err := env.Picks.BeginGame(ctx, 1, sessionID)
	require.ErrorIs(t, err, apperr.ErrState)

	require.NoError(t, env.Picks.SubmitPicks(ctx, 2, sessionID, []uint64{201}))
	require.NoError(t, env.Picks.BeginGame(ctx, 1, sessionID))
}

func TestBeginGame_LeaderOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, sessionID := setupCollecting(t, env, 1, []uint64{1, 2}, 1)

	require.NoError(t, env.Picks.SubmitPicks(ctx, 1, sessionID, []uint64{101}))
	require.NoError(t, env.Picks.SubmitPicks(ctx, 2, sessionID, []uint64{201}))

	err := env.Picks.BeginGame(ctx, 2, sessionID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestBeginGame_RoundsAreAPermutationOfPicks(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	users := []uint64{1, 2, 3}
	_, sessionID := setupCollecting(t, env, 1, users, 2)

	contributor := map[uint64]uint64{} // question -> submitter
	for _, u := range users {
		ids := questionIDs(u, 2)
		require.NoError(t, env.Picks.SubmitPicks(ctx, u, sessionID, ids))
		for _, id := range ids {
			contributor[id] = u
		}
	}

	require.NoError(t, env.Picks.BeginGame(ctx, 1, sessionID))

	var session models.Session
	require.NoError(t, env.DB.First(&session, sessionID).Error)
	require.Equal(t, models.SessionStatusActive, session.Status)
	require.Equal(t, 0, session.CurrentIndex)

	var rounds []models.Round
	require.NoError(t, env.DB.Where("session_id = ?", sessionID).
		Order("round_index asc").Find(&rounds).Error)
	require.Len(t, rounds, 6)

	seen := map[uint64]bool{}
	for i, r := range rounds {
		require.Equal(t, i, r.RoundIndex, "indices are dense and 0-based")
		require.False(t, seen[r.QuestionID], "each pick appears exactly once")
		seen[r.QuestionID] = true
		require.Equal(t, contributor[r.QuestionID], r.ContributorID,
			"contributing user survives the shuffle")
	}
}

func TestBeginGame_OnlyOnce(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, sessionID := setupCollecting(t, env, 1, []uint64{1}, 1)

	require.NoError(t, env.Picks.SubmitPicks(ctx, 1, sessionID, []uint64{101}))
	require.NoError(t, env.Picks.BeginGame(ctx, 1, sessionID))

	err := env.Picks.BeginGame(ctx, 1, sessionID)
	require.ErrorIs(t, err, apperr.ErrState)

	var n int64
	require.NoError(t, env.DB.Model(&models.Round{}).Where("session_id = ?", sessionID).Count(&n).Error)
	require.EqualValues(t, 1, n, "no double shuffle")
}
