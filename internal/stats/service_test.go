package stats_test

import (
	"context"
	"testing"

	"github.com/DoyleJ11/party-trivia-backend/internal/models"
	"github.com/DoyleJ11/party-trivia-backend/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestUserQuestionStats(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	testutil.SeedQuestions(t, env.DB, 1, 2, 3)
	require.NoError(t, env.DB.Create(&models.QuestionRating{UserID: 7, QuestionID: 1, Rating: 5}).Error)
	require.NoError(t, env.DB.Create(&models.QuestionRating{UserID: 7, QuestionID: 2, Rating: 2, PlayCount: 3}).Error)
	require.NoError(t, env.DB.Create(&models.QuestionRating{UserID: 8, QuestionID: 3, Rating: 4}).Error)

	sts, err := env.Stats.UserQuestionStats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, sts, 2, "only the caller's own history")

	byQuestion := map[uint64]int{}
	for _, st := range sts {
		byQuestion[st.QuestionID] = st.PlayCount
		require.NotEmpty(t, st.Text, "joined with the catalog")
	}
	require.Equal(t, 0, byQuestion[1])
	require.Equal(t, 3, byQuestion[2])
}

func TestRatedQuestionIDs(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	testutil.RateQuestions(t, env.DB, 7, 5, 3, 9)

	ids, err := env.Stats.RatedQuestionIDs(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 5, 9}, ids)

	ids, err = env.Stats.RatedQuestionIDs(ctx, 8)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestRevealBumpsHistory(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	testutil.SeedQuestions(t, env.DB, 11)
	testutil.RateQuestions(t, env.DB, 1, 11)

	p, err := env.Party.CreateParty(ctx, 1, 1)
	require.NoError(t, err)
	session, err := env.Party.StartGame(ctx, 1, p.ID)
	require.NoError(t, err)
	require.NoError(t, env.Picks.SubmitPicks(ctx, 1, session.ID, []uint64{11}))
	require.NoError(t, env.Picks.BeginGame(ctx, 1, session.ID))
	require.NoError(t, env.Rounds.RevealAnswer(ctx, 1, session.ID, 0))

	sts, err := env.Stats.UserQuestionStats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sts, 1)
	require.Equal(t, 1, sts[0].PlayCount)
	require.NotNil(t, sts[0].LastPlayedAt)
}
