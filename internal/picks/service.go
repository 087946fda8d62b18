// Package picks collects each member's question picks and runs the
// picking -> active transition once everybody is ready.
package picks

import (
	"context"
	"math/rand"

	"github.com/DoyleJ11/party-trivia-backend/internal/apperr"
	"github.com/DoyleJ11/party-trivia-backend/internal/authz"
	"github.com/DoyleJ11/party-trivia-backend/internal/feed"
	"github.com/DoyleJ11/party-trivia-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	DB    *gorm.DB
	Guard *authz.Guard
	Pub   feed.Publisher
	Log   *zap.Logger
}

func NewService(db *gorm.DB, guard *authz.Guard, pub feed.Publisher, log *zap.Logger) *Service {
	return &Service{DB: db, Guard: guard, Pub: pub, Log: log}
}

// SubmitPicks stores the caller's picks and flips their readiness flag,
// atomically. The flag is a single-assignment guard: a second
// submission for the same user fails with a conflict, never a merge.
func (s *Service) SubmitPicks(ctx context.Context, userID, sessionID uint64, questionIDs []uint64) error {
	partyID, err := s.Guard.RequireSessionMember(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	var party models.Party
	if err := s.DB.WithContext(ctx).First(&party, partyID).Error; err != nil {
		return err
	}

	if len(questionIDs) != party.RequiredPicks {
		return apperr.Validation("expected %d picks, got %d", party.RequiredPicks, len(questionIDs))
	}
	seen := make(map[uint64]bool, len(questionIDs))
	for _, id := range questionIDs {
		if seen[id] {
			return apperr.Validation("duplicate question %d", id)
		}
		seen[id] = true
	}

	var state models.PlayerState

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.First(&session, sessionID).Error; err != nil {
			return err
		}
		if session.Status != models.SessionStatusCollectingPicks {
			return apperr.State("session %d is not collecting picks", sessionID)
		}

		// Every pick must come from the caller's own rated pool.
		var rated int64
		if err := tx.Model(&models.QuestionRating{}).
			Where("user_id = ? AND question_id IN ?", userID, questionIDs).
			Count(&rated).Error; err != nil {
			return err
		}
		if rated != int64(len(questionIDs)) {
			return apperr.Validation("picks must come from your rated questions")
		}

		// Flip the readiness flag first; losing this conditional update
		// means the caller already submitted.
		res := tx.Model(&models.PlayerState{}).
			Where("session_id = ? AND user_id = ? AND is_ready = ?", sessionID, userID, false).
			Updates(map[string]any{
				"is_ready": true,
				"version":  gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("picks already submitted for session %d", sessionID)
		}

		rows := make([]models.Pick, 0, len(questionIDs))
		for _, qid := range questionIDs {
			rows = append(rows, models.Pick{SessionID: sessionID, UserID: userID, QuestionID: qid})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}

		return tx.Where("session_id = ? AND user_id = ?", sessionID, userID).
			First(&state).Error
	})
	if err != nil {
		return err
	}

	s.Log.Info("picks submitted",
		zap.Uint64("session_id", sessionID),
		zap.Uint64("user_id", userID),
		zap.Int("count", len(questionIDs)))

	s.Pub.Publish(feed.SessionScope(sessionID), feed.Change{
		Table: "player_states", Op: feed.OpUpdate, RowID: state.ID,
		PartyID: partyID, SessionID: sessionID, Version: state.Version, Row: state,
	})
	return nil
}

// BeginGame shuffles the full pick set into rounds and moves the
// session to active. The conditional status update is the double-
// shuffle guard: the second of two racing calls updates zero rows and
// fails before writing any round.
func (s *Service) BeginGame(ctx context.Context, userID, sessionID uint64) error {
	partyID, err := s.Guard.RequireSessionLeader(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	var session models.Session
	var total int

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var players, notReady int64
		if err := tx.Model(&models.PlayerState{}).
			Where("session_id = ?", sessionID).
			Count(&players).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PlayerState{}).
			Where("session_id = ? AND is_ready = ?", sessionID, false).
			Count(&notReady).Error; err != nil {
			return err
		}
		if players == 0 {
			return apperr.State("session %d has no players", sessionID)
		}
		if notReady > 0 {
			return apperr.State("%d players have not submitted picks", notReady)
		}

		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", sessionID, models.SessionStatusCollectingPicks).
			Updates(map[string]any{
				"status":        models.SessionStatusActive,
				"current_index": 0,
				"version":       gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.State("session %d is not collecting picks", sessionID)
		}

		var allPicks []models.Pick
		if err := tx.Where("session_id = ?", sessionID).Find(&allPicks).Error; err != nil {
			return err
		}

		rounds := shuffleIntoRounds(sessionID, allPicks)
		total = len(rounds)
		if err := tx.Create(&rounds).Error; err != nil {
			return err
		}

		return tx.First(&session, sessionID).Error
	})
	if err != nil {
		return err
	}

	s.Log.Info("game began",
		zap.Uint64("session_id", sessionID),
		zap.Int("rounds", total))

	change := feed.Change{
		Table: "sessions", Op: feed.OpUpdate, RowID: sessionID,
		PartyID: partyID, SessionID: sessionID, Version: session.Version, Row: session,
	}
	s.Pub.Publish(feed.SessionScope(sessionID), change)
	s.Pub.Publish(feed.PartyScope(partyID), change)
	return nil
}

// shuffleIntoRounds is a fair unseeded permutation over the submitted
// picks, preserving each pick's contributing user. Dense 0-based
// indices.
func shuffleIntoRounds(sessionID uint64, all []models.Pick) []models.Round {
	shuffled := make([]models.Pick, len(all))
	copy(shuffled, all)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	rounds := make([]models.Round, 0, len(shuffled))
	for i, p := range shuffled {
		rounds = append(rounds, models.Round{
			SessionID:     sessionID,
			RoundIndex:    i,
			QuestionID:    p.QuestionID,
			ContributorID: p.UserID,
		})
	}
	return rounds
}
