// Package rounds advances an active session round by round and logs
// per-user reveals.
package rounds

import (
	"context"
	"errors"
	"time"

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

// RevealAnswer appends a reveal event for the caller on the current
// round. Purely observational: it never touches round or session state.
// The log is at-least-once territory; clients dedupe by (user, round).
func (s *Service) RevealAnswer(ctx context.Context, userID, sessionID uint64, roundIndex int) error {
	partyID, err := s.Guard.RequireSessionMember(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	var event models.RevealEvent

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.First(&session, sessionID).Error; err != nil {
			return err
		}
		if session.Status != models.SessionStatusActive {
			return apperr.State("session %d is not active", sessionID)
		}
		if roundIndex != session.CurrentIndex {
			return apperr.State("round %d is not the current round", roundIndex)
		}

		event = models.RevealEvent{
			SessionID:  sessionID,
			RoundIndex: roundIndex,
			UserID:     userID,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		return touchPlayCount(tx, userID, sessionID, roundIndex)
	})
	if err != nil {
		return err
	}

	s.Pub.Publish(feed.SessionScope(sessionID), feed.Change{
		Table: "reveal_events", Op: feed.OpInsert, RowID: event.ID,
		PartyID: partyID, SessionID: sessionID, Version: 1, Row: event,
	})
	return nil
}

// NextRound either advances current_index or, on the last round,
// finishes the session. One conditional update per branch; a stale
// caller (raced by another advance) updates zero rows and gets a state
// error instead of skipping a round.
func (s *Service) NextRound(ctx context.Context, userID, sessionID uint64) error {
	partyID, err := s.Guard.RequireSessionLeader(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	var session models.Session

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&session, sessionID).Error; err != nil {
			return err
		}
		if session.Status != models.SessionStatusActive {
			return apperr.State("session %d is not active", sessionID)
		}

		var total int64
		if err := tx.Model(&models.Round{}).
			Where("session_id = ?", sessionID).
			Count(&total).Error; err != nil {
			return err
		}

		updates := map[string]any{"version": gorm.Expr("version + 1")}
		if int64(session.CurrentIndex+1) < total {
			updates["current_index"] = session.CurrentIndex + 1
		} else {
			updates["status"] = models.SessionStatusFinished
		}

		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ? AND current_index = ?",
				sessionID, models.SessionStatusActive, session.CurrentIndex).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.State("session %d advanced concurrently", sessionID)
		}

		return tx.First(&session, sessionID).Error
	})
	if err != nil {
		return err
	}

	s.Log.Info("round advanced",
		zap.Uint64("session_id", sessionID),
		zap.Int("current_index", session.CurrentIndex),
		zap.String("status", string(session.Status)))

	change := feed.Change{
		Table: "sessions", Op: feed.OpUpdate, RowID: sessionID,
		PartyID: partyID, SessionID: sessionID, Version: session.Version, Row: session,
	}
	s.Pub.Publish(feed.SessionScope(sessionID), change)
	s.Pub.Publish(feed.PartyScope(partyID), change)

	// A finished session publishes nothing further; retire its feed so
	// scopes do not pile up for the server lifetime.
	if session.Status == models.SessionStatusFinished {
		s.Pub.Remove(feed.SessionScope(sessionID))
	}
	return nil
}

// GetSession returns the session row plus all player states.
// Member-gated; the reconciler's fetch after a party status change.
func (s *Service) GetSession(ctx context.Context, userID, sessionID uint64) (*models.Session, []models.PlayerState, error) {
	if _, err := s.Guard.RequireSessionMember(ctx, sessionID, userID); err != nil {
		return nil, nil, err
	}

	var session models.Session
	if err := s.DB.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("session %d not found", sessionID)
		}
		return nil, nil, err
	}

	var states []models.PlayerState
	if err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("user_id asc").
		Find(&states).Error; err != nil {
		return nil, nil, err
	}
	return &session, states, nil
}

// RoundWithQuestion is a round joined with its catalog row so clients
// can render without a second lookup.
type RoundWithQuestion struct {
	models.Round
	Question models.Question `json:"question"`
}

// GetRounds returns the full shuffled sequence. Only meaningful once
// the session left collecting_picks; before that it is simply empty.
func (s *Service) GetRounds(ctx context.Context, userID, sessionID uint64) ([]RoundWithQuestion, error) {
	if _, err := s.Guard.RequireSessionMember(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	var rows []models.Round
	if err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("round_index asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]RoundWithQuestion, 0, len(rows))
	for _, r := range rows {
		rq := RoundWithQuestion{Round: r}
		// Catalog rows live elsewhere; a missing one leaves the zero value.
		_ = s.DB.WithContext(ctx).First(&rq.Question, r.QuestionID).Error
		out = append(out, rq)
	}
	return out, nil
}

// touchPlayCount bumps the revealing user's play count for the revealed
// question, inside the reveal transaction.
func touchPlayCount(tx *gorm.DB, userID, sessionID uint64, roundIndex int) error {
	var round models.Round
	err := tx.Where("session_id = ? AND round_index = ?", sessionID, roundIndex).
		First(&round).Error
	if err != nil {
		return err
	}

	now := time.Now()
	return tx.Model(&models.QuestionRating{}).
		Where("user_id = ? AND question_id = ?", userID, round.QuestionID).
		Updates(map[string]any{
			"play_count":     gorm.Expr("play_count + 1"),
			"last_played_at": now,
		}).Error
}
