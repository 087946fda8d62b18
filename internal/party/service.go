// Package party owns the party lifecycle: creation, code-based joining,
// and the lobby -> picking transition that opens a session.
package party

import (
	"context"
	"errors"

	"github.com/DoyleJ11/party-trivia-backend/internal/apperr"
	"github.com/DoyleJ11/party-trivia-backend/internal/authz"
	"github.com/DoyleJ11/party-trivia-backend/internal/feed"
	"github.com/DoyleJ11/party-trivia-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MinRequiredPicks = 1
	MaxRequiredPicks = 10
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

// CreateParty makes the caller the leader of a fresh lobby. The party
// row and the leader's membership are written in one transaction.
func (s *Service) CreateParty(ctx context.Context, userID uint64, requiredPicks int) (*models.Party, error) {
	if requiredPicks < MinRequiredPicks || requiredPicks > MaxRequiredPicks {
		return nil, apperr.Validation("required_picks must be between %d and %d", MinRequiredPicks, MaxRequiredPicks)
	}

	var party models.Party
	var membership models.Membership

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := uniqueCode(tx)
		if err != nil {
			return err
		}

		party = models.Party{
			Code:          code,
			LeaderID:      userID,
			RequiredPicks: requiredPicks,
			Status:        models.PartyStatusLobby,
			Version:       1,
		}
		if err := tx.Create(&party).Error; err != nil {
			return err
		}

		membership = models.Membership{PartyID: party.ID, UserID: userID}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("party created",
		zap.Uint64("party_id", party.ID),
		zap.String("code", party.Code),
		zap.Uint64("leader_id", userID))

	scope := feed.PartyScope(party.ID)
	s.Pub.Publish(scope, feed.Change{
		Table: "parties", Op: feed.OpInsert, RowID: party.ID,
		PartyID: party.ID, Version: party.Version, Row: party,
	})
	s.Pub.Publish(scope, feed.Change{
		Table: "memberships", Op: feed.OpInsert, RowID: membership.ID,
		PartyID: party.ID, Version: 1, Row: membership,
	})
	return &party, nil
}

// JoinParty adds the caller to the party behind code. Joining a party
// the caller already belongs to is a no-op success. Memberships are
// insertable only while the party sits in the lobby.
func (s *Service) JoinParty(ctx context.Context, userID uint64, code string) (*models.Party, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	var party models.Party
	var membership models.Membership
	joined := false

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&party).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("no party with code %s", code)
			}
			return err
		}

		var n int64
		if err := tx.Model(&models.Membership{}).
			Where("party_id = ? AND user_id = ?", party.ID, userID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil // already a member
		}

		if party.Status != models.PartyStatusLobby {
			return apperr.State("party %s is no longer joinable", code)
		}

		membership = models.Membership{PartyID: party.ID, UserID: userID}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}
		joined = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if joined {
		s.Log.Info("member joined",
			zap.Uint64("party_id", party.ID),
			zap.Uint64("user_id", userID))
		s.Pub.Publish(feed.PartyScope(party.ID), feed.Change{
			Table: "memberships", Op: feed.OpInsert, RowID: membership.ID,
			PartyID: party.ID, Version: 1, Row: membership,
		})
	}
	return &party, nil
}

// StartGame is the single transition all clients observe to leave the
// lobby: party lobby -> picking, plus a new collecting_picks session
// with a not-ready player state per member, all in one transaction. The
// status flip is conditional on the current status, so a concurrent
// duplicate call loses the race and fails with a state error.
func (s *Service) StartGame(ctx context.Context, userID, partyID uint64) (*models.Session, error) {
	if err := s.Guard.RequireLeader(ctx, partyID, userID); err != nil {
		return nil, err
	}

	var party models.Party
	var session models.Session
	var states []models.PlayerState

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Party{}).
			Where("id = ? AND status = ?", partyID, models.PartyStatusLobby).
			Updates(map[string]any{
				"status":  models.PartyStatusPicking,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.State("party %d is not in the lobby", partyID)
		}

		if err := tx.First(&party, partyID).Error; err != nil {
			return err
		}

		session = models.Session{
			PartyID:      partyID,
			Status:       models.SessionStatusCollectingPicks,
			CurrentIndex: 0,
			Version:      1,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}

		var members []models.Membership
		if err := tx.Where("party_id = ?", partyID).Find(&members).Error; err != nil {
			return err
		}

		states = make([]models.PlayerState, 0, len(members))
		for _, m := range members {
			states = append(states, models.PlayerState{
				SessionID: session.ID,
				UserID:    m.UserID,
				IsReady:   false,
				Version:   1,
			})
		}
		return tx.Create(&states).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("game started",
		zap.Uint64("party_id", partyID),
		zap.Uint64("session_id", session.ID),
		zap.Int("players", len(states)))

	partyScope := feed.PartyScope(partyID)
	sessionScope := feed.SessionScope(session.ID)
	s.Pub.Publish(partyScope, feed.Change{
		Table: "parties", Op: feed.OpUpdate, RowID: partyID,
		PartyID: partyID, Version: party.Version, Row: party,
	})
	s.Pub.Publish(partyScope, feed.Change{
		Table: "sessions", Op: feed.OpInsert, RowID: session.ID,
		PartyID: partyID, SessionID: session.ID, Version: session.Version, Row: session,
	})
	for _, st := range states {
		s.Pub.Publish(sessionScope, feed.Change{
			Table: "player_states", Op: feed.OpInsert, RowID: st.ID,
			PartyID: partyID, SessionID: session.ID, Version: st.Version, Row: st,
		})
	}
	return &session, nil
}

// GetParty returns the party row plus its members. Member-gated; this
// is the fetch clients run when a party-scoped change arrives.
func (s *Service) GetParty(ctx context.Context, userID, partyID uint64) (*models.Party, []models.Membership, error) {
	if err := s.Guard.RequireMember(ctx, partyID, userID); err != nil {
		return nil, nil, err
	}

	var party models.Party
	if err := s.DB.WithContext(ctx).First(&party, partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("party %d not found", partyID)
		}
		return nil, nil, err
	}

	var members []models.Membership
	if err := s.DB.WithContext(ctx).
		Where("party_id = ?", partyID).
		Order("joined_at asc").
		Find(&members).Error; err != nil {
		return nil, nil, err
	}
	return &party, members, nil
}

// CurrentSession returns the most recently created session of a party,
// or NotFound if the party never started a game.
func (s *Service) CurrentSession(ctx context.Context, userID, partyID uint64) (*models.Session, error) {
	if err := s.Guard.RequireMember(ctx, partyID, userID); err != nil {
		return nil, err
	}

	var session models.Session
	err := s.DB.WithContext(ctx).
		Where("party_id = ?", partyID).
		Order("id desc").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("party %d has no session", partyID)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
