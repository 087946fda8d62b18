// Package authz answers the two predicates every authoritative
// operation gates on: is the caller a member, and is the caller the
// leader. Lookups go straight to the membership and party rows — never
// through any access-controlled view — so the check cannot recurse into
// itself.
package authz

import (
	"context"
	"errors"

	"github.com/DoyleJ11/party-trivia-backend/internal/apperr"
	"github.com/DoyleJ11/party-trivia-backend/internal/models"

	"gorm.io/gorm"
)

type Guard struct {
	DB *gorm.DB
}

func NewGuard(db *gorm.DB) *Guard {
	return &Guard{DB: db}
}

func (g *Guard) IsMember(ctx context.Context, partyID, userID uint64) (bool, error) {
	var n int64
	err := g.DB.WithContext(ctx).Model(&models.Membership{}).
		Where("party_id = ? AND user_id = ?", partyID, userID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *Guard) IsLeader(ctx context.Context, partyID, userID uint64) (bool, error) {
	var party models.Party
	err := g.DB.WithContext(ctx).Select("leader_id").First(&party, partyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return party.LeaderID == userID, nil
}

// SessionParty resolves the party owning a session. NotFound if the
// session does not exist.
func (g *Guard) SessionParty(ctx context.Context, sessionID uint64) (uint64, error) {
	var session models.Session
	err := g.DB.WithContext(ctx).Select("party_id").First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.NotFound("session %d not found", sessionID)
	}
	if err != nil {
		return 0, err
	}
	return session.PartyID, nil
}

// RequireMember fails with an authorization error unless userID belongs
// to the party.
func (g *Guard) RequireMember(ctx context.Context, partyID, userID uint64) error {
	ok, err := g.IsMember(ctx, partyID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Authorization("not a member of party %d", partyID)
	}
	return nil
}

// RequireLeader implies membership: the leader is inserted as a member
// at party creation and memberships are never removed.
func (g *Guard) RequireLeader(ctx context.Context, partyID, userID uint64) error {
	ok, err := g.IsLeader(ctx, partyID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Authorization("not the leader of party %d", partyID)
	}
	return nil
}

// RequireSessionMember resolves the session's party and checks
// membership there. Returns the party ID for callers that need it.
func (g *Guard) RequireSessionMember(ctx context.Context, sessionID, userID uint64) (uint64, error) {
	partyID, err := g.SessionParty(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := g.RequireMember(ctx, partyID, userID); err != nil {
		return 0, err
	}
	return partyID, nil
}

func (g *Guard) RequireSessionLeader(ctx context.Context, sessionID, userID uint64) (uint64, error) {
	partyID, err := g.SessionParty(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := g.RequireLeader(ctx, partyID, userID); err != nil {
		return 0, err
	}
	return partyID, nil
}
