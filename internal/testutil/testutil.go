// Package testutil wires the services against an in-memory database so
// tests exercise real transactions and conditional updates.
package testutil

import (
	"testing"

	"github.com/DoyleJ11/party-trivia-backend/internal/authz"
	"github.com/DoyleJ11/party-trivia-backend/internal/db"
	"github.com/DoyleJ11/party-trivia-backend/internal/feed"
	"github.com/DoyleJ11/party-trivia-backend/internal/models"
	"github.com/DoyleJ11/party-trivia-backend/internal/party"
	"github.com/DoyleJ11/party-trivia-backend/internal/picks"
	"github.com/DoyleJ11/party-trivia-backend/internal/rounds"
	"github.com/DoyleJ11/party-trivia-backend/internal/stats"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewTestDB opens a fresh in-memory database with the full schema.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	// One connection so every session sees the same :memory: database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

// Env bundles every authoritative service over one test database, with
// a feed recorder standing in for the hub.
type Env struct {
	DB     *gorm.DB
	Guard  *authz.Guard
	Rec    *feed.Recorder
	Party  *party.Service
	Picks  *picks.Service
	Rounds *rounds.Service
	Stats  *stats.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	gdb := NewTestDB(t)
	guard := authz.NewGuard(gdb)
	rec := &feed.Recorder{}
	log := zap.NewNop()

	return &Env{
		DB:     gdb,
		Guard:  guard,
		Rec:    rec,
		Party:  party.NewService(gdb, guard, rec, log),
		Picks:  picks.NewService(gdb, guard, rec, log),
		Rounds: rounds.NewService(gdb, guard, rec, log),
		Stats:  stats.NewService(gdb),
	}
}

// SeedQuestions inserts catalog rows with the given IDs.
func SeedQuestions(t *testing.T, gdb *gorm.DB, ids ...uint64) {
	t.Helper()
	for _, id := range ids {
		q := models.Question{
			ID:     id,
			Text:   "question",
			Answer: "answer",
		}
		if err := gdb.Create(&q).Error; err != nil {
			t.Fatalf("seed question %d: %v", id, err)
		}
	}
}

// RateQuestions gives userID a rating row per question, making them
// pickable for that user.
func RateQuestions(t *testing.T, gdb *gorm.DB, userID uint64, ids ...uint64) {
	t.Helper()
	for _, id := range ids {
		r := models.QuestionRating{UserID: userID, QuestionID: id, Rating: 4}
		if err := gdb.Create(&r).Error; err != nil {
			t.Fatalf("rate question %d for user %d: %v", id, userID, err)
		}
	}
}
