package db

import (
	"github.com/DoyleJ11/party-trivia-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

// AutoMigrate creates all tables. The unique indexes declared on the
// models back the concurrency guarantees: party codes, one membership
// per (party, user), one player state per (session, user), no duplicate
// picks, dense unique round indices.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Party{},
		&models.Membership{},
		&models.Session{},
		&models.PlayerState{},
		&models.Pick{},
		&models.Round{},
		&models.RevealEvent{},
		&models.Question{},
		&models.QuestionRating{},
	)
}
