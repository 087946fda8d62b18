// Package stats reads a user's question history: prior ratings and how
// often each question has been played.
package stats

import (
	"context"
	"time"

	"github.com/DoyleJ11/party-trivia-backend/internal/models"

	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// QuestionStat is one rated question with its play history.
type QuestionStat struct {
	QuestionID   uint64     `json:"question_id"`
	Rating       int        `json:"rating"`
	PlayCount    int        `json:"play_count"`
	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`
	Text         string     `json:"text,omitempty"`
	Packet       string     `json:"packet,omitempty"`
	Author       string     `json:"author,omitempty"`
}

// UserQuestionStats returns the caller's full rated history, most
// recently updated first.
func (s *Service) UserQuestionStats(ctx context.Context, userID uint64) ([]QuestionStat, error) {
	var ratings []models.QuestionRating
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&ratings).Error; err != nil {
		return nil, err
	}

	out := make([]QuestionStat, 0, len(ratings))
	for _, r := range ratings {
		st := QuestionStat{
			QuestionID:   r.QuestionID,
			Rating:       r.Rating,
			PlayCount:    r.PlayCount,
			LastPlayedAt: r.LastPlayedAt,
		}
		var q models.Question
		if err := s.DB.WithContext(ctx).First(&q, r.QuestionID).Error; err == nil {
			st.Text = q.Text
			st.Packet = q.Packet
			st.Author = q.Author
		}
		out = append(out, st)
	}
	return out, nil
}

// RatedQuestionIDs is the caller's pickable pool.
func (s *Service) RatedQuestionIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := s.DB.WithContext(ctx).Model(&models.QuestionRating{}).
		Where("user_id = ?", userID).
		Order("question_id asc").
		Pluck("question_id", &ids).Error
	return ids, err
}
