// Package scoring — service.go содержит бизнес-логику леджера.
package scoring

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/config"
)

// Store — хранилище леджера. Интерфейс, чтобы свойства учёта
// (дедупликация, детерминизм рейтинга) проверялись без Postgres.
// Боевая реализация — *Repository.
type Store interface {
	Record(ctx context.Context, ev Event) (bool, error)
	GetScore(ctx context.Context, userID string, weights Weights) (*UserScore, error)
	TopN(ctx context.Context, w common.Window, weights Weights, n int) ([]RankedUser, error)
}

// Service управляет леджером очков.
type Service struct {
	store   Store
	weights Weights
}

// NewService создаёт сервис леджера с весами из конфигурации.
func NewService(store Store, cfg *config.Config) *Service {
	return &Service{
		store: store,
		weights: Weights{
			MessageCredit:      cfg.ScoreMessageCredit,
			PositiveBonus:      cfg.ScorePositiveBonus,
			ViolationPenalty:   cfg.ScoreViolationPenalty,
			ReactionBonus:      cfg.ScoreReactionBonus,
			ConfidenceWeighted: cfg.ScoreConfidenceWeighted,
		},
	}
}

// Record учитывает классифицированное сообщение.
// Повторный вызов с тем же message_id возвращает common.ErrDuplicateMessage,
// счётчики при этом меняются ровно один раз.
func (s *Service) Record(ctx context.Context, ev Event) error {
	if !ev.Label.Valid() {
		return fmt.Errorf("некорректная метка %q", ev.Label)
	}

	inserted, err := s.store.Record(ctx, ev)
	if err != nil {
		return fmt.Errorf("ошибка учёта сообщения: %w", err)
	}
	if !inserted {
		return common.ErrDuplicateMessage
	}

	log.WithFields(log.Fields{
		"message_id": ev.MessageID,
		"user_id":    ev.UserID,
		"label":      ev.Label,
		"reactions":  ev.ReactionCount,
		"delta":      s.weights.Delta(ev.Label, ev.Confidence, ev.ReactionCount),
	}).Debug("Сообщение учтено")
	return nil
}

// GetScore возвращает счётчики пользователя.
// net_score пересчитывается текущими весами, как и в рейтингах.
func (s *Service) GetScore(ctx context.Context, userID string) (*UserScore, error) {
	return s.store.GetScore(ctx, userID, s.weights)
}

// TopN возвращает рейтинг за окно периода с текущими весами.
func (s *Service) TopN(ctx context.Context, w common.Window, n int) ([]RankedUser, error) {
	return s.store.TopN(ctx, w, s.weights, n)
}

// Weights возвращает действующие веса скоринга (для дашборда).
func (s *Service) Weights() Weights {
	return s.weights
}
