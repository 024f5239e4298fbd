// Package pipeline реализует конвейер обработки сообщений:
// валидация → классификация → леджер → уведомления.
// models.go описывает входящее сообщение и итог обработки.
package pipeline

import (
	"strings"
	"time"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/features/classify"
)

// Message — нормализованное входящее сообщение.
// Транспорт (polling, webhook) — внешний коллаборатор, пайплайн
// получает уже готовую запись.
type Message struct {
	MessageID string
	UserID    string
	UserName  string
	ChannelID string
	PostedAt  time.Time
	Text      string
	// ReactionCount — число реакций на момент сканирования канала
	ReactionCount int
}

// Validate проверяет обязательные поля сообщения.
func (m Message) Validate() error {
	if m.MessageID == "" || m.UserID == "" || m.ChannelID == "" {
		return common.ErrMissingField
	}
	if strings.TrimSpace(m.Text) == "" {
		return common.ErrEmptyMessage
	}
	return nil
}

// Outcome — итог обработки сообщения.
type Outcome string

const (
	// OutcomeRecorded — классифицировано и учтено в леджере
	OutcomeRecorded Outcome = "recorded"
	// OutcomeDuplicate — message_id уже учтён, счётчики не менялись
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeQueued — классификатор недоступен, сообщение в очереди повтора
	OutcomeQueued Outcome = "queued"
	// OutcomeDropped — сообщение отброшено (валидация или фатальная ошибка)
	OutcomeDropped Outcome = "dropped"
)

// Result — структурный итог обработки одного сообщения.
type Result struct {
	Outcome    Outcome
	Label      classify.Label
	Confidence float64
	// AlertSent — был ли инициирован violation_alert
	AlertSent bool
}
