// Package scoring реализует леджер очков: счётчики нарушений и позитивных
// вкладов на пользователя плюс история классифицированных сообщений.
// models.go описывает структуры для хранения очков и событий.
package scoring

import (
	"time"

	"slack-moderation-bot/internal/features/classify"
)

// Event — классифицированное сообщение, подлежащее учёту в леджере.
// ReactionCount — число реакций на момент сканирования.
type Event struct {
	MessageID     string
	UserID        string
	UserName      string
	ChannelID     string
	PostedAt      time.Time
	Text          string
	Label         classify.Label
	Confidence    float64
	ReactionCount int
}

// UserScore хранит накопленные счётчики пользователя.
// Счётчики только растут. NetScore не хранится: он пересчитывается
// из messages текущими весами при чтении, чтобы сводка пользователя
// и рейтинги сходились после смены весов в конфигурации.
type UserScore struct {
	ID             int64     `db:"id"`
	UserID         string    `db:"user_id"`
	UserName       string    `db:"user_name"`
	MessageCount   int       `db:"message_count"`
	PositiveCount  int       `db:"positive_count"`
	ViolationCount int       `db:"violation_count"`
	ReactionCount  int       `db:"reaction_count"`
	NetScore       float64   `db:"-"`
	LastUpdated    time.Time `db:"last_updated"`
}

// Message — сохранённое сообщение с классификацией (история для аудита).
type Message struct {
	MessageID     string         `db:"message_id"`
	UserID        string         `db:"user_id"`
	UserName      string         `db:"user_name"`
	ChannelID     string         `db:"channel_id"`
	PostedAt      time.Time      `db:"posted_at"`
	Text          string         `db:"raw_text"`
	Label         classify.Label `db:"label"`
	Confidence    float64        `db:"confidence"`
	ReactionCount int            `db:"reaction_count"`
	CreatedAt     time.Time      `db:"created_at"`
}

// RankedUser — строка рейтинга за окно периода.
type RankedUser struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"user_id"`
	UserName string  `json:"user_name"`
	Score    float64 `json:"score"`
}

// Weights — настраиваемые веса скоринга.
// Дефолты повторяют прототип: сообщение +1, позитив +5, нарушение -10,
// реакция +2.
type Weights struct {
	MessageCredit    float64
	PositiveBonus    float64
	ViolationPenalty float64
	ReactionBonus    float64
	// Если true — бонус/штраф умножается на confidence классификатора
	ConfidenceWeighted bool
}

// Delta возвращает вклад одного классифицированного сообщения в net_score.
// Бонус за реакции на confidence не взвешивается: реакции — не выход модели.
func (w Weights) Delta(label classify.Label, confidence float64, reactions int) float64 {
	weight := 1.0
	if w.ConfidenceWeighted {
		weight = confidence
	}

	delta := w.MessageCredit + w.ReactionBonus*float64(reactions)
	switch label {
	case classify.LabelPositive:
		delta += w.PositiveBonus * weight
	case classify.LabelViolation:
		delta -= w.ViolationPenalty * weight
	}
	return delta
}
