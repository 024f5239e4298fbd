// Package recognition реализует подведение итогов периодов:
// по тикам расписания выбирает лучших участников за закрытое окно
// и фиксирует неизменяемые записи наград.
// models.go описывает запись награды и состояния подсчёта.
package recognition

import (
	"time"

	"slack-moderation-bot/internal/common"
)

// Recognition — зафиксированная строка итогов периода.
// После записи не изменяется: поздние изменения глобальных очков
// не переписывают прошлые награды.
type Recognition struct {
	ID          int64         `db:"id"`
	Period      common.Period `db:"period"`
	PeriodStart time.Time     `db:"period_start"`
	UserID      string        `db:"user_id"`
	UserName    string        `db:"user_name"`
	Rank        int           `db:"rank"`
	Score       float64       `db:"score"`
	CreatedAt   time.Time     `db:"created_at"`
}

// State — состояние машины подсчёта итогов.
type State int

const (
	// StateIdle — ждём тика периода
	StateIdle State = iota
	// StateComputing — считаем рейтинг за окно
	StateComputing
	// StateEmitting — рассылаем объявление итогов
	StateEmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComputing:
		return "computing"
	case StateEmitting:
		return "emitting"
	}
	return "unknown"
}
