// Package notify реализует диспетчер уведомлений: алерты о нарушениях
// и объявления итогов периодов в админ-канал.
// models.go описывает виды уведомлений и результат доставки.
package notify

import "time"

// Kind — вид уведомления.
type Kind string

const (
	// KindViolationAlert — алерт о нарушении гайдлайнов
	KindViolationAlert Kind = "violation_alert"
	// KindRecognition — объявление итогов периода
	KindRecognition Kind = "recognition"
)

// Notification — запись журнала уведомлений (только аудит, fire-and-forget).
type Notification struct {
	ID            int64     `db:"id"`
	TargetChannel string    `db:"target_channel"`
	Kind          Kind      `db:"kind"`
	Payload       string    `db:"payload"`
	Delivered     bool      `db:"delivered"`
	SentAt        time.Time `db:"sent_at"`
}

// DeliveryResult — итог попытки доставки.
type DeliveryResult struct {
	Delivered bool
	Attempts  int
	Err       error
}
