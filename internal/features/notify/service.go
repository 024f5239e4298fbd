// Package notify — service.go содержит логику доставки уведомлений.
// Доставка best-effort: ограниченные ретраи с backoff, после исчерпания
// уведомление логируется как недоставленное и отбрасывается.
// Диспетчер НИКОГДА не блокирует пайплайн фатальной ошибкой.
package notify

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"slack-moderation-bot/internal/common"
)

// Poster отправляет текст в канал. Боевая реализация — slackio.Client.
type Poster interface {
	PostMessage(ctx context.Context, channelID, text string) error
}

// AuditLog пишет запись в журнал уведомлений. Боевая реализация — *Repository.
type AuditLog interface {
	Log(ctx context.Context, n Notification) error
}

// Service — диспетчер уведомлений.
type Service struct {
	poster     Poster
	audit      AuditLog
	maxRetries int
	backoff    time.Duration
}

// NewService создаёт диспетчер уведомлений.
func NewService(poster Poster, audit AuditLog, maxRetries int) *Service {
	return &Service{
		poster:     poster,
		audit:      audit,
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

// Notify доставляет уведомление в канал.
// Возвращает структурный результат, а не пробрасывает ошибку наверх:
// сбой доставки — проблема диспетчера, а не пайплайна.
func (s *Service) Notify(ctx context.Context, kind Kind, payload, targetChannel string) DeliveryResult {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.backoff << (attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				lastErr = ctx.Err()
				attempt = s.maxRetries + 1 // выходим из цикла
				continue
			case <-timer.C:
			}
		}

		attempts++
		if err := s.poster.PostMessage(ctx, targetChannel, payload); err != nil {
			lastErr = err
			log.WithError(err).WithFields(log.Fields{
				"kind":    kind,
				"channel": targetChannel,
				"attempt": attempts,
			}).Warn("Не удалось отправить уведомление")
			continue
		}

		s.logAudit(ctx, kind, payload, targetChannel, true)
		return DeliveryResult{Delivered: true, Attempts: attempts}
	}

	log.WithError(lastErr).WithFields(log.Fields{
		"kind":    kind,
		"channel": targetChannel,
	}).Error("Уведомление не доставлено, отбрасываем")

	s.logAudit(ctx, kind, payload, targetChannel, false)
	return DeliveryResult{Delivered: false, Attempts: attempts, Err: common.ErrDeliveryFailed}
}

// logAudit пишет запись журнала. Ошибка журнала не влияет на результат доставки.
func (s *Service) logAudit(ctx context.Context, kind Kind, payload, channel string, delivered bool) {
	if s.audit == nil {
		return
	}
	n := Notification{
		TargetChannel: channel,
		Kind:          kind,
		Payload:       payload,
		Delivered:     delivered,
	}
	if err := s.audit.Log(ctx, n); err != nil {
		log.WithError(err).Error("Ошибка записи журнала уведомлений")
	}
}
