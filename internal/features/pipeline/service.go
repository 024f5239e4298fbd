// Package pipeline — service.go содержит основную логику конвейера.
// Сообщения обрабатываются параллельно (с ограничением inflight),
// но обновления очков одного пользователя сериализуются.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/config"
	"slack-moderation-bot/internal/features/classify"
	"slack-moderation-bot/internal/features/notify"
	"slack-moderation-bot/internal/features/scoring"
)

// Classifier — способность классифицировать текст.
// Боевая реализация — classify.Service; в тестах подменяется фейком.
type Classifier interface {
	Classify(ctx context.Context, text string) (classify.Result, error)
}

// Ledger — способность учитывать классифицированные сообщения.
type Ledger interface {
	Record(ctx context.Context, ev scoring.Event) error
}

// Notifier — способность доставлять уведомления.
type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, payload, targetChannel string) notify.DeliveryResult
}

// Service — конвейер обработки сообщений.
type Service struct {
	classifier Classifier
	ledger     Ledger
	notifier   Notifier
	queue      *RetryQueue
	cfg        *config.Config
	loc        *time.Location

	// Мьютексы на пользователя, полосами: конкурентные результаты
	// классификации не должны гонять счётчики одного user_id, а число
	// мьютексов не должно расти с числом когда-либо встреченных людей.
	userLocks [64]sync.Mutex

	// ограничитель параллелизма обработки сообщений
	inflight chan struct{}
}

// NewService создаёт конвейер.
func NewService(classifier Classifier, ledger Ledger, notifier Notifier, queue *RetryQueue, cfg *config.Config, loc *time.Location) *Service {
	maxInflight := cfg.PipelineMaxInflight
	if maxInflight <= 0 {
		maxInflight = 16
	}
	return &Service{
		classifier: classifier,
		ledger:     ledger,
		notifier:   notifier,
		queue:      queue,
		cfg:        cfg,
		loc:        loc,
		inflight:   make(chan struct{}, maxInflight),
	}
}

// Process обрабатывает одно сообщение.
//
// Шаги:
//  1. валидация обязательных полей (мусор — отбрасываем, логируем)
//  2. классификация через адаптер
//  3. при недоступности классификатора — в очередь повтора, НЕ neutral
//  4. учёт в леджере (дедупликация по message_id — повтор безопасен)
//  5. нарушение с confidence ≥ порога → violation_alert в админ-канал
func (s *Service) Process(ctx context.Context, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"message_id": msg.MessageID,
			"user_id":    msg.UserID,
		}).Warn("Сообщение не прошло валидацию, отбрасываем")
		return Result{Outcome: OutcomeDropped}, err
	}

	res, err := s.classifier.Classify(ctx, msg.Text)
	if err != nil {
		if errors.Is(err, common.ErrClassificationRejected) {
			// 400/401 повтором не лечатся: в очередь не кладём, иначе каждый
			// тик дренажа будет заново дёргать неработающий API
			log.WithError(err).WithField("message_id", msg.MessageID).
				Warn("Классификация отклонена, сообщение отбрасываем")
			return Result{Outcome: OutcomeDropped}, nil
		}
		if errors.Is(err, common.ErrClassificationUnavailable) {
			evicted := s.queue.Push(msg)
			log.WithFields(log.Fields{
				"message_id": msg.MessageID,
				"queue_len":  s.queue.Len(),
				"evicted":    evicted,
			}).Warn("Классификатор недоступен, сообщение отложено")
			return Result{Outcome: OutcomeQueued}, nil
		}
		return Result{Outcome: OutcomeDropped}, fmt.Errorf("ошибка классификации: %w", err)
	}

	// Неуверенный позитив учитываем как нейтральное сообщение
	if res.Label == classify.LabelPositive && res.Confidence < s.cfg.PositiveThreshold {
		res.Label = classify.LabelNeutral
	}

	// Сериализуем обновления очков одного пользователя
	lock := s.userLock(msg.UserID)
	lock.Lock()
	err = s.ledger.Record(ctx, scoring.Event{
		MessageID:     msg.MessageID,
		UserID:        msg.UserID,
		UserName:      msg.UserName,
		ChannelID:     msg.ChannelID,
		PostedAt:      msg.PostedAt,
		Text:          msg.Text,
		Label:         res.Label,
		Confidence:    res.Confidence,
		ReactionCount: msg.ReactionCount,
	})
	lock.Unlock()

	if errors.Is(err, common.ErrDuplicateMessage) {
		log.WithField("message_id", msg.MessageID).Debug("Повторное сообщение, пропускаем")
		return Result{Outcome: OutcomeDuplicate, Label: res.Label, Confidence: res.Confidence}, nil
	}
	if err != nil {
		return Result{Outcome: OutcomeDropped}, fmt.Errorf("ошибка леджера: %w", err)
	}

	out := Result{Outcome: OutcomeRecorded, Label: res.Label, Confidence: res.Confidence}

	if res.Label == classify.LabelViolation && res.Confidence >= s.cfg.ViolationThreshold {
		payload := notify.FormatViolationAlert(
			msg.UserName, msg.UserID, msg.ChannelID, msg.Text,
			res.Reason, res.Confidence, msg.PostedAt, s.loc,
		)
		// Доставка best-effort: сбой диспетчера не роняет пайплайн
		delivery := s.notifier.Notify(ctx, notify.KindViolationAlert, payload, s.cfg.AdminChannelID)
		out.AlertSent = true
		if !delivery.Delivered {
			log.WithField("message_id", msg.MessageID).Error("Алерт о нарушении не доставлен")
		}
	}

	return out, nil
}

// ProcessBatch обрабатывает пачку сообщений параллельно.
// Отмена контекста останавливает выдачу НОВЫХ сообщений в работу,
// но не прерывает уже начатую классификацию.
func (s *Service) ProcessBatch(ctx context.Context, msgs []Message) {
	var wg sync.WaitGroup

	for _, msg := range msgs {
		select {
		case <-ctx.Done():
			log.Info("Обработка пачки прервана отменой контекста")
			wg.Wait()
			return
		case s.inflight <- struct{}{}:
		}

		wg.Add(1)
		go func(m Message) {
			defer wg.Done()
			defer func() { <-s.inflight }()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"message_id": m.MessageID,
						"panic":      fmt.Sprintf("%v", r),
						"stack":      string(debug.Stack()),
					}).Error("ПАНИКА при обработке сообщения — восстановлено")
				}
			}()

			if _, err := s.Process(ctx, m); err != nil &&
				!errors.Is(err, common.ErrMissingField) && !errors.Is(err, common.ErrEmptyMessage) {
				log.WithError(err).WithField("message_id", m.MessageID).Error("Ошибка обработки сообщения")
			}
		}(msg)
	}

	wg.Wait()
}

// DrainRetryQueue повторно обрабатывает отложенные сообщения.
// Если классификатор всё ещё недоступен, сообщения вернутся в очередь.
func (s *Service) DrainRetryQueue(ctx context.Context) {
	msgs := s.queue.PopAll()
	if len(msgs) == 0 {
		return
	}
	log.WithField("count", len(msgs)).Info("Повторная классификация отложенных сообщений")
	s.ProcessBatch(ctx, msgs)
}

// QueueLen возвращает размер очереди повтора (для дашборда).
func (s *Service) QueueLen() int {
	return s.queue.Len()
}

func (s *Service) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &s.userLocks[h.Sum32()%uint32(len(s.userLocks))]
}
