// Package recognition — service.go содержит машину состояний подведения итогов:
// Idle → ComputingPeriod → Emitting → Idle по тикам расписания.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/features/notify"
	"slack-moderation-bot/internal/features/scoring"
)

// Store фиксирует итоги периода. Боевая реализация — *Repository.
type Store interface {
	ComputeAndSave(ctx context.Context, period common.Period, w common.Window, weights scoring.Weights, n int) ([]scoring.RankedUser, error)
}

// Notifier — способность доставлять объявления итогов.
type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, payload, targetChannel string) notify.DeliveryResult
}

// Service подводит итоги периодов.
type Service struct {
	store        Store
	notifier     Notifier
	weights      scoring.Weights
	topN         int
	adminChannel string
	loc          *time.Location

	// runMu выстраивает подсчёты в очередь: тики разных периодов
	// совпадают (09:00 понедельника, 09:00 первого числа),
	// и проигравший тик должен дождаться, а не потеряться.
	runMu sync.Mutex

	mu    sync.Mutex
	state State
}

// NewService создаёт сервис наград.
func NewService(store Store, notifier Notifier, weights scoring.Weights, topN int, adminChannel string, loc *time.Location) *Service {
	return &Service{
		store:        store,
		notifier:     notifier,
		weights:      weights,
		topN:         topN,
		adminChannel: adminChannel,
		loc:          loc,
		state:        StateIdle,
	}
}

// State возвращает текущее состояние машины (для дашборда).
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RunPeriod подводит итоги закрытого периода, предшествующего моменту now.
//
// Свойства:
//   - подсчёт выполняется целиком, без интерливинга с другим подсчётом
//     (одновременные вызовы выстраиваются в очередь и выполняются по одному)
//   - уже закрытый период → common.ErrPeriodClosed, никогда не «тихо другой
//     рейтинг» при повторном запуске над теми же данными
//   - одинаковое состояние леджера → одинаковый порядок, включая тай-брейк
func (s *Service) RunPeriod(ctx context.Context, period common.Period, now time.Time) ([]scoring.RankedUser, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("неизвестный период %q", period)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.set(StateComputing)
	defer s.set(StateIdle)

	w, err := common.PeriodWindow(period, now, s.loc)
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"period": period,
		"from":   w.From.Format("2006-01-02"),
		"to":     w.To.Format("2006-01-02"),
	})

	ranked, err := s.store.ComputeAndSave(ctx, period, w, s.weights, s.topN)
	if errors.Is(err, common.ErrPeriodClosed) {
		logger.Info("Итоги периода уже зафиксированы, пропускаем")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка подведения итогов: %w", err)
	}

	logger.WithField("entries", len(ranked)).Info("Итоги периода зафиксированы")

	s.set(StateEmitting)
	if s.notifier != nil {
		payload := notify.FormatRecognition(period, w, ranked, s.loc)
		delivery := s.notifier.Notify(ctx, notify.KindRecognition, payload, s.adminChannel)
		if !delivery.Delivered {
			// Итоги уже зафиксированы; недоставленное объявление не откатываем
			logger.Error("Объявление итогов не доставлено")
		}
	}

	return ranked, nil
}

func (s *Service) set(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
