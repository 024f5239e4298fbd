// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: периодический скан каналов,
// повторная классификация отложенных сообщений и тики подведения итогов
// (день/неделя/месяц) — каждый со своими независимыми «часами».
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/config"
	"slack-moderation-bot/internal/features/pipeline"
	"slack-moderation-bot/internal/features/recognition"
	"slack-moderation-bot/internal/slackio"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron        *cron.Cron
	slack       *slackio.Client
	pipeline    *pipeline.Service
	recognition *recognition.Service
	cfg         *config.Config
	loc         *time.Location
}

// NewScheduler создаёт планировщик задач в часовом поясе сообщества.
func NewScheduler(slack *slackio.Client, pl *pipeline.Service, rec *recognition.Service, cfg *config.Config, loc *time.Location) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		slack:       slack,
		pipeline:    pl,
		recognition: rec,
		cfg:         cfg,
		loc:         loc,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Периодический скан каналов
	pollSpec := fmt.Sprintf("*/%d * * * *", s.cfg.PollIntervalMinutes)
	s.cron.AddFunc(pollSpec, func() {
		log.Debug("[CRON] Скан каналов")
		s.PollChannels(ctx)
	})

	// Повторная классификация отложенных сообщений
	s.cron.AddFunc("*/5 * * * *", func() {
		s.pipeline.DrainRetryQueue(ctx)
	})

	// Итоги дня в 09:00, как в прототипе
	s.cron.AddFunc("0 9 * * *", func() {
		log.Info("[CRON] Итоги дня")
		s.runPeriod(ctx, common.PeriodDaily)
	})

	// Итоги недели — понедельник 09:00
	s.cron.AddFunc("0 9 * * 1", func() {
		log.Info("[CRON] Итоги недели")
		s.runPeriod(ctx, common.PeriodWeekly)
	})

	// Итоги месяца — первое число 09:00
	s.cron.AddFunc("0 9 1 * *", func() {
		log.Info("[CRON] Итоги месяца")
		s.runPeriod(ctx, common.PeriodMonthly)
	})

	s.cron.Start()
	log.Infof("Планировщик задач запущен (%s)", s.loc)
}

// Stop останавливает планировщик и дожидается завершения текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// PollChannels выгружает свежие сообщения всех наблюдаемых каналов
// и прогоняет их через пайплайн. Вызывается по тику и при старте.
func (s *Scheduler) PollChannels(ctx context.Context) {
	oldest := time.Now().Add(-time.Duration(s.cfg.PollLookbackHours) * time.Hour)

	for _, channelID := range s.cfg.WatchChannelIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := s.slack.FetchMessages(ctx, channelID, oldest)
		if err != nil {
			log.WithError(err).WithField("channel", channelID).Error("[CRON] Ошибка выгрузки канала")
			continue
		}
		// Дедупликация в леджере делает повторный скан того же окна безопасным
		s.pipeline.ProcessBatch(ctx, msgs)
	}
}

func (s *Scheduler) runPeriod(ctx context.Context, period common.Period) {
	_, err := s.recognition.RunPeriod(ctx, period, time.Now())
	if err != nil && !errors.Is(err, common.ErrPeriodClosed) {
		log.WithError(err).WithField("period", period).Error("[CRON] Ошибка подведения итогов")
	}
}
