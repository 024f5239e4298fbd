// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, клиента Slack, классификатор,
// репозитории, сервисы и собирает всё в пайплайн, планировщик и дашборд.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/config"
	"slack-moderation-bot/internal/dashboard"
	"slack-moderation-bot/internal/db/postgres"
	"slack-moderation-bot/internal/features/classify"
	"slack-moderation-bot/internal/features/notify"
	"slack-moderation-bot/internal/features/pipeline"
	"slack-moderation-bot/internal/features/recognition"
	"slack-moderation-bot/internal/features/scoring"
	"slack-moderation-bot/internal/jobs"
	"slack-moderation-bot/internal/slackio"
)

// App содержит все компоненты приложения.
type App struct {
	Pipeline  *pipeline.Service
	Scheduler *jobs.Scheduler
	Dashboard *dashboard.Server
	DB        *pgxpool.Pool
	Slack     *slackio.Client
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc := common.LoadLocation(cfg.AppTimezone)

	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Slack ===
	slackClient := slackio.New(cfg.SlackBotToken)
	botName, err := slackClient.AuthTest(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка авторизации в Slack: %w", err)
	}
	log.Infof("Авторизован как @%s", botName)

	// === 3. Классификатор ===
	gate := classify.NewGate(cfg.ClassifyMinInterval)
	classifier := classify.NewService(
		openai.NewClient(cfg.OpenAIAPIKey),
		cfg.OpenAIModel,
		gate,
		cfg.ClassifyMaxRetries,
		cfg.ClassifyTimeout,
	)

	// === 4. Репозитории ===
	scoringRepo := scoring.NewRepository(pool)
	recognitionRepo := recognition.NewRepository(pool)
	notifyRepo := notify.NewRepository(pool)

	// === 5. Сервисы ===
	scoringService := scoring.NewService(scoringRepo, cfg)
	notifyService := notify.NewService(slackClient, notifyRepo, cfg.NotifyMaxRetries)
	recognitionService := recognition.NewService(
		recognitionRepo, notifyService,
		scoringService.Weights(), cfg.RecognitionTopN, cfg.AdminChannelID, loc,
	)

	// === 6. Пайплайн ===
	queue := pipeline.NewRetryQueue(cfg.RetryQueueSize)
	pipelineService := pipeline.NewService(classifier, scoringService, notifyService, queue, cfg, loc)

	// === 7. Планировщик задач ===
	scheduler := jobs.NewScheduler(slackClient, pipelineService, recognitionService, cfg, loc)

	// === 8. Дашборд ===
	dash := dashboard.NewServer(cfg, loc, scoringService, scoringRepo,
		recognitionService, recognitionRepo, notifyRepo, pipelineService)

	return &App{
		Pipeline:  pipelineService,
		Scheduler: scheduler,
		Dashboard: dash,
		DB:        pool,
		Slack:     slackClient,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.InitMigrations(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Messages},
		{2, migration002UserScores},
		{3, migration003Recognitions},
		{4, migration004NotificationLog},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Messages = `
CREATE TABLE IF NOT EXISTS messages (
    id BIGSERIAL PRIMARY KEY,
    message_id VARCHAR(255) UNIQUE NOT NULL,
    user_id VARCHAR(64) NOT NULL,
    user_name VARCHAR(255) NOT NULL DEFAULT '',
    channel_id VARCHAR(64) NOT NULL,
    posted_at TIMESTAMP NOT NULL,
    raw_text TEXT NOT NULL,
    label VARCHAR(32) NOT NULL,
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    reaction_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_posted_at ON messages(posted_at);
CREATE INDEX IF NOT EXISTS idx_messages_label ON messages(label);
`

var migration002UserScores = `
CREATE TABLE IF NOT EXISTS user_scores (
    id BIGSERIAL PRIMARY KEY,
    user_id VARCHAR(64) UNIQUE NOT NULL,
    user_name VARCHAR(255) NOT NULL DEFAULT '',
    message_count INTEGER NOT NULL DEFAULT 0,
    positive_count INTEGER NOT NULL DEFAULT 0,
    violation_count INTEGER NOT NULL DEFAULT 0,
    reaction_count INTEGER NOT NULL DEFAULT 0,
    last_updated TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_user_scores_user_id ON user_scores(user_id);
`

var migration003Recognitions = `
CREATE TABLE IF NOT EXISTS recognitions (
    id BIGSERIAL PRIMARY KEY,
    period VARCHAR(16) NOT NULL,
    period_start TIMESTAMP NOT NULL,
    user_id VARCHAR(64) NOT NULL,
    user_name VARCHAR(255) NOT NULL DEFAULT '',
    rank INTEGER NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMP DEFAULT NOW(),
    UNIQUE (period, period_start, rank)
);
CREATE INDEX IF NOT EXISTS idx_recognitions_period ON recognitions(period, period_start DESC);
`

var migration004NotificationLog = `
CREATE TABLE IF NOT EXISTS notification_log (
    id BIGSERIAL PRIMARY KEY,
    target_channel VARCHAR(64) NOT NULL,
    kind VARCHAR(32) NOT NULL,
    payload TEXT NOT NULL,
    delivered BOOLEAN NOT NULL DEFAULT FALSE,
    sent_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notification_log_sent_at ON notification_log(sent_at DESC);
`
