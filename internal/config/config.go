// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Slack ---
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN" required:"true"`
	// Канал, куда уходят алерты о нарушениях и итоги периодов
	AdminChannelID string `envconfig:"ADMIN_CHANNEL_ID" required:"true"`
	// Каналы, которые бот сканирует (CSV: C0123,C0456)
	WatchChannelIDsRaw string   `envconfig:"WATCH_CHANNEL_IDS" required:"true"`
	WatchChannelIDs    []string `envconfig:"-"` // заполним вручную

	// --- Classifier (OpenAI) ---
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	// Минимальный интервал между вызовами внешнего API.
	// 4.5s — под бесплатный лимит ~15 запросов/мин с запасом.
	ClassifyMinInterval time.Duration `envconfig:"CLASSIFY_MIN_INTERVAL" default:"4.5s"`
	ClassifyMaxRetries  int           `envconfig:"CLASSIFY_MAX_RETRIES" default:"3"`
	ClassifyTimeout     time.Duration `envconfig:"CLASSIFY_TIMEOUT" default:"30s"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"slack_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Scoring ---
	// Пороги уверенности классификатора
	ViolationThreshold float64 `envconfig:"VIOLATION_THRESHOLD" default:"0.8"`
	PositiveThreshold  float64 `envconfig:"POSITIVE_THRESHOLD" default:"0.7"`
	// Веса скоринга (как в прототипе: сообщение +1, позитив +5,
	// нарушение -10, реакция +2)
	ScoreMessageCredit    float64 `envconfig:"SCORE_MESSAGE_CREDIT" default:"1"`
	ScorePositiveBonus    float64 `envconfig:"SCORE_POSITIVE_BONUS" default:"5"`
	ScoreViolationPenalty float64 `envconfig:"SCORE_VIOLATION_PENALTY" default:"10"`
	ScoreReactionBonus    float64 `envconfig:"SCORE_REACTION_BONUS" default:"2"`
	// Если true — бонус/штраф умножается на confidence классификатора
	ScoreConfidenceWeighted bool `envconfig:"SCORE_CONFIDENCE_WEIGHTED" default:"false"`

	// --- Pipeline runtime ---
	// Сколько сообщений обрабатываем параллельно. Иначе "go на каждое сообщение" = утечка памяти при флуде.
	PipelineMaxInflight int `envconfig:"PIPELINE_MAX_INFLIGHT" default:"16"`
	// Размер очереди неклассифицированных сообщений (старые вытесняются)
	RetryQueueSize int `envconfig:"RETRY_QUEUE_SIZE" default:"256"`

	// --- Polling ---
	PollIntervalMinutes int `envconfig:"POLL_INTERVAL_MINUTES" default:"15"`
	PollLookbackHours   int `envconfig:"POLL_LOOKBACK_HOURS" default:"24"`

	// --- Notifications ---
	NotifyMaxRetries int `envconfig:"NOTIFY_MAX_RETRIES" default:"3"`

	// --- Recognition ---
	RecognitionTopN int `envconfig:"RECOGNITION_TOP_N" default:"10"`

	// --- Dashboard ---
	DashboardAddr         string `envconfig:"DASHBOARD_ADDR" default:":8080"`
	DashboardPasswordHash string `envconfig:"DASHBOARD_PASSWORD_HASH" required:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if len(c.WatchChannelIDs) == 0 {
		return fmt.Errorf("WATCH_CHANNEL_IDS не задан")
	}
	if c.ClassifyMinInterval <= 0 {
		return fmt.Errorf("CLASSIFY_MIN_INTERVAL должен быть > 0")
	}
	if c.ClassifyMaxRetries < 0 {
		return fmt.Errorf("CLASSIFY_MAX_RETRIES не может быть отрицательным")
	}
	if c.ViolationThreshold < 0 || c.ViolationThreshold > 1 {
		return fmt.Errorf("VIOLATION_THRESHOLD должен быть в диапазоне [0, 1]")
	}
	if c.PositiveThreshold < 0 || c.PositiveThreshold > 1 {
		return fmt.Errorf("POSITIVE_THRESHOLD должен быть в диапазоне [0, 1]")
	}
	if c.PipelineMaxInflight <= 0 {
		return fmt.Errorf("PIPELINE_MAX_INFLIGHT должен быть > 0")
	}
	if c.RetryQueueSize <= 0 {
		return fmt.Errorf("RETRY_QUEUE_SIZE должен быть > 0")
	}
	if c.RecognitionTopN <= 0 {
		return fmt.Errorf("RECOGNITION_TOP_N должен быть > 0")
	}
	if c.PollIntervalMinutes <= 0 || c.PollLookbackHours <= 0 {
		return fmt.Errorf("некорректные POLL_INTERVAL_MINUTES/POLL_LOOKBACK_HOURS")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	cfg.WatchChannelIDs = parseCSV(cfg.WatchChannelIDsRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
