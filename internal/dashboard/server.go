// Package dashboard поднимает read-only HTTP API для веб-админки.
// Все ручки — чистые запросы к текущему состоянию леджера и наград;
// никакой мутации через дашборд нет.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"slack-moderation-bot/internal/config"
	"slack-moderation-bot/internal/features/notify"
	"slack-moderation-bot/internal/features/pipeline"
	"slack-moderation-bot/internal/features/recognition"
	"slack-moderation-bot/internal/features/scoring"
)

// Server — HTTP-сервер дашборда.
type Server struct {
	engine *gin.Engine
	http   *http.Server

	auth            *Auth
	scoringService  *scoring.Service
	scoringRepo     *scoring.Repository
	recognitionSvc  *recognition.Service
	recognitionRepo *recognition.Repository
	notifyRepo      *notify.Repository
	pipeline        *pipeline.Service
	cfg             *config.Config
	loc             *time.Location
}

// NewServer собирает сервер дашборда и регистрирует маршруты.
func NewServer(
	cfg *config.Config,
	loc *time.Location,
	scoringService *scoring.Service,
	scoringRepo *scoring.Repository,
	recognitionSvc *recognition.Service,
	recognitionRepo *recognition.Repository,
	notifyRepo *notify.Repository,
	pl *pipeline.Service,
) *Server {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine:          engine,
		auth:            NewAuth(cfg.DashboardPasswordHash),
		scoringService:  scoringService,
		scoringRepo:     scoringRepo,
		recognitionSvc:  recognitionSvc,
		recognitionRepo: recognitionRepo,
		notifyRepo:      notifyRepo,
		pipeline:        pl,
		cfg:             cfg,
		loc:             loc,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.POST("/api/admin/login", s.handleLogin)

	api := s.engine.Group("/api", s.authRequired())
	{
		api.GET("/status", s.handleStatus)
		api.GET("/users/:id", s.handleUserSummary)
		api.GET("/users/:id/messages", s.handleUserMessages)
		api.GET("/rankings", s.handleRankings)
		api.GET("/recognitions", s.handleRecognitions)
		api.GET("/violations", s.handleViolations)
		api.GET("/positives", s.handlePositives)
		api.GET("/notifications", s.handleNotifications)
	}
}

// Run запускает HTTP-сервер; блокируется до остановки.
func (s *Server) Run() error {
	s.http = &http.Server{
		Addr:              s.cfg.DashboardAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("Дашборд слушает %s", s.cfg.DashboardAddr)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown останавливает HTTP-сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// authRequired пропускает только запросы с валидным токеном сессии.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Admin-Token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "нужен заголовок X-Admin-Token"})
			return
		}
		if err := s.auth.Check(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// requestLogger логирует запросы к дашборду через logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("Запрос к дашборду")
	}
}
