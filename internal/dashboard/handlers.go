// Package dashboard — handlers.go содержит ручки read-only API.
package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"slack-moderation-bot/internal/common"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// handleLogin — POST /api/admin/login {"password": "..."} → {"token": "..."}.
func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "нужно поле password"})
		return
	}

	token, err := s.auth.Login(req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// handleStatus — GET /api/status: здоровье пайплайна и машины итогов.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"retry_queue_len":   s.pipeline.QueueLen(),
		"recognition_state": s.recognitionSvc.State().String(),
		"weights":           s.scoringService.Weights(),
	})
}

// handleUserSummary — GET /api/users/:id: сводка активности пользователя.
func (s *Server) handleUserSummary(c *gin.Context) {
	score, err := s.scoringService.GetScore(c.Request.Context(), c.Param("id"))
	if errors.Is(err, common.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         score.UserID,
		"user_name":       score.UserName,
		"message_count":   score.MessageCount,
		"positive_count":  score.PositiveCount,
		"violation_count": score.ViolationCount,
		"reaction_count":  score.ReactionCount,
		"net_score":       score.NetScore,
		"last_updated":    score.LastUpdated,
	})
}

// handleUserMessages — GET /api/users/:id/messages: история сообщений с классификацией.
func (s *Server) handleUserMessages(c *gin.Context) {
	msgs, err := s.scoringRepo.RecentMessages(c.Request.Context(), c.Param("id"), limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// handleRankings — GET /api/rankings?period=daily|weekly|monthly:
// рейтинг за последнее ЗАКРЫТОЕ окно периода (то же окно, что у наград).
func (s *Server) handleRankings(c *gin.Context) {
	period := common.Period(c.DefaultQuery("period", string(common.PeriodWeekly)))
	if !period.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period должен быть daily|weekly|monthly"})
		return
	}

	w, err := common.PeriodWindow(period, time.Now(), s.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ranked, err := s.scoringService.TopN(c.Request.Context(), w, limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":   period,
		"from":     w.From,
		"to":       w.To,
		"rankings": ranked,
	})
}

// handleRecognitions — GET /api/recognitions?period=...: зафиксированные награды.
func (s *Server) handleRecognitions(c *gin.Context) {
	period := common.Period(c.DefaultQuery("period", string(common.PeriodWeekly)))
	if !period.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period должен быть daily|weekly|monthly"})
		return
	}

	recs, err := s.recognitionRepo.List(c.Request.Context(), period, limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recognitions": recs})
}

// handleViolations — GET /api/violations?hours=24: отчёт о нарушениях.
func (s *Server) handleViolations(c *gin.Context) {
	since := time.Now().Add(-time.Duration(hoursParam(c)) * time.Hour)
	msgs, err := s.scoringRepo.Violations(c.Request.Context(), since, limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"violations": msgs})
}

// handlePositives — GET /api/positives?hours=24: отчёт о позитивных вкладах.
func (s *Server) handlePositives(c *gin.Context) {
	since := time.Now().Add(-time.Duration(hoursParam(c)) * time.Hour)
	msgs, err := s.scoringRepo.Positives(c.Request.Context(), since, limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positives": msgs})
}

// handleNotifications — GET /api/notifications: журнал уведомлений (аудит).
func (s *Server) handleNotifications(c *gin.Context) {
	recs, err := s.notifyRepo.Recent(c.Request.Context(), limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": recs})
}

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func hoursParam(c *gin.Context) int {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		return 24
	}
	return hours
}
