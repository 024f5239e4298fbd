// Package classify — service.go содержит основную логику адаптера:
// вызов внешнего API через общий ограничитель частоты и ограниченные
// ретраи с экспоненциальным backoff.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"slack-moderation-bot/internal/common"
)

// ChatAPI — минимальный интерфейс OpenAI-клиента, нужный адаптеру.
// Позволяет подменять клиента в тестах, не трогая пайплайн.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service — адаптер классификатора.
type Service struct {
	api        ChatAPI
	model      string
	gate       *Gate
	maxRetries int
	timeout    time.Duration
	backoff    time.Duration // базовая задержка ретрая, удваивается на каждой попытке
}

// NewService создаёт адаптер классификатора.
func NewService(api ChatAPI, model string, gate *Gate, maxRetries int, timeout time.Duration) *Service {
	return &Service{
		api:        api,
		model:      model,
		gate:       gate,
		maxRetries: maxRetries,
		timeout:    timeout,
		backoff:    2 * time.Second,
	}
}

// Classify классифицирует текст сообщения.
//
// Контракт:
//   - пустой после trim текст → neutral/0 БЕЗ вызова внешнего API
//   - перед каждым вызовом ждём общий Gate (вызовы очередятся, не теряются)
//   - временные сбои (таймаут, 5xx, 429) ретраим до maxRetries раз
//   - после исчерпания попыток возвращаем common.ErrClassificationUnavailable;
//     вызывающий обязан отложить сообщение, а НЕ пометить его neutral
//   - невосстановимая ошибка API (400, 401) → common.ErrClassificationRejected;
//     такое сообщение откладывать бессмысленно, вызывающий его отбрасывает
func (s *Service) Classify(ctx context.Context, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Label: LabelNeutral, Confidence: 0}, nil
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(text)},
		},
	}

	var lastErr error
	fatal := false
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			// Экспоненциальный backoff: backoff, 2*backoff, 4*backoff...
			delay := s.backoff << (attempt - 1)
			log.WithFields(log.Fields{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Повтор вызова классификатора")
			if err := sleepCtx(ctx, delay); err != nil {
				return Result{}, err
			}
		}

		if err := s.gate.Wait(ctx); err != nil {
			return Result{}, err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		resp, err := s.api.CreateChatCompletion(callCtx, req)
		cancel()

		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				log.WithError(err).Error("Невосстановимая ошибка классификатора")
				fatal = true
				break
			}
			log.WithError(err).Warn("Временная ошибка классификатора")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = errors.New("модель вернула пустой ответ")
			continue
		}

		res, err := parseResult(resp.Choices[0].Message.Content)
		if err != nil {
			// Модель вернула мусор вместо JSON — пробуем ещё раз
			lastErr = err
			log.WithError(err).Warn("Не удалось разобрать ответ модели")
			continue
		}

		return res, nil
	}

	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if fatal {
		// Откладывать бессмысленно: 400/401 не лечатся повтором
		return Result{}, fmt.Errorf("%w: %v", common.ErrClassificationRejected, lastErr)
	}
	return Result{}, fmt.Errorf("%w: %v", common.ErrClassificationUnavailable, lastErr)
}

// isRetryable определяет, имеет ли смысл повторять вызов.
// Ретраим таймауты, сетевые ошибки, 429 и 5xx. Ошибки вида 401/400 не ретраим.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// sleepCtx спит delay или до отмены контекста.
func sleepCtx(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
