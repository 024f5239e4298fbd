// Package slackio оборачивает Slack Web API: выгрузка истории каналов
// и отправка сообщений. Транспорт и авторизация — внешние коллабораторы,
// здесь только плоская обёртка с нормализацией.
package slackio

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"slack-moderation-bot/internal/features/pipeline"
)

// страница истории; Slack рекомендует до 200
const historyPageSize = 200

// Client — обёртка над Slack Web API.
type Client struct {
	api *slack.Client

	// кэш имён пользователей: users.info дорогой, а имена меняются редко
	mu    sync.RWMutex
	names map[string]string
}

// New создаёт клиента Slack.
func New(token string) *Client {
	return &Client{
		api:   slack.New(token),
		names: make(map[string]string),
	}
}

// AuthTest проверяет токен и возвращает имя бота.
// Вызывается один раз при старте: без валидного токена работать нечем.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("ошибка авторизации в Slack: %w", err)
	}
	return resp.User, nil
}

// PostMessage отправляет текст в канал.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("ошибка отправки в канал %s: %w", channelID, err)
	}
	return nil
}

// FetchMessages выгружает историю канала начиная с момента oldest
// и нормализует её для пайплайна. Пагинация по курсору.
func (c *Client) FetchMessages(ctx context.Context, channelID string, oldest time.Time) ([]pipeline.Message, error) {
	var out []pipeline.Message
	cursor := ""

	for {
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Oldest:    slackTS(oldest),
			Limit:     historyPageSize,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("ошибка выгрузки истории %s: %w", channelID, err)
		}

		for _, raw := range resp.Messages {
			msg, ok := normalize(channelID, raw)
			if !ok {
				continue
			}
			msg.UserName = c.userName(ctx, msg.UserID)
			out = append(out, msg)
		}

		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		cursor = resp.ResponseMetaData.NextCursor
	}

	log.WithFields(log.Fields{
		"channel": channelID,
		"count":   len(out),
	}).Debug("История канала выгружена")
	return out, nil
}

// userName возвращает отображаемое имя пользователя с кэшированием.
// При ошибке users.info используем user_id — пайплайн от имени не зависит.
func (c *Client) userName(ctx context.Context, userID string) string {
	c.mu.RLock()
	name, ok := c.names[userID]
	c.mu.RUnlock()
	if ok {
		return name
	}

	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Не удалось получить имя пользователя")
		return userID
	}

	name = user.RealName
	if name == "" {
		name = user.Name
	}
	if name == "" {
		name = userID
	}

	c.mu.Lock()
	c.names[userID] = name
	c.mu.Unlock()
	return name
}
