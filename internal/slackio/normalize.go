// Package slackio — normalize.go приводит сырые сообщения Slack
// к нормализованной записи пайплайна и отсеивает служебный шум.
package slackio

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"slack-moderation-bot/internal/features/pipeline"
)

// normalize превращает slack.Message в pipeline.Message.
// Возвращает false для сообщений, которые анализировать не нужно:
//   - сообщения ботов (включая наши собственные)
//   - сервисные сообщения с subtype (join/leave/topic и т.п.)
//   - сообщения без текста
func normalize(channelID string, m slack.Message) (pipeline.Message, bool) {
	if m.BotID != "" || m.SubType != "" || m.User == "" {
		return pipeline.Message{}, false
	}
	if strings.TrimSpace(m.Text) == "" {
		return pipeline.Message{}, false
	}

	postedAt, err := parseSlackTS(m.Timestamp)
	if err != nil {
		return pipeline.Message{}, false
	}

	// conversations.history отдаёт реакции вместе с сообщением,
	// отдельный вызов reactions.get не нужен
	reactions := 0
	for _, r := range m.Reactions {
		reactions += r.Count
	}

	return pipeline.Message{
		// ts уникален внутри канала; префикс канала делает id глобальным
		MessageID:     channelID + ":" + m.Timestamp,
		UserID:        m.User,
		ChannelID:     channelID,
		PostedAt:      postedAt,
		Text:          m.Text,
		ReactionCount: reactions,
	}, true
}

// parseSlackTS разбирает slack-таймстемп вида "1726057200.000300".
func parseSlackTS(ts string) (time.Time, error) {
	parts := strings.SplitN(ts, ".", 2)
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректный таймстемп %q: %w", ts, err)
	}

	var nsec int64
	if len(parts) == 2 && parts[1] != "" {
		frac, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("некорректный таймстемп %q: %w", ts, err)
		}
		// дробная часть — микросекунды (6 знаков)
		for i := len(parts[1]); i < 6; i++ {
			frac *= 10
		}
		nsec = frac * 1000
	}

	return time.Unix(sec, nsec).UTC(), nil
}

// slackTS форматирует время обратно в slack-таймстемп (для параметра oldest).
func slackTS(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}
