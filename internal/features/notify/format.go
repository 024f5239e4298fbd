// Package notify — format.go собирает тексты уведомлений для Slack.
package notify

import (
	"fmt"
	"strings"
	"time"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/features/scoring"
)

// названия периодов для заголовков объявлений
var periodTitles = map[common.Period]string{
	common.PeriodDaily:   "дня",
	common.PeriodWeekly:  "недели",
	common.PeriodMonthly: "месяца",
}

// FormatViolationAlert собирает алерт о нарушении для админ-канала.
//
// Формат:
//
//	🚨 Нарушение гайдлайнов
//	Пользователь: Иван (U123)
//	Канал: C456
//	Когда: 15.03.2026 14:02
//	Уверенность: 95%
//	Причина: спам с рекламой
//	> spam spam spam buy now
func FormatViolationAlert(userName, userID, channelID, text, reason string, confidence float64, postedAt time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🚨 Нарушение гайдлайнов\n\n")
	fmt.Fprintf(&b, "Пользователь: %s (%s)\n", userName, userID)
	fmt.Fprintf(&b, "Канал: %s\n", channelID)
	fmt.Fprintf(&b, "Когда: %s\n", common.FormatDateTime(postedAt, loc))
	fmt.Fprintf(&b, "Уверенность: %.0f%%\n", confidence*100)
	if reason != "" {
		fmt.Fprintf(&b, "Причина: %s\n", reason)
	}
	fmt.Fprintf(&b, "> %s", common.Truncate(text, 200))
	return b.String()
}

// FormatRecognition собирает объявление итогов периода.
//
// Формат:
//
//	🏆 Итоги недели (09.03.2026 — 15.03.2026)
//	1. Иван — 42 очка
//	2. Мария — 37 очков
//	...
func FormatRecognition(period common.Period, w common.Window, entries []scoring.RankedUser, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Итоги %s (%s — %s)\n\n",
		periodTitles[period],
		w.From.In(loc).Format("02.01.2006"),
		// окно полуоткрытое, показываем последний включённый день
		w.To.In(loc).AddDate(0, 0, -1).Format("02.01.2006"),
	)

	if len(entries) == 0 {
		b.WriteString("За период не было активности 😴")
		return b.String()
	}

	medals := []string{"🥇", "🥈", "🥉"}
	for _, e := range entries {
		prefix := fmt.Sprintf("%d.", e.Rank)
		if e.Rank <= len(medals) {
			prefix = medals[e.Rank-1]
		}
		fmt.Fprintf(&b, "%s %s — %.1f %s\n", prefix, e.UserName, e.Score, pluralizePoints(e.Score))
	}
	return b.String()
}

// pluralizePoints возвращает правильную форму слова «очко».
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "очко" (1, 21, 31, ...)
//   - n%10 в [2,4] И n%100 НЕ в [12,14] → "очка" (2, 3, 4, 22, ...)
//   - остальные случаи → "очков"
//
// Дробные значения всегда получают форму "очка" (4.5 очка).
func pluralizePoints(score float64) string {
	if score != float64(int64(score)) {
		return "очка"
	}
	n := int64(score)
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "очко"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "очка"
	}
	return "очков"
}
