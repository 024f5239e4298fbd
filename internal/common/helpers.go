// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: периоды наград, границы временных окон, работа с временем.
package common

import (
	"fmt"
	"time"
)

// Period — период подведения итогов.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Valid проверяет, что период один из известных.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// Window — полуинтервал времени [From, To).
// Все окна периодов считаются в часовом поясе сообщества.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains проверяет, попадает ли момент t в окно.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// PeriodWindow возвращает ЗАКРЫТОЕ окно периода, предшествующее моменту now.
// Итоги подводятся за завершившийся период:
//   - daily: вчерашние сутки
//   - weekly: прошлая неделя (понедельник-воскресенье)
//   - monthly: прошлый календарный месяц
func PeriodWindow(p Period, now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)

	switch p {
	case PeriodDaily:
		return Window{From: today.AddDate(0, 0, -1), To: today}, nil
	case PeriodWeekly:
		// Откатываемся к началу текущей недели (понедельник), потом на неделю назад
		weekday := int(today.Weekday())
		if weekday == 0 {
			weekday = 7 // воскресенье
		}
		thisMonday := today.AddDate(0, 0, -(weekday - 1))
		return Window{From: thisMonday.AddDate(0, 0, -7), To: thisMonday}, nil
	case PeriodMonthly:
		thisMonth := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
		return Window{From: thisMonth.AddDate(0, -1, 0), To: thisMonth}, nil
	}
	return Window{}, fmt.Errorf("неизвестный период %q", p)
}

// LoadLocation загружает часовой пояс сообщества.
// Если зона не найдена — используем UTC+3 вручную.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" (день.месяц.год часы:минуты).
// Используется в алертах и на дашборде.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// Truncate обрезает текст до n рун с многоточием.
// Нужен для логов и алертов, чтобы не тащить простыни текста.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
