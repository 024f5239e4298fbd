// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют компонентам различать типы проблем:
// что откладывать в очередь, что логировать и отбрасывать.
package common

import "errors"

// Ошибки валидации входящих сообщений
var (
	// ErrEmptyMessage — в сообщении нет текста после trim
	ErrEmptyMessage = errors.New("сообщение пустое")
	// ErrMissingField — отсутствует обязательное поле (id, автор, канал)
	ErrMissingField = errors.New("отсутствует обязательное поле сообщения")
)

// Ошибки классификатора
var (
	// ErrClassificationUnavailable — внешний API недоступен после всех ретраев.
	// Сообщение уходит в очередь повторной классификации, НЕ помечается neutral.
	ErrClassificationUnavailable = errors.New("классификация недоступна")
	// ErrClassificationRejected — невосстановимая ошибка внешнего API (400, 401).
	// Ретраи бессмысленны, сообщение отбрасывается, а не откладывается.
	ErrClassificationRejected = errors.New("классификация отклонена")
)

// Ошибки леджера
var (
	// ErrDuplicateMessage — message_id уже учтён, счётчики не меняются
	ErrDuplicateMessage = errors.New("сообщение уже учтено")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки наград
var (
	// ErrPeriodClosed — итоги периода уже зафиксированы, пересчёт запрещён
	ErrPeriodClosed = errors.New("итоги периода уже зафиксированы")
)

// Ошибки уведомлений
var (
	// ErrDeliveryFailed — уведомление не доставлено после всех ретраев
	ErrDeliveryFailed = errors.New("уведомление не доставлено")
)

// Ошибки дашборда
var (
	// ErrWrongPassword — неверный пароль администратора
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)
