// Package notify — repository.go ведёт журнал уведомлений (таблица notification_log).
package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей notification_log.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий журнала уведомлений.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Log записывает факт (не)доставки уведомления.
func (r *Repository) Log(ctx context.Context, n Notification) error {
	query := `
		INSERT INTO notification_log (target_channel, kind, payload, delivered)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, n.TargetChannel, string(n.Kind), n.Payload, n.Delivered)
	return err
}

// Recent возвращает последние записи журнала (для аудита на дашборде).
func (r *Repository) Recent(ctx context.Context, limit int) ([]Notification, error) {
	query := `
		SELECT id, target_channel, kind, payload, delivered, sent_at
		FROM notification_log
		ORDER BY sent_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса журнала уведомлений: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.TargetChannel, &kind, &n.Payload, &n.Delivered, &n.SentAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения записи журнала: %w", err)
		}
		n.Kind = Kind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}
