// Package scoring — repository.go выполняет операции с таблицами messages и user_scores.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/features/classify"
)

// Repository работает с таблицами messages и user_scores.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий леджера.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Record атомарно записывает событие и обновляет счётчики пользователя.
// Дедупликация по message_id: если сообщение уже учтено, возвращает false
// и НЕ трогает счётчики — повторная обработка безопасна.
func (r *Repository) Record(ctx context.Context, ev Event) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO messages (message_id, user_id, user_name, channel_id, posted_at, raw_text, label, confidence, reaction_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (message_id) DO NOTHING
	`, ev.MessageID, ev.UserID, ev.UserName, ev.ChannelID, ev.PostedAt, ev.Text, string(ev.Label), ev.Confidence, ev.ReactionCount)
	if err != nil {
		return false, fmt.Errorf("ошибка записи сообщения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Уже учтено — счётчики не меняем
		return false, nil
	}

	posInc := 0
	vioInc := 0
	switch ev.Label {
	case classify.LabelPositive:
		posInc = 1
	case classify.LabelViolation:
		vioInc = 1
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_scores (user_id, user_name, message_count, positive_count, violation_count, reaction_count, last_updated)
		VALUES ($1, $2, 1, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			user_name       = EXCLUDED.user_name,
			message_count   = user_scores.message_count + 1,
			positive_count  = user_scores.positive_count + EXCLUDED.positive_count,
			violation_count = user_scores.violation_count + EXCLUDED.violation_count,
			reaction_count  = user_scores.reaction_count + EXCLUDED.reaction_count,
			last_updated    = NOW()
	`, ev.UserID, ev.UserName, posInc, vioInc, ev.ReactionCount)
	if err != nil {
		return false, fmt.Errorf("ошибка обновления счётчиков: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return true, nil
}

// GetScore возвращает счётчики пользователя.
// net_score НЕ хранится, а пересчитывается из messages текущими весами —
// той же формулой, что и TopN, иначе после смены весов сводка пользователя
// разошлась бы с рейтингами.
func (r *Repository) GetScore(ctx context.Context, userID string, weights Weights) (*UserScore, error) {
	query := `
		SELECT s.id, s.user_id, s.user_name, s.message_count, s.positive_count,
		       s.violation_count, s.reaction_count, s.last_updated,
		       COALESCE((
		           SELECT COUNT(*) * $2::float8
		                + SUM(CASE WHEN label = 'positive'
		                          THEN $3::float8 * (CASE WHEN $6::bool THEN confidence ELSE 1 END)
		                          ELSE 0 END)
		                - SUM(CASE WHEN label = 'violation'
		                          THEN $4::float8 * (CASE WHEN $6::bool THEN confidence ELSE 1 END)
		                          ELSE 0 END)
		                + SUM(reaction_count) * $5::float8
		           FROM messages m WHERE m.user_id = s.user_id
		       ), 0) AS net_score
		FROM user_scores s WHERE s.user_id = $1
	`
	var s UserScore
	err := r.db.QueryRow(ctx, query, userID,
		weights.MessageCredit, weights.PositiveBonus, weights.ViolationPenalty,
		weights.ReactionBonus, weights.ConfidenceWeighted,
	).Scan(
		&s.ID, &s.UserID, &s.UserName, &s.MessageCount, &s.PositiveCount,
		&s.ViolationCount, &s.ReactionCount, &s.LastUpdated, &s.NetScore,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очков: %w", err)
	}
	return &s, nil
}

// TopN возвращает рейтинг за окно периода.
// Очки считаются ТОЛЬКО по сообщениям внутри окна, не по глобальным счётчикам —
// поздние изменения глобальных очков не переписывают прошлые итоги.
// Порядок детерминирован: score DESC, при равенстве user_id ASC.
func (r *Repository) TopN(ctx context.Context, w common.Window, weights Weights, n int) ([]RankedUser, error) {
	query := `
		SELECT user_id,
		       MAX(user_name) AS user_name,
		       COUNT(*) * $3::float8
		     + SUM(CASE WHEN label = 'positive'
		               THEN $4::float8 * (CASE WHEN $7::bool THEN confidence ELSE 1 END)
		               ELSE 0 END)
		     - SUM(CASE WHEN label = 'violation'
		               THEN $5::float8 * (CASE WHEN $7::bool THEN confidence ELSE 1 END)
		               ELSE 0 END)
		     + SUM(reaction_count) * $8::float8 AS score
		FROM messages
		WHERE posted_at >= $1 AND posted_at < $2
		GROUP BY user_id
		ORDER BY score DESC, user_id ASC
		LIMIT $6
	`
	rows, err := r.db.Query(ctx, query,
		w.From, w.To,
		weights.MessageCredit, weights.PositiveBonus, weights.ViolationPenalty,
		n, weights.ConfidenceWeighted, weights.ReactionBonus,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса рейтинга: %w", err)
	}
	defer rows.Close()

	var out []RankedUser
	for rows.Next() {
		var ru RankedUser
		if err := rows.Scan(&ru.UserID, &ru.UserName, &ru.Score); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки рейтинга: %w", err)
		}
		ru.Rank = len(out) + 1
		out = append(out, ru)
	}
	return out, rows.Err()
}

// RecentMessages возвращает последние сообщения пользователя с классификацией.
// Используется дашбордом (история активности).
func (r *Repository) RecentMessages(ctx context.Context, userID string, limit int) ([]Message, error) {
	query := `
		SELECT message_id, user_id, user_name, channel_id, posted_at, raw_text, label, confidence, reaction_count, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY posted_at DESC
		LIMIT $2
	`
	return r.queryMessages(ctx, query, userID, limit)
}

// Violations возвращает сообщения-нарушения начиная с момента since.
// Используется дашбордом (отчёт о нарушениях).
func (r *Repository) Violations(ctx context.Context, since time.Time, limit int) ([]Message, error) {
	query := `
		SELECT message_id, user_id, user_name, channel_id, posted_at, raw_text, label, confidence, reaction_count, created_at
		FROM messages
		WHERE label = 'violation' AND posted_at >= $1
		ORDER BY posted_at DESC
		LIMIT $2
	`
	return r.queryMessages(ctx, query, since, limit)
}

// Positives возвращает позитивные сообщения начиная с момента since.
func (r *Repository) Positives(ctx context.Context, since time.Time, limit int) ([]Message, error) {
	query := `
		SELECT message_id, user_id, user_name, channel_id, posted_at, raw_text, label, confidence, reaction_count, created_at
		FROM messages
		WHERE label = 'positive' AND posted_at >= $1
		ORDER BY posted_at DESC
		LIMIT $2
	`
	return r.queryMessages(ctx, query, since, limit)
}

func (r *Repository) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса сообщений: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var label string
		if err := rows.Scan(&m.MessageID, &m.UserID, &m.UserName, &m.ChannelID,
			&m.PostedAt, &m.Text, &label, &m.Confidence, &m.ReactionCount, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения сообщения: %w", err)
		}
		m.Label = classify.Label(label)
		out = append(out, m)
	}
	return out, rows.Err()
}
