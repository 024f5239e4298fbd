// Package recognition — repository.go выполняет операции с таблицей recognitions.
package recognition

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slack-moderation-bot/internal/common"
	"slack-moderation-bot/internal/features/scoring"
)

// Repository работает с таблицей recognitions.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий наград.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ComputeAndSave подводит итоги периода одной транзакцией REPEATABLE READ:
// рейтинг считается по снапшоту и не интерливится с конкурентными
// записями леджера за то же окно.
//
// Если итоги периода уже зафиксированы — возвращает common.ErrPeriodClosed:
// пересчёт закрытого периода запрещён, записи неизменяемы.
func (r *Repository) ComputeAndSave(ctx context.Context, period common.Period, w common.Window, weights scoring.Weights, n int) ([]scoring.RankedUser, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Проверяем, не закрыт ли период
	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM recognitions WHERE period = $1 AND period_start = $2)
	`, string(period), w.From).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки периода: %w", err)
	}
	if exists {
		return nil, common.ErrPeriodClosed
	}

	// Рейтинг строго по окну периода, не по глобальным счётчикам.
	// Порядок детерминирован: score DESC, при равенстве user_id ASC.
	rows, err := tx.Query(ctx, `
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
	`, w.From, w.To,
		weights.MessageCredit, weights.PositiveBonus, weights.ViolationPenalty,
		n, weights.ConfidenceWeighted, weights.ReactionBonus,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса рейтинга периода: %w", err)
	}

	var ranked []scoring.RankedUser
	for rows.Next() {
		var ru scoring.RankedUser
		if err := rows.Scan(&ru.UserID, &ru.UserName, &ru.Score); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка чтения строки рейтинга: %w", err)
		}
		ru.Rank = len(ranked) + 1
		ranked = append(ranked, ru)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ru := range ranked {
		_, err := tx.Exec(ctx, `
			INSERT INTO recognitions (period, period_start, user_id, user_name, rank, score)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, string(period), w.From, ru.UserID, ru.UserName, ru.Rank, ru.Score)
		if err != nil {
			return nil, fmt.Errorf("ошибка записи награды: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации итогов: %w", err)
	}
	return ranked, nil
}

// List возвращает последние записи наград периода (для дашборда).
func (r *Repository) List(ctx context.Context, period common.Period, limit int) ([]Recognition, error) {
	query := `
		SELECT id, period, period_start, user_id, user_name, rank, score, created_at
		FROM recognitions
		WHERE period = $1
		ORDER BY period_start DESC, rank ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, string(period), limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса наград: %w", err)
	}
	defer rows.Close()

	var out []Recognition
	for rows.Next() {
		var rec Recognition
		var p string
		if err := rows.Scan(&rec.ID, &p, &rec.PeriodStart, &rec.UserID,
			&rec.UserName, &rec.Rank, &rec.Score, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения награды: %w", err)
		}
		rec.Period = common.Period(p)
		out = append(out, rec)
	}
	return out, rows.Err()
}
