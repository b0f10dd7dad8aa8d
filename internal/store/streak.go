package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/plantscope-ai/apiserver/types"
)

// StreakRepository handles persistence for streaks.
type StreakRepository struct {
	db *sql.DB
}

func NewStreakRepository(db *sql.DB) *StreakRepository {
	return &StreakRepository{db: db}
}

func (r *StreakRepository) GetByUserID(ctx context.Context, userID int) (types.Streak, error) {
	const query = `
		SELECT id, user_id, count, longest, last_check_in, created_at, updated_at
		FROM streaks
		WHERE user_id = $1`
	var streak types.Streak
	var lastCheckIn sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&streak.ID,
		&streak.UserID,
		&streak.Count,
		&streak.Longest,
		&lastCheckIn,
		&streak.CreatedAt,
		&streak.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Streak{}, ErrNotFound
		}
		return types.Streak{}, err
	}
	if lastCheckIn.Valid {
		streak.LastCheckIn = lastCheckIn.Time
	}
	return streak, nil
}

func (r *StreakRepository) Create(ctx context.Context, streak types.Streak) (types.Streak, error) {
	now := time.Now()
	streak.CreatedAt = now
	streak.UpdatedAt = now

	const query = `
		INSERT INTO streaks (user_id, count, longest, last_check_in, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		streak.UserID,
		streak.Count,
		streak.Longest,
		nullTime(streak.LastCheckIn),
		streak.CreatedAt,
		streak.UpdatedAt,
	).Scan(&streak.ID); err != nil {
		return types.Streak{}, mapConstraintError(err)
	}
	return streak, nil
}

func (r *StreakRepository) Update(ctx context.Context, streak types.Streak) (types.Streak, error) {
	streak.UpdatedAt = time.Now()

	const query = `
		UPDATE streaks
		SET count = $1,
			longest = $2,
			last_check_in = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		streak.Count,
		streak.Longest,
		nullTime(streak.LastCheckIn),
		streak.UpdatedAt,
		streak.ID,
	)
	if err != nil {
		return types.Streak{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Streak{}, err
	}
	if affected == 0 {
		return types.Streak{}, ErrNotFound
	}
	return streak, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
