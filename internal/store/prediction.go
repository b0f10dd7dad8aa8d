package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/plantscope-ai/apiserver/types"
)

// PredictionRepository handles persistence for predictions.
type PredictionRepository struct {
	db *sql.DB
}

func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) Create(ctx context.Context, prediction types.Prediction) (types.Prediction, error) {
	prediction.CreatedAt = time.Now()

	const query = `
		INSERT INTO predictions (user_id, disease, confidence, model_used, treatment, image_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		prediction.UserID,
		prediction.Disease,
		prediction.Confidence,
		prediction.ModelUsed,
		prediction.Treatment,
		prediction.ImageKey,
		prediction.CreatedAt,
	).Scan(&prediction.ID); err != nil {
		return types.Prediction{}, err
	}
	return prediction, nil
}

func (r *PredictionRepository) GetByID(ctx context.Context, id int) (types.Prediction, error) {
	const query = `
		SELECT id, user_id, disease, confidence, model_used, treatment, image_key, created_at
		FROM predictions
		WHERE id = $1`
	var prediction types.Prediction
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&prediction.ID,
		&prediction.UserID,
		&prediction.Disease,
		&prediction.Confidence,
		&prediction.ModelUsed,
		&prediction.Treatment,
		&prediction.ImageKey,
		&prediction.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Prediction{}, ErrNotFound
		}
		return types.Prediction{}, err
	}
	return prediction, nil
}

// ListByUser returns a page of the user's predictions, newest first,
// along with the total count.
func (r *PredictionRepository) ListByUser(ctx context.Context, userID, offset, limit int) ([]types.Prediction, int, error) {
	const countQuery = `SELECT COUNT(*) FROM predictions WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
		SELECT id, user_id, disease, confidence, model_used, treatment, image_key, created_at
		FROM predictions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	predictions := make([]types.Prediction, 0, limit)
	for rows.Next() {
		var prediction types.Prediction
		if err := rows.Scan(
			&prediction.ID,
			&prediction.UserID,
			&prediction.Disease,
			&prediction.Confidence,
			&prediction.ModelUsed,
			&prediction.Treatment,
			&prediction.ImageKey,
			&prediction.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		predictions = append(predictions, prediction)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return predictions, total, nil
}
