package mq

import (
	"context"
	"encoding/json"
	"time"
)

// PredictionChannel carries events for newly recorded predictions,
// consumed by the notification worker.
const PredictionChannel = "predictions"

// Publisher defines the broker-agnostic publish operation used by the app.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// PredictionEvent announces that a prediction was recorded for a user.
type PredictionEvent struct {
	PredictionID int       `json:"prediction_id"`
	UserID       int       `json:"user_id"`
	Disease      string    `json:"disease"`
	CreatedAt    time.Time `json:"created_at"`
}

// PublishPrediction marshals and publishes a prediction event.
func PublishPrediction(ctx context.Context, pub Publisher, event PredictionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = pub.Publish(ctx, PredictionChannel, data, map[string]string{
		"event": "prediction.recorded",
	})
	return err
}
