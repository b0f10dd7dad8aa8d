package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/plantscope-ai/apiserver/internal/ml"
	"github.com/plantscope-ai/apiserver/internal/mq"
	"github.com/plantscope-ai/apiserver/internal/storage"
	"github.com/plantscope-ai/apiserver/internal/store"
	"github.com/plantscope-ai/apiserver/types"
)

// ErrAnalyzerUnavailable wraps failures of the ML service so handlers
// can map them to a 502 without leaking detail.
var ErrAnalyzerUnavailable = errors.New("prediction service unavailable")

// PredictionRepository defines persistence operations for predictions.
type PredictionRepository interface {
	Create(ctx context.Context, prediction types.Prediction) (types.Prediction, error)
	GetByID(ctx context.Context, id int) (types.Prediction, error)
	ListByUser(ctx context.Context, userID, offset, limit int) ([]types.Prediction, int, error)
}

// DiseaseAnalyzer is the ML service collaborator.
type DiseaseAnalyzer interface {
	Analyze(ctx context.Context, filename string, data []byte) (ml.Analysis, error)
}

// PredictionService runs an image through the ML service and records
// the result. Image archival and event publishing are optional
// (nil collaborators) and best-effort.
type PredictionService struct {
	repo     PredictionRepository
	analyzer DiseaseAnalyzer
	images   storage.ObjectStorage
	events   mq.Publisher
}

func NewPredictionService(repo PredictionRepository, analyzer DiseaseAnalyzer, images storage.ObjectStorage, events mq.Publisher) *PredictionService {
	return &PredictionService{
		repo:     repo,
		analyzer: analyzer,
		images:   images,
		events:   events,
	}
}

// Analyze classifies the uploaded image and persists a prediction
// record for the user.
func (s *PredictionService) Analyze(ctx context.Context, userID int, filename, contentType string, data []byte) (types.Prediction, error) {
	analysis, err := s.analyzer.Analyze(ctx, filename, data)
	if err != nil {
		return types.Prediction{}, fmt.Errorf("%w: %v", ErrAnalyzerUnavailable, err)
	}

	imageKey := s.archiveImage(ctx, userID, filename, contentType, data)

	prediction, err := s.repo.Create(ctx, types.Prediction{
		UserID:     userID,
		Disease:    analysis.Disease,
		Confidence: analysis.Confidence,
		ModelUsed:  analysis.ModelUsed,
		Treatment:  analysis.Treatment,
		ImageKey:   imageKey,
	})
	if err != nil {
		return types.Prediction{}, err
	}

	if s.events != nil {
		_ = mq.PublishPrediction(ctx, s.events, mq.PredictionEvent{
			PredictionID: prediction.ID,
			UserID:       prediction.UserID,
			Disease:      prediction.Disease,
			CreatedAt:    prediction.CreatedAt,
		})
	}

	return prediction, nil
}

// Get returns one of the user's predictions. A prediction owned by
// another user is reported as not found.
func (s *PredictionService) Get(ctx context.Context, userID, id int) (types.Prediction, error) {
	prediction, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Prediction{}, err
	}
	if prediction.UserID != userID {
		return types.Prediction{}, store.ErrNotFound
	}
	return prediction, nil
}

func (s *PredictionService) List(ctx context.Context, userID, offset, limit int) ([]types.Prediction, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListByUser(ctx, userID, offset, limit)
}

func (s *PredictionService) archiveImage(ctx context.Context, userID int, filename, contentType string, data []byte) string {
	if s.images == nil {
		return ""
	}
	key := storage.ImageKey(userID, path.Ext(filename))
	if err := s.images.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		// Archival is best effort; the prediction record stands alone.
		return ""
	}
	return key
}
