package types

import "time"

// Prediction records one plant-disease analysis made for a user.
type Prediction struct {
	// ID is the unique identifier of the prediction.
	ID int `json:"id" db:"id"`

	// UserID is the owner of the prediction.
	UserID int `json:"user_id" db:"user_id"`

	// Disease is the diagnosis returned by the ML service, e.g.
	// "Tomato Early Blight" or "Mint Healthy".
	Disease string `json:"disease" db:"disease"`

	// Confidence is the model confidence in percent (0-100).
	Confidence float64 `json:"confidence" db:"confidence"`

	// ModelUsed names the model that produced the diagnosis,
	// e.g. "ViT (PlantVillage)" or "Gemini Vision".
	ModelUsed string `json:"model_used" db:"model_used"`

	// Treatment is the treatment advice text, empty for healthy plants
	// when the advice model is unavailable.
	Treatment string `json:"treatment,omitempty" db:"treatment"`

	// ImageKey is the object-storage key of the uploaded leaf image.
	// Empty when no storage backend is configured.
	ImageKey string `json:"image_key,omitempty" db:"image_key"`

	// CreatedAt is the timestamp when the prediction was recorded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
