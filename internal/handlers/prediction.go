package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/plantscope-ai/apiserver/internal/services"
	"github.com/plantscope-ai/apiserver/internal/store"
	"github.com/plantscope-ai/apiserver/types"
)

const (
	maxMultipartMemory = 16 << 20
	maxImageBytes      = 10 << 20
	formFieldImage     = "image"
)

// PredictionHandler provides HTTP handlers for predictions. All routes
// require authentication; the router mounting this applies the guard.
type PredictionHandler struct {
	predictionService *services.PredictionService
}

func NewPredictionHandler(predictionService *services.PredictionService) *PredictionHandler {
	return &PredictionHandler{predictionService: predictionService}
}

// PredictionRouter registers prediction routes on the given router.
func PredictionRouter(r chi.Router, predictionService *services.PredictionService) {
	handler := NewPredictionHandler(predictionService)

	r.Post("/", handler.CreatePrediction)
	r.Get("/", handler.ListPredictions)
	r.Get("/{predictionID}", handler.GetPrediction)
}

func (h *PredictionHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	filename, contentType, data, err := parseImageUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prediction, err := h.predictionService.Analyze(r.Context(), user.ID, filename, contentType, data)
	if err != nil {
		if errors.Is(err, services.ErrAnalyzerUnavailable) {
			writeError(w, http.StatusBadGateway, "prediction service unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record prediction")
		return
	}

	writeJSON(w, http.StatusCreated, prediction)
}

func (h *PredictionHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.predictionService.List(r.Context(), user.ID, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}

	writeJSON(w, http.StatusOK, PredictionListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "predictionID"))
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid prediction id")
		return
	}

	prediction, err := h.predictionService.Get(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prediction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch prediction")
		return
	}

	writeJSON(w, http.StatusOK, prediction)
}

// PredictionListResponse is the paginated list response payload.
type PredictionListResponse struct {
	Items []types.Prediction `json:"items"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
}

func parseImageUpload(r *http.Request) (filename, contentType string, data []byte, err error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return "", "", nil, errors.New("invalid multipart form")
	}

	files := r.MultipartForm.File[formFieldImage]
	if len(files) == 0 {
		return "", "", nil, errors.New("image file is required")
	}
	if len(files) > 1 {
		return "", "", nil, errors.New("only one image is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return "", "", nil, errors.New("failed to read image")
	}

	data, err = readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return "", "", nil, err
	}

	contentType = http.DetectContentType(data)
	if contentType != "image/jpeg" && contentType != "image/png" {
		return "", "", nil, errors.New("file must be a JPEG or PNG image")
	}

	return fileHeader.Filename, contentType, data, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
