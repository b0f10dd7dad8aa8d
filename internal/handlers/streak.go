package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/plantscope-ai/apiserver/internal/services"
)

// StreakHandler provides HTTP handlers for streaks. All routes require
// authentication; the router mounting this applies the guard.
type StreakHandler struct {
	streakService *services.StreakService
}

func NewStreakHandler(streakService *services.StreakService) *StreakHandler {
	return &StreakHandler{streakService: streakService}
}

// StreakRouter registers streak routes on the given router.
func StreakRouter(r chi.Router, streakService *services.StreakService) {
	handler := NewStreakHandler(streakService)

	r.Get("/", handler.GetStreak)
	r.Post("/checkin", handler.CheckIn)
	r.Delete("/", handler.ResetStreak)
}

func (h *StreakHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	streak, err := h.streakService.Get(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load streak")
		return
	}

	writeJSON(w, http.StatusOK, streak)
}

func (h *StreakHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	streak, err := h.streakService.CheckIn(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record check-in")
		return
	}

	writeJSON(w, http.StatusOK, streak)
}

func (h *StreakHandler) ResetStreak(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	if _, err := h.streakService.Reset(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset streak")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
