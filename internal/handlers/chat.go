package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/plantscope-ai/apiserver/internal/services"
)

// ChatHandler provides the plant care assistant endpoint. The route
// requires authentication; the router mounting this applies the guard.
type ChatHandler struct {
	chatService *services.ChatService
}

func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRouter registers chat routes on the given router.
func ChatRouter(r chi.Router, chatService *services.ChatService) {
	handler := NewChatHandler(chatService)

	r.Post("/", handler.Chat)
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply, provider, err := h.chatService.Ask(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, services.ErrNoChatProvider) {
			writeError(w, http.StatusBadGateway, "chat service unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to generate reply")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply, Provider: provider})
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
}
