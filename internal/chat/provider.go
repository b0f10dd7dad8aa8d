// Package chat provides chat-completion providers for the plant care
// assistant. Providers are tried in order by the chat service; Gemini
// first, then a local Ollama model as fallback.
package chat

import (
	"context"
	"errors"
)

// ErrRateLimited signals that the provider rejected the request for
// quota reasons and a single short-delay retry is worthwhile.
var ErrRateLimited = errors.New("provider rate limited")

// Provider generates a completion for a user message.
type Provider interface {
	Name() string
	Complete(ctx context.Context, message string) (string, error)
}

// systemPrompt frames every provider call. The assistant only answers
// plant care questions.
const systemPrompt = `You are Plant Scope, a friendly plant care assistant for home gardeners.
Answer questions about plant health, watering, light, soil, pests, and diseases.
Keep answers under 150 words, practical, and beginner-friendly.
If the question is not about plants or gardening, politely steer back to plant care.`
