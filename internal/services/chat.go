package services

import (
	"context"
	"errors"
	"time"

	"github.com/plantscope-ai/apiserver/internal/chat"
)

// ErrNoChatProvider is returned when every configured provider failed.
var ErrNoChatProvider = errors.New("no chat provider available")

const defaultRetryWait = time.Second

// ChatService tries an ordered list of completion providers. Each
// provider call runs under its own timeout, and a rate-limited call is
// retried once after a short wait before moving to the next provider.
type ChatService struct {
	providers []chat.Provider
	timeout   time.Duration
	retryWait time.Duration
}

func NewChatService(providers []chat.Provider, timeout time.Duration) *ChatService {
	return &ChatService{
		providers: providers,
		timeout:   timeout,
		retryWait: defaultRetryWait,
	}
}

// Ask returns the first successful reply along with the name of the
// provider that produced it.
func (s *ChatService) Ask(ctx context.Context, message string) (reply, provider string, err error) {
	for _, p := range s.providers {
		reply, err = s.complete(ctx, p, message)
		if errors.Is(err, chat.ErrRateLimited) {
			if waitErr := s.wait(ctx); waitErr != nil {
				return "", "", waitErr
			}
			reply, err = s.complete(ctx, p, message)
		}
		if err == nil {
			return reply, p.Name(), nil
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
	}
	return "", "", ErrNoChatProvider
}

func (s *ChatService) complete(ctx context.Context, p chat.Provider, message string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return p.Complete(ctx, message)
}

func (s *ChatService) wait(ctx context.Context) error {
	timer := time.NewTimer(s.retryWait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
