package services

import (
	"context"
	"errors"
	"time"

	"github.com/plantscope-ai/apiserver/internal/store"
	"github.com/plantscope-ai/apiserver/types"
)

// StreakRepository defines persistence operations for streaks.
type StreakRepository interface {
	GetByUserID(ctx context.Context, userID int) (types.Streak, error)
	Create(ctx context.Context, streak types.Streak) (types.Streak, error)
	Update(ctx context.Context, streak types.Streak) (types.Streak, error)
}

// StreakService encapsulates streak use-cases. Check-ins are evaluated
// against calendar days in UTC.
type StreakService struct {
	repo StreakRepository
	now  func() time.Time
}

func NewStreakService(repo StreakRepository) *StreakService {
	return &StreakService{
		repo: repo,
		now:  time.Now,
	}
}

// Get returns the user's streak, creating a zero row on first read.
func (s *StreakService) Get(ctx context.Context, userID int) (types.Streak, error) {
	return s.getOrCreate(ctx, userID)
}

// CheckIn records today's check-in. A repeat on the same calendar day
// is a no-op; a consecutive-day check-in extends the run; a gap starts
// a new run of 1.
func (s *StreakService) CheckIn(ctx context.Context, userID int) (types.Streak, error) {
	streak, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return types.Streak{}, err
	}

	now := s.now().UTC()
	today := dateOf(now)

	if !streak.LastCheckIn.IsZero() {
		last := dateOf(streak.LastCheckIn.UTC())
		switch {
		case last.Equal(today):
			return streak, nil
		case last.Equal(today.AddDate(0, 0, -1)):
			streak.Count++
		default:
			streak.Count = 1
		}
	} else {
		streak.Count = 1
	}

	if streak.Count > streak.Longest {
		streak.Longest = streak.Count
	}
	streak.LastCheckIn = now

	return s.repo.Update(ctx, streak)
}

// Reset clears the current run. The longest run is preserved.
func (s *StreakService) Reset(ctx context.Context, userID int) (types.Streak, error) {
	streak, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return types.Streak{}, err
	}
	if streak.Count == 0 {
		return streak, nil
	}
	streak.Count = 0
	return s.repo.Update(ctx, streak)
}

func (s *StreakService) getOrCreate(ctx context.Context, userID int) (types.Streak, error) {
	streak, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return streak, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Streak{}, err
	}

	created, err := s.repo.Create(ctx, types.Streak{UserID: userID})
	if errors.Is(err, store.ErrConflict) {
		// Another request created the row concurrently.
		return s.repo.GetByUserID(ctx, userID)
	}
	return created, err
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
