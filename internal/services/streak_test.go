package services

import (
	"context"
	"testing"
	"time"

	"github.com/plantscope-ai/apiserver/internal/store"
	"github.com/plantscope-ai/apiserver/types"
)

type memStreakRepo struct {
	nextID  int
	streaks map[int]types.Streak // keyed by user ID
}

func newMemStreakRepo() *memStreakRepo {
	return &memStreakRepo{streaks: make(map[int]types.Streak)}
}

func (r *memStreakRepo) GetByUserID(_ context.Context, userID int) (types.Streak, error) {
	streak, ok := r.streaks[userID]
	if !ok {
		return types.Streak{}, store.ErrNotFound
	}
	return streak, nil
}

func (r *memStreakRepo) Create(_ context.Context, streak types.Streak) (types.Streak, error) {
	if _, ok := r.streaks[streak.UserID]; ok {
		return types.Streak{}, store.ErrConflict
	}
	r.nextID++
	streak.ID = r.nextID
	r.streaks[streak.UserID] = streak
	return streak, nil
}

func (r *memStreakRepo) Update(_ context.Context, streak types.Streak) (types.Streak, error) {
	for userID, existing := range r.streaks {
		if existing.ID == streak.ID {
			r.streaks[userID] = streak
			return streak, nil
		}
	}
	return types.Streak{}, store.ErrNotFound
}

func newTestStreakService(now time.Time) (*StreakService, *memStreakRepo, *time.Time) {
	repo := newMemStreakRepo()
	svc := NewStreakService(repo)
	current := now
	svc.now = func() time.Time { return current }
	return svc, repo, &current
}

func TestStreakFirstReadCreatesZeroRow(t *testing.T) {
	svc, _, _ := newTestStreakService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	streak, err := svc.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if streak.Count != 0 || streak.Longest != 0 {
		t.Fatalf("unexpected initial streak: %+v", streak)
	}
	if !streak.LastCheckIn.IsZero() {
		t.Fatalf("expected no check-in yet")
	}
}

func TestStreakCheckInIsIdempotentPerDay(t *testing.T) {
	svc, _, _ := newTestStreakService(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	first, err := svc.CheckIn(context.Background(), 1)
	if err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	if first.Count != 1 {
		t.Fatalf("count = %d, want 1", first.Count)
	}

	second, err := svc.CheckIn(context.Background(), 1)
	if err != nil {
		t.Fatalf("second check-in: %v", err)
	}
	if second.Count != 1 || !second.LastCheckIn.Equal(first.LastCheckIn) {
		t.Fatalf("same-day repeat changed the streak: %+v", second)
	}
}

func TestStreakConsecutiveDaysExtendRun(t *testing.T) {
	svc, _, now := newTestStreakService(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	for day := 0; day < 3; day++ {
		*now = time.Date(2026, 3, 10+day, 23, 0, 0, 0, time.UTC)
		if _, err := svc.CheckIn(context.Background(), 1); err != nil {
			t.Fatalf("check-in day %d: %v", day, err)
		}
	}

	streak, err := svc.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if streak.Count != 3 || streak.Longest != 3 {
		t.Fatalf("count/longest = %d/%d, want 3/3", streak.Count, streak.Longest)
	}
}

func TestStreakGapResetsRunKeepsLongest(t *testing.T) {
	svc, _, now := newTestStreakService(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	for day := 0; day < 3; day++ {
		*now = time.Date(2026, 3, 10+day, 8, 0, 0, 0, time.UTC)
		if _, err := svc.CheckIn(context.Background(), 1); err != nil {
			t.Fatalf("check-in: %v", err)
		}
	}

	// Two days of silence, then check in again.
	*now = time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	streak, err := svc.CheckIn(context.Background(), 1)
	if err != nil {
		t.Fatalf("check-in after gap: %v", err)
	}
	if streak.Count != 1 {
		t.Fatalf("count = %d, want 1 after gap", streak.Count)
	}
	if streak.Longest != 3 {
		t.Fatalf("longest = %d, want 3 preserved", streak.Longest)
	}
}

func TestStreakResetPreservesLongest(t *testing.T) {
	svc, _, _ := newTestStreakService(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	if _, err := svc.CheckIn(context.Background(), 1); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	streak, err := svc.Reset(context.Background(), 1)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if streak.Count != 0 || streak.Longest != 1 {
		t.Fatalf("count/longest = %d/%d, want 0/1", streak.Count, streak.Longest)
	}
}
