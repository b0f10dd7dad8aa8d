package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/plantscope-ai/apiserver/internal/store"
	"github.com/plantscope-ai/apiserver/types"
)

type memUserRepo struct {
	nextID    int
	users     map[int]types.User
	createErr error // returned once, then cleared
	onCreate  func()
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int]types.User)}
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByGoogleID(_ context.Context, googleID string) (types.User, error) {
	for _, user := range r.users {
		if user.GoogleID.Valid && user.GoogleID.String == googleID {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	if r.onCreate != nil {
		r.onCreate()
	}
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return types.User{}, err
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func TestGoogleSignInLinksExistingLocalAccount(t *testing.T) {
	repo := newMemUserRepo()
	repo.users[1] = types.User{
		ID:           1,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: sql.NullString{String: "hash", Valid: true},
		Provider:     types.AuthProviderLocal,
	}
	repo.nextID = 1
	svc := NewUserService(repo)

	user, err := svc.GoogleSignIn(context.Background(), GoogleClaims{
		Subject: "sub-1",
		Email:   "Alice@Example.com",
		Name:    "Alice",
		Picture: "https://example.com/a.png",
	})
	if err != nil {
		t.Fatalf("google sign-in: %v", err)
	}
	if user.ID != 1 {
		t.Fatalf("linked wrong record: %d", user.ID)
	}
	if !user.GoogleID.Valid || user.GoogleID.String != "sub-1" {
		t.Fatalf("google id not attached: %+v", user.GoogleID)
	}
	if user.Provider != types.AuthProviderGoogle {
		t.Fatalf("provider = %q, want google", user.Provider)
	}
	if !user.PasswordHash.Valid {
		t.Fatalf("password capability must survive linking")
	}
	if user.AvatarURL != "https://example.com/a.png" {
		t.Fatalf("avatar not refreshed: %q", user.AvatarURL)
	}
}

func TestGoogleSignInRetriesLookupAfterCreateRace(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewUserService(repo)

	winner := types.User{
		Username: "dave",
		Email:    "dave@example.com",
		GoogleID: sql.NullString{String: "sub-42", Valid: true},
		Provider: types.AuthProviderGoogle,
	}

	// The concurrent winner inserts its row between our lookup and
	// our create, so our create fails with a unique violation.
	repo.createErr = store.ErrConflict
	repo.onCreate = func() {
		if _, ok := repo.users[1]; !ok {
			repo.nextID++
			winner.ID = repo.nextID
			repo.users[winner.ID] = winner
		}
	}

	user, err := svc.GoogleSignIn(context.Background(), GoogleClaims{
		Subject: "sub-42",
		Email:   "dave@example.com",
		Name:    "Dave",
	})
	if err != nil {
		t.Fatalf("google sign-in after race: %v", err)
	}
	if user.ID != winner.ID {
		t.Fatalf("expected the winner's record, got %d", user.ID)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected exactly one record, have %d", len(repo.users))
	}
}

func TestGoogleSignInUsernameFallsBackToLocalPart(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewUserService(repo)

	user, err := svc.GoogleSignIn(context.Background(), GoogleClaims{
		Subject: "sub-7",
		Email:   "plantfan@example.com",
	})
	if err != nil {
		t.Fatalf("google sign-in: %v", err)
	}
	if user.Username != "plantfan" {
		t.Fatalf("username = %q, want plantfan", user.Username)
	}
}

func TestGoogleSignInSecondLoginIsStable(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewUserService(repo)
	claims := GoogleClaims{Subject: "sub-9", Email: "erin@example.com", Name: "Erin"}

	first, err := svc.GoogleSignIn(context.Background(), claims)
	if err != nil {
		t.Fatalf("first sign-in: %v", err)
	}
	second, err := svc.GoogleSignIn(context.Background(), claims)
	if err != nil {
		t.Fatalf("second sign-in: %v", err)
	}
	if first.ID != second.ID || len(repo.users) != 1 {
		t.Fatalf("second sign-in did not reuse the record")
	}
}
