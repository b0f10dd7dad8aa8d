package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/plantscope-ai/apiserver/internal/store"
	"github.com/plantscope-ai/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	user.Email = NormalizeEmail(user.Email)
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Update(ctx, user)
}

// GoogleSignIn resolves verified Google claims to a user record:
// an existing account is linked (and its avatar refreshed), a new
// account is created otherwise. Two concurrent first sign-ins race on
// the store's unique indexes; the loser retries the lookup once.
func (s *UserService) GoogleSignIn(ctx context.Context, claims GoogleClaims) (types.User, error) {
	user, err := s.lookupGoogleAccount(ctx, claims)
	if errors.Is(err, store.ErrNotFound) {
		created, createErr := s.repo.Create(ctx, newGoogleUser(claims))
		if createErr == nil {
			return created, nil
		}
		if !errors.Is(createErr, store.ErrConflict) {
			return types.User{}, createErr
		}
		// Lost the create race; the winner's row exists now.
		user, err = s.lookupGoogleAccount(ctx, claims)
	}
	if err != nil {
		return types.User{}, err
	}
	return s.linkGoogleIdentity(ctx, user, claims)
}

func (s *UserService) lookupGoogleAccount(ctx context.Context, claims GoogleClaims) (types.User, error) {
	user, err := s.repo.GetByGoogleID(ctx, claims.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}
	return s.repo.GetByEmail(ctx, NormalizeEmail(claims.Email))
}

func (s *UserService) linkGoogleIdentity(ctx context.Context, user types.User, claims GoogleClaims) (types.User, error) {
	changed := false

	if !user.GoogleID.Valid {
		user.GoogleID = sql.NullString{String: claims.Subject, Valid: true}
		user.Provider = types.AuthProviderGoogle
		changed = true
	}
	if claims.Picture != "" && user.AvatarURL != claims.Picture {
		user.AvatarURL = claims.Picture
		changed = true
	}

	if !changed {
		return user, nil
	}
	return s.repo.Update(ctx, user)
}

func newGoogleUser(claims GoogleClaims) types.User {
	username := strings.TrimSpace(claims.Name)
	if username == "" {
		// Fall back to the local part of the email address.
		username, _, _ = strings.Cut(claims.Email, "@")
	}
	return types.User{
		Username:  username,
		Email:     NormalizeEmail(claims.Email),
		GoogleID:  sql.NullString{String: claims.Subject, Valid: true},
		AvatarURL: claims.Picture,
		Provider:  types.AuthProviderGoogle,
	}
}

// NormalizeEmail trims and lowercases an email address so that
// uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
