package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/plantscope-ai/apiserver/internal/services"
	"github.com/plantscope-ai/apiserver/internal/store"
	"github.com/plantscope-ai/apiserver/types"
)

const testJWTSecret = "test-secret"

// fakeUserRepo is an in-memory services.UserRepository with the same
// uniqueness semantics as the Postgres store.
type fakeUserRepo struct {
	mu      sync.Mutex
	nextID  int
	users   map[int]types.User
	creates int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User)}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByGoogleID(_ context.Context, googleID string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.GoogleID.Valid && user.GoogleID.String == googleID {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
		if user.GoogleID.Valid && existing.GoogleID.Valid && existing.GoogleID.String == user.GoogleID.String {
			return types.User{}, store.ErrConflict
		}
	}
	r.nextID++
	user.ID = r.nextID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) delete(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// fakeGoogleVerifier returns canned claims or a fixed error.
type fakeGoogleVerifier struct {
	claims services.GoogleClaims
	err    error
}

func (v *fakeGoogleVerifier) Verify(context.Context, string) (services.GoogleClaims, error) {
	if v.err != nil {
		return services.GoogleClaims{}, v.err
	}
	return v.claims, nil
}

func newAuthRouter(repo *fakeUserRepo, google services.GoogleVerifier) *chi.Mux {
	handler := NewAuthHandler(services.NewUserService(repo), google, testJWTSecret)
	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, handler, nil)
	})
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeAuthResponse(t *testing.T, rec *httptest.ResponseRecorder) AuthResponse {
	t.Helper()
	var resp AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp
}

func TestSignupLoginRoundTrip(t *testing.T) {
	repo := newFakeUserRepo()
	router := newAuthRouter(repo, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	signup := decodeAuthResponse(t, rec)
	if signup.User.ID == 0 {
		t.Fatalf("expected user ID to be set")
	}

	claims, err := parseToken(signup.Token, []byte(testJWTSecret))
	if err != nil {
		t.Fatalf("parse signup token: %v", err)
	}
	if claims.Subject != fmt.Sprint(signup.User.ID) {
		t.Fatalf("token subject = %q, want %q", claims.Subject, fmt.Sprint(signup.User.ID))
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("token email = %q", claims.Email)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password login status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgInvalidCredentials) {
		t.Fatalf("unexpected wrong password body: %s", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "secret1",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	login := decodeAuthResponse(t, rec)
	if login.User.ID != signup.User.ID {
		t.Fatalf("login user ID = %d, want %d", login.User.ID, signup.User.ID)
	}
}

func TestSignupShortPasswordNeverReachesStore(t *testing.T) {
	repo := newFakeUserRepo()
	router := newAuthRouter(repo, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", SignupRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "short",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if repo.creates != 0 {
		t.Fatalf("store create called %d times, want 0", repo.creates)
	}
}

func TestSignupMissingFields(t *testing.T) {
	router := newAuthRouter(newFakeUserRepo(), nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", SignupRequest{
		Email:    "bob@example.com",
		Password: "secret1",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSignupDuplicateEmailCaseInsensitive(t *testing.T) {
	router := newAuthRouter(newFakeUserRepo(), nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first signup status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/auth/signup", SignupRequest{
		Username: "alice2",
		Email:    "Alice@Example.COM",
		Password: "secret2",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginEnumerationResistance(t *testing.T) {
	router := newAuthRouter(newFakeUserRepo(), nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d", rec.Code)
	}

	wrongPassword := doJSON(t, router, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	}, nil)
	unknownEmail := doJSON(t, router, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	}, nil)

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d/%d, want 401/401", wrongPassword.Code, unknownEmail.Code)
	}
	if !bytes.Equal(wrongPassword.Body.Bytes(), unknownEmail.Body.Bytes()) {
		t.Fatalf("error bodies differ: %q vs %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestLoginGoogleOnlyAccount(t *testing.T) {
	repo := newFakeUserRepo()
	if _, err := repo.Create(context.Background(), types.User{
		Username: "carol",
		Email:    "carol@example.com",
		GoogleID: sql.NullString{String: "google-sub-1", Valid: true},
		Provider: types.AuthProviderGoogle,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	router := newAuthRouter(repo, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", LoginRequest{
		Email:    "carol@example.com",
		Password: "anything",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgGoogleOnlyAccount) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestGuardRejectsWrongScheme(t *testing.T) {
	router := newAuthRouter(newFakeUserRepo(), nil)

	header := http.Header{}
	header.Set("Authorization", "Token abc")
	rec := doJSON(t, router, http.MethodGet, "/api/auth/me", nil, header)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No token provided") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestGuardDistinguishesExpiredAndInvalid(t *testing.T) {
	repo := newFakeUserRepo()
	user, err := repo.Create(context.Background(), types.User{
		Username: "alice",
		Email:    "alice@example.com",
		Provider: types.AuthProviderLocal,
		PasswordHash: sql.NullString{
			String: "unused",
			Valid:  true,
		},
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	router := newAuthRouter(repo, nil)

	expired, err := issueToken(user, []byte(testJWTSecret), -time.Second)
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+expired)
	rec := doJSON(t, router, http.MethodGet, "/api/auth/me", nil, header)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Token expired") {
		t.Fatalf("expired token: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	header.Set("Authorization", "Bearer not-a-token")
	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", nil, header)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Invalid token") {
		t.Fatalf("invalid token: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestTokenValidBeforeExpiry(t *testing.T) {
	user := types.User{ID: 7, Email: "alice@example.com"}

	token, err := issueToken(user, []byte(testJWTSecret), time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	claims, err := parseToken(token, []byte(testJWTSecret))
	if err != nil {
		t.Fatalf("parse token before expiry: %v", err)
	}
	if claims.Subject != "7" {
		t.Fatalf("subject = %q, want 7", claims.Subject)
	}

	if _, err := parseToken(token, []byte("other-secret")); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}
}

func TestGuardRejectsDeletedUser(t *testing.T) {
	repo := newFakeUserRepo()
	router := newAuthRouter(repo, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d", rec.Code)
	}
	resp := decodeAuthResponse(t, rec)

	repo.delete(resp.User.ID)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+resp.Token)
	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", nil, header)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "User not found") {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestMeReturnsUserWithoutHash(t *testing.T) {
	repo := newFakeUserRepo()
	router := newAuthRouter(repo, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret1",
	}, nil)
	resp := decodeAuthResponse(t, rec)

	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("signup response leaks password material: %s", rec.Body.String())
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+resp.Token)
	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", nil, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d: %s", rec.Code, rec.Body.String())
	}

	var me MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if me.User.ID != resp.User.ID || me.User.Email != "alice@example.com" {
		t.Fatalf("unexpected me payload: %+v", me.User)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("me response leaks password material: %s", rec.Body.String())
	}
}

func TestGoogleMissingCredential(t *testing.T) {
	router := newAuthRouter(newFakeUserRepo(), &fakeGoogleVerifier{})

	rec := doJSON(t, router, http.MethodPost, "/api/auth/google", GoogleRequest{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGoogleNotConfigured(t *testing.T) {
	router := newAuthRouter(newFakeUserRepo(), nil)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/google", GoogleRequest{Credential: "some-token"}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestGoogleVerificationFailure(t *testing.T) {
	verifier := &fakeGoogleVerifier{err: errors.New("bad audience")}
	router := newAuthRouter(newFakeUserRepo(), verifier)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/google", GoogleRequest{Credential: "some-token"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGoogleSignInCreatesOnceAndReuses(t *testing.T) {
	repo := newFakeUserRepo()
	verifier := &fakeGoogleVerifier{claims: services.GoogleClaims{
		Subject: "google-sub-42",
		Email:   "dave@example.com",
		Name:    "Dave",
		Picture: "https://example.com/dave.png",
	}}
	router := newAuthRouter(repo, verifier)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/google", GoogleRequest{Credential: "tok"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first google login status = %d: %s", rec.Code, rec.Body.String())
	}
	first := decodeAuthResponse(t, rec)
	if first.User.Username != "Dave" {
		t.Fatalf("username = %q, want Dave", first.User.Username)
	}

	// Same subject, different email: must reuse the original record.
	verifier.claims.Email = "dave-new@example.com"
	rec = doJSON(t, router, http.MethodPost, "/api/auth/google", GoogleRequest{Credential: "tok"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second google login status = %d: %s", rec.Code, rec.Body.String())
	}
	second := decodeAuthResponse(t, rec)
	if second.User.ID != first.User.ID {
		t.Fatalf("second login created a new record: %d vs %d", second.User.ID, first.User.ID)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected exactly one record, have %d", len(repo.users))
	}
}
