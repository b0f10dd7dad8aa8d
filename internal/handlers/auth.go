package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/plantscope-ai/apiserver/internal/services"
	"github.com/plantscope-ai/apiserver/internal/store"
	"github.com/plantscope-ai/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// Tokens are valid for 7 days from issuance; there is no server-side
// revocation list.
const defaultTokenTTL = 7 * 24 * time.Hour

const (
	passwordHashCost  = 12
	minPasswordLength = 6
	minUsernameLength = 2
	maxUsernameLength = 50
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgGoogleOnlyAccount  = "This account uses Google Sign-In. Please log in with Google."
)

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	userService *services.UserService
	google      services.GoogleVerifier
	secret      []byte
	tokenTTL    time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided
// dependencies. google may be nil when no client ID is configured;
// the Google endpoint then reports the missing configuration.
func NewAuthHandler(userService *services.UserService, google services.GoogleVerifier, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		google:      google,
		secret:      []byte(jwtSecret),
		tokenTTL:    defaultTokenTTL,
	}
}

// AuthRouter registers auth routes on the given router. The limiter,
// when non-nil, throttles the credential endpoints but not /me.
func AuthRouter(r chi.Router, handler *AuthHandler, limiter func(http.Handler) http.Handler) {
	if limiter != nil {
		r.With(limiter).Post("/signup", handler.Signup)
		r.With(limiter).Post("/login", handler.Login)
		r.With(limiter).Post("/google", handler.Google)
	} else {
		r.Post("/signup", handler.Signup)
		r.Post("/login", handler.Login)
		r.Post("/google", handler.Google)
	}
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces JWT authentication and injects the resolved
// user into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return requireAuth(h.userService, h.secret)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(userService *services.UserService, jwtSecret string) func(http.Handler) http.Handler {
	return requireAuth(userService, []byte(jwtSecret))
}

func requireAuth(userService *services.UserService, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "No token provided")
				return
			}

			claims, err := parseToken(tokenString, secret)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeError(w, http.StatusUnauthorized, "Token expired")
					return
				}
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, err := strconv.Atoi(claims.Subject)
			if err != nil || userID < 1 {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "User not found")
					return
				}
				writeError(w, http.StatusInternalServerError, "Failed to load user")
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Signup creates a new local account and returns a JWT.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = services.NormalizeEmail(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if n := utf8.RuneCountInString(req.Username); n < minUsernameLength || n > maxUsernameLength {
		writeError(w, http.StatusBadRequest, "Username must be 2-50 characters")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	if _, err := h.userService.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check email")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordHashCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: sql.NullString{String: string(hashed), Valid: true},
		Provider:     types.AuthProviderLocal,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := issueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login verifies email+password credentials and returns a JWT.
// Unknown emails and wrong passwords produce identical responses.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	req.Email = services.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to authenticate")
		return
	}

	if !user.PasswordHash.Valid {
		// Google-only account; there is no password to compare.
		writeError(w, http.StatusUnauthorized, msgGoogleOnlyAccount)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	token, err := issueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Google verifies a Google ID token, links or creates the account, and
// returns a JWT. Verification and lookup failures are both reported as
// a generic 401.
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req GoogleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	if strings.TrimSpace(req.Credential) == "" {
		writeError(w, http.StatusBadRequest, "Google credential is required")
		return
	}

	if h.google == nil {
		writeError(w, http.StatusInternalServerError, "Google Sign-In is not configured")
		return
	}

	claims, err := h.google.Verify(r.Context(), req.Credential)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Google verification failed")
		return
	}

	user, err := h.userService.GoogleSignIn(r.Context(), claims)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Google verification failed")
		return
	}

	token, err := issueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: user})
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleRequest struct {
	Credential string `json:"credential"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type MeResponse struct {
	User types.User `json:"user"`
}

// sessionClaims is the JWT payload: subject id and email plus the
// registered time claims.
type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func issueToken(user types.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseToken(tokenString string, secret []byte) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("missing subject")
	}
	return claims, nil
}

// bearerToken extracts the token from an exact "Bearer <token>"
// Authorization header. Any other scheme is rejected.
func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
