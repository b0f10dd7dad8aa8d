package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/plantscope-ai/apiserver/config"
	"github.com/plantscope-ai/apiserver/internal/chat"
	"github.com/plantscope-ai/apiserver/internal/db"
	"github.com/plantscope-ai/apiserver/internal/handlers"
	"github.com/plantscope-ai/apiserver/internal/ml"
	"github.com/plantscope-ai/apiserver/internal/mq"
	"github.com/plantscope-ai/apiserver/internal/services"
	"github.com/plantscope-ai/apiserver/internal/storage"
	"github.com/plantscope-ai/apiserver/internal/store"
)

const (
	authRateLimitBurst  = 20
	authRateLimitWindow = time.Minute
)

// Server wraps the HTTP server and its long-lived dependencies.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     mq.Publisher
}

// New constructs a Server with all dependencies wired from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	streakRepo := store.NewStreakRepository(dbConn)
	predictionRepo := store.NewPredictionRepository(dbConn)

	userService := services.NewUserService(userRepo)
	streakService := services.NewStreakService(streakRepo)

	var googleVerifier services.GoogleVerifier
	if strings.TrimSpace(cfg.Auth.GoogleClientID) != "" {
		googleVerifier, err = services.NewGoogleVerifier(cfg.Auth.GoogleClientID)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
	} else {
		fmt.Fprintln(os.Stderr, "GOOGLE_CLIENT_ID not set; Google Sign-In disabled")
	}

	images, err := newImageStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	events, err := newEventPublisher(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	mlClient, err := ml.NewClient(cfg.ML.BaseURL, cfg.ML.Timeout)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	predictionService := services.NewPredictionService(predictionRepo, mlClient, images, events)

	providers, err := chatProviders(ctx, cfg.Chat)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	chatService := services.NewChatService(providers, cfg.Chat.Timeout)

	authHandler := handlers.NewAuthHandler(userService, googleVerifier, jwtSecret)
	authMiddleware := handlers.RequireAuth(userService, jwtSecret)
	authLimiter := handlers.RateLimit(authRateLimitBurst, authRateLimitWindow)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(dbConn))
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, authLimiter)
	})
	router.Route("/api/streaks", func(r chi.Router) {
		r.Use(authMiddleware)
		handlers.StreakRouter(r, streakService)
	})
	router.Route("/api/predictions", func(r chi.Router) {
		r.Use(authMiddleware)
		handlers.PredictionRouter(r, predictionService)
	})
	router.Route("/api/chat", func(r chi.Router) {
		r.Use(authMiddleware)
		handlers.ChatRouter(r, chatService)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

func newImageStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	var (
		backend storage.ObjectStorage
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "minio":
		backend, err = storage.NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = storage.NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return backend, nil
}

func newEventPublisher(ctx context.Context, cfg config.MQConfig) (mq.Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "rabbitmq":
		return mq.NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

func chatProviders(ctx context.Context, cfg config.ChatConfig) ([]chat.Provider, error) {
	var providers []chat.Provider

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := chat.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		providers = append(providers, gemini)
	} else {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY not set; chat falls back to the local model only")
	}

	ollama, err := chat.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel)
	if err != nil {
		return nil, err
	}
	providers = append(providers, ollama)

	return providers, nil
}
