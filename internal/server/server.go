package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/whisperbox/apiserver/config"
	"github.com/whisperbox/apiserver/internal/db"
	"github.com/whisperbox/apiserver/internal/handlers"
	"github.com/whisperbox/apiserver/internal/mail"
	"github.com/whisperbox/apiserver/internal/services"
	"github.com/whisperbox/apiserver/internal/store"
	"github.com/whisperbox/apiserver/internal/suggest"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	client     *mongo.Client
	logger     zerolog.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	client, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(client.Database(cfg.Database.DBName))
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	var sender mail.Sender
	if cfg.SMTP.Host != "" {
		smtpSender, err := mail.NewSMTPSender(cfg.SMTP, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		sender = smtpSender
	} else {
		logger.Warn().Msg("SMTP not configured, verification codes are logged only")
		sender = mail.NewLogSender(logger)
	}

	var suggester suggest.Suggester
	if cfg.Gemini.APIKey != "" {
		geminiSuggester, err := suggest.NewGeminiSuggester(cfg.Gemini)
		if err != nil {
			return nil, err
		}
		suggester = geminiSuggester
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, message suggestions disabled")
		suggester = suggest.Disabled{}
	}

	userService := services.NewUserService(userRepo, sender)
	messageService := services.NewMessageService(userRepo)

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(cfg.CORSOrigin),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, userService, jwtSecret)
	handlers.MessageRouter(router, messageService, authMiddleware)
	handlers.SuggestRouter(router, suggester, logger)

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
		client:     client,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.client != nil {
		_ = s.client.Disconnect(ctx)
	}
	return s.httpServer.Shutdown(ctx)
}

func corsOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if origin := strings.TrimRight(strings.TrimSpace(part), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
