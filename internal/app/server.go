package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tobiadeyemi/Resolva/internal/api/handlers"
	appMiddleware "github.com/tobiadeyemi/Resolva/internal/api/middlewares"
	"github.com/tobiadeyemi/Resolva/internal/config"
	"github.com/tobiadeyemi/Resolva/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	workflow *services.WorkflowService,
	sessions *services.SessionService,
	catalog *services.CatalogService,
	usage *services.UsageService,
) *Server {
	assistantHandler := handlers.NewAssistantHandler(workflow)
	sessionHandler := handlers.NewSessionHandler(sessions)
	catalogHandler := handlers.NewCatalogHandler(catalog)
	authHandler := handlers.NewAuthHandler(cfg)
	metricsHandler := handlers.NewMetricsHandler(usage)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/assistant/message", assistantHandler.SubmitMessage)
		api.Get("/sessions", sessionHandler.ListSessions)
		api.Get("/sessions/{session_id}", sessionHandler.GetSession)
		api.Get("/sessions/{session_id}/history", sessionHandler.GetHistory)
		api.Post("/sessions/{session_id}/feedback", sessionHandler.SubmitFeedback)
		api.Post("/sessions/{session_id}/messages/{message_id}/helpful", sessionHandler.MarkMessageHelpful)
		api.Get("/catalog", catalogHandler.GetCatalog)
		api.Post("/admin/login", authHandler.Login)

		// admin endpoints
		api.Group(func(admin chi.Router) {
			admin.Use(appMiddleware.AdminJWT(cfg.JWTSecret))
			admin.Post("/admin/catalog/import", catalogHandler.ImportCatalog)
			admin.Get("/admin/metrics/usage", metricsHandler.GetUsage)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
