package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tobiadeyemi/Resolva/internal/config"
	"github.com/tobiadeyemi/Resolva/internal/core"
	db "github.com/tobiadeyemi/Resolva/internal/core/database"
	"github.com/tobiadeyemi/Resolva/internal/core/llm"
	"github.com/tobiadeyemi/Resolva/internal/core/objectstore"
	"github.com/tobiadeyemi/Resolva/internal/core/ticket"
	"github.com/tobiadeyemi/Resolva/internal/services"
)

// App holds every long-lived component of the service.
type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Server       *Server
	Logger       *zap.Logger
}

// NewApp builds the full dependency graph: storage, model clients,
// services and the HTTP server.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized and ready")

	objClient, err := objectstore.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("object client initialized and ready")

	classifyClient, err := llm.NewGeminiClassifier(appCtx, cfg.AIAPIKey, cfg.ClassifyModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the classifier: %w", err)
	}
	replyClient, err := llm.NewGeminiResponder(appCtx, cfg.AIAPIKey, cfg.ResponseModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the responder: %w", err)
	}
	visionClient, err := llm.NewGeminiVision(appCtx, cfg.AIAPIKey, cfg.VisionModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the vision client: %w", err)
	}
	embedClient, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	var ticketClient core.TicketClient
	if cfg.TicketServiceURL != "" {
		ticketClient = ticket.NewHTTPClient(cfg.TicketServiceURL)
	} else {
		ticketClient = ticket.NewStubClient()
		logger.Info("no ticket service configured, using local ticket ids")
	}

	sessions := services.NewSessionService(dbClient)
	contexts := services.NewContextService(dbClient, cfg.ContextWindow)
	tracker := services.NewSuggestionTracker(dbClient)
	classifier := services.NewClassifierService(dbClient, classifyClient, tracker, cfg.CollabTimeout, logger)
	knowledge := services.NewKnowledgeService(dbClient, embedClient, logger)
	responder := services.NewResponseService(replyClient, knowledge, cfg.CollabTimeout, logger)
	forms := services.NewFormService(dbClient, cfg.FormCooldown)
	usage := services.NewUsageService(dbClient, cfg.Pricing, logger)
	images := services.NewImageService(dbClient, objClient, visionClient, cfg.BucketName, cfg.MaxImageBytes, cfg.CollabTimeout, logger)
	catalog := services.NewCatalogService(dbClient, logger)

	workflow := services.NewWorkflowService(dbClient, sessions, contexts, classifier,
		responder, forms, tracker, usage, images, knowledge, ticketClient, logger)

	server := NewServer(cfg, logger, workflow, sessions, catalog, usage)

	return &App{DBClient: dbClient, ObjectClient: objClient, Server: server, Logger: logger}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
