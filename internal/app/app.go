package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/docchat/internal/config"
	"github.com/markdave123-py/docchat/internal/core"
	"github.com/markdave123-py/docchat/internal/core/audit"
	db "github.com/markdave123-py/docchat/internal/core/database"
	"github.com/markdave123-py/docchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/docchat/internal/core/llm"
	objectclient "github.com/markdave123-py/docchat/internal/core/object-client"
	"github.com/markdave123-py/docchat/internal/core/session"
	"github.com/markdave123-py/docchat/internal/services"
)

type App struct {
	DBClient  *db.DatabaseClient
	LLM       *llm.GeminiLLM
	Audit     *audit.Dispatcher
	QAService *services.QAService
	Server    *Server

	logger *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a := &App{logger: logger}

	llmProvider, err := llm.NewGeminiLLM(appCtx, llm.GeminiConfig{
		APIKey:       cfg.AIAPIKey,
		ModelName:    cfg.GenModel,
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.LLMTemperature,
		Timeout:      cfg.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the model, %w", err)
	}
	a.LLM = llmProvider
	logger.Info("gemini model ready", zap.String("model", cfg.GenModel))

	var sinks []core.AuditSink
	if cfg.AuditWebhookURL != "" {
		sinks = append(sinks, audit.NewWebhookSink(cfg.AuditWebhookURL, &http.Client{Timeout: cfg.AuditTimeout}))
		logger.Info("audit webhook enabled")
	}
	if cfg.DatabaseURL != "" {
		dbClient, err := db.NewDatabaseClient(appCtx, cfg)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.DBClient = dbClient
		sinks = append(sinks, dbClient)
		logger.Info("database initialized and ready")
	}

	a.Audit = audit.NewDispatcher(audit.Config{QueueSize: cfg.AuditQueueSize, Timeout: cfg.AuditTimeout}, logger, sinks...)
	if err := a.Audit.Start(context.WithoutCancel(ctx)); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("start audit dispatcher: %w", err)
	}

	var archive core.DocumentArchive
	if cfg.ArchiveEnabled() {
		objClient, err := objectclient.NewS3Client(appCtx, cfg, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		archive = services.NewDocumentService(objClient, cfg.BucketName)
	}

	extractor := ingestion_engine.NewDocumentExtractor(&ingestion_engine.ExtractConfig{MaxPages: cfg.MaxPages}, nil, nil, logger)
	store := session.NewStore(session.Config{TTL: cfg.SessionTTL, MaxSessions: cfg.SessionMax}, logger)

	a.QAService = services.NewQAService(extractor, llmProvider, store, a.Audit, archive, logger)
	a.Server = NewServer(cfg, a.QAService, logger)
	return a, nil
}

// Close drains background work and releases clients. Call after the server has stopped.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.QAService != nil {
		if err := a.QAService.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("archive uploads: %w", err))
		}
	}
	if a.Audit != nil {
		if err := a.Audit.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DBClient != nil {
		errs = append(errs, a.DBClient.Close())
	}
	if a.LLM != nil {
		errs = append(errs, a.LLM.Close())
	}
	return errors.Join(errs...)
}
