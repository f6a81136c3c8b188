package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlscout/sqlscout/internal/agent"
	"github.com/sqlscout/sqlscout/internal/api"
	"github.com/sqlscout/sqlscout/internal/auth"
	"github.com/sqlscout/sqlscout/internal/chat"
	"github.com/sqlscout/sqlscout/internal/config"
	"github.com/sqlscout/sqlscout/internal/database"
	"github.com/sqlscout/sqlscout/internal/export"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
	s3store "github.com/sqlscout/sqlscout/internal/storage/s3"
	"github.com/sqlscout/sqlscout/internal/viz"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlscout-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	db, err := database.Open(context.Background(), database.OpenConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	introspector := database.NewIntrospector(db, cfg.Database.Driver)
	executor := database.NewExecutor(db, cfg.Database.MaxRows, cfg.Database.QueryTimeout)

	candidates := make([]llm.Candidate, 0, len(cfg.Models.CandidateIDs()))
	for _, modelID := range cfg.Models.CandidateIDs() {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:     cfg.Models.BaseURL,
			APIKey:      cfg.Models.APIKey,
			Model:       modelID,
			Temperature: cfg.Models.Temperature,
			Timeout:     cfg.Models.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize model client", slog.String("model", modelID), slog.Any("error", err))
			os.Exit(1)
		}
		candidates = append(candidates, llm.Candidate{ID: modelID, Client: client})
	}
	gateway, err := llm.NewGateway(candidates, logger)
	if err != nil {
		logger.Error("failed to initialize model gateway", slog.Any("error", err))
		os.Exit(1)
	}

	queryAgent, err := agent.New(agent.Config{
		Gateway:      gateway,
		Executor:     executor,
		Schema:       introspector,
		SampleRows:   cfg.Database.SampleRows,
		ContextTurns: cfg.Chat.ContextTurns,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to initialize query agent", slog.Any("error", err))
		os.Exit(1)
	}

	var advisor viz.Completer
	if cfg.Viz.AdvisorEnabled {
		advisor = gateway
	}
	selector := viz.NewSelector(advisor, cfg.Viz.MaxPoints, logger)

	conversation, err := chat.NewConversation(chat.Config{
		Answerer:     queryAgent,
		Selector:     selector,
		Logger:       logger,
		HistoryLimit: cfg.Chat.HistoryLimit,
		ContextTurns: cfg.Chat.ContextTurns,
	})
	if err != nil {
		logger.Error("failed to initialize conversation", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:       logger,
		Conversation: conversation,
		Schema:       introspector,
		Readiness: api.CombineReadinessChecks(
			func(ctx context.Context) error { return db.PingContext(ctx) },
			api.CheckModelConfig(cfg),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}

	if cfg.Export.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		exporter, err := export.NewExporter(objectStore, cfg.Export.Prefix, logger)
		if err != nil {
			logger.Error("failed to initialize exporter", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Exporter = exporter
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("driver", cfg.Database.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
