package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/parley/adapters/llm"
	"github.com/satriahrh/parley/domain/repositories"
	"github.com/satriahrh/parley/internal/config"
	"github.com/satriahrh/parley/internal/protocol"
	"github.com/satriahrh/parley/usecase"
)

func main() {
	logger, err := config.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config.Load(logger)
	cfg, err := config.NewOrchestratorConfigFromEnv()
	if err != nil {
		logger.Fatal("Invalid environment", zap.Error(err))
	}
	if err := config.ValidateOrchestratorConfig(cfg); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator := newGenerator(ctx, cfg, logger)
	chat := usecase.NewChatService(generator, cfg.Persona, logger)
	conversation := usecase.NewConversationService(chat, logger)

	stream, err := usecase.Dial(ctx, cfg.ServerAddr)
	if err != nil {
		logger.Fatal("Failed to connect to server", zap.Error(err))
	}

	logger.Info("Orchestrator started",
		zap.String("sessionID", cfg.SessionID),
		zap.String("server", cfg.ServerAddr),
		zap.String("generator", cfg.Generator))

	err = conversation.Run(ctx, stream, protocol.SessionConfig{
		SessionID: cfg.SessionID,
		Language:  cfg.Language,
		Voice:     cfg.Voice,
		Persona:   cfg.Persona,
		MaxTurns:  cfg.MaxTurns,
	})
	if err != nil {
		logger.Fatal("Conversation failed", zap.Error(err))
	}
	logger.Info("Orchestrator exited", zap.Int("turns", chat.Turns()))
}

func newGenerator(ctx context.Context, cfg config.OrchestratorConfig, logger *zap.Logger) repositories.TextGenerator {
	policy := llm.DefaultRetryPolicy()
	switch cfg.Generator {
	case config.BackendGemini:
		generator, err := llm.NewGeminiGenerator(ctx, llm.NewGeminiConfigFromEnv(), policy, logger)
		if err != nil {
			logger.Fatal("Failed to create Gemini generator", zap.Error(err))
		}
		return generator
	case config.BackendCommand:
		generator, err := llm.NewCommandGenerator(llm.NewCommandConfigFromEnv(), policy, logger)
		if err != nil {
			logger.Fatal("Failed to create command generator", zap.Error(err))
		}
		return generator
	default:
		return llm.NewMockGenerator(logger)
	}
}
