package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/parley/adapters"
	"github.com/satriahrh/parley/adapters/mongo"
	"github.com/satriahrh/parley/adapters/speech"
	"github.com/satriahrh/parley/adapters/stt"
	"github.com/satriahrh/parley/adapters/tts"
	"github.com/satriahrh/parley/domain/repositories"
	"github.com/satriahrh/parley/internal/api"
	"github.com/satriahrh/parley/internal/auth"
	"github.com/satriahrh/parley/internal/config"
	"github.com/satriahrh/parley/internal/websocket"
)

func main() {
	// Initialize logger
	logger, err := config.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config.Load(logger)
	cfg, err := config.NewServerConfigFromEnv()
	if err != nil {
		logger.Fatal("Invalid environment", zap.Error(err))
	}
	if err := config.ValidateServerConfig(cfg); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	deviceRepo := adapters.NewMemoryDeviceRepository()
	if err := deviceRepo.Seed(ctx, cfg.Devices); err != nil {
		logger.Fatal("Failed to register devices", zap.Error(err))
	}
	authenticator, err := auth.NewAuthenticator(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to create authenticator", zap.Error(err))
	}

	history, closeHistory := newSessionHistory(ctx, cfg, logger)
	defer closeHistory()

	speechToText, closeSTT := newSpeechToText(ctx, cfg, logger)
	defer closeSTT()
	textToSpeech := newTextToSpeech(cfg, logger)

	// Initialize the hub and its orchestrator listener
	hub := websocket.NewHub(speechToText, textToSpeech, websocket.Config{PairTimeout: cfg.PairTimeout, History: history}, logger)
	go hub.Run(ctx)

	ln, err := net.Listen("tcp", cfg.OrchestratorAddr)
	if err != nil {
		logger.Fatal("Failed to listen for orchestrators", zap.String("addr", cfg.OrchestratorAddr), zap.Error(err))
	}
	go func() {
		if err := hub.Serve(ctx, ln); err != nil {
			logger.Error("Orchestrator listener stopped", zap.Error(err))
			stop()
		}
	}()

	cleanup := websocket.NewSessionCleanupService(hub, cfg.PairTimeout, logger)
	cleanup.Start()
	defer cleanup.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	api.InitRoutes(e, hub, deviceRepo, history, authenticator, logger)

	go func() {
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	logger.Info("Server started",
		zap.String("addr", cfg.Addr),
		zap.String("orchestratorAddr", cfg.OrchestratorAddr),
		zap.String("stt", cfg.STTBackend),
		zap.String("tts", cfg.TTSBackend))

	<-ctx.Done()
	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	hub.Wait()

	logger.Info("Server exited")
}

func newSessionHistory(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger) (repositories.SessionRepository, func()) {
	if cfg.MongoURI == "" {
		return adapters.NewMemorySessionRepository(), func() {}
	}
	client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	repo := mongo.NewSessionRepository(client.Database)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Session history index not created", zap.Error(err))
	}
	return repo, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(ctx)
	}
}

func newSpeechToText(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger) (repositories.SpeechToText, func()) {
	if cfg.STTBackend != config.BackendGoogle {
		return speech.NewMockSpeechToText(logger), func() {}
	}
	client, err := stt.NewGoogleSpeechToText(ctx, cfg.Language, logger)
	if err != nil {
		logger.Fatal("Failed to create Google speech client", zap.Error(err))
	}
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close speech client", zap.Error(err))
		}
	}
}

func newTextToSpeech(cfg config.ServerConfig, logger *zap.Logger) repositories.TextToSpeech {
	if cfg.TTSBackend != config.BackendElevenLabs {
		return speech.NewMockTextToSpeech(logger)
	}
	client, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to create ElevenLabs client", zap.Error(err))
	}
	return client
}
