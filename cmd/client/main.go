package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/parley/adapters/device"
	"github.com/satriahrh/parley/internal/client"
	"github.com/satriahrh/parley/internal/config"
	"github.com/satriahrh/parley/internal/transport"
)

// trailingSilence lets the last utterance of a WAV input close
const trailingSilence = time.Second

func main() {
	logger, err := config.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config.Load(logger)
	cfg, err := config.NewClientConfigFromEnv()
	if err != nil {
		logger.Fatal("Invalid environment", zap.Error(err))
	}
	if err := config.ValidateClientConfig(cfg); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := client.Authenticate(ctx, &http.Client{Timeout: 10 * time.Second}, cfg.AuthURL(), cfg.SerialNumber, cfg.SecretKey)
	if err != nil {
		logger.Fatal("Failed to authenticate device", zap.Error(err))
	}
	logger.Info("Device authenticated", zap.String("deviceID", creds.DeviceID))

	source, output, release := openDevices(cfg, logger)
	defer release()

	if cfg.RecordPath != "" {
		recorder, err := device.NewRecorder(output, cfg.RecordPath, logger)
		if err != nil {
			logger.Fatal("Failed to start recording", zap.Error(err))
		}
		output = recorder
	}

	stream, err := transport.DialServer(ctx, cfg.WebSocketURL(), creds.Token)
	if err != nil {
		logger.Fatal("Failed to connect", zap.Error(err))
	}

	sessionCfg := client.DefaultConfig()
	sessionCfg.BargeInFrames = cfg.BargeInFrames
	sessionCfg.Segmenter.SilenceDuration = cfg.Silence

	session := client.NewSession(stream, source, output, sessionCfg, logger)
	go readControls(ctx, session, logger)

	logger.Info("Waiting for a conversation", zap.String("server", cfg.WebSocketURL()))
	if err := session.Run(ctx); err != nil {
		logger.Error("Session failed", zap.Error(err))
		return
	}
	logger.Info("Session ended")
}

// openDevices uses the WAV input with a headless output when configured, the system
// audio device otherwise
func openDevices(cfg config.ClientConfig, logger *zap.Logger) (client.CaptureSource, client.Output, func()) {
	if cfg.WAVInput != "" {
		source, err := device.OpenWAVSource(cfg.WAVInput, true, trailingSilence)
		if err != nil {
			logger.Fatal("Failed to open WAV input", zap.Error(err))
		}
		return source, device.NewClockOutput(cfg.PlaybackRate, nil), func() {}
	}

	backend, err := device.NewAudio(logger)
	if err != nil {
		logger.Fatal("Failed to open audio backend", zap.Error(err))
	}
	mic, err := backend.OpenMicrophone(cfg.CaptureRate, cfg.CaptureChannels)
	if err != nil {
		backend.Close()
		logger.Fatal("Failed to open microphone", zap.Error(err))
	}
	return mic, backend.NewSpeaker(cfg.PlaybackRate), func() {
		mic.Close()
		backend.Close()
	}
}

// readControls maps "pause" and "resume" lines on stdin to session requests
func readControls(ctx context.Context, session *client.Session, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var err error
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "pause", "p":
			err = session.Pause(ctx)
		case "resume", "r":
			err = session.Resume(ctx)
		case "":
			continue
		default:
			logger.Info("Type pause or resume")
			continue
		}
		if err != nil {
			return
		}
	}
}
