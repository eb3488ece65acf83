// Package config reads the environment of the three binaries. Each reads an optional
// .env file first, then its own variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Load reads .env files into the environment. Variables already set win.
func Load(logger *zap.Logger, filenames ...string) {
	if err := godotenv.Load(filenames...); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}
}

// NewLogger builds the production logger, or the development one when LOG_LEVEL=debug
func NewLogger() (*zap.Logger, error) {
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

const (
	BackendMock       = "mock"
	BackendGoogle     = "google"
	BackendElevenLabs = "elevenlabs"
	BackendGemini     = "gemini"
	BackendCommand    = "command"
)

// ServerConfig configures cmd/server
type ServerConfig struct {
	Addr             string
	OrchestratorAddr string
	JWTSecret        string
	TokenTTL         time.Duration

	// Devices maps serial numbers to shared secrets
	Devices map[string]string

	PairTimeout time.Duration
	STTBackend  string
	TTSBackend  string

	// Language is the recognition language of the Google backend
	Language string

	// MongoURI stores session history in MongoDB when set, in memory otherwise
	MongoURI      string
	MongoDatabase string
}

// NewServerConfigFromEnv reads ADDR, ORCHESTRATOR_ADDR, JWT_SECRET, JWT_TTL, DEVICES,
// PAIR_TIMEOUT, STT_BACKEND, TTS_BACKEND, LANGUAGE, MONGODB_URI and MONGODB_DATABASE
func NewServerConfigFromEnv() (ServerConfig, error) {
	var errs []error
	config := ServerConfig{
		Addr:             envString("ADDR", ":8080"),
		OrchestratorAddr: envString("ORCHESTRATOR_ADDR", "127.0.0.1:9000"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		TokenTTL:         envDuration("JWT_TTL", 24*time.Hour, &errs),
		PairTimeout:      envDuration("PAIR_TIMEOUT", 30*time.Second, &errs),
		STTBackend:       envString("STT_BACKEND", BackendMock),
		TTSBackend:       envString("TTS_BACKEND", BackendMock),
		Language:         envString("LANGUAGE", "en-US"),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDatabase:    envString("MONGODB_DATABASE", "parley"),
	}

	devices, err := ParseDevices(os.Getenv("DEVICES"))
	if err != nil {
		errs = append(errs, err)
	}
	config.Devices = devices

	return config, errors.Join(errs...)
}

// ValidateServerConfig validates the server configuration
func ValidateServerConfig(config ServerConfig) error {
	if config.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(config.Devices) == 0 {
		return errors.New("DEVICES must list at least one serial:secret pair")
	}
	if config.OrchestratorAddr == "" {
		return errors.New("ORCHESTRATOR_ADDR is required")
	}
	if config.PairTimeout <= 0 {
		return errors.New("PAIR_TIMEOUT must be positive")
	}
	switch config.STTBackend {
	case BackendMock, BackendGoogle:
	default:
		return fmt.Errorf("unknown STT_BACKEND %q", config.STTBackend)
	}
	switch config.TTSBackend {
	case BackendMock, BackendElevenLabs:
	default:
		return fmt.Errorf("unknown TTS_BACKEND %q", config.TTSBackend)
	}
	return nil
}

// ParseDevices parses "serial:secret,serial:secret"
func ParseDevices(s string) (map[string]string, error) {
	devices := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		serial, secret, ok := strings.Cut(pair, ":")
		if !ok || serial == "" || secret == "" {
			return nil, fmt.Errorf("invalid device entry %q, expected serial:secret", pair)
		}
		if _, dup := devices[serial]; dup {
			return nil, fmt.Errorf("device %q listed twice", serial)
		}
		devices[serial] = secret
	}
	return devices, nil
}

// ClientConfig configures cmd/client
type ClientConfig struct {
	ServerURL    string
	SerialNumber string
	SecretKey    string

	BargeInFrames int
	Silence       time.Duration

	// WAVInput replaces the microphone with a file when set
	WAVInput string

	// RecordPath records played audio to a WAV file when set
	RecordPath string

	CaptureRate     int
	CaptureChannels int
	PlaybackRate    int
}

// NewClientConfigFromEnv reads SERVER_URL, DEVICE_SERIAL, DEVICE_SECRET, BARGE_IN_FRAMES,
// SILENCE_MS, WAV_INPUT, RECORD_PATH, CAPTURE_RATE, CAPTURE_CHANNELS and PLAYBACK_RATE
func NewClientConfigFromEnv() (ClientConfig, error) {
	var errs []error
	config := ClientConfig{
		ServerURL:       envString("SERVER_URL", "http://localhost:8080"),
		SerialNumber:    os.Getenv("DEVICE_SERIAL"),
		SecretKey:       os.Getenv("DEVICE_SECRET"),
		BargeInFrames:   envInt("BARGE_IN_FRAMES", 3, &errs),
		Silence:         time.Duration(envInt("SILENCE_MS", 500, &errs)) * time.Millisecond,
		WAVInput:        os.Getenv("WAV_INPUT"),
		RecordPath:      os.Getenv("RECORD_PATH"),
		CaptureRate:     envInt("CAPTURE_RATE", 16000, &errs),
		CaptureChannels: envInt("CAPTURE_CHANNELS", 1, &errs),
		PlaybackRate:    envInt("PLAYBACK_RATE", 16000, &errs),
	}
	return config, errors.Join(errs...)
}

// ValidateClientConfig validates the client configuration
func ValidateClientConfig(config ClientConfig) error {
	u, err := url.Parse(config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid SERVER_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("SERVER_URL must be http or https, got %q", u.Scheme)
	}
	if config.SerialNumber == "" || config.SecretKey == "" {
		return errors.New("DEVICE_SERIAL and DEVICE_SECRET are required")
	}
	if config.BargeInFrames <= 0 {
		return errors.New("BARGE_IN_FRAMES must be positive")
	}
	if config.Silence <= 0 {
		return errors.New("SILENCE_MS must be positive")
	}
	if config.CaptureRate <= 0 || config.PlaybackRate <= 0 {
		return errors.New("sample rates must be positive")
	}
	if config.CaptureChannels < 1 || config.CaptureChannels > 2 {
		return errors.New("CAPTURE_CHANNELS must be 1 or 2")
	}
	return nil
}

// AuthURL is the device authentication endpoint
func (c ClientConfig) AuthURL() string {
	return strings.TrimSuffix(c.ServerURL, "/") + "/api/v1/device/auth"
}

// WebSocketURL is the conversation endpoint, with the scheme switched to ws or wss
func (c ClientConfig) WebSocketURL() string {
	base := strings.TrimSuffix(c.ServerURL, "/")
	if rest, ok := strings.CutPrefix(base, "https://"); ok {
		return "wss://" + rest + "/ws"
	}
	return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
}

// OrchestratorConfig configures cmd/orchestrator
type OrchestratorConfig struct {
	ServerAddr string
	Generator  string

	SessionID string
	Language  string
	Voice     string
	Persona   string
	MaxTurns  int
}

// NewOrchestratorConfigFromEnv reads ORCHESTRATOR_ADDR, GENERATOR, SESSION_ID, LANGUAGE,
// VOICE, PERSONA and MAX_TURNS
func NewOrchestratorConfigFromEnv() (OrchestratorConfig, error) {
	var errs []error
	config := OrchestratorConfig{
		ServerAddr: envString("ORCHESTRATOR_ADDR", "127.0.0.1:9000"),
		Generator:  envString("GENERATOR", BackendMock),
		SessionID:  os.Getenv("SESSION_ID"),
		Language:   os.Getenv("LANGUAGE"),
		Voice:      os.Getenv("VOICE"),
		Persona:    os.Getenv("PERSONA"),
		MaxTurns:   envInt("MAX_TURNS", 0, &errs),
	}
	return config, errors.Join(errs...)
}

// ValidateOrchestratorConfig validates the orchestrator configuration
func ValidateOrchestratorConfig(config OrchestratorConfig) error {
	if config.ServerAddr == "" {
		return errors.New("ORCHESTRATOR_ADDR is required")
	}
	switch config.Generator {
	case BackendMock, BackendGemini, BackendCommand:
	default:
		return fmt.Errorf("unknown GENERATOR %q", config.Generator)
	}
	if config.MaxTurns < 0 {
		return errors.New("MAX_TURNS must not be negative")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return d
}
