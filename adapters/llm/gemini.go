package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/parley/domain/repositories"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.7
	defaultTopP        = 0.95
	defaultTopK        = 40
	defaultMaxTokens   = 512
	defaultTimeout     = 60 * time.Second

	defaultSystemPrompt = "You are a friendly conversation partner speaking with the user out loud. " +
		"Answer in a few short spoken sentences without markdown, lists or emoji."
)

// GeminiConfig holds configuration for the Gemini generator
// Required fields:
// - APIKey: Google AI API key
// Optional fields with defaults:
// - Model (default: "gemini-2.0-flash")
// - Temperature, TopP between 0 and 1; TopK positive
// - MaxOutputTokens (default: 512)
// - Timeout per attempt (default: 60s)
// - SystemPrompt: instruction sent with every request
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	Timeout         time.Duration
	SystemPrompt    string
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("google AI API key is required")
	}

	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}

	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}

	return nil
}

// NewGeminiConfigFromEnv reads GEMINI_* variables
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey:       os.Getenv("GEMINI_API_KEY"),
		Model:        os.Getenv("GEMINI_MODEL"),
		SystemPrompt: os.Getenv("GEMINI_SYSTEM_PROMPT"),
	}
	if v, err := strconv.ParseFloat(os.Getenv("GEMINI_TEMPERATURE"), 32); err == nil {
		config.Temperature = float32(v)
	}
	if v, err := strconv.Atoi(os.Getenv("GEMINI_MAX_OUTPUT_TOKENS")); err == nil && v > 0 {
		config.MaxOutputTokens = v
	}
	if v, err := time.ParseDuration(os.Getenv("GEMINI_TIMEOUT")); err == nil && v > 0 {
		config.Timeout = v
	}
	return config
}

// contentGenerator is the part of genai.Models the generator uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements TextGenerator with Google's Gemini API. It keeps one
// conversation; a call without the continuation flag starts a new one.
type GeminiGenerator struct {
	models  contentGenerator
	model   string
	content *genai.GenerateContentConfig
	policy  RetryPolicy
	logger  *zap.Logger

	mu           sync.Mutex
	conversation *geminiConversation
}

var _ repositories.TextGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a Gemini client from config
func NewGeminiGenerator(ctx context.Context, config GeminiConfig, policy RetryPolicy, logger *zap.Logger) (*GeminiGenerator, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiGenerator(client.Models, config, policy, logger), nil
}

func newGeminiGenerator(models contentGenerator, config GeminiConfig, policy RetryPolicy, logger *zap.Logger) *GeminiGenerator {
	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	topP := config.TopP
	if topP == 0 {
		topP = defaultTopP
	}

	topK := config.TopK
	if topK == 0 {
		topK = defaultTopK
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	if config.Timeout > 0 {
		policy.Timeout = config.Timeout
	} else if policy.Timeout <= 0 {
		policy.Timeout = defaultTimeout
	}

	systemPrompt := config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &GeminiGenerator{
		models: models,
		model:  model,
		content: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(temperature),
			TopP:              genai.Ptr(topP),
			TopK:              genai.Ptr(topK),
			MaxOutputTokens:   int32(maxOutputTokens),
		},
		policy:       policy,
		logger:       logger,
		conversation: &geminiConversation{},
	}
}

// Generate implements TextGenerator
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, continuation bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !continuation {
		g.conversation = &geminiConversation{}
	}
	contents := g.conversation.with(prompt)

	start := time.Now()
	reply, err := g.policy.run(ctx, g.logger, "gemini", func(ctx context.Context) (string, error) {
		resp, err := g.models.GenerateContent(ctx, g.model, contents, g.content)
		if err != nil {
			return "", err
		}
		return responseText(resp), nil
	})
	if err != nil {
		return "", err
	}

	g.conversation.record(prompt, reply)
	g.logger.Info("Gemini reply generated",
		zap.Bool("continuation", continuation),
		zap.Int("historyLength", g.conversation.len()),
		zap.Duration("took", time.Since(start)))
	return reply, nil
}
