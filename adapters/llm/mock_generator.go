package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/parley/domain/repositories"
)

// MockGenerator is a placeholder backend for development without API keys
type MockGenerator struct {
	logger *zap.Logger

	mu    sync.Mutex
	turns int
}

var _ repositories.TextGenerator = (*MockGenerator)(nil)

// NewMockGenerator creates a new mock text generator
func NewMockGenerator(logger *zap.Logger) *MockGenerator {
	return &MockGenerator{logger: logger}
}

// Generate implements TextGenerator
func (m *MockGenerator) Generate(ctx context.Context, prompt string, continuation bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !continuation {
		m.turns = 0
	}
	m.turns++
	m.logger.Info("Mock generation",
		zap.String("prompt", prompt),
		zap.Int("turn", m.turns))

	if m.turns == 1 {
		return "Hello! It is nice to talk with you. What would you like to practice today?", nil
	}
	return fmt.Sprintf("You said: %s. Tell me more about that.", prompt), nil
}
