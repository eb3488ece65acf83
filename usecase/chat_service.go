package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/parley/domain/repositories"
)

// Exchange is one transcript and the reply it got
type Exchange struct {
	Transcript string
	Reply      string
}

// ChatService handles conversation logic
type ChatService struct {
	generator repositories.TextGenerator
	persona   string
	logger    *zap.Logger

	mu      sync.Mutex
	history []Exchange
}

// NewChatService creates a new chat service. persona, when set, opens the first prompt.
func NewChatService(generator repositories.TextGenerator, persona string, logger *zap.Logger) *ChatService {
	return &ChatService{generator: generator, persona: persona, logger: logger}
}

// Reply asks the generator for the next reply. Every turn after the first continues the
// generator's own conversation.
func (s *ChatService) Reply(ctx context.Context, transcript string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	continuation := len(s.history) > 0
	prompt := transcript
	if !continuation && s.persona != "" {
		prompt = fmt.Sprintf("You are %s. Keep replies short and conversational.\n\n%s", s.persona, transcript)
	}

	reply, err := s.generator.Generate(ctx, prompt, continuation)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply for turn %d: %w", len(s.history)+1, err)
	}
	reply = strings.TrimSpace(reply)

	s.history = append(s.history, Exchange{Transcript: transcript, Reply: reply})
	s.logger.Debug("Reply generated",
		zap.Int("turn", len(s.history)),
		zap.Bool("continuation", continuation),
		zap.Int("replyLength", len(reply)))
	return reply, nil
}

// Turns is the number of answered transcripts
func (s *ChatService) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// History returns a copy of the exchanges so far
func (s *ChatService) History() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Exchange(nil), s.history...)
}

// Summary is the closing line shown on the device
func (s *ChatService) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	words := 0
	for _, e := range s.history {
		words += len(strings.Fields(e.Transcript))
	}
	switch len(s.history) {
	case 0:
		return "Session ended before any turn."
	case 1:
		return fmt.Sprintf("Session complete: 1 turn, %d words spoken.", words)
	default:
		return fmt.Sprintf("Session complete: %d turns, %d words spoken.", len(s.history), words)
	}
}
