// Package speech holds offline stand-ins for the speech backends, used in development
// and when no cloud credentials are configured.
package speech

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/parley/domain/repositories"
)

// MockSampleRate is the native rate of MockTextToSpeech output
const MockSampleRate = 22050

// MockSpeechToText is a placeholder implementation for speech recognition
type MockSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// Transcribe returns a canned sentence chosen by utterance length
func (s *MockSpeechToText) Transcribe(ctx context.Context, samples []int16) (string, error) {
	seconds := float64(len(samples)) / 16000
	s.logger.Info("Processing speech-to-text", zap.Float64("seconds", seconds))

	switch {
	case len(samples) == 0:
		return "", nil
	case seconds > 3:
		return "I would like to practice talking about my day at work.", nil
	case seconds > 1:
		return "Thank you for listening.", nil
	default:
		return "Hello!", nil
	}
}

// MockTextToSpeech renders text as a soft tone, 60 ms per character
type MockTextToSpeech struct {
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{logger: logger}
}

// Synthesize implements TextToSpeech
func (t *MockTextToSpeech) Synthesize(ctx context.Context, text string) (repositories.Audio, error) {
	text = strings.TrimSpace(text)
	t.logger.Info("Processing text-to-speech", zap.String("text", text))

	n := len(text) * MockSampleRate * 60 / 1000
	samples := make([]int16, n)
	for i := range samples {
		// fade in and out so sentence joins stay quiet
		envelope := math.Sin(math.Pi * float64(i) / float64(n))
		samples[i] = int16(3000 * envelope * math.Sin(2*math.Pi*330*float64(i)/MockSampleRate))
	}
	return repositories.Audio{Samples: samples, SampleRate: MockSampleRate}, nil
}
