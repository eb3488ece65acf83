package repositories

import "context"

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts one complete 16 kHz mono utterance to text. Empty text means
	// there is nothing to forward.
	Transcribe(ctx context.Context, samples []int16) (string, error)
}
