package repositories

import "context"

// Audio is synthesized speech at the engine's native rate
type Audio struct {
	Samples    []int16
	SampleRate int
}

// TextToSpeech abstracts speech synthesis services. A call is atomic: it cannot be
// interrupted half way and returns the whole clip for the text.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}
