package repositories

import "context"

// TextGenerator abstracts the text-generation backend
type TextGenerator interface {
	// Generate returns the reply to prompt. continuation asks the backend to resume its
	// own conversation context. Implementations handle their own timeout and retry and
	// return an apology as reply text once retries are exhausted.
	Generate(ctx context.Context, prompt string, continuation bool) (string, error)
}
