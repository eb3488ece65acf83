// Package llm holds the text-generation backends. Every backend runs its calls through
// a RetryPolicy, so callers never see a backend error: exhausted retries become an
// apology that is spoken like any other reply.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// DefaultApology is returned once every attempt failed
const DefaultApology = "Sorry, I had trouble thinking of a reply. Could you say that again?"

// ErrEmptyReply marks a backend answer with no text. It is retried.
var ErrEmptyReply = errors.New("empty reply")

// RetryPolicy bounds each attempt with a timeout and retries with exponential backoff
type RetryPolicy struct {
	Attempts uint64
	Backoff  time.Duration
	Timeout  time.Duration
	Apology  string
}

// DefaultRetryPolicy returns three attempts of sixty seconds each
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Backoff:  time.Second,
		Timeout:  60 * time.Second,
		Apology:  DefaultApology,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Attempts == 0 {
		p.Attempts = d.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = d.Backoff
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.Apology == "" {
		p.Apology = d.Apology
	}
	return p
}

// attemptFunc is one backend call. Returning a permanent error stops retrying.
type attemptFunc func(ctx context.Context) (string, error)

// permanent wraps errors that another attempt cannot fix
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return permanent{err: err}
}

// run executes fn under the policy. It only returns an error when ctx itself ended.
func (p RetryPolicy) run(ctx context.Context, logger *zap.Logger, backend string, fn attemptFunc) (string, error) {
	p = p.withDefaults()

	backoff := retry.WithMaxRetries(p.Attempts-1, retry.NewExponential(p.Backoff))
	var reply string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()

		text, err := fn(actx)
		if err == nil && text == "" {
			err = ErrEmptyReply
		}
		if err != nil {
			var perm permanent
			if errors.As(err, &perm) {
				return perm.err
			}
			logger.Warn("Text generation attempt failed",
				zap.String("backend", backend),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		reply = text
		return nil
	})
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("%s generation canceled: %w", backend, ctx.Err())
	}

	logger.Error("Text generation failed, replying with apology",
		zap.String("backend", backend),
		zap.Int("attempts", attempt),
		zap.Error(err))
	return p.Apology, nil
}
