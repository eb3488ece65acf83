package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/parley/internal/protocol"
	"github.com/satriahrh/parley/internal/transport"
)

// drainTimeout bounds the wait for the server's close after SessionEnd
const drainTimeout = 2 * time.Second

// ErrNotReady is returned when the server closes before the session starts
var ErrNotReady = errors.New("server closed before the session was ready")

// ConversationService orchestrates the conversation flow from the orchestrator side:
// it opens a session, answers each transcript and closes with a summary.
type ConversationService struct {
	chat   *ChatService
	logger *zap.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(chat *ChatService, logger *zap.Logger) *ConversationService {
	return &ConversationService{chat: chat, logger: logger}
}

// Dial connects to the server's orchestrator listener
func Dial(ctx context.Context, addr string) (transport.Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial server %s: %w", addr, err)
	}
	return transport.NewConnStream(conn), nil
}

type received struct {
	m   protocol.Message
	err error
}

// Run drives one session on stream until the server ends it, ctx ends or cfg.MaxTurns
// replies were sent. The stream is closed on return.
func (s *ConversationService) Run(ctx context.Context, stream transport.Stream, cfg protocol.SessionConfig) error {
	defer stream.Close()
	logger := s.logger.With(zap.String("sessionID", cfg.SessionID))

	start, err := protocol.NewSessionStart(cfg)
	if err != nil {
		return err
	}
	if err := stream.Send(start); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	inbox := make(chan received)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			m, err := stream.Receive()
			select {
			case inbox <- received{m, err}:
			case <-done:
				return
			}
			if err != nil && !transport.IsRecoverable(err) {
				return
			}
		}
	}()

	if err := s.awaitReady(ctx, inbox, logger); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	logger.Info("Session ready")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Ending session")
			return s.finish(stream, inbox, logger)

		case r := <-inbox:
			if r.err != nil {
				if transport.IsRecoverable(r.err) {
					logger.Warn("Skipping malformed server message", zap.Error(r.err))
					continue
				}
				if transport.IsClosed(r.err) {
					logger.Info("Server ended the session", zap.Int("turns", s.chat.Turns()))
					return nil
				}
				return fmt.Errorf("server stream: %w", r.err)
			}

			transcript, ok := r.m.(protocol.Transcript)
			if !ok {
				logger.Warn("Unexpected message from server", zap.Stringer("tag", r.m.Tag()))
				continue
			}
			if err := s.answer(ctx, stream, transcript.Text, logger); err != nil {
				if ctx.Err() != nil {
					return s.finish(stream, inbox, logger)
				}
				return err
			}
			if cfg.MaxTurns > 0 && s.chat.Turns() >= cfg.MaxTurns {
				logger.Info("Turn limit reached", zap.Int("maxTurns", cfg.MaxTurns))
				return s.finish(stream, inbox, logger)
			}
		}
	}
}

// awaitReady returns nil once SessionReady arrives or ctx ends
func (s *ConversationService) awaitReady(ctx context.Context, inbox <-chan received, logger *zap.Logger) error {
	logger.Info("Waiting for a device")
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-inbox:
			if r.err != nil {
				if transport.IsRecoverable(r.err) {
					continue
				}
				if transport.IsClosed(r.err) {
					return ErrNotReady
				}
				return fmt.Errorf("failed waiting for session ready: %w", r.err)
			}
			if _, ok := r.m.(protocol.SessionReady); ok {
				return nil
			}
			logger.Warn("Unexpected message before session ready", zap.Stringer("tag", r.m.Tag()))
		}
	}
}

// answer returns an error only when the server stream fails or ctx ends
func (s *ConversationService) answer(ctx context.Context, stream transport.Stream, transcript string, logger *zap.Logger) error {
	logger.Info("Transcript received", zap.String("transcript", transcript))

	reply, err := s.chat.Reply(ctx, transcript)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("Reply generation failed", zap.Error(err))
		if err := stream.Send(protocol.OrchestratorError{Text: "Sorry, I could not answer that."}); err != nil {
			return fmt.Errorf("server stream: %w", err)
		}
		return nil
	}
	if reply == "" {
		logger.Warn("Empty reply, nothing to say")
		return nil
	}
	if err := stream.Send(protocol.ReplyText{Text: reply}); err != nil {
		return fmt.Errorf("server stream: %w", err)
	}
	return nil
}

// finish sends the summary and SessionEnd, half-closes and waits for the server to close
func (s *ConversationService) finish(stream transport.Stream, inbox <-chan received, logger *zap.Logger) error {
	if err := stream.Send(protocol.Summary{Text: s.chat.Summary()}); err != nil {
		return fmt.Errorf("failed to send summary: %w", err)
	}
	if err := stream.Send(protocol.SessionEnd{}); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if err := stream.CloseWrite(); err != nil {
		logger.Debug("Failed to close write half", zap.Error(err))
	}

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	for {
		select {
		case r := <-inbox:
			if r.err != nil && !transport.IsRecoverable(r.err) {
				logger.Info("Session closed", zap.Int("turns", s.chat.Turns()))
				return nil
			}
		case <-timer.C:
			logger.Warn("Server did not close in time", zap.Duration("timeout", drainTimeout))
			return nil
		}
	}
}
