// Package router bridges one client stream and one orchestrator stream for a session.
//
// The inbound worker reads the client and writes the orchestrator; the outbound worker
// reads the orchestrator and writes the client. They share nothing but the session's
// Flags. Each worker closes the write half it owns when it exits, which ends the peer's
// blocking read on the far side.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/parley/domain/entities"
	"github.com/satriahrh/parley/domain/repositories"
	"github.com/satriahrh/parley/internal/audio"
	"github.com/satriahrh/parley/internal/protocol"
	"github.com/satriahrh/parley/internal/transport"
)

// Config tunes a Router
type Config struct {
	ChunkSamples      int
	CrossfadeSamples  int
	QueueSize         int
	ShutdownGrace     time.Duration
	TranscribeTimeout time.Duration
	SynthesizeTimeout time.Duration
}

// DefaultConfig returns the router defaults
func DefaultConfig() Config {
	return Config{
		ChunkSamples:      audio.ChunkSamples,
		CrossfadeSamples:  audio.CrossfadeSamples,
		QueueSize:         2,
		ShutdownGrace:     2 * time.Second,
		TranscribeTimeout: 30 * time.Second,
		SynthesizeTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSamples <= 0 {
		c.ChunkSamples = d.ChunkSamples
	}
	if c.CrossfadeSamples < 0 {
		c.CrossfadeSamples = 0
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = d.ShutdownGrace
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = d.TranscribeTimeout
	}
	if c.SynthesizeTimeout <= 0 {
		c.SynthesizeTimeout = d.SynthesizeTimeout
	}
	return c
}

// Router runs one session
type Router struct {
	session      *entities.Session
	flags        *entities.Flags
	client       transport.Stream
	orchestrator transport.Stream
	stt          repositories.SpeechToText
	tts          repositories.TextToSpeech
	cfg          Config
	logger       *zap.Logger

	closeOnce sync.Once
}

// New creates a Router. It takes ownership of both streams.
func New(
	session *entities.Session,
	client transport.Stream,
	orchestrator transport.Stream,
	stt repositories.SpeechToText,
	tts repositories.TextToSpeech,
	cfg Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		session:      session,
		flags:        session.Flags,
		client:       client,
		orchestrator: orchestrator,
		stt:          stt,
		tts:          tts,
		cfg:          cfg.withDefaults(),
		logger:       logger.With(zap.String("sessionID", session.ID)),
	}
}

// Run blocks until both workers exit. It returns the first transport error, or nil when
// either side closed cleanly. Both streams are closed on return.
func (r *Router) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	firstDone := make(chan struct{})
	var firstOnce sync.Once
	workerDone := func() { firstOnce.Do(func() { close(firstDone) }) }

	g.Go(func() error {
		defer workerDone()
		err := r.inbound(gctx)
		if cerr := r.orchestrator.CloseWrite(); cerr != nil {
			r.logger.Debug("Failed to close orchestrator write half", zap.Error(cerr))
		}
		return err
	})
	g.Go(func() error {
		defer workerDone()
		err := r.outbound(gctx)
		if cerr := r.client.CloseWrite(); cerr != nil {
			r.logger.Debug("Failed to close client write half", zap.Error(cerr))
		}
		return err
	})

	finished := make(chan struct{})
	go r.watchdog(gctx, firstDone, finished)

	err := g.Wait()
	close(finished)
	r.closeStreams()
	return err
}

// watchdog force-closes the streams when the context ends or when one worker has been
// gone longer than the grace period. Stream reads are not context aware.
func (r *Router) watchdog(ctx context.Context, firstDone, finished <-chan struct{}) {
	select {
	case <-finished:
		return
	case <-ctx.Done():
		r.closeStreams()
		return
	case <-firstDone:
	}

	timer := time.NewTimer(r.cfg.ShutdownGrace)
	defer timer.Stop()
	select {
	case <-finished:
	case <-ctx.Done():
		r.closeStreams()
	case <-timer.C:
		r.logger.Warn("Peer worker did not exit in time, closing streams",
			zap.Duration("grace", r.cfg.ShutdownGrace))
		r.closeStreams()
	}
}

func (r *Router) closeStreams() {
	r.closeOnce.Do(func() {
		if err := r.client.Close(); err != nil {
			r.logger.Debug("Failed to close client stream", zap.Error(err))
		}
		if err := r.orchestrator.Close(); err != nil {
			r.logger.Debug("Failed to close orchestrator stream", zap.Error(err))
		}
	})
}

// inbound reads the client stream and writes the orchestrator stream
func (r *Router) inbound(ctx context.Context) error {
	for {
		m, err := r.client.Receive()
		if err != nil {
			if transport.IsRecoverable(err) {
				r.logger.Warn("Skipping malformed client message", zap.Error(err))
				continue
			}
			if transport.IsClosed(err) {
				r.logger.Info("Client stream closed")
				return nil
			}
			return fmt.Errorf("client stream: %w", err)
		}

		switch msg := m.(type) {
		case protocol.AudioSegment:
			if r.flags.Paused.Load() {
				r.logger.Debug("Dropping segment while paused", zap.Int("samples", len(msg.Samples)))
				continue
			}
			if err := r.forwardTranscript(ctx, msg.Samples); err != nil {
				return err
			}
		case protocol.PauseRequest:
			r.flags.Paused.Store(true)
			r.logger.Info("Session paused")
		case protocol.ResumeRequest:
			r.flags.Paused.Store(false)
			r.logger.Info("Session resumed")
		case protocol.InterruptTTS:
			r.flags.TTSInterrupted.Store(true)
			r.logger.Info("Speech interrupted by client")
		default:
			r.logger.Warn("Unexpected message from client", zap.Stringer("tag", m.Tag()))
		}
	}
}

// forwardTranscript returns an error only when the orchestrator stream fails
func (r *Router) forwardTranscript(ctx context.Context, samples []int16) error {
	tctx, cancel := context.WithTimeout(ctx, r.cfg.TranscribeTimeout)
	defer cancel()

	start := time.Now()
	text, err := r.stt.Transcribe(tctx, samples)
	if err != nil {
		r.logger.Error("Transcription failed, dropping segment",
			zap.Int("samples", len(samples)),
			zap.Error(err))
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		r.logger.Debug("Empty transcription", zap.Int("samples", len(samples)))
		return nil
	}

	r.session.RecordTurn()
	r.logger.Info("Transcription completed",
		zap.String("transcription", text),
		zap.Duration("took", time.Since(start)))

	if err := r.orchestrator.Send(protocol.Transcript{Text: text}); err != nil {
		return fmt.Errorf("orchestrator stream: %w", err)
	}
	return nil
}

// outbound reads the orchestrator stream and writes the client stream
func (r *Router) outbound(ctx context.Context) error {
	for {
		m, err := r.orchestrator.Receive()
		if err != nil {
			if transport.IsRecoverable(err) {
				r.logger.Warn("Skipping malformed orchestrator message", zap.Error(err))
				continue
			}
			if transport.IsClosed(err) {
				r.logger.Info("Orchestrator stream closed")
				return nil
			}
			return fmt.Errorf("orchestrator stream: %w", err)
		}

		switch msg := m.(type) {
		case protocol.ReplyText:
			err = r.speak(ctx, msg.Text)
		case protocol.Feedback:
			err = r.sendClient(protocol.TextDisplay{Text: msg.Text})
		case protocol.Summary:
			err = r.sendClient(protocol.SummaryText{Text: msg.Text})
		case protocol.OrchestratorError:
			err = r.sendClient(protocol.ErrorNotice{Text: msg.Text})
		case protocol.SessionEnd:
			r.logger.Info("Orchestrator ended the session")
			return nil
		default:
			r.logger.Warn("Unexpected message from orchestrator", zap.Stringer("tag", m.Tag()))
		}
		if err != nil {
			return err
		}
	}
}

func (r *Router) sendClient(m protocol.Message) error {
	if err := r.client.Send(m); err != nil {
		return fmt.Errorf("client stream: %w", err)
	}
	return nil
}
