// Package client runs the device side of a conversation: capture, segmentation and
// barge-in on one worker, reply playback on another, and the output device pulling from
// the playback queue on its own callback.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/parley/domain/entities"
	"github.com/satriahrh/parley/internal/audio"
	"github.com/satriahrh/parley/internal/protocol"
	"github.com/satriahrh/parley/internal/segmenter"
	"github.com/satriahrh/parley/internal/transport"
)

// CaptureSource delivers interleaved device frames
type CaptureSource interface {
	// Read blocks for the next frame. It returns io.EOF when the source is exhausted.
	Read(ctx context.Context) ([]int16, error)
	SampleRate() int
	Channels() int
}

// Output is a mono playback device that pulls audio through fill
type Output interface {
	Start(fill func(out []int16)) error
	SampleRate() int
	Close() error
}

// Config tunes a client session
type Config struct {
	Segmenter segmenter.Config

	// BargeInFrames consecutive voice frames during playback interrupt the reply
	BargeInFrames int

	// PlaybackQueue is the number of received chunks buffered ahead of the device
	PlaybackQueue int

	// Display receives server text. Nil logs it.
	Display func(protocol.Message)
}

// DefaultConfig returns the client defaults
func DefaultConfig() Config {
	return Config{
		Segmenter:     segmenter.DefaultConfig(),
		BargeInFrames: 3,
		PlaybackQueue: 16,
	}
}

// Session is one client conversation over a server stream
type Session struct {
	stream transport.Stream
	source CaptureSource
	output Output
	flags  *entities.Flags
	player *Player

	segmenter *segmenter.Segmenter
	bargeIn   *segmenter.ActivityDetector

	captureResampler  *audio.Resampler
	playbackResampler *audio.Resampler

	controls chan protocol.Message
	display  func(protocol.Message)
	logger   *zap.Logger
}

// NewSession wires a session. It owns stream from here on.
func NewSession(stream transport.Stream, source CaptureSource, output Output, cfg Config, logger *zap.Logger) *Session {
	if cfg.PlaybackQueue <= 0 {
		cfg.PlaybackQueue = DefaultConfig().PlaybackQueue
	}
	segCfg := cfg.Segmenter
	segCfg.SampleRate = audio.WireRate

	flags := entities.NewFlags()
	s := &Session{
		stream:            stream,
		source:            source,
		output:            output,
		flags:             flags,
		player:            NewPlayer(flags, cfg.PlaybackQueue),
		segmenter:         segmenter.New(segCfg),
		bargeIn:           segmenter.NewActivityDetector(audio.WireRate, cfg.BargeInFrames, segCfg.Threshold),
		captureResampler:  audio.NewResampler(source.SampleRate(), audio.WireRate),
		playbackResampler: audio.NewResampler(audio.WireRate, output.SampleRate()),
		controls:          make(chan protocol.Message, 4),
		display:           cfg.Display,
		logger:            logger,
	}
	if s.display == nil {
		s.display = s.logDisplay
	}
	return s
}

// Flags exposes the session flags
func (s *Session) Flags() *entities.Flags {
	return s.flags
}

// Player exposes the playback queue
func (s *Session) Player() *Player {
	return s.player
}

// Pause stops listening and asks the server to drop speech and replies
func (s *Session) Pause(ctx context.Context) error {
	return s.control(ctx, protocol.PauseRequest{})
}

// Resume re-enables listening
func (s *Session) Resume(ctx context.Context) error {
	return s.control(ctx, protocol.ResumeRequest{})
}

// control hands a request to the capture worker, the only writer of the stream
func (s *Session) control(ctx context.Context, m protocol.Message) error {
	select {
	case s.controls <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the output device and the workers. It returns when the server closes the
// stream, the context ends, or a transport error occurs.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.output.Start(s.player.Fill); err != nil {
		return fmt.Errorf("failed to start output device: %w", err)
	}
	defer s.output.Close()

	frames := make(chan []int16, 8)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.read(gctx, frames)
	})
	g.Go(func() error {
		err := s.capture(gctx, frames)
		if cerr := s.stream.CloseWrite(); cerr != nil {
			s.logger.Debug("Failed to close write half", zap.Error(cerr))
		}
		return err
	})
	g.Go(func() error {
		// the server is gone, nothing left to capture for
		defer cancel()
		return s.receive(gctx)
	})

	go func() {
		<-gctx.Done()
		s.stream.Close()
	}()

	err := g.Wait()
	s.stream.Close()
	return err
}

// read pumps the capture source. The channel is closed when the source is exhausted.
func (s *Session) read(ctx context.Context, frames chan<- []int16) error {
	defer close(frames)
	for {
		frame, err := s.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("Capture source exhausted")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read capture device: %w", err)
		}
		select {
		case frames <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

// capture segments speech, detects barge-in and serves pause and resume. It is the only
// writer of the stream.
func (s *Session) capture(ctx context.Context, frames <-chan []int16) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-s.controls:
			if err := s.applyControl(m); err != nil {
				return err
			}
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				if err := s.sendSegment(s.segmenter.Flush()); err != nil {
					return err
				}
				continue
			}
			if err := s.processFrame(frame); err != nil {
				return err
			}
		}
	}
}

func (s *Session) processFrame(frame []int16) error {
	if !s.flags.Listening.Load() {
		return nil
	}
	mono := audio.ToMono(frame, s.source.Channels())
	if len(mono) == 0 {
		return nil
	}
	wire := s.captureResampler.Process(mono)
	if len(wire) == 0 {
		return nil
	}

	if s.flags.IsPlaying() {
		if s.bargeIn.Feed(wire) {
			if err := s.interrupt(); err != nil {
				return err
			}
		}
	} else if s.bargeIn.Run() > 0 {
		s.bargeIn.Reset()
	}

	// the same speech keeps feeding the segmenter so it becomes the next turn
	for _, segment := range s.segmenter.Write(wire) {
		if err := s.sendSegment(segment); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) interrupt() error {
	defer s.bargeIn.Reset()
	if !s.flags.Interrupt() {
		return nil
	}
	s.logger.Info("Barge-in detected, interrupting reply")
	if err := s.stream.Send(protocol.InterruptTTS{}); err != nil {
		return fmt.Errorf("failed to send interrupt: %w", err)
	}
	s.player.Clear()
	return nil
}

func (s *Session) sendSegment(segment []int16) error {
	if len(segment) == 0 {
		return nil
	}
	s.logger.Debug("Sending segment", zap.Int("samples", len(segment)))
	if err := s.stream.Send(protocol.AudioSegment{Samples: segment}); err != nil {
		return fmt.Errorf("failed to send segment: %w", err)
	}
	return nil
}

func (s *Session) applyControl(m protocol.Message) error {
	switch m.(type) {
	case protocol.PauseRequest:
		s.flags.Listening.Store(false)
		// speech cut off by the pause is not a turn
		s.segmenter.Reset()
		s.bargeIn.Reset()
		s.logger.Info("Listening paused")
	case protocol.ResumeRequest:
		s.flags.Listening.Store(true)
		s.logger.Info("Listening resumed")
	}
	if err := s.stream.Send(m); err != nil {
		return fmt.Errorf("failed to send %s: %w", m.Tag(), err)
	}
	return nil
}

// receive plays reply audio and hands text to the display
func (s *Session) receive(ctx context.Context) error {
	for {
		m, err := s.stream.Receive()
		if err != nil {
			if transport.IsRecoverable(err) {
				s.logger.Warn("Skipping malformed server message", zap.Error(err))
				continue
			}
			if transport.IsClosed(err) || ctx.Err() != nil {
				s.logger.Info("Server stream closed")
				return nil
			}
			return fmt.Errorf("server stream: %w", err)
		}

		switch msg := m.(type) {
		case protocol.TTSAudioChunk:
			if len(msg.Samples) == 0 {
				continue
			}
			gen := s.player.Generation()
			if !s.flags.StartPlaying() {
				// rest of an interrupted reply
				continue
			}
			if err := s.player.Push(ctx, gen, s.playbackResampler.Process(msg.Samples)); err != nil {
				return nil
			}
		case protocol.TTSEnd:
			gen := s.player.Generation()
			interrupted := s.flags.Playback() == entities.PlaybackInterrupted
			tail := s.playbackResampler.Flush()
			if !interrupted {
				if err := s.player.Push(ctx, gen, tail); err != nil {
					return nil
				}
			}
			s.flags.StopPlaying()
		case protocol.Ready, protocol.TextDisplay, protocol.ErrorNotice, protocol.SummaryText:
			s.display(m)
		default:
			s.logger.Warn("Unexpected message from server", zap.Stringer("tag", m.Tag()))
		}
	}
}

func (s *Session) logDisplay(m protocol.Message) {
	switch msg := m.(type) {
	case protocol.Ready:
		s.logger.Info("Conversation started, speak now")
	case protocol.TextDisplay:
		s.logger.Info("Assistant", zap.String("text", msg.Text))
	case protocol.ErrorNotice:
		s.logger.Warn("Server error", zap.String("text", msg.Text))
	case protocol.SummaryText:
		s.logger.Info("Session summary", zap.String("text", msg.Text))
	}
}
