package router

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/parley/internal/audio"
	"github.com/satriahrh/parley/internal/protocol"
)

// speak streams one reply. The end marker is sent exactly once, whether the reply was
// paused, interrupted or partly failed. Only a client stream error skips it.
func (r *Router) speak(ctx context.Context, text string) error {
	// a stale interrupt from the previous reply must not suppress this one
	r.flags.TTSInterrupted.Store(false)

	if r.flags.Paused.Load() {
		r.logger.Debug("Paused, skipping synthesis")
		return r.sendClient(protocol.TTSEnd{})
	}

	sentences := SplitSentences(text)
	if len(sentences) > 0 {
		if err := r.sendClient(protocol.TextDisplay{Text: text}); err != nil {
			return err
		}
	}

	out := &speechStream{router: r}
	wait := func() {}
	var err error
	switch len(sentences) {
	case 0:
	case 1:
		err = out.sentence(ctx, sentences[0])
	default:
		wait, err = out.pipeline(ctx, sentences)
	}
	if err != nil {
		wait()
		return err
	}

	endErr := r.sendClient(protocol.TTSEnd{})
	// the producer may still be inside a synthesis call; the engine is not shared
	wait()

	r.logger.Info("Reply streamed",
		zap.Int("sentences", len(sentences)),
		zap.Int("chunks", out.chunks),
		zap.Bool("interrupted", out.aborted))
	return endErr
}

// speechStream is the consumer side of one reply
type speechStream struct {
	router   *Router
	prevTail []int16
	chunks   int
	aborted  bool
}

func (s *speechStream) sentence(ctx context.Context, text string) error {
	if s.router.flags.TTSInterrupted.Load() {
		s.aborted = true
		return nil
	}
	samples, err := s.router.synthesize(ctx, text)
	if err != nil {
		s.router.logger.Error("Synthesis failed, skipping sentence",
			zap.String("sentence", text),
			zap.Error(err))
		return nil
	}
	return s.play(samples)
}

type synthesized struct {
	text    string
	samples []int16
}

// pipeline synthesizes sentences on a producer goroutine, one sentence ahead, while the
// caller streams the previous one. The returned wait blocks until the producer exits.
func (s *speechStream) pipeline(ctx context.Context, sentences []string) (func(), error) {
	r := s.router
	queue := make(chan synthesized, r.cfg.QueueSize)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(queue)
		for _, text := range sentences {
			if r.flags.TTSInterrupted.Load() {
				return
			}
			samples, err := r.synthesize(ctx, text)
			if err != nil {
				r.logger.Error("Synthesis failed, skipping sentence",
					zap.String("sentence", text),
					zap.Error(err))
				continue
			}
			select {
			case queue <- synthesized{text: text, samples: samples}:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	wait := func() {
		close(stop)
		<-done
	}

	for item := range queue {
		if err := s.play(item.samples); err != nil {
			return wait, err
		}
		if s.aborted {
			break
		}
	}
	return wait, nil
}

// play crossfades against the previous sentence and streams chunks, checking for an
// interrupt before each one. The crossfade never crosses a chunk boundary of one sentence.
func (s *speechStream) play(samples []int16) error {
	r := s.router
	audio.Crossfade(s.prevTail, samples, r.cfg.CrossfadeSamples)
	s.prevTail = audio.Tail(samples, r.cfg.CrossfadeSamples)

	for _, chunk := range audio.Chunk(samples, r.cfg.ChunkSamples) {
		if r.flags.TTSInterrupted.Load() {
			s.aborted = true
			r.logger.Info("Aborting reply on interrupt", zap.Int("chunksSent", s.chunks))
			return nil
		}
		if err := r.sendClient(protocol.TTSAudioChunk{Samples: chunk}); err != nil {
			return err
		}
		s.chunks++
	}
	return nil
}

// synthesize runs one atomic synthesis call and converts the result to the wire rate
func (r *Router) synthesize(ctx context.Context, text string) ([]int16, error) {
	sctx, cancel := context.WithTimeout(ctx, r.cfg.SynthesizeTimeout)
	defer cancel()

	start := time.Now()
	clip, err := r.tts.Synthesize(sctx, text)
	if err != nil {
		return nil, err
	}
	rate := clip.SampleRate
	if rate <= 0 {
		rate = audio.WireRate
	}
	samples, err := audio.ConvertRate(clip.Samples, rate, audio.WireRate)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %d Hz synthesis: %w", rate, err)
	}
	r.logger.Debug("Sentence synthesized",
		zap.Int("samples", len(samples)),
		zap.Duration("took", time.Since(start)))
	return samples, nil
}
