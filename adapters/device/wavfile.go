package device

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/parley/internal/audio"
)

const frameDuration = periodMillis * time.Millisecond

// WAVSource replays a WAV file as capture frames. With pacing it delivers one 10 ms
// frame per 10 ms, like a microphone; a trailing stretch of silence lets the last
// utterance close before the source reports io.EOF.
type WAVSource struct {
	samples    []int16
	sampleRate int
	frame      int
	pos        int
	limiter    *rate.Limiter
}

// OpenWAVSource reads path into memory. trailing silence is appended after the file.
func OpenWAVSource(path string, paced bool, trailing time.Duration) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	samples, sampleRate, err := audio.ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewWAVSource(samples, sampleRate, paced, trailing), nil
}

// NewWAVSource replays mono samples at sampleRate
func NewWAVSource(samples []int16, sampleRate int, paced bool, trailing time.Duration) *WAVSource {
	pad := int(int64(sampleRate) * int64(trailing) / int64(time.Second))
	all := make([]int16, len(samples)+pad)
	copy(all, samples)

	s := &WAVSource{
		samples:    all,
		sampleRate: sampleRate,
		frame:      sampleRate * periodMillis / 1000,
	}
	if paced {
		s.limiter = rate.NewLimiter(rate.Every(frameDuration), 1)
	}
	return s
}

// Read returns the next frame, waiting for its turn when paced
func (s *WAVSource) Read(ctx context.Context) ([]int16, error) {
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	end := min(s.pos+s.frame, len(s.samples))
	frame := s.samples[s.pos:end]
	s.pos = end
	return frame, nil
}

func (s *WAVSource) SampleRate() int { return s.sampleRate }
func (s *WAVSource) Channels() int   { return 1 }

// ClockOutput is a headless playback device: a ticker pulls 10 ms of audio at a time
// and discards it, or hands it to sink.
type ClockOutput struct {
	sampleRate int
	sink       func([]int16)

	stop chan struct{}
	done chan struct{}
}

// NewClockOutput creates a headless output. sink may be nil.
func NewClockOutput(sampleRate int, sink func([]int16)) *ClockOutput {
	return &ClockOutput{sampleRate: sampleRate, sink: sink}
}

func (c *ClockOutput) SampleRate() int { return c.sampleRate }

// Start pulls from fill on every tick until Close
func (c *ClockOutput) Start(fill func(out []int16)) error {
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	buf := make([]int16, c.sampleRate*periodMillis/1000)

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(frameDuration)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				fill(buf)
				if c.sink != nil {
					c.sink(buf)
				}
			}
		}
	}()
	return nil
}

// Close stops the ticker
func (c *ClockOutput) Close() error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	return nil
}

// Output is the playback side a Recorder wraps
type Output interface {
	Start(fill func(out []int16)) error
	SampleRate() int
	Close() error
}

// Recorder writes everything an output plays to a WAV file. Writes happen off the
// audio thread; if the writer falls behind, audio is dropped from the recording only.
type Recorder struct {
	Output
	writer *audio.WAVWriter
	file   *os.File
	logger *zap.Logger

	queue chan []int16
	done  chan struct{}
	once  sync.Once
}

// NewRecorder records out into a new WAV file at path
func NewRecorder(out Output, path string, logger *zap.Logger) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording %s: %w", path, err)
	}
	r := &Recorder{
		Output: out,
		writer: audio.NewWAVWriter(f, out.SampleRate()),
		file:   f,
		logger: logger,
		queue:  make(chan []int16, 256),
		done:   make(chan struct{}),
	}
	go r.write()
	return r, nil
}

// Start starts the wrapped output with a fill that also records
func (r *Recorder) Start(fill func(out []int16)) error {
	return r.Output.Start(func(out []int16) {
		fill(out)
		select {
		case r.queue <- append([]int16(nil), out...):
		default:
			r.logger.Warn("Recording buffer full, dropping audio", zap.Int("samples", len(out)))
		}
	})
}

func (r *Recorder) write() {
	defer close(r.done)
	for samples := range r.queue {
		if err := r.writer.Write(samples); err != nil {
			r.logger.Error("Failed to write recording", zap.Error(err))
		}
	}
}

// Close stops the output and finalizes the WAV header
func (r *Recorder) Close() error {
	var err error
	r.once.Do(func() {
		err = r.Output.Close()
		close(r.queue)
		<-r.done
		if cerr := r.writer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finalize recording: %w", cerr)
		}
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
