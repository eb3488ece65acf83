package segmenter

import (
	"time"

	"github.com/satriahrh/parley/internal/audio"
)

// Config tunes utterance detection
type Config struct {
	SampleRate int

	// StartFrames consecutive voice frames open a segment. Shorter bursts are noise.
	StartFrames int

	// SilenceDuration of trailing silence closes the segment
	SilenceDuration time.Duration

	// MinDuration drops segments whose voiced part is shorter
	MinDuration time.Duration

	// MaxDuration force-closes a segment
	MaxDuration time.Duration

	Threshold float64
}

// DefaultConfig returns the tuning used by the client
func DefaultConfig() Config {
	return Config{
		SampleRate:      audio.WireRate,
		StartFrames:     3,
		SilenceDuration: 500 * time.Millisecond,
		MinDuration:     200 * time.Millisecond,
		MaxDuration:     30 * time.Second,
		Threshold:       defaultThreshold,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.StartFrames <= 0 {
		c.StartFrames = d.StartFrames
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = d.SilenceDuration
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = d.MaxDuration
	}
	if c.MinDuration < 0 {
		c.MinDuration = 0
	}
	return c
}

// Segmenter accumulates voice into a buffer and emits it once the speaker falls silent
type Segmenter struct {
	classifier Classifier
	frames     framer

	startFrames   int
	silenceFrames int
	minFrames     int
	maxFrames     int

	active    bool
	onset     [][]int16
	buffer    []int16
	voiceRun  int
	silentRun int
}

// New creates a Segmenter with its own EnergyClassifier
func New(cfg Config) *Segmenter {
	cfg = cfg.withDefaults()
	return NewWithClassifier(cfg, NewEnergyClassifier(cfg.Threshold))
}

// NewWithClassifier creates a Segmenter around classifier, which must not be shared
func NewWithClassifier(cfg Config, classifier Classifier) *Segmenter {
	cfg = cfg.withDefaults()
	frameLen := FrameDuration
	return &Segmenter{
		classifier:    classifier,
		frames:        framer{size: frameSize(cfg.SampleRate)},
		startFrames:   cfg.StartFrames,
		silenceFrames: int(cfg.SilenceDuration / frameLen),
		minFrames:     int(cfg.MinDuration / frameLen),
		maxFrames:     int(cfg.MaxDuration / frameLen),
	}
}

// Active reports whether a segment is open
func (s *Segmenter) Active() bool {
	return s.active
}

// Write feeds captured samples and returns every segment closed by them
func (s *Segmenter) Write(samples []int16) [][]int16 {
	var closed [][]int16
	s.frames.each(samples, func(frame []int16) {
		if segment := s.feed(frame); segment != nil {
			closed = append(closed, segment)
		}
	})
	return closed
}

func (s *Segmenter) feed(frame []int16) []int16 {
	speech := s.classifier.IsSpeech(frame)
	if speech {
		s.voiceRun++
	} else {
		s.voiceRun = 0
	}

	if !s.active {
		if !speech {
			s.onset = s.onset[:0]
			return nil
		}
		s.onset = append(s.onset, append([]int16(nil), frame...))
		if s.voiceRun < s.startFrames {
			return nil
		}
		s.active = true
		s.silentRun = 0
		for _, f := range s.onset {
			s.buffer = append(s.buffer, f...)
		}
		s.onset = s.onset[:0]
		return nil
	}

	s.buffer = append(s.buffer, frame...)
	// a voiced burst shorter than the onset threshold neither ends nor extends the silence
	switch {
	case s.voiceRun >= s.startFrames:
		s.silentRun = 0
	case !speech:
		s.silentRun++
	}

	frames := len(s.buffer) / s.frames.size
	if s.silentRun >= s.silenceFrames || frames >= s.maxFrames {
		return s.close()
	}
	return nil
}

func (s *Segmenter) close() []int16 {
	segment := s.buffer
	voiced := len(segment)/s.frames.size - s.silentRun
	s.active = false
	s.buffer = nil
	s.silentRun = 0
	s.voiceRun = 0
	if voiced < s.minFrames {
		return nil
	}
	return segment
}

// Flush closes an open segment regardless of trailing silence
func (s *Segmenter) Flush() []int16 {
	s.frames.reset()
	s.onset = s.onset[:0]
	if !s.active {
		return nil
	}
	return s.close()
}

// Reset drops any partial segment
func (s *Segmenter) Reset() {
	s.frames.reset()
	s.onset = s.onset[:0]
	s.active = false
	s.buffer = nil
	s.voiceRun = 0
	s.silentRun = 0
}
