// Package segmenter turns a 16 kHz capture stream into complete utterances and detects
// sustained speech for barge-in. Both work on fixed 10 ms frames.
package segmenter

import (
	"math"
	"time"
)

const (
	// FrameDuration is the classification frame length
	FrameDuration = 10 * time.Millisecond

	defaultThreshold  = 300.0
	defaultNoiseRatio = 3.0
	noiseFloorAlpha   = 0.05
)

// Classifier labels one frame as voice or silence. Implementations may keep state
// between frames, so each consumer needs its own instance.
type Classifier interface {
	IsSpeech(frame []int16) bool
}

// EnergyClassifier marks a frame as voice when its RMS clears both a fixed threshold and
// a multiple of the running noise floor.
type EnergyClassifier struct {
	Threshold  float64
	NoiseRatio float64

	noiseFloor float64
}

// NewEnergyClassifier returns a classifier with the given RMS threshold; zero selects the default
func NewEnergyClassifier(threshold float64) *EnergyClassifier {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &EnergyClassifier{Threshold: threshold, NoiseRatio: defaultNoiseRatio}
}

// IsSpeech implements Classifier
func (c *EnergyClassifier) IsSpeech(frame []int16) bool {
	level := RMS(frame)
	threshold := math.Max(c.Threshold, c.noiseFloor*c.NoiseRatio)
	if level >= threshold {
		return true
	}
	// only silent frames move the floor
	c.noiseFloor += noiseFloorAlpha * (level - c.noiseFloor)
	return false
}

// RMS is the root mean square of a frame
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// framer cuts an arbitrary-length stream into fixed frames, holding the remainder
type framer struct {
	size    int
	pending []int16
}

func (f *framer) each(samples []int16, fn func(frame []int16)) {
	f.pending = append(f.pending, samples...)
	n := 0
	for ; n+f.size <= len(f.pending); n += f.size {
		fn(f.pending[n : n+f.size])
	}
	f.pending = append(f.pending[:0], f.pending[n:]...)
}

func (f *framer) reset() {
	f.pending = f.pending[:0]
}

func frameSize(sampleRate int) int {
	return sampleRate * int(FrameDuration/time.Millisecond) / 1000
}
