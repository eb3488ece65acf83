// Package audio holds the sample-level transforms shared by the server and the client:
// streaming rate conversion, width and channel conversion, chunking and crossfade.
// Values crossing a component boundary are always WireRate mono int16.
package audio

import (
	"math"
)

const (
	// WireRate is the sample rate of every audio payload on the wire
	WireRate = 16000

	// ChunkSamples is the size of one synthesized audio chunk on the wire (250 ms)
	ChunkSamples = 4000

	// kernel half-width in input samples at unity cutoff
	kernelZeroCrossings = 8
)

// Resampler converts a mono stream between two rates across many calls. Input is
// consumed in fixed blocks; the sub-block remainder is carried into the next call, and
// enough filter history is kept that chunk boundaries leave no trace in the output.
// Output is identical whatever way the input is split.
//
// A Resampler belongs to exactly one call site.
type Resampler struct {
	in, out int64
	noop    bool

	cutoff float64
	half   int64
	block  int

	carry []int16

	hist      []float64
	base      int64 // absolute input index of hist[0]
	processed int64 // input samples moved into hist
	total     int64 // real input samples seen since the last flush
	next      int64 // index of the next output sample
}

// NewResampler creates a streaming resampler. Equal rates produce a passthrough.
func NewResampler(rateIn, rateOut int) *Resampler {
	r := &Resampler{noop: rateIn == rateOut || rateIn <= 0 || rateOut <= 0}
	if r.noop {
		return r
	}
	g := gcd(rateIn, rateOut)
	r.in, r.out = int64(rateIn/g), int64(rateOut/g)

	// lowpass at the lower Nyquist when downsampling
	r.cutoff = math.Min(1, float64(rateOut)/float64(rateIn))
	r.half = int64(math.Ceil(kernelZeroCrossings / r.cutoff))
	r.block = rateIn / 100
	if r.block < int(2*r.half) {
		r.block = int(2 * r.half)
	}
	return r
}

// Passthrough reports whether the rates are equal and Process returns its input unchanged
func (r *Resampler) Passthrough() bool {
	return r.noop
}

// Process consumes samples and returns whatever output is ready. An empty slice is the
// end-of-stream signal and behaves like Flush.
func (r *Resampler) Process(samples []int16) []int16 {
	if r.noop {
		return samples
	}
	if len(samples) == 0 {
		return r.Flush()
	}

	r.total += int64(len(samples))
	r.carry = append(r.carry, samples...)
	n := len(r.carry) / r.block * r.block
	if n == 0 {
		return nil
	}
	r.push(r.carry[:n])
	r.carry = append(r.carry[:0], r.carry[n:]...)
	return r.drain(false)
}

// Flush pads the carried remainder to one block with silence, returns the tail of the
// stream and resets the resampler for the next stream. Call it once, at true end of stream.
func (r *Resampler) Flush() []int16 {
	if r.noop || r.total == 0 {
		r.reset()
		return nil
	}
	pad := make([]int16, r.block)
	copy(pad, r.carry)
	r.push(pad)
	out := r.drain(true)
	r.reset()
	return out
}

func (r *Resampler) push(samples []int16) {
	for _, s := range samples {
		r.hist = append(r.hist, float64(s))
	}
	r.processed += int64(len(samples))
}

// drain emits every output sample whose window is covered by history. At the end of the
// stream, samples past the history are silence and output stops at the real input length.
func (r *Resampler) drain(final bool) []int16 {
	var out []int16
	for {
		num := r.next * r.in
		if final {
			if num >= r.total*r.out {
				break
			}
		} else if num/r.out+r.half >= r.processed {
			break
		}
		out = append(out, clamp16(r.sample(r.next)))
		r.next++
	}

	// keep only what the next output still needs
	keepFrom := (r.next*r.in)/r.out - r.half + 1
	if drop := keepFrom - r.base; drop > 0 {
		if drop > int64(len(r.hist)) {
			drop = int64(len(r.hist))
		}
		r.hist = append(r.hist[:0], r.hist[drop:]...)
		r.base += drop
	}
	return out
}

func (r *Resampler) sample(k int64) float64 {
	num := k * r.in
	center := num / r.out
	frac := float64(num%r.out) / float64(r.out)

	var acc, norm float64
	for j := center - r.half + 1; j <= center+r.half; j++ {
		w := r.weight(float64(center-j) + frac)
		norm += w
		if j < r.base || j >= r.base+int64(len(r.hist)) {
			continue
		}
		acc += r.hist[j-r.base] * w
	}
	if norm == 0 {
		return 0
	}
	return acc / norm
}

// weight is a Hann-windowed sinc at distance d input samples
func (r *Resampler) weight(d float64) float64 {
	window := 0.5 * (1 + math.Cos(math.Pi*d/float64(r.half)))
	if d == 0 {
		return r.cutoff * window
	}
	x := math.Pi * r.cutoff * d
	return r.cutoff * math.Sin(x) / x * window
}

func (r *Resampler) reset() {
	r.carry = r.carry[:0]
	r.hist = r.hist[:0]
	r.base, r.processed, r.total, r.next = 0, 0, 0, 0
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
