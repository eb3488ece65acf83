package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeozeozeo/gomplerate"
)

// BytesToSamples decodes little-endian 16-bit PCM. A trailing odd byte is ignored.
func BytesToSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// SamplesToBytes encodes samples as little-endian 16-bit PCM
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// ToMono averages interleaved frames down to one channel
func ToMono(interleaved []int16, channels int) []int16 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(interleaved[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// Float32ToInt16 narrows [-1, 1] float samples, clipping out-of-range values
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clamp16(float64(s) * math.MaxInt16)
	}
	return out
}

// Int16ToFloat32 widens samples to [-1, 1]
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / math.MaxInt16
	}
	return out
}

// ConvertRate resamples a complete clip in one shot. Use Resampler for streams.
func ConvertRate(samples []int16, rateIn, rateOut int) ([]int16, error) {
	if rateIn == rateOut || len(samples) == 0 {
		return samples, nil
	}
	resampler, err := gomplerate.NewResampler(1, rateIn, rateOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler %d->%d: %w", rateIn, rateOut, err)
	}
	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = float64(s)
	}
	resampled := resampler.ResampleFloat64(data)
	out := make([]int16, len(resampled))
	for i, v := range resampled {
		out[i] = clamp16(v)
	}
	return out, nil
}
