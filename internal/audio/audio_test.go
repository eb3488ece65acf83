package audio

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func tone(freq float64, rate, n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func resampleChunked(r *Resampler, input []int16, chunk int) []int16 {
	var out []int16
	for _, c := range Chunk(input, chunk) {
		out = append(out, r.Process(c)...)
	}
	return append(out, r.Process(nil)...)
}

func maxJump(samples []int16, from, to int) int {
	from = max(from, 1)
	to = min(to, len(samples))
	var worst int
	for i := from; i < to; i++ {
		d := int(samples[i]) - int(samples[i-1])
		if d < 0 {
			d = -d
		}
		worst = max(worst, d)
	}
	return worst
}

func TestResampler_ChunkedMatchesSingleCall(t *testing.T) {
	tests := []struct {
		name    string
		rateIn  int
		rateOut int
		chunk   int
	}{
		{"upsample to device", 16000, 48000, 4000},
		{"upsample odd chunks", 16000, 44100, 1237},
		{"downsample synthesis", 24000, 16000, 4000},
		{"downsample capture", 48000, 16000, 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tone(440, tt.rateIn, 2*tt.rateIn, 10000)

			single := NewResampler(tt.rateIn, tt.rateOut)
			whole := append(single.Process(input), single.Flush()...)

			chunked := resampleChunked(NewResampler(tt.rateIn, tt.rateOut), input, tt.chunk)

			expected := int(math.Ceil(float64(len(input)) * float64(tt.rateOut) / float64(tt.rateIn)))
			if diff := len(whole) - expected; diff < -1 || diff > 1 {
				t.Errorf("Single call length = %d, expected about %d", len(whole), expected)
			}
			if len(chunked) != len(whole) {
				t.Fatalf("Chunked length = %d, single call length = %d", len(chunked), len(whole))
			}
			for i := range whole {
				if whole[i] != chunked[i] {
					t.Fatalf("Output differs at sample %d: single %d, chunked %d", i, whole[i], chunked[i])
				}
			}
		})
	}
}

func TestResampler_NoDiscontinuityAtChunkBoundaries(t *testing.T) {
	const (
		rateIn    = 16000
		rateOut   = 48000
		amplitude = 10000.0
	)
	input := tone(440, rateIn, 2*rateIn, amplitude)
	out := resampleChunked(NewResampler(rateIn, rateOut), input, ChunkSamples)

	// steepest step of the ideal tone at the output rate, with headroom
	steepest := 1.5 * amplitude * 2 * math.Pi * 440 / rateOut
	threshold := int(steepest)

	ratio := rateOut / rateIn
	for boundary := ChunkSamples; boundary < len(input); boundary += ChunkSamples {
		at := boundary * ratio
		if jump := maxJump(out, at-8, at+8); jump > threshold {
			t.Errorf("Jump of %d around former chunk boundary %d exceeds %d", jump, boundary, threshold)
		}
	}
	if jump := maxJump(out, 0, len(out)-ratio*16); jump > threshold {
		t.Errorf("Jump of %d inside the stream exceeds %d", jump, threshold)
	}
}

func TestResampler_Passthrough(t *testing.T) {
	r := NewResampler(16000, 16000)
	if !r.Passthrough() {
		t.Fatal("Expected passthrough for equal rates")
	}
	input := []int16{1, -2, 3, -4, 5}
	if got := r.Process(input); !reflect.DeepEqual(got, input) {
		t.Errorf("Expected input unchanged, got %v", got)
	}
	if got := r.Process(nil); len(got) != 0 {
		t.Errorf("Expected empty flush, got %v", got)
	}
}

func TestResampler_CarryHoldsSubBlockInput(t *testing.T) {
	r := NewResampler(16000, 48000)
	if got := r.Process(make([]int16, 10)); len(got) != 0 {
		t.Errorf("Expected no output below one block, got %d samples", len(got))
	}
	if got := r.Flush(); len(got) != 30 {
		t.Errorf("Expected 30 samples after flush, got %d", len(got))
	}
	if got := r.Flush(); got != nil {
		t.Errorf("Expected second flush to be empty, got %d samples", len(got))
	}
}

func TestResampler_ReusableAfterFlush(t *testing.T) {
	input := tone(300, 24000, 6000, 8000)
	r := NewResampler(24000, 16000)
	first := resampleChunked(r, input, 1000)
	second := resampleChunked(r, input, 700)
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical output for the same stream after flush")
	}
}

func TestCrossfade_Smooth(t *testing.T) {
	const length = 160
	prevTail := make([]int16, length)
	for i := range prevTail {
		prevTail[i] = 20000
	}
	next := make([]int16, 400)
	for i := range next {
		next[i] = -20000
	}

	before := int(prevTail[length-1]) - int(next[0])
	Crossfade(prevTail, next, length)

	if next[0] != prevTail[0] {
		t.Errorf("Expected first sample to equal the previous tail, got %d", next[0])
	}
	combined := append(append([]int16{}, prevTail[length-1]), next[:length+1]...)
	if jump := maxJump(combined, 1, len(combined)); jump >= before {
		t.Errorf("Jump %d is not below the pre-crossfade jump %d", jump, before)
	}
	for i := 1; i < length; i++ {
		if next[i] > next[i-1] {
			t.Fatalf("Expected monotonic transition, sample %d rises from %d to %d", i, next[i-1], next[i])
		}
	}
	if next[length] != -20000 {
		t.Errorf("Expected samples past the fade untouched, got %d", next[length])
	}
}

func TestCrossfade_SkippedWhenShort(t *testing.T) {
	tests := []struct {
		name     string
		prevTail []int16
		next     []int16
	}{
		{"first sentence", nil, []int16{5, 5, 5, 5}},
		{"short next", []int16{9, 9, 9, 9}, []int16{5, 5}},
		{"short tail", []int16{9}, []int16{5, 5, 5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := append([]int16{}, tt.next...)
			Crossfade(tt.prevTail, tt.next, 4)
			if !reflect.DeepEqual(tt.next, original) {
				t.Errorf("Expected next untouched, got %v", tt.next)
			}
		})
	}
}

func TestChunk(t *testing.T) {
	samples := make([]int16, 10001)
	chunks := Chunk(samples, ChunkSamples)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	sizes := []int{len(chunks[0]), len(chunks[1]), len(chunks[2])}
	if !reflect.DeepEqual(sizes, []int{4000, 4000, 2001}) {
		t.Errorf("Unexpected chunk sizes %v", sizes)
	}
	if Chunk(nil, ChunkSamples) != nil {
		t.Error("Expected no chunks for empty input")
	}
}

func TestConversions(t *testing.T) {
	samples := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	if got := BytesToSamples(SamplesToBytes(samples)); !reflect.DeepEqual(got, samples) {
		t.Errorf("PCM bytes round trip = %v", got)
	}
	if got := SamplesToBytes([]int16{0x0102}); !reflect.DeepEqual(got, []byte{0x02, 0x01}) {
		t.Errorf("Expected little-endian bytes, got %v", got)
	}

	stereo := []int16{100, 300, -50, -150}
	if got := ToMono(stereo, 2); !reflect.DeepEqual(got, []int16{200, -100}) {
		t.Errorf("ToMono = %v", got)
	}

	floats := []float32{0, 1, -1, 2}
	if got := Float32ToInt16(floats); !reflect.DeepEqual(got, []int16{0, 32767, -32767, 32767}) {
		t.Errorf("Float32ToInt16 = %v", got)
	}
	if got := Int16ToFloat32([]int16{32767})[0]; got != 1 {
		t.Errorf("Int16ToFloat32 = %v", got)
	}
}

func TestConvertRate(t *testing.T) {
	input := tone(440, 24000, 24000, 10000)
	out, err := ConvertRate(input, 24000, 16000)
	if err != nil {
		t.Fatalf("ConvertRate() error = %v", err)
	}
	if diff := len(out) - 16000; diff < -160 || diff > 160 {
		t.Errorf("Expected about 16000 samples, got %d", len(out))
	}

	same, err := ConvertRate(input, 16000, 16000)
	if err != nil {
		t.Fatalf("ConvertRate() error = %v", err)
	}
	if len(same) != len(input) {
		t.Errorf("Expected passthrough for equal rates")
	}
}

func TestWAV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	samples := tone(440, WireRate, WireRate/2, 12000)
	if err := WriteWAV(f, samples, WireRate); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	got, rate, err := ReadWAV(f)
	if err != nil {
		t.Fatalf("ReadWAV() error = %v", err)
	}
	if rate != WireRate {
		t.Errorf("Expected rate %d, got %d", WireRate, rate)
	}
	if !reflect.DeepEqual(got, samples) {
		t.Errorf("Expected %d identical samples, got %d", len(samples), len(got))
	}
}
