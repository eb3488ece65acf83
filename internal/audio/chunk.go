package audio

// CrossfadeSamples is the blend length used between synthesized sentences (10 ms)
const CrossfadeSamples = WireRate / 100

// Chunk slices samples into pieces of size. The last piece may be shorter.
// The pieces alias samples.
func Chunk(samples []int16, size int) [][]int16 {
	if size <= 0 || len(samples) == 0 {
		return nil
	}
	chunks := make([][]int16, 0, (len(samples)+size-1)/size)
	for start := 0; start < len(samples); start += size {
		end := min(start+size, len(samples))
		chunks = append(chunks, samples[start:end])
	}
	return chunks
}

// Crossfade blends the first length samples of next with prevTail in place:
// next[i] = prevTail[i]*(1-i/length) + next[i]*(i/length).
// It does nothing when either side holds fewer than length samples.
func Crossfade(prevTail, next []int16, length int) {
	if length <= 0 || len(prevTail) < length || len(next) < length {
		return
	}
	for i := 0; i < length; i++ {
		ratio := float64(i) / float64(length)
		next[i] = clamp16(float64(prevTail[i])*(1-ratio) + float64(next[i])*ratio)
	}
}

// Tail returns the last n samples, or nil when there are fewer
func Tail(samples []int16, n int) []int16 {
	if n <= 0 || len(samples) < n {
		return nil
	}
	return samples[len(samples)-n:]
}
