package segmenter

// ActivityDetector counts consecutive voice frames for barge-in. It has its own
// classifier and never touches a segment buffer.
type ActivityDetector struct {
	classifier Classifier
	frames     framer
	threshold  int
	run        int
}

// NewActivityDetector triggers after threshold consecutive voice frames
func NewActivityDetector(sampleRate, threshold int, energy float64) *ActivityDetector {
	return NewActivityDetectorWithClassifier(sampleRate, threshold, NewEnergyClassifier(energy))
}

// NewActivityDetectorWithClassifier uses classifier, which must not be shared
func NewActivityDetectorWithClassifier(sampleRate, threshold int, classifier Classifier) *ActivityDetector {
	if threshold <= 0 {
		threshold = 3
	}
	return &ActivityDetector{
		classifier: classifier,
		frames:     framer{size: frameSize(sampleRate)},
		threshold:  threshold,
	}
}

// Feed classifies samples and reports whether the run reached the threshold
func (d *ActivityDetector) Feed(samples []int16) bool {
	triggered := false
	d.frames.each(samples, func(frame []int16) {
		if d.classifier.IsSpeech(frame) {
			d.run++
		} else {
			d.run = 0
		}
		if d.run >= d.threshold {
			triggered = true
		}
	})
	return triggered
}

// Run is the current count of consecutive voice frames
func (d *ActivityDetector) Run() int {
	return d.run
}

// Reset zeroes the count and drops any partial frame
func (d *ActivityDetector) Reset() {
	d.run = 0
	d.frames.reset()
}
