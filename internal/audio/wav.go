package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// ReadWAV decodes a PCM wave file into mono 16-bit samples and its sample rate
func ReadWAV(r io.ReadSeeker) ([]int16, int, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}
	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to extract PCM from wav file: %w", err)
	}
	if buffer.Format == nil || buffer.Format.NumChannels == 0 {
		return nil, 0, errors.New("no channels found")
	}

	shift := int(decoder.BitDepth) - bitDepth
	samples := make([]int16, len(buffer.Data))
	for i, v := range buffer.Data {
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		samples[i] = clamp16(float64(v))
	}
	return ToMono(samples, buffer.Format.NumChannels), buffer.Format.SampleRate, nil
}

// WAVWriter appends mono 16-bit samples to a wave file. Close writes the header sizes.
type WAVWriter struct {
	encoder *wav.Encoder
	format  *goaudio.Format
}

// NewWAVWriter starts a mono 16-bit wave stream on w
func NewWAVWriter(w io.WriteSeeker, sampleRate int) *WAVWriter {
	return &WAVWriter{
		encoder: wav.NewEncoder(w, sampleRate, bitDepth, 1, 1),
		format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
	}
}

// Write appends samples
func (w *WAVWriter) Write(samples []int16) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buffer := &goaudio.IntBuffer{
		Format:         w.format,
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := w.encoder.Write(buffer); err != nil {
		return fmt.Errorf("failed to encode samples as wav: %w", err)
	}
	return nil
}

// Close flushes the encoder. It does not close the underlying writer.
func (w *WAVWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		return fmt.Errorf("failed to flush wav encoder: %w", err)
	}
	return nil
}

// WriteWAV writes a complete mono 16-bit wave file
func WriteWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	writer := NewWAVWriter(w, sampleRate)
	if err := writer.Write(samples); err != nil {
		return err
	}
	return writer.Close()
}
