// Package device provides the client's capture sources and playback outputs: the
// system audio device through malgo, and WAV files paced in real time for headless runs.
package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/satriahrh/parley/internal/audio"
)

const periodMillis = 10

// Audio owns the malgo context shared by the capture and playback devices
type Audio struct {
	ctx    *malgo.AllocatedContext
	logger *zap.Logger
}

// NewAudio initializes the platform audio backend
func NewAudio(logger *zap.Logger) (*Audio, error) {
	config := malgo.ContextConfig{}
	config.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, config, func(message string) {
		logger.Debug("Audio backend", zap.String("message", message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}
	return &Audio{ctx: ctx, logger: logger}, nil
}

// Close releases the backend. Devices must be closed first.
func (a *Audio) Close() error {
	err := a.ctx.Uninit()
	a.ctx.Free()
	return err
}

// Microphone is a capture device delivering 10 ms frames
type Microphone struct {
	device     *malgo.Device
	frames     chan []int16
	sampleRate int
	channels   int
	logger     *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenMicrophone starts capturing S16 audio at sampleRate
func (a *Audio) OpenMicrophone(sampleRate, channels int) (*Microphone, error) {
	m := &Microphone{
		frames:     make(chan []int16, 50),
		sampleRate: sampleRate,
		channels:   channels,
		logger:     a.logger,
		closed:     make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = periodMillis

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			frame := audio.BytesToSamples(pInputSamples)
			select {
			case m.frames <- frame:
			default:
				m.logger.Warn("Capture frame dropped, reader too slow", zap.Int("samples", len(frame)))
			}
		},
	}

	device, err := malgo.InitDevice(a.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to init microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start microphone: %w", err)
	}
	m.device = device
	return m, nil
}

// Read blocks for the next captured frame
func (m *Microphone) Read(ctx context.Context) ([]int16, error) {
	select {
	case frame := <-m.frames:
		return frame, nil
	case <-m.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Microphone) SampleRate() int { return m.sampleRate }
func (m *Microphone) Channels() int   { return m.channels }

// Close stops the device
func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
		m.device.Stop()
		m.device.Uninit()
	})
	return nil
}

// Speaker is a mono playback device pulling from a fill callback
type Speaker struct {
	audio      *Audio
	device     *malgo.Device
	sampleRate int
	scratch    []int16
}

// NewSpeaker prepares a playback device; it starts on Start
func (a *Audio) NewSpeaker(sampleRate int) *Speaker {
	return &Speaker{audio: a, sampleRate: sampleRate}
}

func (s *Speaker) SampleRate() int { return s.sampleRate }

// Start opens the device. fill runs on the audio thread and must not block.
func (s *Speaker) Start(fill func(out []int16)) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(s.sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = periodMillis

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, _ []byte, frameCount uint32) {
			n := int(frameCount)
			if cap(s.scratch) < n {
				s.scratch = make([]int16, n)
			}
			buf := s.scratch[:n]
			fill(buf)
			for i, v := range buf {
				binary.LittleEndian.PutUint16(pOutputSample[2*i:], uint16(v))
			}
		},
	}

	device, err := malgo.InitDevice(s.audio.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to init speaker: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start speaker: %w", err)
	}
	s.device = device
	return nil
}

// Close stops playback
func (s *Speaker) Close() error {
	if s.device == nil {
		return nil
	}
	err := s.device.Stop()
	s.device.Uninit()
	s.device = nil
	return err
}
