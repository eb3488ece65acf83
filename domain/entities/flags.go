package entities

import "sync/atomic"

// PlaybackState tracks the client's reply playback
type PlaybackState int32

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPlaying
	// PlaybackInterrupted means the user barged in; chunks of the current reply are
	// discarded until its end marker arrives.
	PlaybackInterrupted
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackPlaying:
		return "playing"
	case PlaybackInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Flags is the only state shared between the two workers of a session. Each boolean
// is independent and atomic. Playback is a single state word because "playing" and
// "this reply was interrupted" must change together.
type Flags struct {
	Paused         atomic.Bool
	TTSInterrupted atomic.Bool
	ClearRequested atomic.Bool
	Listening      atomic.Bool

	playback atomic.Int32
}

// NewFlags returns flags for a fresh session, listening and idle
func NewFlags() *Flags {
	f := &Flags{}
	f.Listening.Store(true)
	return f
}

// Playback returns the current playback state
func (f *Flags) Playback() PlaybackState {
	return PlaybackState(f.playback.Load())
}

// IsPlaying reports whether reply audio is being played
func (f *Flags) IsPlaying() bool {
	return f.Playback() == PlaybackPlaying
}

// StartPlaying enters the playing state for an incoming chunk. It returns false when the
// current reply was interrupted and the chunk must be dropped.
func (f *Flags) StartPlaying() bool {
	for {
		switch PlaybackState(f.playback.Load()) {
		case PlaybackPlaying:
			return true
		case PlaybackInterrupted:
			return false
		default:
			if f.playback.CompareAndSwap(int32(PlaybackIdle), int32(PlaybackPlaying)) {
				return true
			}
		}
	}
}

// Interrupt leaves the playing state on barge-in. It reports whether playback was active.
func (f *Flags) Interrupt() bool {
	return f.playback.CompareAndSwap(int32(PlaybackPlaying), int32(PlaybackInterrupted))
}

// StopPlaying returns to idle at the end of a reply
func (f *Flags) StopPlaying() {
	f.playback.Store(int32(PlaybackIdle))
}
