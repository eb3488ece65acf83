package client

import (
	"context"
	"sync/atomic"

	"github.com/satriahrh/parley/domain/entities"
)

type playItem struct {
	gen uint64
	pcm []int16
}

// Player is the bounded playback queue between the receive worker and the output
// device. Push blocks the receiver when the queue is full; the device never blocks.
//
// Clear bumps a generation counter. Anything pushed under an older generation is
// discarded, including a Push that was blocked while the clear happened.
type Player struct {
	flags *entities.Flags
	queue chan playItem
	gen   atomic.Uint64

	// owned by Fill
	pending    []int16
	pendingGen uint64

	played  atomic.Int64
	cleared atomic.Int32
}

// NewPlayer creates a player holding up to capacity pushed buffers
func NewPlayer(flags *entities.Flags, capacity int) *Player {
	if capacity <= 0 {
		capacity = 1
	}
	return &Player{
		flags: flags,
		queue: make(chan playItem, capacity),
	}
}

// Generation returns the current clear generation. Load it before deciding to push.
func (p *Player) Generation() uint64 {
	return p.gen.Load()
}

// Push queues pcm at the device rate under generation gen
func (p *Player) Push(ctx context.Context, gen uint64, pcm []int16) error {
	if len(pcm) == 0 {
		return nil
	}
	select {
	case p.queue <- playItem{gen: gen, pcm: pcm}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear invalidates everything queued so far and asks the device callback to drain
func (p *Player) Clear() {
	p.gen.Add(1)
	p.flags.ClearRequested.Store(true)
}

// Fill is the device pull callback. It copies queued audio into out and pads the rest
// with silence. A pending clear drains the queue and the partial buffer and silences
// the whole callback.
func (p *Player) Fill(out []int16) {
	if p.flags.ClearRequested.Load() {
		p.drain()
		clear(out)
		p.flags.ClearRequested.Store(false)
		p.cleared.Add(1)
		return
	}

	current := p.gen.Load()
	n := 0
	for n < len(out) {
		if len(p.pending) == 0 || p.pendingGen != current {
			item, ok := p.next(current)
			if !ok {
				break
			}
			p.pending, p.pendingGen = item.pcm, item.gen
		}
		c := copy(out[n:], p.pending)
		p.pending = p.pending[c:]
		n += c
	}
	clear(out[n:])
	p.played.Add(int64(n))
}

// next pops the first item of generation gen, dropping stale ones
func (p *Player) next(gen uint64) (playItem, bool) {
	for {
		select {
		case item := <-p.queue:
			if item.gen == gen {
				return item, true
			}
		default:
			return playItem{}, false
		}
	}
}

func (p *Player) drain() {
	p.pending = nil
	for {
		select {
		case <-p.queue:
		default:
			return
		}
	}
}

// Buffered is the number of queued buffers
func (p *Player) Buffered() int {
	return len(p.queue)
}

// Played is the number of audio samples written to the device so far
func (p *Player) Played() int64 {
	return p.played.Load()
}

// Clears is the number of clear requests served by the device callback
func (p *Player) Clears() int {
	return int(p.cleared.Load())
}
