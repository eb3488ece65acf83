package client

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/satriahrh/parley/domain/entities"
	"github.com/satriahrh/parley/internal/protocol"
	"github.com/satriahrh/parley/internal/transport"
)

const frameSamples = 160

func voiceFrame() []int16 {
	out := make([]int16, frameSamples)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*220*float64(i)/16000))
	}
	return out
}

func constant(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

type chanSource struct {
	frames chan []int16
}

func (s *chanSource) Read(ctx context.Context) ([]int16, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *chanSource) SampleRate() int { return 16000 }
func (s *chanSource) Channels() int   { return 1 }

// manualOutput lets the test drive the device callback
type manualOutput struct {
	mu   sync.Mutex
	fill func([]int16)
}

func (o *manualOutput) Start(fill func([]int16)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fill = fill
	return nil
}

func (o *manualOutput) SampleRate() int { return 16000 }
func (o *manualOutput) Close() error    { return nil }

func (o *manualOutput) started() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fill != nil
}

func (o *manualOutput) pull(n int) []int16 {
	out := make([]int16, n)
	o.mu.Lock()
	fill := o.fill
	o.mu.Unlock()
	fill(out)
	return out
}

type harness struct {
	session   *Session
	server    transport.Stream
	source    *chanSource
	output    *manualOutput
	displayed chan protocol.Message
	done      chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return startHarness(t, zap.NewNop(), true)
}

// startHarness runs a session; without capture, server text goes to the logger
func startHarness(t *testing.T, logger *zap.Logger, capture bool) *harness {
	t.Helper()
	clientEnd, serverEnd := transport.Pipe()
	h := &harness{
		server:    serverEnd,
		source:    &chanSource{frames: make(chan []int16, 512)},
		output:    &manualOutput{},
		displayed: make(chan protocol.Message, 16),
		done:      make(chan error, 1),
	}
	cfg := DefaultConfig()
	if capture {
		cfg.Display = func(m protocol.Message) { h.displayed <- m }
	}
	h.session = NewSession(clientEnd, h.source, h.output, cfg, logger)

	go func() { h.done <- h.session.Run(context.Background()) }()
	waitFor(t, "output started", h.output.started)
	return h
}

func (h *harness) feed(frames ...[]int16) {
	for _, f := range frames {
		h.source.frames <- f
	}
}

func (h *harness) send(t *testing.T, m protocol.Message) {
	t.Helper()
	if err := h.server.Send(m); err != nil {
		t.Fatalf("server send %s: %v", m.Tag(), err)
	}
}

func (h *harness) receive(t *testing.T) protocol.Message {
	t.Helper()
	type result struct {
		m   protocol.Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		m, err := h.server.Receive()
		ch <- result{m, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("server receive: %v", r.err)
		}
		return r.m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for client message")
		return nil
	}
}

// shutdown closes the server side and waits for the session to end cleanly
func (h *harness) shutdown(t *testing.T) {
	t.Helper()
	if err := h.server.CloseWrite(); err != nil {
		t.Fatalf("server close write: %v", err)
	}
	for {
		if _, err := h.server.Receive(); err != nil {
			break
		}
	}
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSession_PlaybackLifecycle(t *testing.T) {
	h := newHarness(t)
	flags := h.session.Flags()

	if flags.IsPlaying() {
		t.Fatal("expected idle before any reply")
	}

	h.send(t, protocol.Ready{})
	if m := <-h.displayed; m != (protocol.Ready{}) {
		t.Fatalf("expected Ready on display, got %#v", m)
	}

	h.send(t, protocol.TextDisplay{Text: "Hello there."})
	h.send(t, protocol.TTSAudioChunk{Samples: constant(4000, 1000)})
	waitFor(t, "playing", flags.IsPlaying)

	h.send(t, protocol.TTSEnd{})
	waitFor(t, "idle", func() bool { return flags.Playback() == entities.PlaybackIdle })

	if m := <-h.displayed; m != (protocol.TextDisplay{Text: "Hello there."}) {
		t.Fatalf("expected reply text on display, got %#v", m)
	}

	out := h.output.pull(8000)
	for i, v := range out {
		expected := int16(0)
		if i < 4000 {
			expected = 1000
		}
		if v != expected {
			t.Fatalf("sample %d: expected %d, got %d", i, expected, v)
		}
	}
	if played := h.session.Player().Played(); played != 4000 {
		t.Errorf("expected 4000 samples played, got %d", played)
	}

	h.shutdown(t)
}

func TestSession_BargeIn(t *testing.T) {
	h := newHarness(t)
	flags := h.session.Flags()
	player := h.session.Player()

	h.send(t, protocol.TTSAudioChunk{Samples: constant(4000, 1000)})
	h.send(t, protocol.TTSAudioChunk{Samples: constant(4000, 1000)})
	waitFor(t, "two queued chunks", func() bool { return player.Buffered() == 2 })

	// the user starts talking over the reply
	h.feed(voiceFrame(), voiceFrame(), voiceFrame())

	if m := h.receive(t); m != (protocol.InterruptTTS{}) {
		t.Fatalf("expected InterruptTTS, got %#v", m)
	}
	waitFor(t, "clear request", flags.ClearRequested.Load)
	if state := flags.Playback(); state != entities.PlaybackInterrupted {
		t.Fatalf("expected interrupted playback, got %s", state)
	}

	// the server had already sent the rest of the reply
	h.send(t, protocol.TTSAudioChunk{Samples: constant(4000, 1000)})
	h.send(t, protocol.TTSEnd{})
	waitFor(t, "idle", func() bool { return flags.Playback() == entities.PlaybackIdle })

	for i, v := range h.output.pull(frameSamples) {
		if v != 0 {
			t.Fatalf("expected silence on the clearing callback, sample %d is %d", i, v)
		}
	}
	if flags.ClearRequested.Load() {
		t.Error("expected clear request to be served")
	}
	if player.Clears() != 1 {
		t.Errorf("expected exactly one clear, got %d", player.Clears())
	}
	if player.Buffered() != 0 {
		t.Errorf("expected empty queue after clear, got %d", player.Buffered())
	}
	for i, v := range h.output.pull(12000) {
		if v != 0 {
			t.Fatalf("interrupted reply audio played at sample %d", i)
		}
	}

	// the barged-in speech continues and becomes the next turn
	for range 30 {
		h.feed(voiceFrame())
	}
	for range 60 {
		h.feed(make([]int16, frameSamples))
	}

	m := h.receive(t)
	segment, ok := m.(protocol.AudioSegment)
	if !ok {
		t.Fatalf("expected AudioSegment after the interrupt, got %#v", m)
	}
	if expected := 83 * frameSamples; len(segment.Samples) != expected {
		t.Errorf("expected segment of %d samples, got %d", expected, len(segment.Samples))
	}

	h.shutdown(t)
}

func TestSession_PauseResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.session.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if m := h.receive(t); m != (protocol.PauseRequest{}) {
		t.Fatalf("expected PauseRequest, got %#v", m)
	}
	if h.session.Flags().Listening.Load() {
		t.Fatal("expected listening off while paused")
	}

	// speech while paused never becomes a segment
	for range 30 {
		h.feed(voiceFrame())
	}
	for range 60 {
		h.feed(make([]int16, frameSamples))
	}

	if err := h.session.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if m := h.receive(t); m != (protocol.ResumeRequest{}) {
		t.Fatalf("expected ResumeRequest, got %#v", m)
	}
	if !h.session.Flags().Listening.Load() {
		t.Fatal("expected listening after resume")
	}

	h.shutdown(t)
}

func TestSession_SourceExhaustedFlushesSegment(t *testing.T) {
	h := newHarness(t)

	for range 30 {
		h.feed(voiceFrame())
	}
	close(h.source.frames)

	m := h.receive(t)
	segment, ok := m.(protocol.AudioSegment)
	if !ok {
		t.Fatalf("expected AudioSegment, got %#v", m)
	}
	if expected := 30 * frameSamples; len(segment.Samples) != expected {
		t.Errorf("expected %d samples, got %d", expected, len(segment.Samples))
	}

	h.shutdown(t)
}

func TestPlayer_ClearDropsStaleAudio(t *testing.T) {
	flags := entities.NewFlags()
	p := NewPlayer(flags, 4)
	ctx := context.Background()

	gen := p.Generation()
	if err := p.Push(ctx, gen, []int16{1, 1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := p.Push(ctx, gen, []int16{2, 2}); err != nil {
		t.Fatal(err)
	}

	out := make([]int16, 3)
	p.Fill(out)
	if out[0] != 1 || out[1] != 1 || out[2] != 1 {
		t.Fatalf("expected queued audio, got %v", out)
	}

	p.Clear()
	// a push that loaded its generation before the clear
	if err := p.Push(ctx, gen, []int16{3, 3}); err != nil {
		t.Fatal(err)
	}

	out = make([]int16, 4)
	p.Fill(out)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("expected silence while clearing, got %v", out)
		}
	}
	if flags.ClearRequested.Load() {
		t.Fatal("expected clear request served")
	}

	if err := p.Push(ctx, gen, []int16{3}); err != nil {
		t.Fatal(err)
	}
	if err := p.Push(ctx, p.Generation(), []int16{4, 4}); err != nil {
		t.Fatal(err)
	}
	p.Fill(out)
	expected := []int16{4, 4, 0, 0}
	for i := range expected {
		if out[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, out)
		}
	}
	if p.Played() != 5 {
		t.Errorf("expected 5 samples played, got %d", p.Played())
	}
}

func TestPlayer_PushBlocksWhenFull(t *testing.T) {
	p := NewPlayer(entities.NewFlags(), 1)
	if err := p.Push(context.Background(), 0, []int16{1}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Push(ctx, 0, []int16{2}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	p.Fill(make([]int16, 1))
	if err := p.Push(context.Background(), 0, []int16{2}); err != nil {
		t.Fatalf("expected room after fill, got %v", err)
	}
}

func TestSession_LogsServerTextByDefault(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := startHarness(t, zap.New(core), false)

	h.send(t, protocol.Ready{})
	h.send(t, protocol.TextDisplay{Text: "Hello there."})
	h.send(t, protocol.SummaryText{Text: "Two turns."})

	waitFor(t, "summary logged", func() bool {
		return logs.FilterMessage("Session summary").Len() == 1
	})
	if logs.FilterMessage("Conversation started, speak now").Len() != 1 {
		t.Error("expected Ready to be logged")
	}
	assistant := logs.FilterMessage("Assistant").All()
	if len(assistant) != 1 || assistant[0].ContextMap()["text"] != "Hello there." {
		t.Errorf("expected the reply text logged once, got %+v", assistant)
	}
	h.shutdown(t)
}
