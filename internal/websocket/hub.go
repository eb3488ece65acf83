// Package websocket accepts both ends of a conversation and pairs them: devices arrive
// over the /ws endpoint and wait in the hub; orchestrators connect over TCP, open a
// session with SessionStart and take the longest-waiting device. Each pair runs a router
// until either side leaves.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/parley/domain/entities"
	"github.com/satriahrh/parley/domain/repositories"
	"github.com/satriahrh/parley/internal/protocol"
	"github.com/satriahrh/parley/internal/router"
	"github.com/satriahrh/parley/internal/transport"
)

const archiveTimeout = 5 * time.Second

const noPartnerNotice = "No conversation is available right now. Please try again later."

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// devices are authenticated by bearer token, not origin
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 16384,
}

// ErrHubClosed is returned once the hub loop has stopped
var ErrHubClosed = errors.New("hub closed")

// Config tunes the hub
type Config struct {
	// PairTimeout drops devices that waited longer for an orchestrator
	PairTimeout time.Duration

	// HandshakeTimeout bounds the wait for an orchestrator's SessionStart
	HandshakeTimeout time.Duration

	Router router.Config

	// History receives a record of every ended session when set
	History repositories.SessionRepository
}

// DefaultConfig returns the hub defaults
func DefaultConfig() Config {
	return Config{
		PairTimeout:      30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		Router:           router.DefaultConfig(),
	}
}

// Client is a device waiting for, or taking part in, a conversation
type Client struct {
	session *entities.Session
	stream  transport.Stream
}

// NewClient wraps an accepted device stream in a pending session
func NewClient(deviceID string, stream transport.Stream) *Client {
	return &Client{session: entities.NewSession(deviceID), stream: stream}
}

type pairRequest struct {
	reply chan *Client
}

type reapRequest struct {
	timeout time.Duration
	reaped  chan int
}

// SessionInfo describes an active session for the health endpoint
type SessionInfo struct {
	ID        string        `json:"id"`
	DeviceID  string        `json:"device_id"`
	Language  string        `json:"language"`
	Turns     int           `json:"turns"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// Hub maintains the waiting devices and the active sessions
type Hub struct {
	// Register requests from devices.
	register chan *Client

	// Pair requests from orchestrators.
	pair   chan *pairRequest
	cancel chan *pairRequest

	reap chan reapRequest
	done chan struct{}

	// Mutex for thread-safe access to sessions map
	mu       sync.RWMutex
	sessions map[string]*entities.Session
	waiting  atomic.Int32

	stt repositories.SpeechToText
	tts repositories.TextToSpeech
	cfg Config

	routers sync.WaitGroup
	logger  *zap.Logger
}

// NewHub creates a new hub
func NewHub(stt repositories.SpeechToText, tts repositories.TextToSpeech, cfg Config, logger *zap.Logger) *Hub {
	d := DefaultConfig()
	if cfg.PairTimeout <= 0 {
		cfg.PairTimeout = d.PairTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = d.HandshakeTimeout
	}
	return &Hub{
		register: make(chan *Client),
		pair:     make(chan *pairRequest),
		cancel:   make(chan *pairRequest),
		reap:     make(chan reapRequest),
		done:     make(chan struct{}),
		sessions: make(map[string]*entities.Session),
		stt:      stt,
		tts:      tts,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run starts the hub's main loop. Waiting devices are disconnected when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	var clients []*Client
	var requests []*pairRequest

	for {
		select {
		case <-ctx.Done():
			for _, c := range clients {
				c.stream.Close()
			}
			for _, r := range requests {
				r.reply <- nil
			}
			h.waiting.Store(0)
			return

		case client := <-h.register:
			clients = append(clients, client)
			h.logger.Info("Device waiting for a conversation",
				zap.String("deviceID", client.session.DeviceID),
				zap.Int("waiting", len(clients)))

		case req := <-h.pair:
			requests = append(requests, req)

		case req := <-h.cancel:
			for i, r := range requests {
				if r == req {
					requests = append(requests[:i], requests[i+1:]...)
					break
				}
			}

		case req := <-h.reap:
			kept := clients[:0]
			reaped := 0
			for _, c := range clients {
				if c.session.IsIdle(req.timeout) {
					reaped++
					go h.reject(c)
					continue
				}
				kept = append(kept, c)
			}
			clear(clients[len(kept):])
			clients = kept
			req.reaped <- reaped
		}

		for len(clients) > 0 && len(requests) > 0 {
			requests[0].reply <- clients[0]
			clients[0] = nil
			clients, requests = clients[1:], requests[1:]
		}
		h.waiting.Store(int32(len(clients)))
	}
}

// Register queues a device until an orchestrator takes it
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		client.stream.Close()
		return ErrHubClosed
	}
}

// ReapIdle disconnects devices that waited longer than timeout and returns how many
func (h *Hub) ReapIdle(timeout time.Duration) int {
	req := reapRequest{timeout: timeout, reaped: make(chan int, 1)}
	select {
	case h.reap <- req:
		return <-req.reaped
	case <-h.done:
		return 0
	}
}

func (h *Hub) reject(c *Client) {
	h.logger.Info("Dropping device that waited too long",
		zap.String("deviceID", c.session.DeviceID),
		zap.Duration("waited", time.Since(c.session.CreatedAt)))
	if err := c.stream.Send(protocol.ErrorNotice{Text: noPartnerNotice}); err != nil {
		h.logger.Debug("Failed to notify dropped device", zap.Error(err))
	}
	c.stream.CloseWrite()
	c.stream.Close()
}

// awaitClient blocks until the loop hands over a device
func (h *Hub) awaitClient(ctx context.Context) (*Client, error) {
	req := &pairRequest{reply: make(chan *Client, 1)}
	select {
	case h.pair <- req:
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case c := <-req.reply:
		if c == nil {
			return nil, ErrHubClosed
		}
		return c, nil
	case <-ctx.Done():
		select {
		case h.cancel <- req:
		case <-h.done:
		}
		// the loop may have paired us just before the cancel
		select {
		case c := <-req.reply:
			if c != nil {
				c.stream.Close()
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// Serve accepts orchestrator connections until ctx ends
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	h.logger.Info("Accepting orchestrators", zap.String("addr", ln.Addr().String()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to accept orchestrator: %w", err)
		}
		h.routers.Add(1)
		go func() {
			defer h.routers.Done()
			h.serveOrchestrator(ctx, conn)
		}()
	}
}

// Wait blocks until every running session has ended
func (h *Hub) Wait() {
	h.routers.Wait()
}

func (h *Hub) serveOrchestrator(ctx context.Context, conn net.Conn) {
	logger := h.logger.With(zap.String("orchestrator", conn.RemoteAddr().String()))
	stream := transport.NewConnStream(conn)

	cfg, err := h.handshake(conn, stream)
	if err != nil {
		logger.Warn("Orchestrator handshake failed", zap.Error(err))
		stream.Close()
		return
	}

	client, err := h.awaitClient(ctx)
	if err != nil {
		logger.Info("No device paired", zap.Error(err))
		stream.Close()
		return
	}

	session := client.session
	if cfg.SessionID != "" {
		session.ID = cfg.SessionID
	}
	if cfg.Language != "" {
		session.Language = cfg.Language
	}
	session.Voice = cfg.Voice
	session.Activate()

	if err := client.stream.Send(protocol.Ready{}); err != nil {
		logger.Warn("Device left before the session started", zap.Error(err))
		client.stream.Close()
		stream.Close()
		return
	}
	if err := stream.Send(protocol.SessionReady{}); err != nil {
		logger.Warn("Orchestrator left before the session started", zap.Error(err))
		client.stream.Close()
		stream.Close()
		return
	}

	h.track(session)
	defer h.untrack(session)

	logger.Info("Session started",
		zap.String("sessionID", session.ID),
		zap.String("deviceID", session.DeviceID),
		zap.String("language", session.Language))

	r := router.New(session, client.stream, stream, h.stt, h.tts, h.cfg.Router, h.logger)
	err = r.Run(ctx)
	session.End()
	h.archive(ctx, session)

	fields := []zap.Field{
		zap.String("sessionID", session.ID),
		zap.Int("turns", session.Turns()),
		zap.Duration("duration", session.Duration()),
	}
	if err != nil {
		logger.Warn("Session ended with error", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("Session ended", fields...)
}

// archive saves the ended session, even during shutdown
func (h *Hub) archive(ctx context.Context, session *entities.Session) {
	if h.cfg.History == nil {
		return
	}
	record := session.Record()
	if record == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := h.cfg.History.Save(ctx, record); err != nil {
		h.logger.Error("Failed to save session history",
			zap.String("sessionID", session.ID),
			zap.Error(err))
	}
}

// handshake reads the SessionStart that must open every orchestrator connection
func (h *Hub) handshake(conn net.Conn, stream transport.Stream) (protocol.SessionConfig, error) {
	conn.SetReadDeadline(time.Now().Add(h.cfg.HandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	m, err := stream.Receive()
	if err != nil {
		return protocol.SessionConfig{}, fmt.Errorf("failed to read session start: %w", err)
	}
	start, ok := m.(protocol.SessionStart)
	if !ok {
		return protocol.SessionConfig{}, fmt.Errorf("expected %s, got %s", protocol.TagSessionStart, m.Tag())
	}
	return protocol.ParseSessionConfig(start.Config)
}

func (h *Hub) track(session *entities.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[session.ID] = session
}

func (h *Hub) untrack(session *entities.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, session.ID)
}

// ActiveSessions lists the running sessions
func (h *Hub) ActiveSessions() []SessionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(h.sessions))
	for _, s := range h.sessions {
		infos = append(infos, SessionInfo{
			ID:        s.ID,
			DeviceID:  s.DeviceID,
			Language:  s.Language,
			Turns:     s.Turns(),
			Duration:  s.Duration(),
			StartedAt: s.CreatedAt,
		})
	}
	return infos
}

// Waiting is the number of devices waiting for an orchestrator
func (h *Hub) Waiting() int {
	return int(h.waiting.Load())
}

// HandleWebSocket upgrades an authenticated device connection and queues it
func (h *Hub) HandleWebSocket(c echo.Context, deviceID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	if err := h.Register(NewClient(deviceID, transport.NewServerWS(conn))); err != nil {
		h.logger.Warn("Device rejected", zap.String("deviceID", deviceID), zap.Error(err))
	}
	return nil
}
