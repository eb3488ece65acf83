package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/gorilla/websocket"

	"github.com/satriahrh/parley/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// MaxMessageSize bounds one WebSocket frame: header plus the largest payload.
	MaxMessageSize = protocol.HeaderSize + protocol.MaxPayload
)

// ServerWS is the server side of the client channel, one protocol message per binary frame.
type ServerWS struct {
	conn      *websocket.Conn
	pongWait  time.Duration
	stopPing  chan struct{}
	armOnce   sync.Once
	closeOnce sync.Once
	stopOnce  sync.Once
}

var _ Stream = (*ServerWS)(nil)

// NewServerWS takes ownership of an upgraded connection and starts the keepalive pinger.
// The read deadline is armed by the first Receive, so a device may wait unread for a
// pairing longer than pongWait.
func NewServerWS(conn *websocket.Conn) *ServerWS {
	return newServerWS(conn, pongWait)
}

func newServerWS(conn *websocket.Conn, wait time.Duration) *ServerWS {
	s := &ServerWS{
		conn:     conn,
		pongWait: wait,
		stopPing: make(chan struct{}),
	}
	conn.SetReadLimit(MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongWait))
		return nil
	})
	go s.pinger()
	return s
}

func (s *ServerWS) pinger() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopPing:
			return
		case <-ticker.C:
			// WriteControl may run concurrently with the owning writer
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Receive implements Reader
func (s *ServerWS) Receive() (protocol.Message, error) {
	s.armOnce.Do(func() {
		s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read websocket message: %w", err)
		}
		if messageType != websocket.BinaryMessage {
			// text frames are not part of the protocol
			continue
		}
		m, err := protocol.DecodeFrame(data)
		if err != nil {
			return nil, markRecoverable(err)
		}
		return m, nil
	}
}

// Send implements Writer
func (s *ServerWS) Send(m protocol.Message) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, protocol.Encode(m)); err != nil {
		return fmt.Errorf("failed to send %s: %w", m.Tag(), err)
	}
	return nil
}

// CloseWrite sends a close frame. The client answers with its own close frame, which
// ends the read half.
func (s *ServerWS) CloseWrite() error {
	s.stopOnce.Do(func() { close(s.stopPing) })
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to send close frame: %w", err)
	}
	return nil
}

// Close implements Stream
func (s *ServerWS) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stopOnce.Do(func() { close(s.stopPing) })
		err = s.conn.Close()
	})
	return err
}

// ClientWS is the client side of the client channel, dialed with coder/websocket
type ClientWS struct {
	conn *cws.Conn
	ctx  context.Context
}

var _ Stream = (*ClientWS)(nil)

// DialServer connects to the server's /ws endpoint with a bearer token
func DialServer(ctx context.Context, url, token string) (*ClientWS, error) {
	opts := &cws.DialOptions{}
	if token != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + token},
		}
	}
	conn, _, err := cws.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}
	conn.SetReadLimit(MaxMessageSize)
	return &ClientWS{conn: conn, ctx: ctx}, nil
}

// Receive implements Reader
func (c *ClientWS) Receive() (protocol.Message, error) {
	for {
		messageType, data, err := c.conn.Read(c.ctx)
		if err != nil {
			switch cws.CloseStatus(err) {
			case cws.StatusNormalClosure, cws.StatusGoingAway:
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read websocket message: %w", err)
		}
		if messageType != cws.MessageBinary {
			continue
		}
		m, err := protocol.DecodeFrame(data)
		if err != nil {
			return nil, markRecoverable(err)
		}
		return m, nil
	}
}

// Send implements Writer
func (c *ClientWS) Send(m protocol.Message) error {
	if err := c.conn.Write(c.ctx, cws.MessageBinary, protocol.Encode(m)); err != nil {
		return fmt.Errorf("failed to send %s: %w", m.Tag(), err)
	}
	return nil
}

// CloseWrite runs the close handshake. coder/websocket has no half-close, so this also
// ends the read half once the server acknowledges.
func (c *ClientWS) CloseWrite() error {
	return c.Close()
}

// Close implements Stream
func (c *ClientWS) Close() error {
	err := c.conn.Close(cws.StatusNormalClosure, "")
	if err != nil && cws.CloseStatus(err) == cws.StatusNormalClosure {
		return nil
	}
	return err
}

func markRecoverable(err error) error {
	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) {
		decodeErr.Recoverable = true
	}
	return err
}
