package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/satriahrh/parley/internal/protocol"
)

// ByteStream frames messages over an ordered byte stream, such as the local TCP
// channel to the orchestrator. There is no resynchronization marker, so decode errors
// are never recoverable here.
type ByteStream struct {
	r *bufio.Reader
	w io.Writer

	closeWrite func() error
	close      func() error
	closeOnce  sync.Once
}

var _ Stream = (*ByteStream)(nil)

// NewConnStream wraps a net.Conn. TCP and Unix connections get a real half-close.
func NewConnStream(conn net.Conn) *ByteStream {
	closeWrite := conn.Close
	if hc, ok := conn.(interface{ CloseWrite() error }); ok {
		closeWrite = hc.CloseWrite
	}
	return &ByteStream{
		r:          bufio.NewReader(conn),
		w:          conn,
		closeWrite: closeWrite,
		close:      conn.Close,
	}
}

// Receive implements Reader
func (s *ByteStream) Receive() (protocol.Message, error) {
	m, err := protocol.Decode(s.r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}
	return m, nil
}

// Send implements Writer
func (s *ByteStream) Send(m protocol.Message) error {
	if _, err := s.w.Write(protocol.Encode(m)); err != nil {
		return fmt.Errorf("failed to send %s: %w", m.Tag(), err)
	}
	return nil
}

// CloseWrite implements Writer
func (s *ByteStream) CloseWrite() error {
	return s.closeWrite()
}

// Close implements Stream
func (s *ByteStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.close()
	})
	return err
}
