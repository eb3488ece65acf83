// Package transport carries protocol messages over the two session channels.
// Every stream is split once into a read half and a write half, each owned by a single worker.
package transport

import (
	"errors"
	"io"
	"net"

	"github.com/satriahrh/parley/internal/protocol"
)

// Reader is the read half of a stream
type Reader interface {
	// Receive blocks until a message arrives. It returns io.EOF on a clean close.
	Receive() (protocol.Message, error)
}

// Writer is the write half of a stream
type Writer interface {
	Send(m protocol.Message) error
	// CloseWrite signals the peer that no more messages follow. The read half stays usable
	// where the transport allows it.
	CloseWrite() error
}

// Stream is a full-duplex message channel
type Stream interface {
	Reader
	Writer
	// Close tears down both halves and unblocks any pending Receive.
	Close() error
}

// IsRecoverable reports whether err only affected a single message and the stream remains aligned
func IsRecoverable(err error) bool {
	var decodeErr *protocol.DecodeError
	return errors.As(err, &decodeErr) && decodeErr.Recoverable
}

// IsClosed reports whether err means the peer went away, as opposed to a malformed stream
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
