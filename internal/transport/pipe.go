package transport

import (
	"bufio"
	"io"
)

// Pipe returns two connected in-memory streams. Each direction is an independent
// io.Pipe, so CloseWrite on one end surfaces as io.EOF on the other end's Receive
// while the reverse direction keeps working.
func Pipe() (*ByteStream, *ByteStream) {
	aToBReader, aToBWriter := io.Pipe()
	bToAReader, bToAWriter := io.Pipe()

	a := &ByteStream{
		r:          bufio.NewReader(bToAReader),
		w:          aToBWriter,
		closeWrite: aToBWriter.Close,
		close: func() error {
			aToBWriter.Close()
			return bToAReader.Close()
		},
	}
	b := &ByteStream{
		r:          bufio.NewReader(aToBReader),
		w:          bToAWriter,
		closeWrite: bToAWriter.Close,
		close: func() error {
			bToAWriter.Close()
			return aToBReader.Close()
		},
	}
	return a, b
}
