package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/satriahrh/parley/internal/audio"
)

const (
	// HeaderSize is the tag byte plus the big-endian uint32 payload length.
	HeaderSize = 5

	// MaxPayload bounds a single payload. A 30 s utterance at 16 kHz is under 1 MiB.
	MaxPayload = 16 * 1024 * 1024
)

var (
	ErrUnknownTag      = errors.New("unknown message tag")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
	ErrOddAudioPayload = errors.New("audio payload has odd byte count")
	ErrTrailingBytes   = errors.New("trailing bytes after payload")
)

// DecodeError describes a failed decode. Stage is one of "tag", "length", "payload".
type DecodeError struct {
	Stage string
	Tag   Tag
	Err   error

	// Recoverable is set by message-delimited transports: the bad frame can be skipped
	// without losing stream alignment.
	Recoverable bool
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s of %s: %v", e.Stage, e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode serializes a message as tag, length, payload
func Encode(m Message) []byte {
	payload := encodePayload(m)
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(m.Tag())
	binary.BigEndian.PutUint32(buf[1:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

func encodePayload(m Message) []byte {
	switch v := m.(type) {
	case AudioSegment:
		return audio.SamplesToBytes(v.Samples)
	case TTSAudioChunk:
		return audio.SamplesToBytes(v.Samples)
	case TextDisplay:
		return []byte(v.Text)
	case ErrorNotice:
		return []byte(v.Text)
	case SummaryText:
		return []byte(v.Text)
	case SessionStart:
		return v.Config
	case Transcript:
		return []byte(v.Text)
	case ReplyText:
		return []byte(v.Text)
	case Feedback:
		return []byte(v.Text)
	case Summary:
		return []byte(v.Text)
	case OrchestratorError:
		return []byte(v.Text)
	default:
		// pause, resume, interrupt, ready, end markers
		return nil
	}
}

// Decode reads exactly one message from r. A clean EOF before the tag byte is returned
// as io.EOF; anything else that goes wrong is a *DecodeError.
func Decode(r io.Reader) (Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:1]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &DecodeError{Stage: "tag", Err: err}
	}
	tag := Tag(header[0])
	if !tag.Known() {
		return nil, &DecodeError{Stage: "tag", Tag: tag, Err: ErrUnknownTag}
	}

	if _, err := io.ReadFull(r, header[1:]); err != nil {
		return nil, &DecodeError{Stage: "length", Tag: tag, Err: unexpectedEOF(err)}
	}
	length := binary.BigEndian.Uint32(header[1:])
	if length > MaxPayload {
		return nil, &DecodeError{Stage: "length", Tag: tag, Err: fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)}
	}

	if isEmptyKind(tag) {
		// forward compatibility: tolerate and discard a payload we do not expect
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			return nil, &DecodeError{Stage: "payload", Tag: tag, Err: unexpectedEOF(err)}
		}
		return decodePayload(tag, nil)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &DecodeError{Stage: "payload", Tag: tag, Err: unexpectedEOF(err)}
	}
	return decodePayload(tag, payload)
}

// DecodeFrame decodes a buffer that must hold exactly one message
func DecodeFrame(frame []byte) (Message, error) {
	r := bytes.NewReader(frame)
	m, err := Decode(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Stage: "tag", Err: io.ErrUnexpectedEOF}
		}
		return nil, err
	}
	if r.Len() != 0 {
		return nil, &DecodeError{Stage: "payload", Tag: m.Tag(), Err: fmt.Errorf("%w: %d", ErrTrailingBytes, r.Len())}
	}
	return m, nil
}

func decodePayload(tag Tag, payload []byte) (Message, error) {
	switch tag {
	case TagAudioSegment, TagTTSAudioChunk:
		if len(payload)%2 != 0 {
			return nil, &DecodeError{Stage: "payload", Tag: tag, Err: fmt.Errorf("%w: %d bytes", ErrOddAudioPayload, len(payload))}
		}
		// empty payloads decode to nil so zero values round-trip
		var samples []int16
		if len(payload) > 0 {
			samples = audio.BytesToSamples(payload)
		}
		if tag == TagAudioSegment {
			return AudioSegment{Samples: samples}, nil
		}
		return TTSAudioChunk{Samples: samples}, nil
	case TagPauseRequest:
		return PauseRequest{}, nil
	case TagResumeRequest:
		return ResumeRequest{}, nil
	case TagInterruptTTS:
		return InterruptTTS{}, nil
	case TagReady:
		return Ready{}, nil
	case TagTextDisplay:
		return TextDisplay{Text: string(payload)}, nil
	case TagErrorNotice:
		return ErrorNotice{Text: string(payload)}, nil
	case TagTTSEnd:
		return TTSEnd{}, nil
	case TagSummaryText:
		return SummaryText{Text: string(payload)}, nil
	case TagSessionStart:
		if len(payload) == 0 {
			return SessionStart{}, nil
		}
		return SessionStart{Config: payload}, nil
	case TagSessionReady:
		return SessionReady{}, nil
	case TagTranscript:
		return Transcript{Text: string(payload)}, nil
	case TagReplyText:
		return ReplyText{Text: string(payload)}, nil
	case TagSessionEnd:
		return SessionEnd{}, nil
	case TagFeedback:
		return Feedback{Text: string(payload)}, nil
	case TagSummary:
		return Summary{Text: string(payload)}, nil
	case TagOrchestratorError:
		return OrchestratorError{Text: string(payload)}, nil
	}
	return nil, &DecodeError{Stage: "tag", Tag: tag, Err: ErrUnknownTag}
}

func isEmptyKind(tag Tag) bool {
	switch tag {
	case TagPauseRequest, TagResumeRequest, TagInterruptTTS, TagReady, TagTTSEnd, TagSessionReady, TagSessionEnd:
		return true
	}
	return false
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
