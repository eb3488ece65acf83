package protocol

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func allVariants() []Message {
	return []Message{
		AudioSegment{Samples: []int16{0, 1, -1, 32767, -32768}},
		AudioSegment{},
		PauseRequest{},
		ResumeRequest{},
		InterruptTTS{},
		Ready{},
		TextDisplay{Text: "Hello there."},
		TextDisplay{Text: ""},
		ErrorNotice{Text: "something went wrong"},
		TTSAudioChunk{Samples: []int16{100, -100, 200}},
		TTSAudioChunk{},
		TTSEnd{},
		SummaryText{Text: "You did well today."},
		SessionStart{Config: []byte{0x80}},
		SessionStart{},
		SessionReady{},
		Transcript{Text: "how are you"},
		ReplyText{Text: "I'm fine. And you?"},
		SessionEnd{},
		Feedback{Text: "Try to slow down."},
		Summary{Text: "summary"},
		OrchestratorError{Text: "backend unavailable"},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, m := range allVariants() {
		t.Run(m.Tag().String(), func(t *testing.T) {
			decoded, err := Decode(bytes.NewReader(Encode(m)))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(decoded, m) {
				t.Errorf("Expected %#v, got %#v", m, decoded)
			}

			framed, err := DecodeFrame(Encode(m))
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if !reflect.DeepEqual(framed, m) {
				t.Errorf("Expected %#v, got %#v", m, framed)
			}
		})
	}
}

func TestEncodeDecode_LargePayloads(t *testing.T) {
	samples := make([]int16, 30*16000)
	for i := range samples {
		samples[i] = int16(i % 65536)
	}
	m := AudioSegment{Samples: samples}
	decoded, err := Decode(bytes.NewReader(Encode(m)))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(decoded, m) {
		t.Error("large audio segment did not survive the round trip")
	}

	text := ReplyText{Text: strings.Repeat("Sentence number one. ", 10000)}
	decoded, err = Decode(bytes.NewReader(Encode(text)))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(decoded, text) {
		t.Error("large reply text did not survive the round trip")
	}
}

func TestDecode_Stream(t *testing.T) {
	var buf bytes.Buffer
	for _, m := range allVariants() {
		buf.Write(Encode(m))
	}
	for _, want := range allVariants() {
		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expected %#v, got %#v", want, got)
		}
	}
	if _, err := Decode(&buf); err != io.EOF {
		t.Errorf("Expected io.EOF at clean end of stream, got %v", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr error
		stage   string
	}{
		{
			name:    "unknown tag",
			input:   []byte{0x7F, 0, 0, 0, 0},
			wantErr: ErrUnknownTag,
			stage:   "tag",
		},
		{
			name:    "tag in a range gap",
			input:   []byte{0x0F, 0, 0, 0, 0},
			wantErr: ErrUnknownTag,
			stage:   "tag",
		},
		{
			name:    "truncated length",
			input:   []byte{byte(TagTranscript), 0, 0},
			wantErr: io.ErrUnexpectedEOF,
			stage:   "length",
		},
		{
			name:    "short payload",
			input:   []byte{byte(TagTranscript), 0, 0, 0, 5, 'a', 'b'},
			wantErr: io.ErrUnexpectedEOF,
			stage:   "payload",
		},
		{
			name:    "odd audio payload",
			input:   []byte{byte(TagAudioSegment), 0, 0, 0, 3, 1, 2, 3},
			wantErr: ErrOddAudioPayload,
			stage:   "payload",
		},
		{
			name:    "payload too large",
			input:   []byte{byte(TagReplyText), 0xFF, 0xFF, 0xFF, 0xFF},
			wantErr: ErrPayloadTooLarge,
			stage:   "length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("Expected *DecodeError, got %T", err)
			}
			if decodeErr.Stage != tt.stage {
				t.Errorf("Expected stage %s, got %s", tt.stage, decodeErr.Stage)
			}
		})
	}
}

func TestDecode_EmptyKindsDiscardPayload(t *testing.T) {
	input := []byte{byte(TagPauseRequest), 0, 0, 0, 3, 9, 9, 9}
	input = append(input, Encode(ResumeRequest{})...)
	r := bytes.NewReader(input)

	first, err := Decode(r)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := first.(PauseRequest); !ok {
		t.Errorf("Expected PauseRequest, got %T", first)
	}

	second, err := Decode(r)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := second.(ResumeRequest); !ok {
		t.Errorf("Expected ResumeRequest after discarded payload, got %T", second)
	}
}

func TestDecodeFrame_TrailingBytes(t *testing.T) {
	frame := append(Encode(TTSEnd{}), 0x00)
	if _, err := DecodeFrame(frame); !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("Expected ErrTrailingBytes, got %v", err)
	}
	if _, err := DecodeFrame(nil); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected io.ErrUnexpectedEOF for empty frame, got %v", err)
	}
}

func TestTag_Ranges(t *testing.T) {
	seen := map[Range]int{}
	for tag := range TagNames {
		r := tag.Range()
		if r == RangeUnknown {
			t.Errorf("Tag %s has no range", tag)
		}
		seen[r]++
	}
	if seen[RangeClientToServer] != 4 {
		t.Errorf("Expected 4 client->server tags, got %d", seen[RangeClientToServer])
	}
	if seen[RangeServerToClient] != 6 {
		t.Errorf("Expected 6 server->client tags, got %d", seen[RangeServerToClient])
	}
	if seen[RangeOrchestrator] != 8 {
		t.Errorf("Expected 8 orchestrator tags, got %d", seen[RangeOrchestrator])
	}
	if Tag(0x7F).Range() != RangeUnknown {
		t.Error("Unknown tag should have no range")
	}
}
