package stt

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/satriahrh/parley/domain/repositories"
)

var _ repositories.SpeechToText = &GoogleSpeechToText{}

func TestSplitBytes(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		length   int
		expected []int
	}{
		{name: "empty", size: 4, length: 0},
		{name: "exact", size: 4, length: 8, expected: []int{4, 4}},
		{name: "remainder", size: 4, length: 9, expected: []int{4, 4, 1}},
		{name: "smaller than one chunk", size: 3200, length: 100, expected: []int{100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitBytes(make([]byte, tt.length), tt.size)
			if len(chunks) != len(tt.expected) {
				t.Fatalf("expected %d chunks, got %d", len(tt.expected), len(chunks))
			}
			for i, c := range chunks {
				if len(c) != tt.expected[i] {
					t.Errorf("chunk %d: expected %d bytes, got %d", i, tt.expected[i], len(c))
				}
			}
		})
	}
}

func TestFinalTranscripts(t *testing.T) {
	results := []*speechpb.StreamingRecognitionResult{
		{IsFinal: false, Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "hel"}}},
		{IsFinal: true, Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " hello there "}, {Transcript: "yellow there"}}},
		{IsFinal: true},
		{IsFinal: true, Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "how are you"}}},
	}

	got := finalTranscripts(results)
	expected := []string{"hello there", "how are you"}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("expected %q, got %q", expected[i], got[i])
		}
	}
}

func TestRecognitionConfig(t *testing.T) {
	cfg := recognitionConfig("id-ID")
	if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Errorf("expected LINEAR16, got %s", cfg.GetEncoding())
	}
	if cfg.GetSampleRateHertz() != 16000 {
		t.Errorf("expected 16000 Hz, got %d", cfg.GetSampleRateHertz())
	}
	if cfg.GetLanguageCode() != "id-ID" {
		t.Errorf("expected id-ID, got %s", cfg.GetLanguageCode())
	}
}
