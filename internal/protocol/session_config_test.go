package protocol

import (
	"testing"

	"github.com/tinylib/msgp/msgp"
)

func TestSessionConfig_RoundTrip(t *testing.T) {
	cfg := SessionConfig{
		SessionID: "abc-123",
		Language:  "en-US",
		Voice:     "rachel",
		Persona:   "interview coach",
		MaxTurns:  40,
	}

	start, err := NewSessionStart(cfg)
	if err != nil {
		t.Fatalf("NewSessionStart() error = %v", err)
	}

	decoded, err := DecodeFrame(Encode(start))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	parsed, err := ParseSessionConfig(decoded.(SessionStart).Config)
	if err != nil {
		t.Fatalf("ParseSessionConfig() error = %v", err)
	}
	if parsed != cfg {
		t.Errorf("Expected %+v, got %+v", cfg, parsed)
	}
}

func TestParseSessionConfig_SkipsUnknownFields(t *testing.T) {
	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendString(b, "future_field")
	b = msgp.AppendBool(b, true)
	b = msgp.AppendString(b, "language")
	b = msgp.AppendString(b, "id-ID")

	cfg, err := ParseSessionConfig(b)
	if err != nil {
		t.Fatalf("ParseSessionConfig() error = %v", err)
	}
	if cfg.Language != "id-ID" {
		t.Errorf("Expected language id-ID, got %s", cfg.Language)
	}
}

func TestParseSessionConfig_Empty(t *testing.T) {
	cfg, err := ParseSessionConfig(nil)
	if err != nil {
		t.Fatalf("ParseSessionConfig() error = %v", err)
	}
	if cfg != (SessionConfig{}) {
		t.Errorf("Expected zero config, got %+v", cfg)
	}

	if _, err := ParseSessionConfig([]byte{0xC1}); err == nil {
		t.Error("Expected error for malformed payload")
	}
}
