//go:generate msgp

package protocol

import (
	"fmt"
)

// SessionConfig is the configuration the orchestrator sends in SessionStart.
// It travels as MessagePack so older servers can skip fields they do not know.
type SessionConfig struct {
	SessionID string `msg:"session_id"`
	Language  string `msg:"language"`
	Voice     string `msg:"voice"`
	Persona   string `msg:"persona"`
	MaxTurns  int    `msg:"max_turns"`
}

// NewSessionStart encodes cfg into a SessionStart message
func NewSessionStart(cfg SessionConfig) (SessionStart, error) {
	payload, err := cfg.MarshalMsg(nil)
	if err != nil {
		return SessionStart{}, fmt.Errorf("failed to encode session config: %w", err)
	}
	return SessionStart{Config: payload}, nil
}

// ParseSessionConfig decodes the opaque SessionStart payload. An empty payload yields
// the zero config.
func ParseSessionConfig(payload []byte) (SessionConfig, error) {
	var cfg SessionConfig
	if len(payload) == 0 {
		return cfg, nil
	}
	if _, err := cfg.UnmarshalMsg(payload); err != nil {
		return SessionConfig{}, fmt.Errorf("failed to decode session config: %w", err)
	}
	return cfg, nil
}
