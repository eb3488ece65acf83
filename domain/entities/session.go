package entities

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the status of a session
type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusActive  SessionStatus = "active"
	SessionStatusEnded   SessionStatus = "ended"
)

// Session is one conversation between a device and an orchestrator. It lives in memory
// from pairing until either side disconnects.
type Session struct {
	ID        string
	DeviceID  string
	Language  string
	Voice     string
	CreatedAt time.Time

	// Flags coordinate the session's workers
	Flags *Flags

	mu           sync.Mutex
	status       SessionStatus
	lastActiveAt time.Time
	endedAt      time.Time
	turns        int
}

// NewSession creates a pending session for a device
func NewSession(deviceID string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		Language:     "en-US",
		CreatedAt:    now,
		Flags:        NewFlags(),
		status:       SessionStatusPending,
		lastActiveAt: now,
	}
}

// Activate marks the session as paired and running
func (s *Session) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == SessionStatusPending {
		s.status = SessionStatusActive
		s.lastActiveAt = time.Now()
	}
}

// RecordTurn counts one user utterance forwarded to the orchestrator
func (s *Session) RecordTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns++
	s.lastActiveAt = time.Now()
}

// Touch updates the last active timestamp
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

// End marks the session as ended. It reports false if it already was.
func (s *Session) End() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == SessionStatusEnded {
		return false
	}
	s.status = SessionStatusEnded
	s.endedAt = time.Now()
	return true
}

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// Duration is the time from creation to end, or to now while running
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == SessionStatusEnded {
		return s.endedAt.Sub(s.CreatedAt)
	}
	return time.Since(s.CreatedAt)
}

// IsIdle reports whether a pending session waited longer than timeout
func (s *Session) IsIdle(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == SessionStatusPending && time.Since(s.lastActiveAt) > timeout
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.DeviceID == "" {
		return errors.New("device_id is required")
	}
	if s.Flags == nil {
		return errors.New("flags are required")
	}
	return nil
}

// SessionRecord is what is kept of a session after it ends
type SessionRecord struct {
	ID        string    `json:"id" bson:"_id"`
	DeviceID  string    `json:"device_id" bson:"device_id"`
	Language  string    `json:"language" bson:"language"`
	Voice     string    `json:"voice,omitempty" bson:"voice,omitempty"`
	Turns     int       `json:"turns" bson:"turns"`
	StartedAt time.Time `json:"started_at" bson:"started_at"`
	EndedAt   time.Time `json:"ended_at" bson:"ended_at"`
}

// Duration is how long the session ran
func (r *SessionRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Record snapshots an ended session. It returns nil while the session is still running.
func (s *Session) Record() *SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != SessionStatusEnded {
		return nil
	}
	return &SessionRecord{
		ID:        s.ID,
		DeviceID:  s.DeviceID,
		Language:  s.Language,
		Voice:     s.Voice,
		Turns:     s.turns,
		StartedAt: s.CreatedAt,
		EndedAt:   s.endedAt,
	}
}
