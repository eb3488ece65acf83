package websocket

import (
	"time"

	"go.uber.org/zap"
)

// SessionCleanupService drops devices that waited too long for an orchestrator
type SessionCleanupService struct {
	hub      *Hub
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewSessionCleanupService checks every timeout/2 for devices idle longer than timeout
func NewSessionCleanupService(hub *Hub, timeout time.Duration, logger *zap.Logger) *SessionCleanupService {
	interval := timeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	return &SessionCleanupService{
		hub:      hub,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started", zap.Duration("pairTimeout", s.timeout))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	<-s.done
	s.logger.Info("Session cleanup service stopped")
}

func (s *SessionCleanupService) cleanupLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if n := s.hub.ReapIdle(s.timeout); n > 0 {
				s.logger.Info("Dropped waiting devices", zap.Int("count", n))
			}
		}
	}
}
