package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/satriahrh/parley/domain/entities"
	"github.com/satriahrh/parley/domain/repositories"
)

// MemorySessionRepository keeps session history for the lifetime of the process
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.SessionRecord
}

var _ repositories.SessionRepository = (*MemorySessionRepository)(nil)

// NewMemorySessionRepository creates an empty history
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*entities.SessionRecord)}
}

// Save stores record, replacing an earlier record with the same ID
func (m *MemorySessionRepository) Save(ctx context.Context, record *entities.SessionRecord) error {
	if record == nil || record.ID == "" {
		return errors.New("session record with an ID is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	recordCopy := *record
	m.sessions[record.ID] = &recordCopy
	return nil
}

// ListByDevice implements SessionRepository. limit <= 0 returns everything.
func (m *MemorySessionRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*entities.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*entities.SessionRecord
	for _, r := range m.sessions {
		if r.DeviceID == deviceID {
			recordCopy := *r
			records = append(records, &recordCopy)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].EndedAt.After(records[j].EndedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
