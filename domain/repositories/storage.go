package repositories

import (
	"context"

	"github.com/satriahrh/parley/domain/entities"
)

// DeviceRepository defines data access methods for devices
type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, id string) (*entities.Device, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error)
	Delete(ctx context.Context, id string) error
	// ValidateDevice validates device credentials for authentication
	ValidateDevice(serialNumber, secret string) (*entities.Device, error)
}

// SessionRepository keeps the history of ended sessions
type SessionRepository interface {
	Save(ctx context.Context, record *entities.SessionRecord) error
	// ListByDevice returns the device's sessions, most recent first
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*entities.SessionRecord, error)
}
