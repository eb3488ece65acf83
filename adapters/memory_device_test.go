package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/satriahrh/parley/domain/entities"
)

func TestMemoryDeviceRepository(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	if err := repo.Seed(ctx, map[string]string{"SN-1": "s3cret"}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	device, err := repo.ValidateDevice("SN-1", "s3cret")
	if err != nil {
		t.Fatalf("ValidateDevice: %v", err)
	}
	if device.ID == "" || device.CreatedAt.IsZero() {
		t.Errorf("expected id and timestamps to be set, got %+v", device)
	}

	tests := []struct {
		name     string
		serial   string
		secret   string
		expected error
	}{
		{name: "wrong secret", serial: "SN-1", secret: "nope", expected: ErrInvalidCredentials},
		{name: "unknown serial", serial: "SN-9", secret: "s3cret", expected: ErrDeviceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.ValidateDevice(tt.serial, tt.secret); !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}

	if err := repo.Create(ctx, &entities.Device{SerialNumber: "SN-1", SecretKey: "x"}); !errors.Is(err, ErrDuplicateSerial) {
		t.Errorf("expected duplicate serial error, got %v", err)
	}
	if err := repo.Create(ctx, &entities.Device{SerialNumber: "SN-2"}); err == nil {
		t.Error("expected validation error for missing secret")
	}

	got, err := repo.GetByID(ctx, device.ID)
	if err != nil || got.SerialNumber != "SN-1" {
		t.Fatalf("GetByID: %+v, %v", got, err)
	}
	got.SerialNumber = "mutated"
	if again, _ := repo.GetBySerialNumber(ctx, "SN-1"); again.SerialNumber != "SN-1" {
		t.Error("expected returned devices to be copies")
	}

	if err := repo.Delete(ctx, device.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetBySerialNumber(ctx, "SN-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected deleted device to be gone, got %v", err)
	}
}
