package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/satriahrh/parley/domain/entities"
)

func TestMemorySessionRepository(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"s-1", "s-2", "s-3"} {
		record := &entities.SessionRecord{
			ID:        id,
			DeviceID:  "device-1",
			Turns:     i,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			EndedAt:   base.Add(time.Duration(i)*time.Hour + time.Minute),
		}
		if err := repo.Save(ctx, record); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	if err := repo.Save(ctx, &entities.SessionRecord{ID: "s-4", DeviceID: "device-2", EndedAt: base}); err != nil {
		t.Fatal(err)
	}

	records, err := repo.ListByDevice(ctx, "device-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].ID != "s-3" || records[1].ID != "s-2" {
		t.Fatalf("expected the two most recent sessions, got %+v", records)
	}

	// callers get copies
	records[0].Turns = 99
	again, _ := repo.ListByDevice(ctx, "device-1", 0)
	if len(again) != 3 || again[0].Turns != 2 {
		t.Errorf("unexpected history %+v", again)
	}

	if none, _ := repo.ListByDevice(ctx, "device-3", 10); len(none) != 0 {
		t.Errorf("expected no sessions for an unknown device, got %d", len(none))
	}
	if err := repo.Save(ctx, &entities.SessionRecord{}); err == nil {
		t.Error("expected a record without ID to be rejected")
	}
}
