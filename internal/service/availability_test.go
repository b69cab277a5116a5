package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/booking"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/repository"
)

func waitBriefly() { time.Sleep(5 * time.Millisecond) }

func TestSlotAvailabilityNotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.avail.SlotAvailability(context.Background(), 424242); !errors.Is(err, booking.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestSlotAvailabilityHealsStaleFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.slot(t, "A1", model.CategoryRegular)

	// Simulate drift: the flag says occupied but nothing holds the slot.
	if _, err := env.h.Slots.SyncOccupied(ctx, s.ID, true); err != nil {
		t.Fatalf("force flag: %v", err)
	}
	view, err := env.avail.SlotAvailability(ctx, s.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if view.Occupied || view.ActiveBooking != nil || len(view.Reservations) != 0 {
		t.Fatalf("unexpected view %+v", view)
	}
	if env.occupied(t, s.ID) {
		t.Fatal("stale flag should have been cleared")
	}
}

func TestFloorAvailabilityAndFloors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.slot(t, "A1", model.CategoryRegular)
	env.slot(t, "A2", model.CategoryRegular)
	e1 := env.slot(t, "E1", model.CategoryEV)

	env.book(t, a1.ID, at(7, 0), at(9, 0))
	env.book(t, e1.ID, at(10, 0), at(11, 0))

	fa, err := env.avail.FloorAvailability(ctx, env.floor.ID)
	if err != nil {
		t.Fatalf("floor availability: %v", err)
	}
	if len(fa.Slots) != 3 || fa.Floor.TotalSlots != 3 || fa.Floor.AvailableSlots != 2 {
		t.Fatalf("unexpected floor view: total=%d available=%d slots=%d",
			fa.Floor.TotalSlots, fa.Floor.AvailableSlots, len(fa.Slots))
	}
	for _, sv := range fa.Slots {
		switch sv.Slot.ID {
		case a1.ID:
			if !sv.Occupied {
				t.Fatal("A1 should be occupied")
			}
		case e1.ID:
			if sv.Occupied || len(sv.Reservations) != 1 {
				t.Fatalf("E1 should be free with one upcoming reservation: %+v", sv)
			}
		}
	}

	env.clock.Set(at(10, 30))
	floors, err := env.avail.Floors(ctx)
	if err != nil {
		t.Fatalf("floors: %v", err)
	}
	if len(floors) != 1 || floors[0].AvailableSlots != 2 {
		t.Fatalf("at 10:30 A1 is done and E1 is taken, expected 2 free: %+v", floors)
	}

	if _, err := env.avail.FloorAvailability(ctx, 9999); !errors.Is(err, repository.ErrFloorNotFound) {
		t.Fatalf("expected ErrFloorNotFound, got %v", err)
	}
}
