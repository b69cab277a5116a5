package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"adjacent windows", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"partial overlap", at(9, 0), at(10, 30), at(10, 0), at(11, 0), true},
		{"contained", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
		{"identical", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"disjoint", at(7, 0), at(8, 0), at(9, 0), at(10, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.s1, tc.e1, tc.s2, tc.e2); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := Overlaps(tc.s2, tc.e2, tc.s1, tc.e1); got != tc.want {
				t.Fatalf("Overlaps is not symmetric: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasConflict(t *testing.T) {
	existing := []model.Booking{
		{ID: 1, SlotID: 7, StartTime: at(9, 0), EndTime: at(10, 0), Status: model.BookingActive},
		{ID: 2, SlotID: 7, StartTime: at(12, 0), EndTime: at(13, 0), Status: model.BookingCancelled},
		{ID: 3, SlotID: 8, StartTime: at(9, 0), EndTime: at(10, 0), Status: model.BookingActive},
		{ID: 4, SlotID: 7, StartTime: at(14, 0), EndTime: at(15, 0), Status: model.BookingCompleted},
	}

	t.Run("overlapping active booking conflicts", func(t *testing.T) {
		got, err := HasConflict(existing, 7, at(9, 30), at(10, 30), 0)
		if err != nil || !got {
			t.Fatalf("expected conflict, got %v (err %v)", got, err)
		}
	})

	t.Run("adjacent window does not conflict", func(t *testing.T) {
		got, err := HasConflict(existing, 7, at(10, 0), at(11, 0), 0)
		if err != nil || got {
			t.Fatalf("expected no conflict, got %v (err %v)", got, err)
		}
	})

	t.Run("excluded booking does not conflict with itself", func(t *testing.T) {
		got, err := HasConflict(existing, 7, at(9, 15), at(9, 45), 1)
		if err != nil || got {
			t.Fatalf("expected no conflict, got %v (err %v)", got, err)
		}
	})

	t.Run("terminal bookings and other slots are ignored", func(t *testing.T) {
		for _, w := range [][2]time.Time{{at(12, 0), at(13, 0)}, {at(14, 0), at(15, 0)}} {
			got, err := HasConflict(existing, 7, w[0], w[1], 0)
			if err != nil || got {
				t.Fatalf("window %v: expected no conflict, got %v (err %v)", w, got, err)
			}
		}
		got, _ := HasConflict(existing[2:3], 7, at(9, 0), at(10, 0), 0)
		if got {
			t.Fatal("booking on another slot must not conflict")
		}
	})

	t.Run("invalid range is rejected", func(t *testing.T) {
		if _, err := HasConflict(existing, 7, at(10, 0), at(10, 0), 0); !errors.Is(err, ErrInvalidTimeRange) {
			t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
		}
		if _, err := HasConflict(existing, 7, at(11, 0), at(10, 0), 0); !errors.Is(err, ErrInvalidTimeRange) {
			t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
		}
	})
}

func TestCurrentBooking(t *testing.T) {
	existing := []model.Booking{
		{ID: 1, SlotID: 7, StartTime: at(9, 0), EndTime: at(10, 0), Status: model.BookingActive},
		{ID: 2, SlotID: 7, StartTime: at(10, 0), EndTime: at(11, 0), Status: model.BookingCancelled},
	}
	if b, ok := CurrentBooking(existing, 7, at(9, 0)); !ok || b.ID != 1 {
		t.Fatalf("expected booking 1 to hold the slot at its start, got %v %v", b.ID, ok)
	}
	if _, ok := CurrentBooking(existing, 7, at(10, 0)); ok {
		t.Fatal("end instant is exclusive and cancelled bookings never hold a slot")
	}
}
