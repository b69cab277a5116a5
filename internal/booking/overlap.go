package booking

import (
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

// Overlaps reports whether the half-open windows [s1,e1) and [s2,e2)
// intersect.  Windows that only touch at an edge do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// ValidateRange returns ErrInvalidTimeRange unless end is strictly after start.
func ValidateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return ErrInvalidTimeRange
	}
	return nil
}

// HasConflict reports whether any ACTIVE booking on slotID overlaps the
// window [start,end).  The booking with id excludeID is skipped so that an
// update never conflicts with itself; pass 0 when creating.  Bookings on
// other slots and bookings in a terminal status are ignored.
func HasConflict(existing []model.Booking, slotID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	if err := ValidateRange(start, end); err != nil {
		return false, err
	}
	for _, b := range existing {
		if b.SlotID != slotID || b.Status != model.BookingActive {
			continue
		}
		if excludeID != 0 && b.ID == excludeID {
			continue
		}
		if Overlaps(start, end, b.StartTime, b.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

// CurrentBooking returns the ACTIVE booking on slotID whose window contains
// now, if any.  The non-overlap invariant guarantees at most one exists.
func CurrentBooking(existing []model.Booking, slotID uint64, now time.Time) (model.Booking, bool) {
	for _, b := range existing {
		if b.SlotID == slotID && b.Status == model.BookingActive && b.Contains(now) {
			return b, true
		}
	}
	return model.Booking{}, false
}
