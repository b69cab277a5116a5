package booking

import (
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

// Display statuses shown in booking history in addition to the stored ones.
const (
	DisplayCompleted = "COMPLETED"
	DisplayUpcoming  = "UPCOMING"
)

// DisplayStatus derives the status shown to a user for one of their
// bookings at instant now.  The window decides first, whatever the stored
// status: a window in the past shows as COMPLETED and a window in the
// future as UPCOMING.  Anything else falls back to the stored status.
func DisplayStatus(b model.Booking, now time.Time) string {
	if b.EndTime.Before(now) {
		return DisplayCompleted
	}
	if b.StartTime.After(now) {
		return DisplayUpcoming
	}
	if b.Status == "" {
		return string(model.BookingActive)
	}
	return string(b.Status)
}
