package booking

import (
	"testing"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

func TestDisplayStatus(t *testing.T) {
	now := at(12, 0)
	cases := []struct {
		name string
		b    model.Booking
		want string
	}{
		{"past active shows completed", model.Booking{StartTime: at(9, 0), EndTime: at(10, 0), Status: model.BookingActive}, "COMPLETED"},
		{"future active shows upcoming", model.Booking{StartTime: at(13, 0), EndTime: at(14, 0), Status: model.BookingActive}, "UPCOMING"},
		{"current active shows stored status", model.Booking{StartTime: at(11, 0), EndTime: at(13, 0), Status: model.BookingActive}, "ACTIVE"},
		{"future cancelled shows upcoming", model.Booking{StartTime: at(13, 0), EndTime: at(14, 0), Status: model.BookingCancelled}, "UPCOMING"},
		{"past cancelled shows completed", model.Booking{StartTime: at(7, 0), EndTime: at(7, 30), Status: model.BookingCancelled}, "COMPLETED"},
		{"current cancelled shows stored status", model.Booking{StartTime: at(11, 0), EndTime: at(13, 0), Status: model.BookingCancelled}, "CANCELLED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DisplayStatus(tc.b, now); got != tc.want {
				t.Fatalf("DisplayStatus = %q, want %q", got, tc.want)
			}
		})
	}
}
