// Package booking holds the pure rules of slot reservation: interval
// overlap, pricing, vehicle plate validation and the error kinds shared
// by the booking service and the HTTP layer.
package booking

import "errors"

var (
	// ErrSlotNotFound is returned when the referenced slot does not exist.
	ErrSlotNotFound = errors.New("slot not found")
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrBookingNotFound is returned when the referenced booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrInvalidVehicleNumber is returned when a plate fails format validation.
	ErrInvalidVehicleNumber = errors.New("invalid vehicle number format")
	// ErrInvalidTimeRange is returned when end is not strictly after start.
	ErrInvalidTimeRange = errors.New("end time must be after start time")
	// ErrTimeConflict is returned when the window overlaps an ACTIVE booking
	// on the same slot.
	ErrTimeConflict = errors.New("this time slot is unavailable or already booked")
	// ErrBookingNotActive is returned when an update targets a booking that
	// already reached a terminal status.
	ErrBookingNotActive = errors.New("booking is no longer active")
	// ErrUpdateContended is returned when a booking kept moving between
	// slots while an update was trying to lock it.  The caller may retry.
	ErrUpdateContended = errors.New("booking was changed concurrently, please retry")
)
