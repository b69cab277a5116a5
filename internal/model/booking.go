package model

import "time"

// BookingStatus is the lifecycle state of a booking.  ACTIVE moves to
// either COMPLETED (its end time passed) or CANCELLED (a user or admin
// cancelled it).  Both of those are terminal.
type BookingStatus string

const (
	BookingActive    BookingStatus = "ACTIVE"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// Booking is a reservation of one slot by one user for the half-open
// window [StartTime, EndTime).  Times are stored in UTC.  PriceCents is
// fixed when the booking is created or updated and never recomputed
// afterwards.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – user who owns the booking.
//  SlotID        – reserved slot.
//  VehicleNumber – normalized plate (uppercase, no separators).
//  StartTime     – inclusive start of the window.
//  EndTime       – exclusive end of the window.
//  Status        – ACTIVE, COMPLETED or CANCELLED.
//  PriceCents    – price of the booking in cents.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Booking struct {
	ID            uint64        // bookings.id
	UserID        uint64        // bookings.user_id
	SlotID        uint64        // bookings.slot_id
	VehicleNumber string        // bookings.vehicle_number
	StartTime     time.Time     // bookings.start_time
	EndTime       time.Time     // bookings.end_time
	Status        BookingStatus // bookings.status
	PriceCents    int64         // bookings.price_cents
	CreatedAt     time.Time     // bookings.created_at
	UpdatedAt     time.Time     // bookings.updated_at
}

// Contains reports whether t lies inside the booking window.
func (b Booking) Contains(t time.Time) bool {
	return !t.Before(b.StartTime) && t.Before(b.EndTime)
}

// BookingDetail is a booking joined with the slot and floor it refers to,
// as listed in a user's history.
type BookingDetail struct {
	Booking
	SlotNumber string // slots.slot_number
	Category   Category
	FloorID    uint64 // floors.id
	FloorName  string // floors.name
}
