// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// BookingQueueName is the durable queue every booking event is routed to.
const BookingQueueName = "parking.bookings"

// Booking event types.
const (
	EventBookingCreated   = "booking.created"
	EventBookingUpdated   = "booking.updated"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
	EventBookingDeleted   = "booking.deleted"
)

// BookingEvent is published after a booking transition is committed.  It
// contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.  Times are
// RFC 3339 strings in UTC.
type BookingEvent struct {
	Type          string `json:"type"`
	BookingID     uint64 `json:"booking_id"`
	UserID        uint64 `json:"user_id"`
	SlotID        uint64 `json:"slot_id"`
	VehicleNumber string `json:"vehicle_number"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	PriceCents    int64  `json:"price_cents"`
	OccurredAt    string `json:"occurred_at"`
}
