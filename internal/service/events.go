package service

import (
	"context"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/queue"
)

// EventPublisher delivers booking events to downstream consumers.  A nil
// publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

func newBookingEvent(kind string, b *model.Booking, at time.Time) queue.BookingEvent {
	return queue.BookingEvent{
		Type:          kind,
		BookingID:     b.ID,
		UserID:        b.UserID,
		SlotID:        b.SlotID,
		VehicleNumber: b.VehicleNumber,
		StartTime:     b.StartTime.UTC().Format(time.RFC3339),
		EndTime:       b.EndTime.UTC().Format(time.RFC3339),
		Status:        string(b.Status),
		PriceCents:    b.PriceCents,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
