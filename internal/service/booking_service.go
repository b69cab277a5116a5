package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/booking"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/queue"
)

// CreateBookingInput carries the fields of a new booking.
type CreateBookingInput struct {
	UserID        uint64
	SlotID        uint64
	VehicleNumber string
	StartTime     time.Time
	EndTime       time.Time
}

// UpdateBookingInput carries the replacement fields of an existing booking.
type UpdateBookingInput struct {
	SlotID        uint64
	VehicleNumber string
	StartTime     time.Time
	EndTime       time.Time
}

// HistoryEntry is a booking of a user with the status shown to them.
type HistoryEntry struct {
	model.BookingDetail
	DisplayStatus string
}

// BookingService is the only writer of bookings and of slot occupancy
// besides the reconciler.  Every write that checks for overlaps holds the
// slot's in-process lock and a row lock on the slot inside one
// transaction, so two writers can never both pass the conflict check for
// the same slot.
type BookingService struct {
	d          Deps
	reconciler *Reconciler

	beforeAttempt func() // test hook, runs before each locked update attempt
}

func NewBookingService(d Deps) *BookingService {
	d = d.withDefaults()
	return &BookingService{d: d, reconciler: NewReconciler(d)}
}

// Reconciler returns the reconciler sharing this service's locks.
func (s *BookingService) Reconciler() *Reconciler { return s.reconciler }

// Rates returns the tariff used for pricing.
func (s *BookingService) Rates() booking.Rates { return s.d.Rates }

// CreateBooking validates and stores a new ACTIVE booking.  The slot is
// flagged occupied only when the booking window already contains now.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	s.reconcile(ctx)

	if err := booking.ValidateVehicleNumber(in.VehicleNumber); err != nil {
		return nil, err
	}
	start, end := normalizeTime(in.StartTime), normalizeTime(in.EndTime)
	if err := booking.ValidateRange(start, end); err != nil {
		return nil, err
	}
	if _, err := s.d.Users.GetByID(ctx, in.UserID); err != nil {
		return nil, domainErr(err)
	}

	unlock := s.d.Locks.Lock(in.SlotID)
	defer unlock()

	b := &model.Booking{
		UserID:        in.UserID,
		SlotID:        in.SlotID,
		VehicleNumber: booking.NormalizeVehicleNumber(in.VehicleNumber),
		StartTime:     start,
		EndTime:       end,
	}
	now := s.d.now()
	err := withTx(ctx, s.d.DB, func(tx *sql.Tx) error {
		slot, err := s.d.Slots.LockTx(ctx, tx, in.SlotID)
		if err != nil {
			return domainErr(err)
		}
		active, err := s.d.Bookings.ListActiveBySlotTx(ctx, tx, slot.ID)
		if err != nil {
			return err
		}
		conflict, err := booking.HasConflict(active, slot.ID, start, end, 0)
		if err != nil {
			return err
		}
		if conflict {
			return booking.ErrTimeConflict
		}
		price, err := s.d.Rates.Price(slot.Category, start, end)
		if err != nil {
			return err
		}
		b.PriceCents = price
		if err := s.d.Bookings.CreateTx(ctx, tx, b); err != nil {
			return err
		}
		if b.Contains(now) && !slot.Occupied {
			return s.d.Slots.SetOccupiedTx(ctx, tx, slot.ID, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.d.Logger.Info("booking created", "booking_id", b.ID, "slot_id", b.SlotID, "user_id", b.UserID, "price_cents", b.PriceCents)
	s.publish(ctx, queue.EventBookingCreated, b)
	return b, nil
}

// UpdateBooking moves an ACTIVE booking to a new slot, window or vehicle.
// The conflict check skips the booking itself, the price is recomputed
// and occupancy is recomputed for both the old and the new slot.
func (s *BookingService) UpdateBooking(ctx context.Context, bookingID uint64, in UpdateBookingInput) (*model.Booking, error) {
	s.reconcile(ctx)

	current, err := s.d.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, domainErr(err)
	}
	if err := booking.ValidateVehicleNumber(in.VehicleNumber); err != nil {
		return nil, err
	}
	start, end := normalizeTime(in.StartTime), normalizeTime(in.EndTime)
	if err := booking.ValidateRange(start, end); err != nil {
		return nil, err
	}

	// The booking may be moved by someone else between the read above and
	// taking the locks; retry with the fresh slot id when that happens.
	for attempt := 0; attempt < 3; attempt++ {
		if s.beforeAttempt != nil {
			s.beforeAttempt()
		}
		updated, retry, err := s.updateLocked(ctx, current.SlotID, bookingID, in.SlotID, in.VehicleNumber, start, end)
		if err != nil {
			return nil, err
		}
		if !retry {
			s.d.Logger.Info("booking updated", "booking_id", updated.ID, "slot_id", updated.SlotID, "price_cents", updated.PriceCents)
			s.publish(ctx, queue.EventBookingUpdated, updated)
			return updated, nil
		}
		current, err = s.d.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return nil, domainErr(err)
		}
	}
	return nil, fmt.Errorf("update booking %d: %w", bookingID, booking.ErrUpdateContended)
}

func (s *BookingService) updateLocked(ctx context.Context, oldSlotID, bookingID, newSlotID uint64, vehicle string, start, end time.Time) (*model.Booking, bool, error) {
	unlock := s.d.Locks.Lock(oldSlotID, newSlotID)
	defer unlock()

	now := s.d.now()
	var (
		updated *model.Booking
		retry   bool
	)
	err := withTx(ctx, s.d.DB, func(tx *sql.Tx) error {
		// Row locks follow the same ascending order as the mutexes.
		first, second := oldSlotID, newSlotID
		if second < first {
			first, second = second, first
		}
		locked := make(map[uint64]*model.Slot, 2)
		for _, id := range []uint64{first, second} {
			if _, ok := locked[id]; ok {
				continue
			}
			slot, err := s.d.Slots.LockTx(ctx, tx, id)
			if err != nil {
				return domainErr(err)
			}
			locked[id] = slot
		}

		b, err := s.d.Bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return domainErr(err)
		}
		if b.SlotID != oldSlotID {
			retry = true
			return nil
		}
		if b.Status.Terminal() {
			return booking.ErrBookingNotActive
		}

		newSlot := locked[newSlotID]
		active, err := s.d.Bookings.ListActiveBySlotTx(ctx, tx, newSlotID)
		if err != nil {
			return err
		}
		conflict, err := booking.HasConflict(active, newSlotID, start, end, bookingID)
		if err != nil {
			return err
		}
		if conflict {
			return booking.ErrTimeConflict
		}
		price, err := s.d.Rates.Price(newSlot.Category, start, end)
		if err != nil {
			return err
		}

		b.SlotID = newSlotID
		b.VehicleNumber = booking.NormalizeVehicleNumber(vehicle)
		b.StartTime = start
		b.EndTime = end
		b.PriceCents = price
		if err := s.d.Bookings.UpdateTx(ctx, tx, b); err != nil {
			return domainErr(err)
		}
		for id, slot := range locked {
			if err := s.refreshOccupancyTx(ctx, tx, slot, now); err != nil {
				return fmt.Errorf("refresh occupancy of slot %d: %w", id, err)
			}
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return updated, retry, nil
}

// CancelBooking marks an ACTIVE booking CANCELLED and frees its slot.
// Bookings that are already COMPLETED or CANCELLED keep their status and
// the call still succeeds.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uint64) error {
	b, err := s.d.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return domainErr(err)
	}
	if b.Status.Terminal() {
		return nil
	}

	unlock := s.d.Locks.Lock(b.SlotID)
	defer unlock()

	now := s.d.now()
	var cancelled bool
	err = withTx(ctx, s.d.DB, func(tx *sql.Tx) error {
		slot, err := s.d.Slots.LockTx(ctx, tx, b.SlotID)
		if err != nil {
			return domainErr(err)
		}
		cancelled, err = s.d.Bookings.TransitionTx(ctx, tx, bookingID, model.BookingActive, model.BookingCancelled)
		if err != nil || !cancelled {
			return err
		}
		return s.refreshOccupancyTx(ctx, tx, slot, now)
	})
	if err != nil {
		return err
	}
	if cancelled {
		b.Status = model.BookingCancelled
		s.d.Logger.Info("booking cancelled", "booking_id", b.ID, "slot_id", b.SlotID)
		s.publish(ctx, queue.EventBookingCancelled, b)
	}
	return nil
}

// DeleteBooking removes a booking permanently.  An ACTIVE booking frees
// its slot first.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID uint64) error {
	b, err := s.d.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return domainErr(err)
	}

	unlock := s.d.Locks.Lock(b.SlotID)
	defer unlock()

	now := s.d.now()
	err = withTx(ctx, s.d.DB, func(tx *sql.Tx) error {
		slot, err := s.d.Slots.LockTx(ctx, tx, b.SlotID)
		if err != nil {
			return domainErr(err)
		}
		if err := s.d.Bookings.DeleteTx(ctx, tx, bookingID); err != nil {
			return domainErr(err)
		}
		return s.refreshOccupancyTx(ctx, tx, slot, now)
	})
	if err != nil {
		return err
	}
	s.d.Logger.Info("booking deleted", "booking_id", b.ID, "slot_id", b.SlotID)
	s.publish(ctx, queue.EventBookingDeleted, b)
	return nil
}

// GetBooking returns a booking by id.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, err := s.d.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, domainErr(err)
	}
	return b, nil
}

// GetDetail returns a booking with its slot number and floor name.
func (s *BookingService) GetDetail(ctx context.Context, bookingID uint64) (*model.BookingDetail, error) {
	d, err := s.d.Bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, domainErr(err)
	}
	return d, nil
}

// ListAll returns every booking, most recent first.
func (s *BookingService) ListAll(ctx context.Context) ([]model.Booking, error) {
	s.reconcile(ctx)
	return s.d.Bookings.ListAll(ctx)
}

// History returns a user's bookings ordered by start time descending,
// each with the status shown to the user at the current instant.
func (s *BookingService) History(ctx context.Context, userID uint64) ([]HistoryEntry, error) {
	s.reconcile(ctx)
	rows, err := s.d.Bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.d.now()
	out := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, HistoryEntry{BookingDetail: r, DisplayStatus: booking.DisplayStatus(r.Booking, now)})
	}
	return out, nil
}

// refreshOccupancyTx sets the slot's occupied flag from the ACTIVE
// bookings that contain now.  The caller must hold the slot lock.
func (s *BookingService) refreshOccupancyTx(ctx context.Context, tx *sql.Tx, slot *model.Slot, now time.Time) error {
	return refreshOccupancyTx(ctx, tx, s.d, slot, now)
}

func refreshOccupancyTx(ctx context.Context, tx *sql.Tx, d Deps, slot *model.Slot, now time.Time) error {
	active, err := d.Bookings.ListActiveBySlotTx(ctx, tx, slot.ID)
	if err != nil {
		return err
	}
	_, occupied := booking.CurrentBooking(active, slot.ID, now)
	if occupied == slot.Occupied {
		return nil
	}
	if err := d.Slots.SetOccupiedTx(ctx, tx, slot.ID, occupied); err != nil {
		return err
	}
	slot.Occupied = occupied
	return nil
}

func (s *BookingService) reconcile(ctx context.Context) {
	if _, err := s.reconciler.ReconcileExpired(ctx); err != nil {
		s.d.Logger.Warn("inline reconcile failed", "error", err)
	}
}

func (s *BookingService) publish(ctx context.Context, kind string, b *model.Booking) {
	publish(ctx, s.d, kind, b)
}

func publish(ctx context.Context, d Deps, kind string, b *model.Booking) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(ctx, newBookingEvent(kind, b, d.now())); err != nil {
		d.Logger.Warn("publish booking event failed", "type", kind, "booking_id", b.ID, "error", err)
	}
}
