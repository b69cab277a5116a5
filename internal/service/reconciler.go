package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/booking"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/queue"
)

// Reconciler finalizes bookings whose end time has passed and keeps the
// cached occupied flags in step with the clock.  It is safe to run
// concurrently with itself and with the booking service: each booking is
// finalized by a conditional update under the slot lock, so a second pass
// finds nothing to do.
type Reconciler struct {
	d Deps
}

func NewReconciler(d Deps) *Reconciler {
	return &Reconciler{d: d.withDefaults()}
}

// ReconcileExpired moves every ACTIVE booking with end <= now to
// COMPLETED, each in its own transaction, and recomputes the occupancy of
// the affected slot.  A failure on one booking is logged and the loop
// continues.  The count of bookings finalized by this call is returned;
// the error is only set when the expired bookings could not be listed.
func (r *Reconciler) ReconcileExpired(ctx context.Context) (int, error) {
	now := r.d.now()
	expired, err := r.d.Bookings.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	finalized := 0
	for i := range expired {
		b := expired[i]
		done, err := r.complete(ctx, &b, now)
		if err != nil {
			r.d.Logger.Error("reconcile: finalize booking failed", "booking_id", b.ID, "slot_id", b.SlotID, "error", err)
			continue
		}
		if done {
			finalized++
			b.Status = model.BookingCompleted
			publish(ctx, r.d, queue.EventBookingCompleted, &b)
		}
	}
	if finalized > 0 {
		r.d.Logger.Info("reconcile: bookings completed", "count", finalized)
	}
	return finalized, nil
}

func (r *Reconciler) complete(ctx context.Context, b *model.Booking, now time.Time) (bool, error) {
	unlock := r.d.Locks.Lock(b.SlotID)
	defer unlock()

	var done bool
	err := withTx(ctx, r.d.DB, func(tx *sql.Tx) error {
		slot, err := r.d.Slots.LockTx(ctx, tx, b.SlotID)
		if err != nil {
			return domainErr(err)
		}
		done, err = r.d.Bookings.TransitionTx(ctx, tx, b.ID, model.BookingActive, model.BookingCompleted)
		if err != nil || !done {
			return err
		}
		return refreshOccupancyTx(ctx, tx, r.d, slot, now)
	})
	return done, err
}

// SyncOccupancy compares every slot's occupied flag with its ACTIVE
// bookings at now and rewrites the flags that drifted, for example when
// a future booking's window has just started.  It returns the number of
// slots changed.
func (r *Reconciler) SyncOccupancy(ctx context.Context) (int, error) {
	slots, err := r.d.Slots.List(ctx)
	if err != nil {
		return 0, err
	}
	active, err := r.d.Bookings.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	now := r.d.now()
	changed := 0
	for _, slot := range slots {
		_, occupied := booking.CurrentBooking(active, slot.ID, now)
		if occupied == slot.Occupied {
			continue
		}
		ok, err := r.heal(ctx, slot.ID)
		if err != nil {
			r.d.Logger.Error("reconcile: sync occupancy failed", "slot_id", slot.ID, "error", err)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// heal recomputes one slot's occupied flag under the slot lock and writes
// it when it differs.
func (r *Reconciler) heal(ctx context.Context, slotID uint64) (bool, error) {
	unlock := r.d.Locks.Lock(slotID)
	defer unlock()

	bookings, err := r.d.Bookings.ListBySlot(ctx, slotID)
	if err != nil {
		return false, err
	}
	_, occupied := booking.CurrentBooking(bookings, slotID, r.d.now())
	return r.d.Slots.SyncOccupied(ctx, slotID, occupied)
}

// Run reconciles once immediately and then on every tick of interval
// until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	r.tick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	if _, err := r.ReconcileExpired(ctx); err != nil {
		r.d.Logger.Error("reconcile: list expired bookings failed", "error", err)
	}
	if _, err := r.SyncOccupancy(ctx); err != nil {
		r.d.Logger.Error("reconcile: sync occupancy failed", "error", err)
	}
}
