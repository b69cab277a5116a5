// Package service holds the stateful booking components: the lifecycle
// orchestrator, the expiry reconciler, the availability projector and the
// auth and admin flows used by the HTTP handlers.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/booking"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
	"github.com/iliyamo/parking-slot-reservation/internal/repository"
)

// Deps are the collaborators shared by the booking services.  DB, Slots,
// Bookings and Users are required; everything else has a default.
type Deps struct {
	DB       *sql.DB
	Slots    *repository.SlotRepo
	Bookings *repository.BookingRepo
	Users    *repository.UserRepo
	Floors   *repository.FloorRepo

	Locks  *SlotLocks
	Rates  booking.Rates
	Events EventPublisher
	Logger *logging.Logger
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Locks == nil {
		d.Locks = NewSlotLocks()
	}
	if d.Rates == (booking.Rates{}) {
		d.Rates = booking.DefaultRates()
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// now returns the current instant in UTC with second precision, the
// resolution timestamps are stored with.
func (d Deps) now() time.Time {
	return d.Now().UTC().Truncate(time.Second)
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// domainErr translates repository sentinels into the booking package
// sentinels callers compare against.
func domainErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSlotNotFound):
		return booking.ErrSlotNotFound
	case errors.Is(err, repository.ErrBookingNotFound):
		return booking.ErrBookingNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return booking.ErrUserNotFound
	default:
		return err
	}
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
