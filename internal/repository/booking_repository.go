package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

// ErrBookingNotFound is returned when a booking lookup yields no rows.
var ErrBookingNotFound = errors.New("booking not found")

const bookingColumns = `b.id, b.user_id, b.slot_id, b.vehicle_number, b.start_time, b.end_time, b.status, b.price_cents, b.created_at, b.updated_at`

// BookingRepo encapsulates access to the bookings table.  Writes that
// must be checked against overlapping bookings are only exposed as *Tx
// methods; the caller is expected to have locked the slot first.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so services can open transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

func scanBooking(row rowScanner, extra ...interface{}) (*model.Booking, error) {
	var b model.Booking
	var status string
	dest := []interface{}{&b.ID, &b.UserID, &b.SlotID, &b.VehicleNumber, &b.StartTime, &b.EndTime,
		&status, &b.PriceCents, &b.CreatedAt, &b.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func listBookings(ctx context.Context, q querier, query string, args ...interface{}) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CreateTx inserts an ACTIVE booking and populates its ID.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	b.StartTime = dbTime(b.StartTime)
	b.EndTime = dbTime(b.EndTime)
	b.Status = model.BookingActive
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, slot_id, vehicle_number, start_time, end_time, status, price_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.SlotID, b.VehicleNumber, b.StartTime, b.EndTime, string(b.Status), b.PriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID fetches a booking by id.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
}

// GetByIDTx fetches a booking inside tx.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
}

// ListBySlot returns every booking of a slot regardless of status.
func (r *BookingRepo) ListBySlot(ctx context.Context, slotID uint64) ([]model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.slot_id = ? ORDER BY b.start_time, b.id`, slotID)
}

// ListActiveBySlotTx returns the ACTIVE bookings of a slot inside tx.
func (r *BookingRepo) ListActiveBySlotTx(ctx context.Context, tx *sql.Tx, slotID uint64) ([]model.Booking, error) {
	return listBookings(ctx, tx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.slot_id = ? AND b.status = ? ORDER BY b.start_time, b.id`,
		slotID, string(model.BookingActive))
}

// ListActive returns every ACTIVE booking.
func (r *BookingRepo) ListActive(ctx context.Context) ([]model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.status = ? ORDER BY b.end_time, b.id`,
		string(model.BookingActive))
}

// ListActiveByFloor returns the ACTIVE bookings on any slot of a floor.
func (r *BookingRepo) ListActiveByFloor(ctx context.Context, floorID uint64) ([]model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings b JOIN slots s ON s.id = b.slot_id
		 WHERE s.floor_id = ? AND b.status = ? ORDER BY b.slot_id, b.start_time`,
		floorID, string(model.BookingActive))
}

// ListAll returns every booking, most recent first.
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.Booking, error) {
	return listBookings(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings b ORDER BY b.start_time DESC, b.id DESC`)
}

const detailQuery = `SELECT ` + bookingColumns + `, s.slot_number, s.category, f.id, f.name
	   FROM bookings b
	   JOIN slots s  ON s.id = b.slot_id
	   JOIN floors f ON f.id = s.floor_id`

func scanDetail(row rowScanner) (*model.BookingDetail, error) {
	var d model.BookingDetail
	var category string
	b, err := scanBooking(row, &d.SlotNumber, &category, &d.FloorID, &d.FloorName)
	if err != nil {
		return nil, err
	}
	d.Booking = *b
	d.Category = model.Category(category)
	return &d, nil
}

// ListByUser returns a user's bookings joined with slot and floor,
// ordered by start time descending.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		detailQuery+` WHERE b.user_id = ? ORDER BY b.start_time DESC, b.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookingDetail, 0)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetDetail returns one booking joined with its slot and floor.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (*model.BookingDetail, error) {
	return scanDetail(r.db.QueryRowContext(ctx, detailQuery+` WHERE b.id = ?`, id))
}

// UpdateTx rewrites the slot, vehicle, window and price of an ACTIVE
// booking.  It returns ErrBookingNotFound when no ACTIVE row matched.
func (r *BookingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	b.StartTime = dbTime(b.StartTime)
	b.EndTime = dbTime(b.EndTime)
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings
		    SET slot_id = ?, vehicle_number = ?, start_time = ?, end_time = ?, price_cents = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND status = ?`,
		b.SlotID, b.VehicleNumber, b.StartTime, b.EndTime, b.PriceCents, b.ID, string(model.BookingActive))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// TransitionTx moves a booking from one status to another.  The update is
// conditional on the current status, so a booking that was already moved
// by someone else is left alone and false is returned.
func (r *BookingRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.BookingStatus) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteTx removes a booking row.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// ListExpired returns ACTIVE bookings whose end time is at or before now.
// Filtering happens here rather than in SQL so that the comparison is
// identical on every driver.
func (r *BookingRepo) ListExpired(ctx context.Context, now time.Time) ([]model.Booking, error) {
	active, err := r.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	expired := make([]model.Booking, 0)
	for _, b := range active {
		if !b.EndTime.After(now) {
			expired = append(expired, b)
		}
	}
	return expired, nil
}

// BookingStats aggregates counters for the admin dashboard.
type BookingStats struct {
	Total        int
	Active       int
	RevenueCents int64
}

// Stats counts bookings and sums the price of COMPLETED ones.
func (r *BookingRepo) Stats(ctx context.Context) (BookingStats, error) {
	var (
		s       BookingStats
		active  sql.NullInt64
		revenue sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		        SUM(CASE WHEN status = ? THEN price_cents ELSE 0 END)
		   FROM bookings`,
		string(model.BookingActive), string(model.BookingCompleted)).Scan(&s.Total, &active, &revenue)
	if err != nil {
		return s, err
	}
	s.Active = int(active.Int64)
	s.RevenueCents = revenue.Int64
	return s, nil
}
