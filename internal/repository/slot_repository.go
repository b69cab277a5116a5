package repository // repository defines data access for slots

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"       // errors for sentinel definitions

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

// ErrSlotNotFound is returned when a slot lookup yields no rows.
var ErrSlotNotFound = errors.New("slot not found")

// ErrSlotNumberExists is returned when a floor already has a slot with the
// requested number.
var ErrSlotNumberExists = errors.New("slot number already exists in this floor")

const slotColumns = `id, floor_id, slot_number, category, occupied, created_at, updated_at`

// SlotRepo provides methods to work with slots in the database.  The
// driver name decides whether row locks are taken with FOR UPDATE (MySQL)
// or left to the database's single-writer lock (SQLite).
type SlotRepo struct {
	db     *sql.DB
	driver string
}

// NewSlotRepo constructs a SlotRepo with the given DB handle.
func NewSlotRepo(db *sql.DB, driver string) *SlotRepo {
	return &SlotRepo{db: db, driver: driver}
}

func scanSlot(row rowScanner) (*model.Slot, error) {
	var s model.Slot
	var category string
	if err := row.Scan(&s.ID, &s.FloorID, &s.SlotNumber, &category, &s.Occupied, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	s.Category = model.Category(category)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func scanSlots(rows *sql.Rows) ([]model.Slot, error) {
	defer rows.Close()
	slots := make([]model.Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// GetByID fetches a slot by its primary key.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*model.Slot, error) {
	return scanSlot(r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id))
}

// LockTx fetches a slot inside tx and holds a row lock on it until the
// transaction ends.  Every write that checks for booking conflicts on a
// slot goes through LockTx first so that two such writes on the same slot
// cannot interleave.
func (r *SlotRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	if r.driver != "sqlite" {
		q += ` FOR UPDATE`
	}
	return scanSlot(tx.QueryRowContext(ctx, q, id))
}

// SetOccupiedTx writes the cached occupancy flag inside tx.
func (r *SlotRepo) SetOccupiedTx(ctx context.Context, tx *sql.Tx, id uint64, occupied bool) error {
	_, err := tx.ExecContext(ctx, `UPDATE slots SET occupied = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, occupied, id)
	return err
}

// SyncOccupied writes the occupancy flag only when it differs from the
// stored value and reports whether a row changed.  Running it twice with
// the same value is a no-op, so concurrent readers can call it freely.
func (r *SlotRepo) SyncOccupied(ctx context.Context, id uint64, occupied bool) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE slots SET occupied = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND occupied <> ?`,
		occupied, id, occupied)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByFloor retrieves all slots of a floor ordered by slot number.
func (r *SlotRepo) ListByFloor(ctx context.Context, floorID uint64) ([]model.Slot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE floor_id = ? ORDER BY slot_number, id`, floorID)
	if err != nil {
		return nil, err
	}
	return scanSlots(rows)
}

// List retrieves every slot ordered by floor and slot number.
func (r *SlotRepo) List(ctx context.Context) ([]model.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+slotColumns+` FROM slots ORDER BY floor_id, slot_number, id`)
	if err != nil {
		return nil, err
	}
	return scanSlots(rows)
}

// CreateTx inserts a slot inside tx and populates its ID.  New slots are
// always free; occupancy is only ever derived from bookings.
func (r *SlotRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Slot) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO slots (floor_id, slot_number, category, occupied) VALUES (?, ?, ?, ?)`,
		s.FloorID, s.SlotNumber, string(s.Category), false)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrSlotNumberExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.Occupied = false
	return nil
}

// UpdateTx changes the floor, number and category of a slot.  The
// occupancy flag is deliberately left untouched.
func (r *SlotRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Slot) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE slots SET floor_id = ?, slot_number = ?, category = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		s.FloorID, s.SlotNumber, string(s.Category), s.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrSlotNumberExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// DeleteTx removes a slot.  Bookings on the slot are removed by the
// foreign key cascade.
func (r *SlotRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Counts returns the total number of slots and how many are flagged occupied.
func (r *SlotRepo) Counts(ctx context.Context) (total, occupied int, err error) {
	var occ sql.NullInt64
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(CASE WHEN occupied THEN 1 ELSE 0 END) FROM slots`).Scan(&total, &occ)
	if err != nil {
		return 0, 0, err
	}
	return total, int(occ.Int64), nil
}

// AvailableByFloor returns, per floor id, the number of slots not flagged
// occupied.  Floors without free slots are absent from the map.
func (r *SlotRepo) AvailableByFloor(ctx context.Context) (map[uint64]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT floor_id, COUNT(*) FROM slots WHERE NOT occupied GROUP BY floor_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]int)
	for rows.Next() {
		var floorID uint64
		var n int
		if err := rows.Scan(&floorID, &n); err != nil {
			return nil, err
		}
		out[floorID] = n
	}
	return out, rows.Err()
}
