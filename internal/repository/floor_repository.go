package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

// ErrFloorNotFound is returned when a floor lookup yields no rows.
var ErrFloorNotFound = errors.New("floor not found")

// FloorRepo provides CRUD access to the floors table.  total_slots is a
// denormalized count kept in step by RefreshTotalSlotsTx whenever slots
// are added, moved or removed.
type FloorRepo struct {
	db *sql.DB
}

func NewFloorRepo(db *sql.DB) *FloorRepo { return &FloorRepo{db: db} }

// DB exposes the handle so callers can open transactions spanning floors
// and slots.
func (r *FloorRepo) DB() *sql.DB { return r.db }

func scanFloor(row rowScanner) (*model.Floor, error) {
	var f model.Floor
	if err := row.Scan(&f.ID, &f.Name, &f.Details, &f.TotalSlots, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFloorNotFound
		}
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

// Create inserts a floor and populates its ID.
func (r *FloorRepo) Create(ctx context.Context, f *model.Floor) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO floors (name, details, total_slots) VALUES (?, ?, 0)`, f.Name, f.Details)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	f.TotalSlots = 0
	return nil
}

// GetByID fetches a floor by id.
func (r *FloorRepo) GetByID(ctx context.Context, id uint64) (*model.Floor, error) {
	return scanFloor(r.db.QueryRowContext(ctx,
		`SELECT id, name, details, total_slots, created_at, updated_at FROM floors WHERE id = ?`, id))
}

// GetByIDTx fetches a floor inside tx.
func (r *FloorRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Floor, error) {
	return scanFloor(tx.QueryRowContext(ctx,
		`SELECT id, name, details, total_slots, created_at, updated_at FROM floors WHERE id = ?`, id))
}

// List returns all floors ordered by id.
func (r *FloorRepo) List(ctx context.Context) ([]model.Floor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, details, total_slots, created_at, updated_at FROM floors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	floors := make([]model.Floor, 0)
	for rows.Next() {
		f, err := scanFloor(rows)
		if err != nil {
			return nil, err
		}
		floors = append(floors, *f)
	}
	return floors, rows.Err()
}

// Update changes the name and details of a floor.
func (r *FloorRepo) Update(ctx context.Context, f *model.Floor) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE floors SET name = ?, details = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		f.Name, f.Details, f.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFloorNotFound
	}
	return nil
}

// Delete removes a floor together with all of its slots in one
// transaction.  Bookings on those slots are removed by the cascade.
func (r *FloorRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE floor_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM floors WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFloorNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RefreshTotalSlotsTx recomputes total_slots for a floor from the slots
// table.
func (r *FloorRepo) RefreshTotalSlotsTx(ctx context.Context, tx *sql.Tx, floorID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE floors SET total_slots = (SELECT COUNT(*) FROM slots WHERE floor_id = ?), updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		floorID, floorID)
	return err
}

// Count returns the number of floors.
func (r *FloorRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM floors`).Scan(&n)
	return n, err
}
