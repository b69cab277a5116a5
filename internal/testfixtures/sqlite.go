package testfixtures

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/iliyamo/parking-slot-reservation/internal/database"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/repository"
)

var seedCounter uint64

// SQLiteHarness bundles the repositories over a temporary, migrated
// SQLite database.
type SQLiteHarness struct {
	DB       *sql.DB
	Users    *repository.UserRepo
	Tokens   *repository.TokenRepo
	Floors   *repository.FloorRepo
	Slots    *repository.SlotRepo
	Bookings *repository.BookingRepo

	tb testing.TB
}

// NewSQLiteHarness opens a fresh database file under tb.TempDir and
// registers its cleanup with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "parking.db")
	db, err := database.OpenSQLite(path)
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		_ = db.Close()
		tb.Fatalf("failed to migrate sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	return &SQLiteHarness{
		DB:       db,
		Users:    repository.NewUserRepo(db),
		Tokens:   repository.NewTokenRepo(db),
		Floors:   repository.NewFloorRepo(db),
		Slots:    repository.NewSlotRepo(db, database.DriverSQLite),
		Bookings: repository.NewBookingRepo(db),
		tb:       tb,
	}
}

// SeedUser inserts a user with role USER and returns its id.  The
// password is "Passw0rd!" hashed at the minimum bcrypt cost.
func (h *SQLiteHarness) SeedUser() uint64 {
	h.tb.Helper()
	n := atomic.AddUint64(&seedCounter, 1)
	id, err := h.Users.Create(context.Background(), fmt.Sprintf("User %d", n),
		fmt.Sprintf("user%03d@example.com", n), "Passw0rd!", model.RoleUser, 4)
	if err != nil {
		h.tb.Fatalf("seed user: %v", err)
	}
	return id
}

// SeedFloor inserts a floor and returns it.
func (h *SQLiteHarness) SeedFloor(name string) model.Floor {
	h.tb.Helper()
	f := model.Floor{Name: name, Details: name + " level"}
	if err := h.Floors.Create(context.Background(), &f); err != nil {
		h.tb.Fatalf("seed floor: %v", err)
	}
	return f
}

// SeedSlot inserts a free slot on floorID and refreshes the floor total.
func (h *SQLiteHarness) SeedSlot(floorID uint64, number string, category model.Category) model.Slot {
	h.tb.Helper()
	ctx := context.Background()
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		h.tb.Fatalf("begin: %v", err)
	}
	s := model.Slot{FloorID: floorID, SlotNumber: number, Category: category}
	if err := h.Slots.CreateTx(ctx, tx, &s); err != nil {
		_ = tx.Rollback()
		h.tb.Fatalf("seed slot: %v", err)
	}
	if err := h.Floors.RefreshTotalSlotsTx(ctx, tx, floorID); err != nil {
		_ = tx.Rollback()
		h.tb.Fatalf("refresh total: %v", err)
	}
	if err := tx.Commit(); err != nil {
		h.tb.Fatalf("commit: %v", err)
	}
	return s
}
