package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

var (
	ErrInvalidCategory = errors.New("invalid slot category")
	ErrInvalidRole     = errors.New("role must be USER or ADMIN")
	ErrNameRequired    = errors.New("name is required")
)

// Stats are the counters shown on the admin dashboard.
type Stats struct {
	TotalUsers     int   `json:"total_users"`
	TotalBookings  int   `json:"total_bookings"`
	ActiveBookings int   `json:"active_bookings"`
	TotalFloors    int   `json:"total_floors"`
	TotalSlots     int   `json:"total_slots"`
	OccupiedSlots  int   `json:"occupied_slots"`
	AvailableSlots int   `json:"available_slots"`
	RevenueCents   int64 `json:"revenue_cents"`
}

// AdminService manages floors, slots and users.  Slot writes take the
// same per-slot lock as booking writes.
type AdminService struct {
	d          Deps
	reconciler *Reconciler
}

func NewAdminService(r *Reconciler) *AdminService {
	return &AdminService{d: r.d, reconciler: r}
}

// Stats reconciles and then counts.  Revenue is the sum of COMPLETED
// booking prices.
func (a *AdminService) Stats(ctx context.Context) (Stats, error) {
	if _, err := a.reconciler.ReconcileExpired(ctx); err != nil {
		a.d.Logger.Warn("inline reconcile failed", "error", err)
	}
	if _, err := a.reconciler.SyncOccupancy(ctx); err != nil {
		a.d.Logger.Warn("sync occupancy failed", "error", err)
	}
	var s Stats
	var err error
	if s.TotalUsers, err = a.d.Users.Count(ctx); err != nil {
		return s, err
	}
	if s.TotalFloors, err = a.d.Floors.Count(ctx); err != nil {
		return s, err
	}
	if s.TotalSlots, s.OccupiedSlots, err = a.d.Slots.Counts(ctx); err != nil {
		return s, err
	}
	s.AvailableSlots = s.TotalSlots - s.OccupiedSlots
	bs, err := a.d.Bookings.Stats(ctx)
	if err != nil {
		return s, err
	}
	s.TotalBookings, s.ActiveBookings, s.RevenueCents = bs.Total, bs.Active, bs.RevenueCents
	return s, nil
}

// ---- floors ----

func (a *AdminService) CreateFloor(ctx context.Context, name, details string) (*model.Floor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	f := &model.Floor{Name: name, Details: strings.TrimSpace(details)}
	if err := a.d.Floors.Create(ctx, f); err != nil {
		return nil, err
	}
	a.d.Logger.Info("floor created", "floor_id", f.ID)
	return a.d.Floors.GetByID(ctx, f.ID)
}

func (a *AdminService) UpdateFloor(ctx context.Context, id uint64, name, details string) (*model.Floor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if err := a.d.Floors.Update(ctx, &model.Floor{ID: id, Name: name, Details: strings.TrimSpace(details)}); err != nil {
		return nil, err
	}
	return a.d.Floors.GetByID(ctx, id)
}

// DeleteFloor removes a floor, its slots and their bookings.
func (a *AdminService) DeleteFloor(ctx context.Context, id uint64) error {
	if err := a.d.Floors.Delete(ctx, id); err != nil {
		return err
	}
	a.d.Logger.Info("floor deleted", "floor_id", id)
	return nil
}

func (a *AdminService) Floors(ctx context.Context) ([]model.Floor, error) {
	return a.d.Floors.List(ctx)
}

// ---- slots ----

// SlotInput carries the admin-editable fields of a slot.  Occupancy is
// not among them.
type SlotInput struct {
	FloorID    uint64
	SlotNumber string
	Category   model.Category
}

func (in SlotInput) validate() error {
	if strings.TrimSpace(in.SlotNumber) == "" {
		return ErrNameRequired
	}
	if !in.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}

// CreateSlot adds a free slot to a floor and refreshes the floor's total.
func (a *AdminService) CreateSlot(ctx context.Context, in SlotInput) (*model.Slot, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s := &model.Slot{FloorID: in.FloorID, SlotNumber: strings.TrimSpace(in.SlotNumber), Category: in.Category}
	err := withTx(ctx, a.d.DB, func(tx *sql.Tx) error {
		if _, err := a.d.Floors.GetByIDTx(ctx, tx, in.FloorID); err != nil {
			return err
		}
		if err := a.d.Slots.CreateTx(ctx, tx, s); err != nil {
			return err
		}
		return a.d.Floors.RefreshTotalSlotsTx(ctx, tx, in.FloorID)
	})
	if err != nil {
		return nil, err
	}
	a.d.Logger.Info("slot created", "slot_id", s.ID, "floor_id", s.FloorID)
	return a.d.Slots.GetByID(ctx, s.ID)
}

// UpdateSlot changes a slot's floor, number or category.  Existing
// bookings keep the price they were booked at.
func (a *AdminService) UpdateSlot(ctx context.Context, id uint64, in SlotInput) (*model.Slot, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	unlock := a.d.Locks.Lock(id)
	defer unlock()

	err := withTx(ctx, a.d.DB, func(tx *sql.Tx) error {
		cur, err := a.d.Slots.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := a.d.Floors.GetByIDTx(ctx, tx, in.FloorID); err != nil {
			return err
		}
		upd := &model.Slot{ID: id, FloorID: in.FloorID, SlotNumber: strings.TrimSpace(in.SlotNumber), Category: in.Category}
		if err := a.d.Slots.UpdateTx(ctx, tx, upd); err != nil {
			return err
		}
		if err := a.d.Floors.RefreshTotalSlotsTx(ctx, tx, in.FloorID); err != nil {
			return err
		}
		if cur.FloorID != in.FloorID {
			return a.d.Floors.RefreshTotalSlotsTx(ctx, tx, cur.FloorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a.d.Slots.GetByID(ctx, id)
}

// DeleteSlot removes a slot and its bookings.
func (a *AdminService) DeleteSlot(ctx context.Context, id uint64) error {
	unlock := a.d.Locks.Lock(id)
	defer unlock()

	err := withTx(ctx, a.d.DB, func(tx *sql.Tx) error {
		cur, err := a.d.Slots.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := a.d.Slots.DeleteTx(ctx, tx, id); err != nil {
			return err
		}
		return a.d.Floors.RefreshTotalSlotsTx(ctx, tx, cur.FloorID)
	})
	if err != nil {
		return err
	}
	a.d.Logger.Info("slot deleted", "slot_id", id)
	return nil
}

// SlotsByFloor lists the slots of a floor as stored.
func (a *AdminService) SlotsByFloor(ctx context.Context, floorID uint64) ([]model.Slot, error) {
	if _, err := a.d.Floors.GetByID(ctx, floorID); err != nil {
		return nil, err
	}
	return a.d.Slots.ListByFloor(ctx, floorID)
}

// ---- users ----

func (a *AdminService) Users(ctx context.Context) ([]model.User, error) {
	return a.d.Users.List(ctx)
}

func (a *AdminService) SetUserRole(ctx context.Context, id uint64, role string) error {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != model.RoleUser && role != model.RoleAdmin {
		return ErrInvalidRole
	}
	return a.d.Users.UpdateRole(ctx, id, role)
}

// DeleteUser removes a user with their tokens and bookings.  Slots held
// by the user's bookings are recomputed afterwards.
func (a *AdminService) DeleteUser(ctx context.Context, id uint64) error {
	if err := a.d.Users.Delete(ctx, id); err != nil {
		return err
	}
	a.d.Logger.Info("user deleted", "user_id", id)
	if _, err := a.reconciler.SyncOccupancy(ctx); err != nil {
		a.d.Logger.Warn("sync occupancy after user delete failed", "error", err)
	}
	return nil
}
