package service

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/booking"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

// SlotAvailability is the live view of one slot: whether it is occupied
// now, the booking holding it if any, and the ACTIVE reservations that
// have not ended yet, sorted by start time.
type SlotAvailability struct {
	Slot          model.Slot
	Occupied      bool
	ActiveBooking *model.Booking
	Reservations  []model.Booking
}

// FloorAvailability is the live view of every slot of a floor.
type FloorAvailability struct {
	Floor model.Floor
	Slots []SlotAvailability
}

// AvailabilityService projects slot occupancy from the bookings.  The
// only state it writes is a drifted occupied flag, through the same slot
// lock the booking service uses.
type AvailabilityService struct {
	d          Deps
	reconciler *Reconciler
}

// NewAvailabilityService builds a projector sharing the reconciler's
// dependencies and slot locks.
func NewAvailabilityService(r *Reconciler) *AvailabilityService {
	return &AvailabilityService{d: r.d, reconciler: r}
}

// SlotAvailability returns the live view of a slot.
func (a *AvailabilityService) SlotAvailability(ctx context.Context, slotID uint64) (*SlotAvailability, error) {
	a.reconcile(ctx)
	slot, err := a.d.Slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, domainErr(err)
	}
	bookings, err := a.d.Bookings.ListBySlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	view := a.project(ctx, *slot, bookings, a.d.now())
	return &view, nil
}

// FloorAvailability returns the live view of every slot on a floor.
func (a *AvailabilityService) FloorAvailability(ctx context.Context, floorID uint64) (*FloorAvailability, error) {
	a.reconcile(ctx)
	floor, err := a.d.Floors.GetByID(ctx, floorID)
	if err != nil {
		return nil, err
	}
	slots, err := a.d.Slots.ListByFloor(ctx, floorID)
	if err != nil {
		return nil, err
	}
	active, err := a.d.Bookings.ListActiveByFloor(ctx, floorID)
	if err != nil {
		return nil, err
	}
	now := a.d.now()
	out := &FloorAvailability{Floor: *floor, Slots: make([]SlotAvailability, 0, len(slots))}
	free := 0
	for _, slot := range slots {
		view := a.project(ctx, slot, active, now)
		if !view.Occupied {
			free++
		}
		out.Slots = append(out.Slots, view)
	}
	out.Floor.AvailableSlots = free
	return out, nil
}

// Floors lists every floor with the number of slots free right now.
func (a *AvailabilityService) Floors(ctx context.Context) ([]model.Floor, error) {
	a.reconcile(ctx)
	if _, err := a.reconciler.SyncOccupancy(ctx); err != nil {
		a.d.Logger.Warn("sync occupancy failed", "error", err)
	}
	floors, err := a.d.Floors.List(ctx)
	if err != nil {
		return nil, err
	}
	free, err := a.d.Slots.AvailableByFloor(ctx)
	if err != nil {
		return nil, err
	}
	for i := range floors {
		floors[i].AvailableSlots = free[floors[i].ID]
	}
	return floors, nil
}

// project derives the view of slot from bookings (which may include other
// slots and non-ACTIVE bookings) and heals a drifted occupied flag.
func (a *AvailabilityService) project(ctx context.Context, slot model.Slot, bookings []model.Booking, now time.Time) SlotAvailability {
	view := SlotAvailability{Slot: slot, Reservations: make([]model.Booking, 0)}
	if cur, ok := booking.CurrentBooking(bookings, slot.ID, now); ok {
		view.Occupied = true
		view.ActiveBooking = &cur
	}
	for _, b := range bookings {
		if b.SlotID == slot.ID && b.Status == model.BookingActive && b.EndTime.After(now) {
			view.Reservations = append(view.Reservations, b)
		}
	}
	sort.Slice(view.Reservations, func(i, j int) bool {
		return view.Reservations[i].StartTime.Before(view.Reservations[j].StartTime)
	})

	if view.Occupied != slot.Occupied {
		if _, err := a.reconciler.heal(ctx, slot.ID); err != nil {
			a.d.Logger.Warn("heal occupied flag failed", "slot_id", slot.ID, "error", err)
		}
	}
	view.Slot.Occupied = view.Occupied
	return view
}

func (a *AvailabilityService) reconcile(ctx context.Context) {
	if _, err := a.reconciler.ReconcileExpired(ctx); err != nil {
		a.d.Logger.Warn("inline reconcile failed", "error", err)
	}
}
