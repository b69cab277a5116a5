package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/booking"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/queue"
)

func TestEVBookingScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.slot(t, "E1", model.CategoryEV)

	b := env.book(t, ev.ID, at(9, 0), at(10, 0))
	if b.PriceCents != 15000 {
		t.Fatalf("expected 15000 cents for one EV hour, got %d", b.PriceCents)
	}
	if b.Status != model.BookingActive || b.VehicleNumber != "MH12AB1234" {
		t.Fatalf("unexpected booking %+v", b)
	}
	if env.occupied(t, ev.ID) {
		t.Fatal("a future booking must not occupy the slot")
	}

	_, err := env.bookings.CreateBooking(ctx, CreateBookingInput{
		UserID: env.user, SlotID: ev.ID, VehicleNumber: "KA01X1", StartTime: at(9, 30), EndTime: at(10, 30),
	})
	if !errors.Is(err, booking.ErrTimeConflict) {
		t.Fatalf("expected ErrTimeConflict for overlapping window, got %v", err)
	}

	next := env.book(t, ev.ID, at(10, 0), at(11, 0))
	if next.ID == b.ID {
		t.Fatal("expected a new booking")
	}

	env.clock.Set(at(9, 30))
	view, err := env.avail.SlotAvailability(ctx, ev.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if !view.Occupied || view.ActiveBooking == nil || view.ActiveBooking.ID != b.ID {
		t.Fatalf("expected slot held by booking %d, got %+v", b.ID, view)
	}
	if len(view.Reservations) != 2 || view.Reservations[0].ID != b.ID || view.Reservations[1].ID != next.ID {
		t.Fatalf("unexpected reservations %+v", view.Reservations)
	}
	if !env.occupied(t, ev.ID) {
		t.Fatal("availability read should heal the stored occupied flag")
	}
}

func TestCreateBookingValidation(t *testing.T) {
	env := newTestEnv(t)
	s := env.slot(t, "A1", model.CategoryRegular)

	cases := []struct {
		name string
		in   CreateBookingInput
		want error
	}{
		{"bad plate", CreateBookingInput{UserID: env.user, SlotID: s.ID, VehicleNumber: "123", StartTime: at(9, 0), EndTime: at(10, 0)}, booking.ErrInvalidVehicleNumber},
		{"end before start", CreateBookingInput{UserID: env.user, SlotID: s.ID, VehicleNumber: "MH12AB1234", StartTime: at(10, 0), EndTime: at(9, 0)}, booking.ErrInvalidTimeRange},
		{"empty window", CreateBookingInput{UserID: env.user, SlotID: s.ID, VehicleNumber: "MH12AB1234", StartTime: at(10, 0), EndTime: at(10, 0)}, booking.ErrInvalidTimeRange},
		{"unknown slot", CreateBookingInput{UserID: env.user, SlotID: 9999, VehicleNumber: "MH12AB1234", StartTime: at(9, 0), EndTime: at(10, 0)}, booking.ErrSlotNotFound},
		{"unknown user", CreateBookingInput{UserID: 9999, SlotID: s.ID, VehicleNumber: "MH12AB1234", StartTime: at(9, 0), EndTime: at(10, 0)}, booking.ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.bookings.CreateBooking(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateBookingOccupiesWhenWindowContainsNow(t *testing.T) {
	env := newTestEnv(t)
	s := env.slot(t, "V1", model.CategoryVIP)

	b := env.book(t, s.ID, at(7, 45), at(8, 15))
	if b.PriceCents != 20000 {
		t.Fatalf("30 minutes on VIP should bill one hour at 20000, got %d", b.PriceCents)
	}
	if !env.occupied(t, s.ID) {
		t.Fatal("slot should be occupied while the booking is running")
	}
}

func TestUpdateBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.slot(t, "A1", model.CategoryRegular)
	v := env.slot(t, "V1", model.CategoryVIP)

	b := env.book(t, a.ID, at(7, 30), at(9, 0))
	if !env.occupied(t, a.ID) {
		t.Fatal("expected A1 occupied")
	}

	// Growing a booking over its own window is not a conflict.
	upd, err := env.bookings.UpdateBooking(ctx, b.ID, UpdateBookingInput{
		SlotID: a.ID, VehicleNumber: "mh 12 ab 1234", StartTime: at(7, 30), EndTime: at(9, 30),
	})
	if err != nil {
		t.Fatalf("update in place: %v", err)
	}
	if upd.PriceCents != 20000 || upd.VehicleNumber != "MH12AB1234" {
		t.Fatalf("unexpected updated booking %+v", upd)
	}

	other := env.book(t, v.ID, at(12, 0), at(13, 0))
	_, err = env.bookings.UpdateBooking(ctx, b.ID, UpdateBookingInput{
		SlotID: v.ID, VehicleNumber: "MH12AB1234", StartTime: at(7, 30), EndTime: at(12, 30),
	})
	if !errors.Is(err, booking.ErrTimeConflict) {
		t.Fatalf("expected conflict with booking %d, got %v", other.ID, err)
	}

	moved, err := env.bookings.UpdateBooking(ctx, b.ID, UpdateBookingInput{
		SlotID: v.ID, VehicleNumber: "MH12AB1234", StartTime: at(7, 30), EndTime: at(9, 0),
	})
	if err != nil {
		t.Fatalf("move to VIP: %v", err)
	}
	if moved.SlotID != v.ID || moved.PriceCents != 40000 || moved.Status != model.BookingActive {
		t.Fatalf("unexpected moved booking %+v", moved)
	}
	if env.occupied(t, a.ID) {
		t.Fatal("old slot should be freed after the move")
	}
	if !env.occupied(t, v.ID) {
		t.Fatal("new slot should be occupied after the move")
	}

	if _, err := env.bookings.UpdateBooking(ctx, 9999, UpdateBookingInput{
		SlotID: v.ID, VehicleNumber: "MH12AB1234", StartTime: at(7, 30), EndTime: at(9, 0),
	}); !errors.Is(err, booking.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestUpdateRejectsTerminalBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.slot(t, "A1", model.CategoryRegular)
	b := env.book(t, s.ID, at(9, 0), at(10, 0))

	if err := env.bookings.CancelBooking(ctx, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := env.bookings.UpdateBooking(ctx, b.ID, UpdateBookingInput{
		SlotID: s.ID, VehicleNumber: "MH12AB1234", StartTime: at(11, 0), EndTime: at(12, 0),
	})
	if !errors.Is(err, booking.ErrBookingNotActive) {
		t.Fatalf("expected ErrBookingNotActive, got %v", err)
	}
}

func TestCancelBookingFreesSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.slot(t, "A1", model.CategoryRegular)
	b := env.book(t, s.ID, at(7, 0), at(9, 0))
	if !env.occupied(t, s.ID) {
		t.Fatal("expected occupied")
	}

	if err := env.bookings.CancelBooking(ctx, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := env.status(t, b.ID); got != model.BookingCancelled {
		t.Fatalf("expected CANCELLED, got %s", got)
	}
	if env.occupied(t, s.ID) {
		t.Fatal("cancel should free the slot")
	}
	if err := env.bookings.CancelBooking(ctx, b.ID); err != nil {
		t.Fatalf("second cancel should succeed, got %v", err)
	}

	// The window is free again.
	env.book(t, s.ID, at(7, 30), at(8, 30))

	if err := env.bookings.CancelBooking(ctx, 9999); !errors.Is(err, booking.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestCancelCompletedBookingKeepsStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.slot(t, "A1", model.CategoryRegular)
	b := env.book(t, s.ID, at(8, 0), at(9, 0))

	env.clock.Set(at(9, 0))
	if n, err := env.rec.ReconcileExpired(ctx); err != nil || n != 1 {
		t.Fatalf("reconcile: n=%d err=%v", n, err)
	}
	if err := env.bookings.CancelBooking(ctx, b.ID); err != nil {
		t.Fatalf("cancel completed: %v", err)
	}
	if got := env.status(t, b.ID); got != model.BookingCompleted {
		t.Fatalf("expected COMPLETED to be kept, got %s", got)
	}
}

func TestCancelFutureBookingKeepsCurrentHolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.slot(t, "A1", model.CategoryRegular)
	env.book(t, s.ID, at(7, 0), at(9, 0))
	later := env.book(t, s.ID, at(10, 0), at(11, 0))

	if err := env.bookings.CancelBooking(ctx, later.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := env.status(t, later.ID); got != model.BookingCancelled {
		t.Fatalf("expected CANCELLED, got %s", got)
	}
	if !env.occupied(t, s.ID) {
		t.Fatal("slot is still held by the current booking and must stay occupied")
	}
}

func TestUpdateGivesUpWhenBookingKeepsMoving(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.slot(t, "A1", model.CategoryRegular)
	b := env.slot(t, "A2", model.CategoryRegular)
	bk := env.book(t, a.ID, at(10, 0), at(11, 0))

	// Another writer moves the booking to the other slot before every attempt.
	slots := []uint64{b.ID, a.ID}
	attempts := 0
	env.bookings.beforeAttempt = func() {
		if _, err := env.h.DB.ExecContext(ctx, `UPDATE bookings SET slot_id = ? WHERE id = ?`, slots[attempts%2], bk.ID); err != nil {
			t.Fatalf("move booking: %v", err)
		}
		attempts++
	}

	_, err := env.bookings.UpdateBooking(ctx, bk.ID, UpdateBookingInput{
		SlotID: a.ID, VehicleNumber: "MH12AB1234", StartTime: at(10, 0), EndTime: at(12, 0),
	})
	if !errors.Is(err, booking.ErrUpdateContended) {
		t.Fatalf("expected ErrUpdateContended, got %v", err)
	}
	if errors.Is(err, booking.ErrTimeConflict) {
		t.Fatal("contention must not be reported as a time conflict")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDeleteBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.slot(t, "A1", model.CategoryRegular)
	b := env.book(t, s.ID, at(7, 0), at(9, 0))

	if err := env.bookings.DeleteBooking(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if env.occupied(t, s.ID) {
		t.Fatal("delete should free the slot")
	}
	if _, err := env.bookings.GetBooking(ctx, b.ID); !errors.Is(err, booking.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound after delete, got %v", err)
	}
	if err := env.bookings.DeleteBooking(ctx, b.ID); !errors.Is(err, booking.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound on second delete, got %v", err)
	}
}

func TestHistoryOrderAndDisplayStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.slot(t, "A1", model.CategoryRegular)

	env.clock.Set(at(6, 0))
	past := env.book(t, s.ID, at(7, 0), at(8, 0))
	current := env.book(t, s.ID, at(9, 0), at(10, 0))
	cancelled := env.book(t, s.ID, at(11, 0), at(12, 0))
	future := env.book(t, s.ID, at(13, 0), at(14, 0))
	if err := env.bookings.CancelBooking(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	env.clock.Set(at(9, 30))
	hist, err := env.bookings.History(ctx, env.user)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []struct {
		id     uint64
		status string
	}{
		{future.ID, booking.DisplayUpcoming},
		{cancelled.ID, booking.DisplayUpcoming},
		{current.ID, string(model.BookingActive)},
		{past.ID, booking.DisplayCompleted},
	}
	if len(hist) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(hist))
	}
	for i, w := range want {
		if hist[i].ID != w.id || hist[i].DisplayStatus != w.status {
			t.Fatalf("entry %d: expected %d/%s, got %d/%s", i, w.id, w.status, hist[i].ID, hist[i].DisplayStatus)
		}
		if hist[i].SlotNumber != "A1" || hist[i].FloorName != "Ground" {
			t.Fatalf("entry %d missing slot/floor details: %+v", i, hist[i].BookingDetail)
		}
	}
	if got := env.status(t, past.ID); got != model.BookingCompleted {
		t.Fatalf("history should have reconciled the past booking, got %s", got)
	}
}

func TestBookingEventsPublished(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.slot(t, "A1", model.CategoryRegular)

	b := env.book(t, s.ID, at(8, 0), at(9, 0))
	if _, err := env.bookings.UpdateBooking(ctx, b.ID, UpdateBookingInput{
		SlotID: s.ID, VehicleNumber: "MH12AB1234", StartTime: at(8, 0), EndTime: at(8, 30),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	env.clock.Set(at(8, 30))
	if _, err := env.rec.ReconcileExpired(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	second := env.book(t, s.ID, at(10, 0), at(11, 0))
	if err := env.bookings.CancelBooking(ctx, second.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := env.bookings.DeleteBooking(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{
		queue.EventBookingCreated,
		queue.EventBookingUpdated,
		queue.EventBookingCompleted,
		queue.EventBookingCreated,
		queue.EventBookingCancelled,
		queue.EventBookingDeleted,
	}
	got := env.events.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s (all: %v)", i, want[i], got[i], got)
		}
	}
}

// Random interleavings of create and cancel must never leave two ACTIVE
// bookings overlapping on the same slot.
func TestRandomCreateCancelNeverOverlaps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	slots := []model.Slot{
		env.slot(t, "A1", model.CategoryRegular),
		env.slot(t, "A2", model.CategoryRegular),
	}
	rng := rand.New(rand.NewSource(42))
	var created []uint64

	for i := 0; i < 150; i++ {
		if len(created) > 0 && rng.Intn(4) == 0 {
			id := created[rng.Intn(len(created))]
			if err := env.bookings.CancelBooking(ctx, id); err != nil {
				t.Fatalf("cancel %d: %v", id, err)
			}
			continue
		}
		slot := slots[rng.Intn(len(slots))]
		start := at(9, 0).Add(time.Duration(rng.Intn(48)) * 15 * time.Minute)
		end := start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute)
		b, err := env.bookings.CreateBooking(ctx, CreateBookingInput{
			UserID: env.user, SlotID: slot.ID, VehicleNumber: "MH12AB1234", StartTime: start, EndTime: end,
		})
		switch {
		case err == nil:
			created = append(created, b.ID)
		case errors.Is(err, booking.ErrTimeConflict):
		default:
			t.Fatalf("create: %v", err)
		}
	}

	for _, slot := range slots {
		all, err := env.h.Bookings.ListBySlot(ctx, slot.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		assertNoOverlap(t, all)
	}
}

func TestConcurrentCreatesOnSameWindow(t *testing.T) {
	env := newTestEnv(t)
	s := env.slot(t, "A1", model.CategoryRegular)

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(10, 0).Add(time.Duration(i%3) * 10 * time.Minute)
			_, err := env.bookings.CreateBooking(context.Background(), CreateBookingInput{
				UserID: env.user, SlotID: s.ID, VehicleNumber: "MH12AB1234", StartTime: start, EndTime: start.Add(time.Hour),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, booking.ErrTimeConflict):
				conflicts++
			default:
				t.Errorf("create: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || conflicts != workers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d conflicts=%d", wins, conflicts)
	}
	all, err := env.h.Bookings.ListBySlot(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertNoOverlap(t, all)
}

func assertNoOverlap(t *testing.T, all []model.Booking) {
	t.Helper()
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if a.Status != model.BookingActive || b.Status != model.BookingActive {
				continue
			}
			if booking.Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime) {
				t.Fatalf("bookings %d and %d overlap: [%s,%s) and [%s,%s)", a.ID, b.ID,
					a.StartTime.Format("15:04"), a.EndTime.Format("15:04"),
					b.StartTime.Format("15:04"), b.EndTime.Format("15:04"))
			}
		}
	}
}
