package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/queue"
	"github.com/iliyamo/parking-slot-reservation/internal/testfixtures"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	h        *testfixtures.SQLiteHarness
	clock    *testfixtures.Clock
	events   *recordingPublisher
	bookings *BookingService
	avail    *AvailabilityService
	admin    *AdminService
	rec      *Reconciler

	floor model.Floor
	user  uint64
}

// newTestEnv wires the services over a fresh SQLite database with one
// floor and one user.  The clock starts at 2024-01-01 08:00 UTC.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	h := testfixtures.NewSQLiteHarness(t)
	clock := testfixtures.NewClock(at(8, 0))
	events := &recordingPublisher{}
	d := Deps{
		DB:       h.DB,
		Slots:    h.Slots,
		Bookings: h.Bookings,
		Users:    h.Users,
		Floors:   h.Floors,
		Events:   events,
		Now:      clock.NowFunc(),
	}
	bs := NewBookingService(d)
	return &testEnv{
		h:        h,
		clock:    clock,
		events:   events,
		bookings: bs,
		avail:    NewAvailabilityService(bs.Reconciler()),
		admin:    NewAdminService(bs.Reconciler()),
		rec:      bs.Reconciler(),
		floor:    h.SeedFloor("Ground"),
		user:     h.SeedUser(),
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, time.January, 1, hour, minute, 0, 0, time.UTC)
}

func (e *testEnv) slot(t *testing.T, number string, c model.Category) model.Slot {
	t.Helper()
	return e.h.SeedSlot(e.floor.ID, number, c)
}

func (e *testEnv) book(t *testing.T, slotID uint64, start, end time.Time) *model.Booking {
	t.Helper()
	b, err := e.bookings.CreateBooking(context.Background(), CreateBookingInput{
		UserID:        e.user,
		SlotID:        slotID,
		VehicleNumber: "MH-12-AB-1234",
		StartTime:     start,
		EndTime:       end,
	})
	if err != nil {
		t.Fatalf("create booking [%s,%s): %v", start.Format("15:04"), end.Format("15:04"), err)
	}
	return b
}

func (e *testEnv) occupied(t *testing.T, slotID uint64) bool {
	t.Helper()
	s, err := e.h.Slots.GetByID(context.Background(), slotID)
	if err != nil {
		t.Fatalf("load slot %d: %v", slotID, err)
	}
	return s.Occupied
}

func (e *testEnv) status(t *testing.T, bookingID uint64) model.BookingStatus {
	t.Helper()
	b, err := e.h.Bookings.GetByID(context.Background(), bookingID)
	if err != nil {
		t.Fatalf("load booking %d: %v", bookingID, err)
	}
	return b.Status
}
