package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/receipt"
	"github.com/iliyamo/parking-slot-reservation/internal/service"
)

// TimeLayout is the zone-less format of every timestamp in the API.
// Values are read and written in the configured application zone.
const TimeLayout = "2006-01-02T15:04:05"

var errBadTime = errors.New("times must use the format " + TimeLayout)

func parseTime(loc *time.Location, s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, errBadTime
	}
	return t.UTC(), nil
}

func formatTime(loc *time.Location, t time.Time) string {
	return t.In(loc).Format(TimeLayout)
}

type bookingResp struct {
	ID            uint64 `json:"id"`
	UserID        uint64 `json:"user_id"`
	SlotID        uint64 `json:"slot_id"`
	VehicleNumber string `json:"vehicle_number"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	PriceCents    int64  `json:"price_cents"`
	Price         string `json:"price"`
}

func toBooking(loc *time.Location, b model.Booking) bookingResp {
	return bookingResp{
		ID:            b.ID,
		UserID:        b.UserID,
		SlotID:        b.SlotID,
		VehicleNumber: b.VehicleNumber,
		StartTime:     formatTime(loc, b.StartTime),
		EndTime:       formatTime(loc, b.EndTime),
		Status:        string(b.Status),
		PriceCents:    b.PriceCents,
		Price:         receipt.FormatCents(b.PriceCents),
	}
}

type historyResp struct {
	bookingResp
	SlotNumber    string `json:"slot_number"`
	Category      string `json:"category"`
	FloorID       uint64 `json:"floor_id"`
	FloorName     string `json:"floor_name"`
	DisplayStatus string `json:"display_status"`
}

func toHistory(loc *time.Location, e service.HistoryEntry) historyResp {
	return historyResp{
		bookingResp:   toBooking(loc, e.Booking),
		SlotNumber:    e.SlotNumber,
		Category:      string(e.Category),
		FloorID:       e.FloorID,
		FloorName:     e.FloorName,
		DisplayStatus: e.DisplayStatus,
	}
}

type floorResp struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	Details        string `json:"details"`
	TotalSlots     int    `json:"total_slots"`
	AvailableSlots int    `json:"available_slots"`
}

func toFloor(f model.Floor) floorResp {
	return floorResp{ID: f.ID, Name: f.Name, Details: f.Details, TotalSlots: f.TotalSlots, AvailableSlots: f.AvailableSlots}
}

type slotResp struct {
	ID         uint64 `json:"id"`
	FloorID    uint64 `json:"floor_id"`
	SlotNumber string `json:"slot_number"`
	Category   string `json:"category"`
	Occupied   bool   `json:"occupied"`
}

func toSlot(s model.Slot) slotResp {
	return slotResp{ID: s.ID, FloorID: s.FloorID, SlotNumber: s.SlotNumber, Category: string(s.Category), Occupied: s.Occupied}
}

// reservationResp is the public view of a booking: no holder, no plate.
type reservationResp struct {
	BookingID uint64 `json:"booking_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type availabilityResp struct {
	Slot          slotResp          `json:"slot"`
	Occupied      bool              `json:"occupied"`
	ActiveBooking *reservationResp  `json:"active_booking"`
	Reservations  []reservationResp `json:"reservations"`
}

func toAvailability(loc *time.Location, a service.SlotAvailability) availabilityResp {
	out := availabilityResp{
		Slot:         toSlot(a.Slot),
		Occupied:     a.Occupied,
		Reservations: make([]reservationResp, 0, len(a.Reservations)),
	}
	out.Slot.Occupied = a.Occupied
	if a.ActiveBooking != nil {
		r := reservationResp{BookingID: a.ActiveBooking.ID, StartTime: formatTime(loc, a.ActiveBooking.StartTime), EndTime: formatTime(loc, a.ActiveBooking.EndTime)}
		out.ActiveBooking = &r
	}
	for _, b := range a.Reservations {
		out.Reservations = append(out.Reservations, reservationResp{BookingID: b.ID, StartTime: formatTime(loc, b.StartTime), EndTime: formatTime(loc, b.EndTime)})
	}
	return out
}

type userResp struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func toUser(loc *time.Location, u model.User) userResp {
	return userResp{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, IsActive: u.IsActive, CreatedAt: formatTime(loc, u.CreatedAt)}
}
