package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/middleware"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/receipt"
	"github.com/iliyamo/parking-slot-reservation/internal/repository"
	"github.com/iliyamo/parking-slot-reservation/internal/service"
)

// BookingHandler serves the booking endpoints of signed-in users.  A
// USER may only touch their own bookings; ADMIN may touch any.
type BookingHandler struct {
	Bookings      *service.BookingService
	Users         *repository.UserRepo
	Loc           *time.Location
	ReceiptSecret string
}

func NewBookingHandler(bs *service.BookingService, users *repository.UserRepo, loc *time.Location, receiptSecret string) *BookingHandler {
	if bs == nil || users == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{Bookings: bs, Users: users, Loc: loc, ReceiptSecret: receiptSecret}
}

type bookingReq struct {
	SlotID        uint64 `json:"slot_id" validate:"required,gt=0"`
	VehicleNumber string `json:"vehicle_number" validate:"required"`
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time" validate:"required"`
}

// updateReq keeps the booking on its slot when slot_id is omitted.
type updateReq struct {
	SlotID        uint64 `json:"slot_id"`
	VehicleNumber string `json:"vehicle_number" validate:"required"`
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time" validate:"required"`
}

func (h *BookingHandler) window(start, end string) (time.Time, time.Time, error) {
	s, err := parseTime(h.Loc, start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := parseTime(h.Loc, end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}

// owned loads a booking the caller is allowed to see.
func (h *BookingHandler) owned(ctx context.Context, c echo.Context, id uint64) (*model.Booking, error) {
	b, err := h.Bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(c, b.UserID) {
		return nil, repository.ErrForbidden
	}
	return b, nil
}

func canAccess(c echo.Context, ownerID uint64) bool {
	if middleware.Role(c) == model.RoleAdmin {
		return true
	}
	uid, ok := middleware.UserID(c)
	return ok && uid == ownerID
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookingReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	start, end, err := h.window(req.StartTime, req.EndTime)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	b, err := h.Bookings.CreateBooking(ctx, service.CreateBookingInput{
		UserID:        uid,
		SlotID:        req.SlotID,
		VehicleNumber: req.VehicleNumber,
		StartTime:     start,
		EndTime:       end,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toBooking(h.Loc, *b))
}

// Update handles PUT /v1/bookings/:id.
func (h *BookingHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking")
	}
	var req updateReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	start, end, err := h.window(req.StartTime, req.EndTime)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	cur, err := h.owned(ctx, c, id)
	if err != nil {
		return fail(c, err)
	}
	if req.SlotID == 0 {
		req.SlotID = cur.SlotID
	}
	b, err := h.Bookings.UpdateBooking(ctx, id, service.UpdateBookingInput{
		SlotID:        req.SlotID,
		VehicleNumber: req.VehicleNumber,
		StartTime:     start,
		EndTime:       end,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toBooking(h.Loc, *b))
}

// Cancel handles PUT /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if _, err := h.owned(ctx, c, id); err != nil {
		return fail(c, err)
	}
	if err := h.Bookings.CancelBooking(ctx, id); err != nil {
		return fail(c, err)
	}
	b, err := h.Bookings.GetBooking(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toBooking(h.Loc, *b))
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	b, err := h.owned(ctx, c, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toBooking(h.Loc, *b))
}

// History handles GET /v1/bookings/history for the caller.
func (h *BookingHandler) History(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	entries, err := h.Bookings.History(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	out := make([]historyResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistory(h.Loc, e))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Receipt handles GET /v1/bookings/:id/receipt and returns a PDF.
func (h *BookingHandler) Receipt(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	d, err := h.Bookings.GetDetail(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if !canAccess(c, d.UserID) {
		return fail(c, repository.ErrForbidden)
	}
	holder, err := h.Users.GetByID(ctx, d.UserID)
	if err != nil {
		return fail(c, err)
	}

	var buf bytes.Buffer
	err = receipt.Render(&buf, receipt.Data{
		BookingID:     d.ID,
		Holder:        holder.Name,
		VehicleNumber: d.VehicleNumber,
		FloorName:     d.FloorName,
		SlotNumber:    d.SlotNumber,
		Category:      string(d.Category),
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		PriceCents:    d.PriceCents,
		Status:        string(d.Status),
		IssuedAt:      time.Now(),
		Loc:           h.Loc,
	}, h.ReceiptSecret)
	if err != nil {
		return fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=receipt-%s.pdf", receipt.Reference(d.ID)))
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}
