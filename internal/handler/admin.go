package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/middleware"
	"github.com/iliyamo/parking-slot-reservation/internal/model"
	"github.com/iliyamo/parking-slot-reservation/internal/service"
)

// AdminHandler serves the ADMIN-only dashboard, user, booking, floor and
// slot management endpoints.
type AdminHandler struct {
	Admin    *service.AdminService
	Bookings *service.BookingService
	Loc      *time.Location
}

func NewAdminHandler(admin *service.AdminService, bookings *service.BookingService, loc *time.Location) *AdminHandler {
	if admin == nil || bookings == nil {
		panic("nil service passed to NewAdminHandler")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AdminHandler{Admin: admin, Bookings: bookings, Loc: loc}
}

type floorReq struct {
	Name    string `json:"name" validate:"required,max=100"`
	Details string `json:"details" validate:"max=255"`
}

type slotReq struct {
	FloorID    uint64 `json:"floor_id" validate:"required,gt=0"`
	SlotNumber string `json:"slot_number" validate:"required,max=20"`
	Category   string `json:"category" validate:"required,category"`
}

func (r slotReq) input() service.SlotInput {
	cat, _ := model.ParseCategory(r.Category)
	return service.SlotInput{FloorID: r.FloorID, SlotNumber: r.SlotNumber, Category: cat}
}

type roleReq struct {
	Role string `json:"role" validate:"required"`
}

// Stats handles GET /v1/admin/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	st, err := h.Admin.Stats(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// ---- users ----

func (h *AdminHandler) Users(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	users, err := h.Admin.Users(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]userResp, 0, len(users))
	for _, u := range users {
		out = append(out, toUser(h.Loc, u))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *AdminHandler) SetUserRole(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "user")
	}
	var req roleReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Admin.SetUserRole(ctx, id, req.Role); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUser refuses to delete the caller's own account.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "user")
	}
	if self, _ := middleware.UserID(c); self == id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete your own account"})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Admin.DeleteUser(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- bookings ----

func (h *AdminHandler) ListBookings(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	list, err := h.Bookings.ListAll(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]bookingResp, 0, len(list))
	for _, b := range list {
		out = append(out, toBooking(h.Loc, b))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *AdminHandler) CancelBooking(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Bookings.CancelBooking(ctx, id); err != nil {
		return fail(c, err)
	}
	b, err := h.Bookings.GetBooking(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toBooking(h.Loc, *b))
}

func (h *AdminHandler) DeleteBooking(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "booking")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Bookings.DeleteBooking(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- floors ----

func (h *AdminHandler) Floors(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	floors, err := h.Admin.Floors(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]floorResp, 0, len(floors))
	for _, f := range floors {
		out = append(out, toFloor(f))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *AdminHandler) CreateFloor(c echo.Context) error {
	var req floorReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	f, err := h.Admin.CreateFloor(ctx, req.Name, req.Details)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toFloor(*f))
}

func (h *AdminHandler) UpdateFloor(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "floor")
	}
	var req floorReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	f, err := h.Admin.UpdateFloor(ctx, id, req.Name, req.Details)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toFloor(*f))
}

// DeleteFloor removes the floor together with its slots and bookings.
func (h *AdminHandler) DeleteFloor(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "floor")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Admin.DeleteFloor(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- slots ----

func (h *AdminHandler) FloorSlots(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "floor")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	slots, err := h.Admin.SlotsByFloor(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	out := make([]slotResp, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlot(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *AdminHandler) CreateSlot(c echo.Context) error {
	var req slotReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	s, err := h.Admin.CreateSlot(ctx, req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toSlot(*s))
}

func (h *AdminHandler) UpdateSlot(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "slot")
	}
	var req slotReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	s, err := h.Admin.UpdateSlot(ctx, id, req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toSlot(*s))
}

func (h *AdminHandler) DeleteSlot(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "slot")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Admin.DeleteSlot(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
