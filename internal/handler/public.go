package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/service"
)

// PublicHandler serves the read-only floor and slot views to guests.
type PublicHandler struct {
	Avail *service.AvailabilityService
	Loc   *time.Location
}

func NewPublicHandler(avail *service.AvailabilityService, loc *time.Location) *PublicHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PublicHandler{Avail: avail, Loc: loc}
}

// Floors handles GET /v1/floors.
func (h *PublicHandler) Floors(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	floors, err := h.Avail.Floors(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]floorResp, 0, len(floors))
	for _, f := range floors {
		out = append(out, toFloor(f))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// FloorSlots handles GET /v1/floors/:id/slots with the live state of
// every slot on the floor.
func (h *PublicHandler) FloorSlots(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "floor")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	fa, err := h.Avail.FloorAvailability(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	slots := make([]availabilityResp, 0, len(fa.Slots))
	for _, s := range fa.Slots {
		slots = append(slots, toAvailability(h.Loc, s))
	}
	return c.JSON(http.StatusOK, echo.Map{"floor": toFloor(fa.Floor), "slots": slots})
}

// SlotAvailability handles GET /v1/slots/:id/availability.
func (h *PublicHandler) SlotAvailability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "slot")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	sa, err := h.Avail.SlotAvailability(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toAvailability(h.Loc, *sa))
}
