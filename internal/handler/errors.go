package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/booking"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
	"github.com/iliyamo/parking-slot-reservation/internal/repository"
	"github.com/iliyamo/parking-slot-reservation/internal/service"
	"github.com/iliyamo/parking-slot-reservation/internal/utils"
)

// dbTimeout bounds the database work of a single request.
const dbTimeout = 5 * time.Second

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// statusOf maps a service or repository error to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, booking.ErrSlotNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, booking.ErrUserNotFound),
		errors.Is(err, repository.ErrSlotNotFound),
		errors.Is(err, repository.ErrFloorNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadBody),
		errors.Is(err, errBadTime),
		errors.Is(err, booking.ErrInvalidVehicleNumber),
		errors.Is(err, booking.ErrInvalidTimeRange),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, utils.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrTimeConflict),
		errors.Is(err, booking.ErrBookingNotActive),
		errors.Is(err, booking.ErrUpdateContended),
		errors.Is(err, repository.ErrSlotNumberExists),
		errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, repository.ErrTokenInvalid):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"error": ...}.  Unexpected errors are logged and
// reported with a generic message.
func fail(c echo.Context, err error) error {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": verrs})
	}
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		logging.FromContext(c.Request().Context(), logging.Discard()).
			Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		return c.JSON(code, echo.Map{"error": "internal error"})
	}
	return c.JSON(code, echo.Map{"error": err.Error()})
}

var errBadBody = errors.New("invalid body")

// bind decodes the body into req and runs the registered validator.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errBadBody
	}
	return c.Validate(req)
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badID(c echo.Context, what string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + what + " id"})
}
