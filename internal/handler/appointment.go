package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinic-api/internal/middleware"
	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/internal/scheduling"
)

// maxListDays bounds the staff appointment listing.
const maxListDays = 366

// AppointmentHandler exposes booking and availability over HTTP.
type AppointmentHandler struct {
	Booking *scheduling.Service
}

func NewAppointmentHandler(svc *scheduling.Service) *AppointmentHandler {
	if svc == nil {
		panic("nil booking service passed to NewAppointmentHandler")
	}
	return &AppointmentHandler{Booking: svc}
}

type bookingReq struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	UserID uint64 `json:"user_id"`
}

// Submit handles POST /v1/appointments. The subject is the caller; staff
// may book for another user by passing user_id.
func (h *AppointmentHandler) Submit(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	subject := uid
	if req.UserID != 0 && req.UserID != uid {
		switch middleware.Role(c) {
		case model.RoleAdmin, model.RoleDoctor:
			subject = req.UserID
		default:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot book for another user"})
		}
	}

	a, err := h.Booking.SubmitBooking(c.Request().Context(), scheduling.BookingRequest{
		SubjectID: subject,
		Date:      req.Date,
		Slot:      req.Time,
	})
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":     "Appointment booked successfully",
		"appointment": model.NewAppointment(*a),
	})
}

// bookingError maps a scheduling error to its HTTP status. Store failures
// are reported by their sentinel text only.
func bookingError(c echo.Context, err error) error {
	reason := scheduling.ReasonOf(err)
	status := http.StatusInternalServerError
	msg := scheduling.ErrUnexpectedStore.Error()
	switch reason {
	case scheduling.ReasonMissingField, scheduling.ReasonInvalidDate, scheduling.ReasonInvalidSlot:
		status, msg = http.StatusBadRequest, err.Error()
	case scheduling.ReasonCapacityExceeded, scheduling.ReasonSlotTaken:
		status, msg = http.StatusConflict, err.Error()
	case scheduling.ReasonTransientStoreFailure:
		status, msg = http.StatusServiceUnavailable, scheduling.ErrTransientStore.Error()
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(status, echo.Map{"error": msg, "reason": string(reason)})
}

// Availability handles GET /v1/appointments/availability?days=N.
func (h *AppointmentHandler) Availability(c echo.Context) error {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "days must be an integer"})
	}
	out, err := h.Booking.ListAvailability(c.Request().Context(), days)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"daily_cap":    h.Booking.Policy().Cap(),
		"availability": out,
	})
}

// AvailableDates handles GET /v1/appointments/available-dates?days=N.
func (h *AppointmentHandler) AvailableDates(c echo.Context) error {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "days must be an integer"})
	}
	dates, err := h.Booking.AvailableDates(c.Request().Context(), days)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"dates": dates})
}

// Slots handles GET /v1/appointments/slots.
func (h *AppointmentHandler) Slots(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"slots":     h.Booking.Catalog().All(),
		"daily_cap": h.Booking.Policy().Cap(),
	})
}

// Mine handles GET /v1/my-appointments.
func (h *AppointmentHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	as, err := h.Booking.ListBySubject(c.Request().Context(), uid)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"appointments": model.NewAppointments(as)})
}

// List handles GET /v1/appointments?from=YYYY-MM-DD&to=YYYY-MM-DD for
// staff. Both bounds are inclusive; from defaults to today and to to the
// 30 days after from.
func (h *AppointmentHandler) List(c echo.Context) error {
	from, to, err := dateRange(c.QueryParam("from"), c.QueryParam("to"), time.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	as, err := h.Booking.ListRange(c.Request().Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"from":         scheduling.FormatDate(from),
		"to":           scheduling.FormatDate(to),
		"appointments": model.NewAppointments(as),
	})
}

func dateRange(fromStr, toStr string, now time.Time) (time.Time, time.Time, error) {
	from := scheduling.Day(now)
	if s := strings.TrimSpace(fromStr); s != "" {
		d, err := scheduling.ParseDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
		}
		from = d
	}
	to := from.AddDate(0, 0, 30)
	if s := strings.TrimSpace(toStr); s != "" {
		d, err := scheduling.ParseDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
		}
		to = d
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to is before from")
	}
	if to.Sub(from) > maxListDays*24*time.Hour {
		return time.Time{}, time.Time{}, errors.New("range too large")
	}
	return from, to, nil
}
