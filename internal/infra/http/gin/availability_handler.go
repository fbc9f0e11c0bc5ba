package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/dto"
	"rentalspot/internal/app/handlers/calendar"
	"rentalspot/internal/app/queries"
	"rentalspot/internal/domain/shared/daterange"
)

// AvailabilityHandler serves the guest-facing checkout flow: quotes, holds
// and the booking transitions that move nights on the calendar.
type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type stayRequest struct {
	PropertyID string `json:"propertyId" binding:"required"`
	CheckIn    string `json:"checkIn" binding:"required"`
	CheckOut   string `json:"checkOut" binding:"required"`
	Channel    string `json:"channel" binding:"omitempty,max=64"`
}

type holdRequest struct {
	stayRequest
	BookingID string `json:"bookingId" binding:"required,max=128"`
}

func (s stayRequest) days() (time.Time, time.Time, error) {
	in, err := daterange.ParseDay(s.CheckIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	out, err := daterange.ParseDay(s.CheckOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return in, out, nil
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	stay := stayRequest{CheckIn: c.Query("checkIn"), CheckOut: c.Query("checkOut")}
	in, out, err := stay.days()
	if err != nil {
		badRequest(c, err)
		return
	}
	q := calendar.CheckAvailabilityQuery{PropertyID: c.Param("id"), CheckIn: in, CheckOut: out}
	result, err := queries.Ask[calendar.CheckAvailabilityQuery, dto.Quote](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	q := calendar.GetCalendarQuery{PropertyID: c.Param("id"), Month: c.Param("month")}
	result, err := queries.Ask[calendar.GetCalendarQuery, dto.MonthCalendar](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) PlaceHold(c *gin.Context) {
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in, out, err := req.days()
	if err != nil {
		badRequest(c, err)
		return
	}
	cmd := calendar.PlaceHoldCommand{
		BookingID:       strings.TrimSpace(req.BookingID),
		PropertyID:      strings.TrimSpace(req.PropertyID),
		CheckIn:         in,
		CheckOut:        out,
		Channel:         req.Channel,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[calendar.PlaceHoldCommand, *dto.Hold](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h AvailabilityHandler) Confirm(c *gin.Context) {
	var req stayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in, out, err := req.days()
	if err != nil {
		badRequest(c, err)
		return
	}
	cmd := calendar.ConfirmBookingCommand{
		BookingID:       strings.TrimSpace(c.Param("id")),
		PropertyID:      strings.TrimSpace(req.PropertyID),
		CheckIn:         in,
		CheckOut:        out,
		Channel:         req.Channel,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[calendar.ConfirmBookingCommand, *dto.BookingChange](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Cancel(c *gin.Context) {
	cmd := calendar.CancelBookingCommand{
		BookingID:       strings.TrimSpace(c.Param("id")),
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[calendar.CancelBookingCommand, *dto.BookingChange](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Release(c *gin.Context) {
	cmd := calendar.ReleaseHoldCommand{BookingID: strings.TrimSpace(c.Param("id"))}
	result, err := commands.Dispatch[calendar.ReleaseHoldCommand, *dto.BookingChange](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
