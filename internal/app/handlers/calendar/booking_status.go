package calendar

import (
	"context"
	"time"

	"rentalspot/internal/app/availability"
	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/dto"
	"rentalspot/internal/app/middleware"
	"rentalspot/internal/domain/shared/daterange"
)

const (
	confirmBookingKey = "calendar.confirm_booking"
	cancelBookingKey  = "calendar.cancel_booking"
	releaseHoldKey    = "calendar.release_hold"
)

// ConfirmBookingCommand marks a paid booking's nights as booked. Bookings
// unknown to the engine, such as channel imports, carry their own stay.
type ConfirmBookingCommand struct {
	BookingID       string
	PropertyID      string
	CheckIn         time.Time
	CheckOut        time.Time
	Channel         string
	IdempotencyKeyV string
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

func (c ConfirmBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c ConfirmBookingCommand) ResultPrototype() any { return &dto.BookingChange{} }

func (c ConfirmBookingCommand) Validate() error {
	if err := required("bookingId", c.BookingID); err != nil {
		return err
	}
	return required("propertyId", c.PropertyID)
}

type ConfirmBookingHandler struct {
	Engine Engine
	Publisher
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.BookingChange, error) {
	r, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	res, err := h.Engine.ConfirmBooking(ctx, availability.BookingRequest{
		BookingID:  cmd.BookingID,
		PropertyID: cmd.PropertyID,
		Range:      r,
		Channel:    cmd.Channel,
	})
	if err := h.finish(ctx, res.Events, err); err != nil {
		return nil, err
	}
	change := dto.MapBookingChange(res)
	return &change, nil
}

type CancelBookingCommand struct {
	BookingID       string
	IdempotencyKeyV string
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CancelBookingCommand) ResultPrototype() any { return &dto.BookingChange{} }

func (c CancelBookingCommand) Validate() error { return required("bookingId", c.BookingID) }

type CancelBookingHandler struct {
	Engine Engine
	Publisher
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.BookingChange, error) {
	res, err := h.Engine.CancelBooking(ctx, cmd.BookingID)
	if err := h.finish(ctx, res.Events, err); err != nil {
		return nil, err
	}
	change := dto.MapBookingChange(res)
	return &change, nil
}

// ReleaseHoldCommand abandons a checkout before payment.
type ReleaseHoldCommand struct {
	BookingID string
}

func (c ReleaseHoldCommand) Key() string { return releaseHoldKey }

func (c ReleaseHoldCommand) Validate() error { return required("bookingId", c.BookingID) }

type ReleaseHoldHandler struct {
	Engine Engine
	Publisher
}

func (h *ReleaseHoldHandler) Handle(ctx context.Context, cmd ReleaseHoldCommand) (*dto.BookingChange, error) {
	res, err := h.Engine.ReleaseHold(ctx, cmd.BookingID)
	if err := h.finish(ctx, res.Events, err); err != nil {
		return nil, err
	}
	change := dto.MapBookingChange(res)
	return &change, nil
}

var (
	_ commands.Handler[ConfirmBookingCommand, *dto.BookingChange] = (*ConfirmBookingHandler)(nil)
	_ commands.Handler[CancelBookingCommand, *dto.BookingChange]  = (*CancelBookingHandler)(nil)
	_ commands.Handler[ReleaseHoldCommand, *dto.BookingChange]    = (*ReleaseHoldHandler)(nil)
	_ middleware.IdempotentCommand                                = (*ConfirmBookingCommand)(nil)
	_ middleware.IdempotentCommand                                = (*CancelBookingCommand)(nil)
)
