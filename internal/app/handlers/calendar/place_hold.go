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

const placeHoldKey = "calendar.place_hold"

// PlaceHoldCommand starts a checkout by holding the stay's nights.
type PlaceHoldCommand struct {
	BookingID       string
	PropertyID      string
	CheckIn         time.Time
	CheckOut        time.Time
	Channel         string
	IdempotencyKeyV string
}

func (c PlaceHoldCommand) Key() string { return placeHoldKey }

func (c PlaceHoldCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c PlaceHoldCommand) ResultPrototype() any { return &dto.Hold{} }

func (c PlaceHoldCommand) Validate() error {
	if err := required("bookingId", c.BookingID); err != nil {
		return err
	}
	return required("propertyId", c.PropertyID)
}

type PlaceHoldHandler struct {
	Engine Engine
	Publisher
}

func (h *PlaceHoldHandler) Handle(ctx context.Context, cmd PlaceHoldCommand) (*dto.Hold, error) {
	r, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	res, err := h.Engine.PlaceHoldForCheckout(ctx, availability.HoldRequest{
		BookingID:  cmd.BookingID,
		PropertyID: cmd.PropertyID,
		Range:      r,
		Channel:    cmd.Channel,
	})
	if err := h.finish(ctx, res.Events, err); err != nil {
		return nil, err
	}
	hold := dto.MapHold(res)
	return &hold, nil
}

var _ commands.Handler[PlaceHoldCommand, *dto.Hold] = (*PlaceHoldHandler)(nil)
var _ middleware.IdempotentCommand = (*PlaceHoldCommand)(nil)
