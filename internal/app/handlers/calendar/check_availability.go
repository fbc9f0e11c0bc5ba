package calendar

import (
	"context"
	"time"

	"rentalspot/internal/app/dto"
	"rentalspot/internal/app/queries"
	"rentalspot/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "calendar.check_availability"

type CheckAvailabilityQuery struct {
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

func (q CheckAvailabilityQuery) Validate() error {
	return required("propertyId", q.PropertyID)
}

type CheckAvailabilityHandler struct {
	Engine Engine
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Quote, error) {
	r, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Quote{}, err
	}
	quote, err := h.Engine.CheckAvailability(ctx, q.PropertyID, r)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.MapQuote(quote), nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Quote] = (*CheckAvailabilityHandler)(nil)
