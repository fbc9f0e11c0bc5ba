package calendar

import (
	"context"

	"rentalspot/internal/app/dto"
	"rentalspot/internal/app/queries"
	"rentalspot/internal/domain/shared/daterange"
)

const getCalendarKey = "calendar.month"

type GetCalendarQuery struct {
	PropertyID string
	Month      string
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

func (q GetCalendarQuery) Validate() error {
	return required("propertyId", q.PropertyID)
}

type GetCalendarHandler struct {
	Engine Engine
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.MonthCalendar, error) {
	month, err := daterange.ParseMonth(q.Month)
	if err != nil {
		return dto.MonthCalendar{}, err
	}
	view, err := h.Engine.MonthCalendar(ctx, q.PropertyID, month)
	if err != nil {
		return dto.MonthCalendar{}, err
	}
	return dto.MapMonthCalendar(view), nil
}

var _ queries.Handler[GetCalendarQuery, dto.MonthCalendar] = (*GetCalendarHandler)(nil)

const healthKey = "calendar.health"

type HealthQuery struct{}

func (HealthQuery) Key() string { return healthKey }

type HealthHandler struct {
	Engine Engine
}

func (h *HealthHandler) Handle(ctx context.Context, _ HealthQuery) (dto.Health, error) {
	health, err := h.Engine.HealthCheck(ctx)
	return dto.MapHealth(health), err
}

var _ queries.Handler[HealthQuery, dto.Health] = (*HealthHandler)(nil)
