package availability

import (
	"context"

	domain "rentalspot/internal/domain/availability"
	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/shared/daterange"
)

// CalendarDay merges both projections for one day of the admin view.
type CalendarDay struct {
	Date          string            `json:"date"`
	Available     bool              `json:"available"`
	Reason        domain.Reason     `json:"reason,omitempty"`
	HeldBy        string            `json:"heldBy,omitempty"`
	ExternalBlock string            `json:"externalBlock,omitempty"`
	Price         *pricing.DayPrice `json:"price,omitempty"`
}

// MonthView is the admin calendar of a property-month.
type MonthView struct {
	PropertyID string        `json:"propertyId"`
	Month      string        `json:"month"`
	Currency   string        `json:"currency,omitempty"`
	Version    int64         `json:"version"`
	Days       []CalendarDay `json:"days"`
}

// MonthCalendar reads one month of both projections without changing them.
func (c *Coordinator) MonthCalendar(ctx context.Context, propertyID string, month daterange.Month) (MonthView, error) {
	doc, err := c.store.Availability(ctx, propertyID, month)
	if err != nil {
		if !isNotFound(err) {
			return MonthView{}, err
		}
		doc = domain.NewMonthAvailability(propertyID, month, c.opts.now())
	}
	cal, err := c.prices.month(ctx, propertyID, month)
	if err != nil {
		return MonthView{}, err
	}
	view := MonthView{PropertyID: propertyID, Month: month.String(), Version: doc.Version, Days: make([]CalendarDay, 0, month.DaysIn())}
	if cal != nil {
		view.Currency = cal.Currency
	}
	for d := 1; d <= month.DaysIn(); d++ {
		day := CalendarDay{
			Date:          daterange.FormatDay(month.Date(d)),
			Available:     doc.IsAvailable(d),
			Reason:        doc.ReasonFor(d),
			HeldBy:        doc.HeldBy(d),
			ExternalBlock: doc.ExternalBlock(d),
		}
		if dp, ok := cal.Day(d); ok {
			dp := dp
			day.Price = &dp
		}
		view.Days = append(view.Days, day)
	}
	return view, nil
}
