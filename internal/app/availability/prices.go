package availability

import (
	"context"
	"time"

	domain "rentalspot/internal/domain/availability"
	domainpricing "rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/shared/daterange"
)

// priceCalendar is the day-granular price projection. Outside the generator,
// only the availability flag of a day is ever written here.
type priceCalendar struct {
	store domain.Store
	now   func() time.Time
}

func (p *priceCalendar) ensure(ctx context.Context, propertyID string, month daterange.Month) (*domainpricing.MonthCalendar, error) {
	return p.store.EnsurePrices(ctx, propertyID, month, func() *domainpricing.MonthCalendar {
		return domainpricing.NewMonthCalendar(propertyID, month, p.now())
	})
}

// mirror copies ledger availability of the applied days into the price
// calendar in one batch.
func (p *priceCalendar) mirror(ctx context.Context, propertyID string, days applied) error {
	updates := make([]domain.MonthUpdate, 0, len(days))
	for _, month := range days.months() {
		if _, err := p.ensure(ctx, propertyID, month); err != nil {
			return err
		}
		patches := make([]domain.DayPatch, 0, len(days[month]))
		for _, d := range days[month] {
			patches = append(patches, domain.DayPatch{Day: d.Day, Available: d.Available})
		}
		updates = append(updates, domain.MonthUpdate{Target: domain.TargetPrices, PropertyID: propertyID, Month: month, Days: patches})
	}
	if len(updates) == 0 {
		return nil
	}
	return p.store.BatchUpdate(ctx, updates)
}

// month reads a price document; a missing document yields nil without error.
func (p *priceCalendar) month(ctx context.Context, propertyID string, month daterange.Month) (*domainpricing.MonthCalendar, error) {
	cal, err := p.store.Prices(ctx, propertyID, month)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return cal, nil
}
