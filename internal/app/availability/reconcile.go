package availability

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strconv"

	domain "rentalspot/internal/domain/availability"
	domainbooking "rentalspot/internal/domain/booking"
	"rentalspot/internal/domain/shared/daterange"
	"rentalspot/internal/domain/shared/events"
)

// ReconcileReport lists what a reconciliation pass repaired.
type ReconcileReport struct {
	PropertyID    string               `json:"propertyId"`
	Months        []string             `json:"months"`
	Repaired      []string             `json:"repaired"`
	ReleasedHolds []string             `json:"releasedHolds"`
	Events        []events.DomainEvent `json:"-"`
}

// Reconcile repairs drift left behind by torn multi-month writes. Holds whose
// booking is gone, expired or cancelled are released, then every generated
// price day is realigned with the ledger.
func (c *Coordinator) Reconcile(ctx context.Context, propertyID string, monthsAhead int) (ReconcileReport, error) {
	if monthsAhead <= 0 {
		monthsAhead = c.opts.monthsAhead
	}
	report := ReconcileReport{PropertyID: propertyID, Repaired: []string{}, ReleasedHolds: []string{}}
	var errs []error
	month := daterange.MonthOf(c.opts.now())
	for i := 0; i < monthsAhead; i++ {
		report.Months = append(report.Months, month.String())
		released, err := c.releaseOrphanHolds(ctx, propertyID, month)
		if err != nil {
			errs = append(errs, err)
		}
		report.ReleasedHolds = append(report.ReleasedHolds, released...)
		repaired, err := c.repairMonth(ctx, propertyID, month)
		if err != nil {
			errs = append(errs, err)
		}
		report.Repaired = append(report.Repaired, repaired...)
		month = month.Next()
	}
	sort.Strings(report.ReleasedHolds)
	report.ReleasedHolds = slices.Compact(report.ReleasedHolds)

	c.opts.metrics.DriftRepaired(len(report.Repaired))
	var rec events.EventRecorder
	if len(report.Repaired) > 0 {
		c.opts.logger.WarnContext(ctx, "calendar drift repaired",
			slog.String("property_id", propertyID),
			slog.Any("dates", report.Repaired))
		rec.Record(domain.DriftDetected{PropertyID: propertyID, Dates: report.Repaired, Repaired: true, At: c.opts.now().UTC()})
	}
	report.Events = rec.Drain()
	return report, errors.Join(errs...)
}

// ReconcileAll runs Reconcile for every catalog property.
func (c *Coordinator) ReconcileAll(ctx context.Context, monthsAhead int) ([]ReconcileReport, error) {
	props, err := c.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	var (
		reports []ReconcileReport
		errs    []error
	)
	for _, p := range props {
		report, err := c.Reconcile(ctx, p.ID, monthsAhead)
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			c.opts.logger.ErrorContext(ctx, "reconciliation incomplete", slog.String("property_id", p.ID), slog.Any("error", err))
			errs = append(errs, err)
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

// releaseOrphanHolds frees days still held by bookings that no longer hold
// them.
func (c *Coordinator) releaseOrphanHolds(ctx context.Context, propertyID string, month daterange.Month) ([]string, error) {
	doc, err := c.store.Availability(ctx, propertyID, month)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	holders := map[string][]int{}
	for d, id := range doc.Holds {
		if id != "" {
			holders[id] = append(holders[id], d)
		}
	}
	var (
		released []string
		errs     []error
	)
	for id, days := range holders {
		b, err := c.bookings.ByID(ctx, domainbooking.BookingID(id))
		switch {
		case errors.Is(err, domainbooking.ErrBookingNotFound):
		case err != nil:
			errs = append(errs, err)
			continue
		case b.Active():
			continue
		}
		sort.Ints(days)
		if _, err := c.ledger.transactMonth(ctx, propertyID, month, days, releaseHeldBy(id)); err != nil {
			errs = append(errs, err)
			continue
		}
		c.opts.logger.WarnContext(ctx, "orphan hold released",
			slog.String("property_id", propertyID),
			slog.String("booking_id", id),
			slog.String("month", month.String()))
		released = append(released, id)
	}
	return released, errors.Join(errs...)
}

// repairMonth rewrites the availability of generated price days that
// disagree with the ledger and returns their dates.
func (c *Coordinator) repairMonth(ctx context.Context, propertyID string, month daterange.Month) ([]string, error) {
	cal, err := c.prices.month(ctx, propertyID, month)
	if err != nil || cal == nil {
		return nil, err
	}
	doc, err := c.store.Availability(ctx, propertyID, month)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		doc = domain.NewMonthAvailability(propertyID, month, c.opts.now())
	}
	var patches []domain.DayPatch
	for key, dp := range cal.Days {
		d, err := strconv.Atoi(key)
		if err != nil || d < 1 || d > month.DaysIn() {
			continue
		}
		if dp.Available != doc.IsAvailable(d) {
			patches = append(patches, domain.DayPatch{Day: d, Available: doc.IsAvailable(d)})
		}
	}
	if len(patches) == 0 {
		return nil, nil
	}
	sort.Slice(patches, func(i, j int) bool { return patches[i].Day < patches[j].Day })
	update := domain.MonthUpdate{Target: domain.TargetPrices, PropertyID: propertyID, Month: month, Days: patches}
	if err := c.store.BatchUpdate(ctx, []domain.MonthUpdate{update}); err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(patches))
	for _, p := range patches {
		dates = append(dates, daterange.FormatDay(month.Date(p.Day)))
	}
	return dates, nil
}
