package availability

import (
	"context"
	"time"

	domain "rentalspot/internal/domain/availability"
	"rentalspot/internal/domain/shared/daterange"
)

// rangeOptions annotate a setRange write.
type rangeOptions struct {
	holdBookingID       string
	externalBlock       string
	clearExternalBlocks bool
}

// applied records, per month, the day patches that reached the ledger so the
// same availability can be mirrored into the price calendar.
type applied map[daterange.Month][]domain.DayPatch

func (a applied) merge(month daterange.Month, patches []domain.DayPatch) {
	if len(patches) == 0 {
		return
	}
	a[month] = append(a[month], patches...)
}

func (a applied) dates() []string {
	var out []string
	for month, patches := range a {
		for _, p := range patches {
			out = append(out, daterange.FormatDay(month.Date(p.Day)))
		}
	}
	sortDates(out)
	return out
}

func (a applied) months() []daterange.Month {
	out := make([]daterange.Month, 0, len(a))
	for m := range a {
		out = append(out, m)
	}
	sortMonths(out)
	return out
}

// ledger is the day-granular availability projection. Ranges are half-open:
// the checkout day is never touched.
type ledger struct {
	store domain.Store
	now   func() time.Time
}

func (l *ledger) ensure(ctx context.Context, propertyID string, month daterange.Month) (*domain.MonthAvailability, error) {
	return l.store.EnsureAvailability(ctx, propertyID, month, func() *domain.MonthAvailability {
		return domain.NewMonthAvailability(propertyID, month, l.now())
	})
}

// setRange writes availability for every night of r in a single batch. The
// batch is atomic per month only; a range crossing a month boundary may be
// observed half-written.
//
// With available=true holds are cleared; days keeping an external block stay
// unavailable unless clearExternalBlocks is set.
func (l *ledger) setRange(ctx context.Context, propertyID string, r daterange.DateRange, available bool, opts rangeOptions) (applied, error) {
	months, days := r.MonthDays()
	out := applied{}
	updates := make([]domain.MonthUpdate, 0, len(months))
	for _, month := range months {
		doc, err := l.ensure(ctx, propertyID, month)
		if err != nil {
			return nil, err
		}
		patches := make([]domain.DayPatch, 0, len(days[month]))
		for _, d := range days[month] {
			p := domain.DayPatch{Day: d, Available: available}
			if available {
				p.ClearHold = true
				p.ClearExternalBlock = opts.clearExternalBlocks
				if !opts.clearExternalBlocks && doc.ExternalBlock(d) != "" {
					p.Available = false
				}
			} else {
				p.Hold = opts.holdBookingID
				p.ExternalBlock = opts.externalBlock
				p.ClearExternalBlock = opts.clearExternalBlocks && opts.externalBlock == ""
			}
			patches = append(patches, p)
		}
		updates = append(updates, domain.MonthUpdate{Target: domain.TargetLedger, PropertyID: propertyID, Month: month, Days: patches})
		out.merge(month, patches)
	}
	if len(updates) == 0 {
		return out, nil
	}
	if err := l.store.BatchUpdate(ctx, updates); err != nil {
		return nil, err
	}
	return out, nil
}

// decideFunc inspects a fresh ledger document inside a month transaction and
// returns the patches to write for the given days.
type decideFunc func(doc *domain.MonthAvailability, days []int) ([]domain.DayPatch, error)

// transactMonth runs decide for one month inside a store transaction.
func (l *ledger) transactMonth(ctx context.Context, propertyID string, month daterange.Month, days []int, decide decideFunc) ([]domain.DayPatch, error) {
	if _, err := l.ensure(ctx, propertyID, month); err != nil {
		return nil, err
	}
	var patches []domain.DayPatch
	err := l.store.TransactAvailability(ctx, propertyID, month, func(doc *domain.MonthAvailability) error {
		decided, err := decide(doc, days)
		if err != nil {
			return err
		}
		for _, p := range decided {
			doc.Apply(p)
		}
		patches = decided
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patches, nil
}

// rangeStatus reads the ledger for every night of r. Missing documents read
// as fully available.
func (l *ledger) rangeStatus(ctx context.Context, propertyID string, r daterange.DateRange) ([]domain.DayStatus, error) {
	months, days := r.MonthDays()
	out := make([]domain.DayStatus, 0, r.Nights())
	for _, month := range months {
		doc, err := l.store.Availability(ctx, propertyID, month)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if doc == nil {
			doc = domain.NewMonthAvailability(propertyID, month, l.now())
		}
		for _, d := range days[month] {
			out = append(out, domain.DayStatus{
				Date:              month.Date(d),
				Available:         doc.IsAvailable(d),
				HeldBy:            doc.HeldBy(d),
				ExternallyBlocked: doc.ExternalBlock(d),
			})
		}
	}
	return out, nil
}
