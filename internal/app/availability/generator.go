package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domain "rentalspot/internal/domain/availability"
	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/property"
	"rentalspot/internal/domain/shared/daterange"
	"rentalspot/internal/domain/shared/events"
	"rentalspot/internal/domain/shared/money"
)

const overrideTagPrefix = "override:"

func overrideTag(id string) string { return overrideTagPrefix + id }

func isOverrideTag(tag string) bool { return strings.HasPrefix(tag, overrideTagPrefix) }

// DayError is a day, or a whole month, the generator could not write.
type DayError struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

// GenerationReport summarizes a generator run.
type GenerationReport struct {
	PropertyID  string               `json:"propertyId"`
	Months      []string             `json:"months"`
	DaysWritten int                  `json:"daysWritten"`
	Repaired    []string             `json:"repaired,omitempty"`
	Errors      []DayError           `json:"errors"`
	StartedAt   time.Time            `json:"startedAt"`
	FinishedAt  time.Time            `json:"finishedAt"`
	Events      []events.DomainEvent `json:"-"`
}

// Generate rebuilds the price calendar of a property for monthsAhead months
// starting with the current one. Availability always comes from the ledger;
// overrides that close a day are written to the ledger as external blocks
// first. A property that cannot be priced aborts the run, while a day that
// fails to price is reported and skipped.
func (c *Coordinator) Generate(ctx context.Context, propertyID string, monthsAhead int) (GenerationReport, error) {
	if monthsAhead <= 0 {
		monthsAhead = c.opts.monthsAhead
	}
	p, err := c.catalog.Property(ctx, propertyID)
	if err != nil {
		return GenerationReport{}, err
	}
	base, err := p.BaseMoney()
	if err != nil {
		return GenerationReport{}, err
	}
	rules, broken := splitRules(p.Rules)

	now := c.opts.now()
	today := daterange.Day(now)
	report := GenerationReport{PropertyID: p.ID, Errors: []DayError{}, StartedAt: now.UTC()}
	for _, b := range broken {
		if b.rule.Covers(b.rule.StartDate) {
			continue
		}
		// An inverted range covers no day, so the rule is only reported.
		report.Errors = append(report.Errors, DayError{
			Date:  daterange.FormatDay(b.rule.StartDate),
			Error: fmt.Sprintf("seasonal rule %s ignored: %v", b.rule.ID, b.err),
		})
	}
	month := daterange.MonthOf(today)
	for i := 0; i < monthsAhead; i++ {
		first := 1
		if i == 0 {
			first = today.Day()
		}
		written, repaired, dayErrs, err := c.generateMonth(ctx, p, base, rules, broken, month, first)
		report.Errors = append(report.Errors, dayErrs...)
		report.DaysWritten += written
		report.Repaired = append(report.Repaired, repaired...)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			c.opts.logger.ErrorContext(ctx, "calendar month generation failed",
				slog.String("property_id", p.ID),
				slog.String("month", month.String()),
				slog.Any("error", err))
			report.Errors = append(report.Errors, DayError{Date: month.String(), Error: err.Error()})
		}
		report.Months = append(report.Months, month.String())
		month = month.Next()
	}
	report.FinishedAt = c.opts.now().UTC()

	c.opts.metrics.GenerationErrors(len(report.Errors))
	c.opts.metrics.DriftRepaired(len(report.Repaired))
	c.opts.logger.InfoContext(ctx, "calendar generated",
		slog.String("property_id", p.ID),
		slog.Int("months", len(report.Months)),
		slog.Int("days", report.DaysWritten),
		slog.Int("errors", len(report.Errors)),
		slog.Int("repaired", len(report.Repaired)))

	if c.opts.archive != nil {
		if err := c.opts.archive.StoreReport(ctx, report); err != nil {
			c.opts.logger.WarnContext(ctx, "archive generation report", slog.String("property_id", p.ID), slog.Any("error", err))
		}
	}

	var rec events.EventRecorder
	rec.Record(domain.CalendarGenerated{PropertyID: p.ID, Months: report.Months, Days: report.DaysWritten, Errors: len(report.Errors), At: report.FinishedAt})
	if len(report.Repaired) > 0 {
		rec.Record(domain.DriftDetected{PropertyID: p.ID, Dates: report.Repaired, Repaired: true, At: report.FinishedAt})
	}
	report.Events = rec.Drain()
	return report, nil
}

// GenerateAll runs Generate for every catalog property. Configuration errors
// of one property do not stop the others.
func (c *Coordinator) GenerateAll(ctx context.Context, monthsAhead int) ([]GenerationReport, error) {
	props, err := c.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	var (
		reports []GenerationReport
		errs    []error
	)
	for _, p := range props {
		report, err := c.Generate(ctx, p.ID, monthsAhead)
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			c.opts.logger.ErrorContext(ctx, "calendar generation aborted", slog.String("property_id", p.ID), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func (c *Coordinator) generateMonth(ctx context.Context, p *property.Property, base money.Money, rules []pricing.SeasonalRule, broken []brokenRule, month daterange.Month, first int) (int, []string, []DayError, error) {
	now := c.opts.now().UTC()
	cal := pricing.NewMonthCalendar(p.ID, month, now)
	cal.Currency = base.Currency
	cal.GeneratedAt = now

	var (
		dayErrs []DayError
		days    []int
	)
	blocks := map[int]string{}
	for d := first; d <= month.DaysIn(); d++ {
		days = append(days, d)
		price, err := pricing.Resolve(p.ID, month.Date(d), base, rules, p.Overrides)
		if err == nil && price.PriceSource != pricing.SourceOverride {
			err = brokenRuleError(p.ID, month.Date(d), broken)
		}
		if err != nil {
			dayErrs = append(dayErrs, DayError{Date: daterange.FormatDay(month.Date(d)), Error: err.Error()})
			continue
		}
		if !price.Available && price.PriceSource == pricing.SourceOverride {
			blocks[d] = overrideTag(price.RuleID)
		}
		cal.Days[pricing.DayKey(d)] = price
	}

	// Days already behind us keep whatever the previous run wrote.
	if first > 1 {
		previous, err := c.prices.month(ctx, p.ID, month)
		if err != nil {
			return 0, nil, dayErrs, err
		}
		if previous != nil {
			for d := 1; d < first; d++ {
				if dp, ok := previous.Day(d); ok {
					cal.Days[pricing.DayKey(d)] = dp
				}
			}
		}
	}

	// Lifting an override must not reopen a night an active booking covers.
	window, err := daterange.New(month.Date(first), month.Next().Start())
	if err != nil {
		return 0, nil, dayErrs, err
	}
	occupied, err := c.holds.occupiedBy(ctx, p.ID, window, "")
	if err != nil {
		return 0, nil, dayErrs, err
	}
	err = retry(ctx, c.opts.logger, "sync override blocks", c.opts.backoff, func() error {
		_, err := c.ledger.transactMonth(ctx, p.ID, month, days, syncOverrideBlocks(blocks, occupied))
		return err
	})
	if err != nil {
		return 0, nil, dayErrs, err
	}

	err = retry(ctx, c.opts.logger, "write price calendar", c.opts.backoff, func() error {
		doc, err := c.ledger.ensure(ctx, p.ID, month)
		if err != nil {
			return err
		}
		for _, d := range days {
			key := pricing.DayKey(d)
			if dp, ok := cal.Days[key]; ok {
				dp.Available = doc.IsAvailable(d)
				cal.Days[key] = dp
			}
		}
		if _, err := c.prices.ensure(ctx, p.ID, month); err != nil {
			return err
		}
		return c.store.SetPrices(ctx, cal)
	})
	if err != nil {
		return 0, nil, dayErrs, err
	}
	written := len(days) - len(dayErrs)

	// The ledger may have moved while the calendar was being written.
	repaired, err := c.repairMonth(ctx, p.ID, month)
	if err != nil {
		return written, nil, dayErrs, err
	}
	return written, repaired, dayErrs, nil
}

type brokenRule struct {
	rule pricing.SeasonalRule
	err  error
}

// splitRules keeps the enabled rules that validate. Disabled rules never
// price a day, so they are not checked at all.
func splitRules(all []pricing.SeasonalRule) ([]pricing.SeasonalRule, []brokenRule) {
	var (
		ok     []pricing.SeasonalRule
		broken []brokenRule
	)
	for _, r := range all {
		if !r.Enabled {
			continue
		}
		if err := r.Validate(); err != nil {
			broken = append(broken, brokenRule{rule: r, err: err})
			continue
		}
		ok = append(ok, r)
	}
	return ok, broken
}

// brokenRuleError fails a day covered by an invalid enabled rule, since the
// price the owner meant for it cannot be computed.
func brokenRuleError(propertyID string, date time.Time, broken []brokenRule) error {
	for _, b := range broken {
		if b.rule.PropertyID != "" && b.rule.PropertyID != propertyID {
			continue
		}
		if b.rule.Covers(date) {
			return &pricing.PricingError{PropertyID: propertyID, Date: date, Reason: fmt.Sprintf("seasonal rule %s: %v", b.rule.ID, b.err)}
		}
	}
	return nil
}

// syncOverrideBlocks closes days an override marks unavailable and reopens
// days whose override block was lifted. Channel blocks are never touched, and
// nights in occupied stay closed without an override annotation.
func syncOverrideBlocks(blocks map[int]string, occupied map[string]bool) decideFunc {
	return func(doc *domain.MonthAvailability, days []int) ([]domain.DayPatch, error) {
		var patches []domain.DayPatch
		for _, d := range days {
			want, current := blocks[d], doc.ExternalBlock(d)
			booked := occupied[daterange.FormatDay(doc.Month.Date(d))] && doc.HeldBy(d) == ""
			switch {
			case want != "" && current == want:
			case want != "" && current == "":
				// Booked days are already closed and carry no annotation.
				if doc.IsAvailable(d) || doc.HeldBy(d) != "" {
					patches = append(patches, domain.DayPatch{Day: d, Available: false, ExternalBlock: want})
				}
			case want != "" && isOverrideTag(current):
				if booked {
					patches = append(patches, domain.DayPatch{Day: d, Available: false, ClearExternalBlock: true})
					continue
				}
				patches = append(patches, domain.DayPatch{Day: d, Available: false, ExternalBlock: want})
			case want == "" && isOverrideTag(current):
				open := doc.HeldBy(d) == "" && !booked
				patches = append(patches, domain.DayPatch{Day: d, Available: open, ClearExternalBlock: true})
			}
		}
		return patches, nil
	}
}
