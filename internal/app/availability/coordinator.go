package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "rentalspot/internal/domain/availability"
	domainbooking "rentalspot/internal/domain/booking"
	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/property"
	"rentalspot/internal/domain/shared/daterange"
	"rentalspot/internal/domain/shared/events"
)

// ErrInvalidRequest wraps input validation failures.
var ErrInvalidRequest = errors.New("availability: invalid request")

// Coordinator is the only writer of the availability ledger and the price
// calendar. Every availability change lands in the ledger first and is then
// mirrored into the price calendar.
type Coordinator struct {
	store    domain.Store
	bookings domainbooking.Repository
	catalog  property.Catalog
	ledger   *ledger
	prices   *priceCalendar
	holds    *holdManager
	opts     options
}

func NewCoordinator(store domain.Store, bookings domainbooking.Repository, catalog property.Catalog, opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	l := &ledger{store: store, now: o.now}
	return &Coordinator{
		store:    store,
		bookings: bookings,
		catalog:  catalog,
		ledger:   l,
		prices:   &priceCalendar{store: store, now: o.now},
		holds:    &holdManager{ledger: l, bookings: bookings, logger: o.logger, now: o.now},
		opts:     o,
	}
}

// HoldTTL reports the lifetime of checkout holds.
func (c *Coordinator) HoldTTL() time.Duration { return c.opts.holdTTL }

// QuotedDay is one priced night of a quote.
type QuotedDay struct {
	Date string `json:"date"`
	pricing.DayPrice
}

// Quote answers an availability query.
type Quote struct {
	PropertyID       string              `json:"propertyId"`
	Range            daterange.DateRange `json:"range"`
	Available        bool                `json:"available"`
	UnavailableDates []string            `json:"unavailableDates"`
	Pricing          []QuotedDay         `json:"pricing"`
	Nights           int                 `json:"nights"`
	MinimumStay      int                 `json:"minimumStay"`
	MeetsMinimumStay bool                `json:"meetsMinimumStay"`
	Total            decimal.Decimal     `json:"total"`
	Currency         string              `json:"currency,omitempty"`
	// Degraded is set when the store could not be read; every night is then
	// reported unavailable.
	Degraded bool `json:"degraded,omitempty"`
}

// CheckAvailability reads both projections for the nights of r. A night is
// available only when the ledger says so and the price calendar has priced it
// as available. Disagreements are logged and resolved as unavailable.
func (c *Coordinator) CheckAvailability(ctx context.Context, propertyID string, r daterange.DateRange) (Quote, error) {
	if err := c.validate(propertyID, r, false); err != nil {
		return Quote{}, err
	}
	quote := Quote{
		PropertyID:       propertyID,
		Range:            r,
		Nights:           r.Nights(),
		UnavailableDates: []string{},
		Pricing:          []QuotedDay{},
		Total:            decimal.Zero,
	}

	var (
		statuses []domain.DayStatus
		cals     map[daterange.Month]*pricing.MonthCalendar
	)
	err := retry(ctx, c.opts.logger, "check availability", c.opts.backoff, func() error {
		var err error
		if statuses, err = c.ledger.rangeStatus(ctx, propertyID, r); err != nil {
			return err
		}
		cals, err = c.priceMonths(ctx, propertyID, r)
		return err
	})
	if err != nil {
		c.opts.logger.ErrorContext(ctx, "availability read failed, reporting dates unavailable",
			slog.String("property_id", propertyID),
			slog.String("range", r.String()),
			slog.Any("error", err))
		quote.Degraded = true
		for _, day := range r.Days() {
			quote.UnavailableDates = append(quote.UnavailableDates, daterange.FormatDay(day))
		}
		return quote, nil
	}

	for i, st := range statuses {
		month := daterange.MonthOf(st.Date)
		date := daterange.FormatDay(st.Date)
		cal := cals[month]
		price, ok := cal.Day(st.Date.Day())
		priced := ok && price.Priced()
		available := st.Available
		switch {
		case !priced:
			available = false
		case price.Available != st.Available:
			c.opts.logger.WarnContext(ctx, "calendar projections disagree",
				slog.Any("warning", domain.ConsistencyWarning{
					PropertyID:      propertyID,
					Date:            date,
					LedgerAvailable: st.Available,
					PriceAvailable:  price.Available,
				}))
			c.opts.metrics.ConsistencyWarning()
			available = false
		}
		if priced {
			price.Available = available
			quote.Pricing = append(quote.Pricing, QuotedDay{Date: date, DayPrice: price})
			quote.Total = quote.Total.Add(price.BaseOccupancyPrice)
			if quote.Currency == "" {
				quote.Currency = cal.Currency
			}
			if i == 0 {
				quote.MinimumStay = price.MinimumStay
			}
		}
		if !available {
			quote.UnavailableDates = append(quote.UnavailableDates, date)
		}
	}
	quote.Available = len(quote.UnavailableDates) == 0
	// An unpriced check-in night has no known minimum, so it cannot be met.
	quote.MeetsMinimumStay = quote.MinimumStay > 0 && quote.Nights >= quote.MinimumStay
	return quote, nil
}

func (c *Coordinator) priceMonths(ctx context.Context, propertyID string, r daterange.DateRange) (map[daterange.Month]*pricing.MonthCalendar, error) {
	months, _ := r.MonthDays()
	out := make(map[daterange.Month]*pricing.MonthCalendar, len(months))
	for _, month := range months {
		cal, err := c.prices.month(ctx, propertyID, month)
		if err != nil {
			return nil, err
		}
		out[month] = cal
	}
	return out, nil
}

// HoldRequest starts a checkout hold.
type HoldRequest struct {
	BookingID  string
	PropertyID string
	Range      daterange.DateRange
	Channel    string
}

// HoldResult reports a placed hold.
type HoldResult struct {
	BookingID  string               `json:"bookingId"`
	PropertyID string               `json:"propertyId"`
	Range      daterange.DateRange  `json:"range"`
	HoldUntil  time.Time            `json:"holdUntil"`
	Dates      []string             `json:"dates"`
	Events     []events.DomainEvent `json:"-"`
}

// PlaceHoldForCheckout creates the on-hold booking when needed and holds its
// nights in the ledger. Calling it again for the same booking and range is a
// no-op. The losing side of a race gets a ConflictError and its booking is
// expired.
func (c *Coordinator) PlaceHoldForCheckout(ctx context.Context, req HoldRequest) (HoldResult, error) {
	if strings.TrimSpace(req.BookingID) == "" {
		return HoldResult{}, fmt.Errorf("%w: booking id is required", ErrInvalidRequest)
	}
	if err := c.validate(req.PropertyID, req.Range, true); err != nil {
		return HoldResult{}, err
	}
	b, err := c.holdRecord(ctx, req)
	if err != nil {
		return HoldResult{}, err
	}

	var held applied
	err = retry(ctx, c.opts.logger, "place hold", c.opts.backoff, func() error {
		var err error
		held, err = c.holds.place(ctx, req.PropertyID, req.Range, req.BookingID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			c.opts.metrics.HoldConflict()
			if _, terr := c.bookings.Transition(ctx, b.ID, domainbooking.StatusOnHold, domainbooking.StatusExpired, c.opts.now()); terr != nil && !errors.Is(terr, domainbooking.ErrStatusChanged) {
				c.opts.logger.ErrorContext(ctx, "expire losing hold", slog.String("booking_id", req.BookingID), slog.Any("error", terr))
			}
		case errors.Is(err, domain.ErrPartialHold):
			c.opts.metrics.PartialWrite("hold")
			c.opts.logger.ErrorContext(ctx, "hold placed partially",
				slog.String("property_id", req.PropertyID),
				slog.String("booking_id", req.BookingID),
				slog.Any("error", err))
			if merr := c.mirror(ctx, req.PropertyID, held); merr != nil {
				return HoldResult{}, errors.Join(err, merr)
			}
		}
		return HoldResult{}, err
	}
	if err := c.mirror(ctx, req.PropertyID, held); err != nil {
		return HoldResult{}, err
	}
	c.opts.metrics.HoldPlaced()

	var rec events.EventRecorder
	rec.Record(domain.DatesHeld{PropertyID: req.PropertyID, BookingID: req.BookingID, Range: req.Range, HoldUntil: b.HoldUntil, At: c.opts.now().UTC()})
	return HoldResult{
		BookingID:  req.BookingID,
		PropertyID: req.PropertyID,
		Range:      req.Range,
		HoldUntil:  b.HoldUntil,
		Dates:      held.dates(),
		Events:     rec.Drain(),
	}, nil
}

// holdRecord returns the on-hold booking for req, creating it when absent.
func (c *Coordinator) holdRecord(ctx context.Context, req HoldRequest) (*domainbooking.Booking, error) {
	id := domainbooking.BookingID(req.BookingID)
	existing, err := c.bookings.ByID(ctx, id)
	if err == nil {
		return existing, c.sameHold(existing, req)
	}
	if !errors.Is(err, domainbooking.ErrBookingNotFound) {
		return nil, err
	}
	b := domainbooking.NewHold(id, req.PropertyID, req.Range, c.opts.holdTTL, c.opts.now())
	if req.Channel != "" {
		b.Channel = req.Channel
	}
	if err := c.bookings.Save(ctx, b); err != nil {
		if !errors.Is(err, domainbooking.ErrConcurrentUpdate) {
			return nil, err
		}
		if existing, err = c.bookings.ByID(ctx, id); err != nil {
			return nil, err
		}
		return existing, c.sameHold(existing, req)
	}
	return b, nil
}

func (c *Coordinator) sameHold(b *domainbooking.Booking, req HoldRequest) error {
	conflict := &domain.ConflictError{PropertyID: req.PropertyID, Dates: rangeDates(req.Range)}
	switch {
	case b.Status != domainbooking.StatusOnHold:
		conflict.Reason = "booking is " + string(b.Status)
	case b.PropertyID != req.PropertyID || !b.Range.Equal(req.Range):
		conflict.Reason = "booking holds " + b.PropertyID + " " + b.Range.String()
	case b.HoldExpired(c.opts.now()):
		conflict.Reason = "hold expired"
	default:
		return nil
	}
	return conflict
}

// BookingRequest identifies a booking and its nights.
type BookingRequest struct {
	BookingID  string
	PropertyID string
	Range      daterange.DateRange
	Channel    string
}

// BookingResult reports a confirm, cancel or release.
type BookingResult struct {
	BookingID  string               `json:"bookingId"`
	PropertyID string               `json:"propertyId"`
	Status     domainbooking.Status `json:"status"`
	Dates      []string             `json:"dates"`
	Skipped    []string             `json:"skipped,omitempty"`
	Events     []events.DomainEvent `json:"-"`
}

// ConfirmBooking turns a hold into a booking. Confirming twice is a no-op; a
// hold already expired or cancelled yields a ConflictError. Unknown bookings,
// such as those arriving from external channels, are recorded as confirmed.
func (c *Coordinator) ConfirmBooking(ctx context.Context, req BookingRequest) (BookingResult, error) {
	if strings.TrimSpace(req.BookingID) == "" {
		return BookingResult{}, fmt.Errorf("%w: booking id is required", ErrInvalidRequest)
	}
	if err := c.validate(req.PropertyID, req.Range, false); err != nil {
		return BookingResult{}, err
	}
	b, err := c.confirmRecord(ctx, req)
	if err != nil {
		return BookingResult{}, err
	}

	var booked applied
	err = retry(ctx, c.opts.logger, "finalize booking", c.opts.backoff, func() error {
		var err error
		booked, err = c.holds.finalize(ctx, b.PropertyID, b.Range, string(b.ID), b.Internal())
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			c.opts.logger.ErrorContext(ctx, "confirmed booking overlaps another hold",
				slog.String("booking_id", req.BookingID), slog.Any("error", err))
		}
		if merr := c.mirror(ctx, b.PropertyID, booked); merr != nil {
			return BookingResult{}, errors.Join(err, merr)
		}
		return BookingResult{}, err
	}
	if err := c.mirror(ctx, b.PropertyID, booked); err != nil {
		return BookingResult{}, err
	}

	var rec events.EventRecorder
	rec.Record(domain.DatesBooked{PropertyID: b.PropertyID, BookingID: string(b.ID), Range: b.Range, At: c.opts.now().UTC()})
	return BookingResult{
		BookingID:  string(b.ID),
		PropertyID: b.PropertyID,
		Status:     domainbooking.StatusConfirmed,
		Dates:      rangeDates(b.Range),
		Events:     rec.Drain(),
	}, nil
}

func (c *Coordinator) confirmRecord(ctx context.Context, req BookingRequest) (*domainbooking.Booking, error) {
	id := domainbooking.BookingID(req.BookingID)
	for attempt := 0; attempt < 3; attempt++ {
		b, err := c.bookings.ByID(ctx, id)
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			b = domainbooking.NewHold(id, req.PropertyID, req.Range, 0, c.opts.now())
			b.Status = domainbooking.StatusConfirmed
			b.HoldUntil = time.Time{}
			if req.Channel != "" {
				b.Channel = req.Channel
			}
			if err := c.bookings.Save(ctx, b); err != nil {
				if errors.Is(err, domainbooking.ErrConcurrentUpdate) {
					continue
				}
				return nil, err
			}
			return b, nil
		}
		if err != nil {
			return nil, err
		}
		if b.PropertyID != req.PropertyID || !b.Range.Equal(req.Range) {
			return nil, &domain.ConflictError{PropertyID: req.PropertyID, Dates: rangeDates(req.Range), Reason: "booking holds " + b.PropertyID + " " + b.Range.String()}
		}
		switch b.Status {
		case domainbooking.StatusConfirmed:
			return b, nil
		case domainbooking.StatusOnHold:
			confirmed, err := c.holds.confirm(ctx, id)
			if errors.Is(err, domainbooking.ErrStatusChanged) {
				continue
			}
			return confirmed, err
		default:
			return nil, &domain.ConflictError{PropertyID: req.PropertyID, Dates: rangeDates(req.Range), Reason: "booking is " + string(b.Status)}
		}
	}
	return nil, domainbooking.ErrConcurrentUpdate
}

// CancelBooking cancels a held or confirmed booking and frees its nights.
// Nights another active booking still covers stay closed and are reported as
// skipped. Cancelling twice is a no-op.
func (c *Coordinator) CancelBooking(ctx context.Context, bookingID string) (BookingResult, error) {
	b, err := c.moveTo(ctx, domainbooking.BookingID(bookingID), domainbooking.StatusCancelled)
	if err != nil {
		return BookingResult{}, err
	}
	occupied, err := c.holds.occupiedBy(ctx, b.PropertyID, b.Range, b.ID)
	if err != nil {
		return BookingResult{}, err
	}
	return c.releaseDates(ctx, b, false, occupied, "cancelled")
}

// ReleaseHold gives up an on-hold booking before payment.
func (c *Coordinator) ReleaseHold(ctx context.Context, bookingID string) (BookingResult, error) {
	b, err := c.bookings.ByID(ctx, domainbooking.BookingID(bookingID))
	if err != nil {
		return BookingResult{}, err
	}
	if b.Status == domainbooking.StatusConfirmed {
		return BookingResult{}, fmt.Errorf("%w: booking %s is confirmed", domainbooking.ErrInvalidState, bookingID)
	}
	if b, err = c.moveTo(ctx, b.ID, domainbooking.StatusCancelled); err != nil {
		return BookingResult{}, err
	}
	return c.releaseDates(ctx, b, true, nil, "released")
}

// moveTo applies a status transition, re-reading the booking when it changed
// underneath. Bookings already in a final state are returned as they are.
func (c *Coordinator) moveTo(ctx context.Context, id domainbooking.BookingID, to domainbooking.Status) (*domainbooking.Booking, error) {
	for attempt := 0; attempt < 3; attempt++ {
		b, err := c.bookings.ByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !b.Active() {
			return b, nil
		}
		moved, err := c.bookings.Transition(ctx, id, b.Status, to, c.opts.now())
		if errors.Is(err, domainbooking.ErrStatusChanged) {
			continue
		}
		return moved, err
	}
	return nil, domainbooking.ErrConcurrentUpdate
}

func (c *Coordinator) releaseDates(ctx context.Context, b *domainbooking.Booking, strict bool, occupied map[string]bool, cause string) (BookingResult, error) {
	var res releaseResult
	err := retry(ctx, c.opts.logger, "release dates", c.opts.backoff, func() error {
		var err error
		res, err = c.holds.release(ctx, b.PropertyID, b.Range, string(b.ID), strict, occupied)
		return err
	})
	if len(res.skipped) > 0 {
		c.opts.logger.WarnContext(ctx, "dates kept unavailable on release",
			slog.String("booking_id", string(b.ID)),
			slog.String("property_id", b.PropertyID),
			slog.Any("dates", res.skipped))
	}
	if merr := c.mirror(ctx, b.PropertyID, res.applied); merr != nil {
		return BookingResult{}, errors.Join(err, merr)
	}
	if err != nil {
		return BookingResult{}, err
	}
	released := res.applied.dates()
	c.opts.metrics.HoldsReleased(cause, len(released))

	var rec events.EventRecorder
	if len(released) > 0 {
		rec.Record(domain.DatesReleased{PropertyID: b.PropertyID, BookingID: string(b.ID), Dates: released, Cause: cause, At: c.opts.now().UTC()})
	}
	return BookingResult{
		BookingID:  string(b.ID),
		PropertyID: b.PropertyID,
		Status:     b.Status,
		Dates:      released,
		Skipped:    res.skipped,
		Events:     rec.Drain(),
	}, nil
}

// BlockResult reports an external block change.
type BlockResult struct {
	PropertyID string               `json:"propertyId"`
	Source     string               `json:"source"`
	Dates      []string             `json:"dates"`
	Events     []events.DomainEvent `json:"-"`
}

// ApplyExternalBlock closes nights booked on another channel. Existing holds
// are kept; the nights stay closed until both are gone.
func (c *Coordinator) ApplyExternalBlock(ctx context.Context, propertyID string, r daterange.DateRange, source string) (BlockResult, error) {
	if strings.TrimSpace(source) == "" {
		return BlockResult{}, fmt.Errorf("%w: block source is required", ErrInvalidRequest)
	}
	if err := c.validate(propertyID, r, false); err != nil {
		return BlockResult{}, err
	}
	var blocked applied
	err := retry(ctx, c.opts.logger, "apply external block", c.opts.backoff, func() error {
		var err error
		blocked, err = c.ledger.setRange(ctx, propertyID, r, false, rangeOptions{externalBlock: source})
		return err
	})
	if err != nil {
		return BlockResult{}, err
	}
	if err := c.mirror(ctx, propertyID, blocked); err != nil {
		return BlockResult{}, err
	}
	dates := blocked.dates()
	var rec events.EventRecorder
	rec.Record(domain.ExternalBlockChanged{PropertyID: propertyID, Source: source, Dates: dates, Blocked: true, At: c.opts.now().UTC()})
	return BlockResult{PropertyID: propertyID, Source: source, Dates: dates, Events: rec.Drain()}, nil
}

// ClearExternalBlock lifts blocks set by source, or every block when source
// is empty. Nights still held or booked stay closed.
func (c *Coordinator) ClearExternalBlock(ctx context.Context, propertyID string, r daterange.DateRange, source string) (BlockResult, error) {
	if err := c.validate(propertyID, r, false); err != nil {
		return BlockResult{}, err
	}
	occupied, err := c.holds.occupiedBy(ctx, propertyID, r, "")
	if err != nil {
		return BlockResult{}, err
	}
	decide := func(doc *domain.MonthAvailability, days []int) ([]domain.DayPatch, error) {
		var patches []domain.DayPatch
		for _, d := range days {
			tag := doc.ExternalBlock(d)
			if tag == "" || (source != "" && tag != source) {
				continue
			}
			open := doc.HeldBy(d) == "" && !occupied[daterange.FormatDay(doc.Month.Date(d))]
			patches = append(patches, domain.DayPatch{Day: d, Available: open, ClearExternalBlock: true})
		}
		return patches, nil
	}
	cleared := applied{}
	months, days := r.MonthDays()
	var errs []error
	for _, month := range months {
		err := retry(ctx, c.opts.logger, "clear external block", c.opts.backoff, func() error {
			patches, err := c.ledger.transactMonth(ctx, propertyID, month, days[month], decide)
			if err == nil {
				cleared.merge(month, patches)
			}
			return err
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.mirror(ctx, propertyID, cleared); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return BlockResult{}, err
	}
	dates := cleared.dates()
	var rec events.EventRecorder
	if len(dates) > 0 {
		rec.Record(domain.ExternalBlockChanged{PropertyID: propertyID, Source: source, Dates: dates, Blocked: false, At: c.opts.now().UTC()})
	}
	return BlockResult{PropertyID: propertyID, Source: source, Dates: dates, Events: rec.Drain()}, nil
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Expired  int                  `json:"expired"`
	Released int                  `json:"released"`
	Skipped  int                  `json:"skipped"`
	Events   []events.DomainEvent `json:"-"`
}

// SweepExpiredHolds expires overdue holds and frees their nights. A hold
// confirmed or cancelled after it was listed is skipped.
func (c *Coordinator) SweepExpiredHolds(ctx context.Context) (SweepResult, error) {
	overdue, err := c.bookings.ListExpiredHolds(ctx, c.opts.now(), c.opts.sweepBatch)
	if err != nil {
		return SweepResult{}, err
	}
	var (
		result SweepResult
		rec    events.EventRecorder
		errs   []error
	)
	for _, b := range overdue {
		if c.opts.sweepLimiter != nil {
			if err := c.opts.sweepLimiter.Wait(ctx); err != nil {
				errs = append(errs, err)
				break
			}
		}
		res, err := c.holds.expire(ctx, b)
		if errors.Is(err, domainbooking.ErrStatusChanged) {
			c.opts.logger.InfoContext(ctx, "hold changed before sweep, skipping", slog.String("booking_id", string(b.ID)))
			result.Skipped++
			continue
		}
		if merr := c.mirror(ctx, b.PropertyID, res.applied); merr != nil {
			errs = append(errs, merr)
		}
		if err != nil {
			c.opts.logger.ErrorContext(ctx, "release expired hold", slog.String("booking_id", string(b.ID)), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		result.Expired++
		dates := res.applied.dates()
		result.Released += len(dates)
		now := c.opts.now().UTC()
		rec.Record(domain.HoldExpired{PropertyID: b.PropertyID, BookingID: string(b.ID), HoldUntil: b.HoldUntil, At: now})
		if len(dates) > 0 {
			rec.Record(domain.DatesReleased{PropertyID: b.PropertyID, BookingID: string(b.ID), Dates: dates, Cause: "expired", At: now})
		}
	}
	c.opts.metrics.HoldsReleased("expired", result.Released)
	if result.Expired > 0 || result.Skipped > 0 {
		c.opts.logger.InfoContext(ctx, "expired holds swept",
			slog.Int("expired", result.Expired),
			slog.Int("released_days", result.Released),
			slog.Int("skipped", result.Skipped))
	}
	result.Events = rec.Drain()
	return result, errors.Join(errs...)
}

// Health is the readiness view of the engine.
type Health struct {
	AvailabilityStoreReachable bool `json:"availabilityStoreReachable"`
	StaleHeldCount             int  `json:"staleHeldCount"`
}

// HealthCheck pings the store and counts holds past their TTL that the sweep
// has not reclaimed yet.
func (c *Coordinator) HealthCheck(ctx context.Context) (Health, error) {
	var h Health
	if err := c.store.Ping(ctx); err != nil {
		c.opts.logger.WarnContext(ctx, "availability store unreachable", slog.Any("error", err))
	} else {
		h.AvailabilityStoreReachable = true
	}
	n, err := c.bookings.CountExpiredHolds(ctx, c.opts.now())
	if err != nil {
		return h, err
	}
	h.StaleHeldCount = n
	return h, nil
}

// mirror copies applied ledger changes into the price calendar, retrying a
// bounded number of times before reporting a PartialConsistencyError.
func (c *Coordinator) mirror(ctx context.Context, propertyID string, days applied) error {
	if len(days) == 0 {
		return nil
	}
	var err error
	for attempt := 0; attempt <= c.opts.mirrorAttempts; attempt++ {
		if err = c.prices.mirror(ctx, propertyID, days); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == c.opts.mirrorAttempts {
			break
		}
		c.opts.logger.WarnContext(ctx, "retrying price calendar mirror",
			slog.String("property_id", propertyID),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
		if attempt < len(c.opts.backoff) {
			select {
			case <-ctx.Done():
			case <-time.After(c.opts.backoff[attempt]):
			}
		}
	}
	c.opts.metrics.PartialWrite("consistency")
	perr := &domain.PartialConsistencyError{PropertyID: propertyID, Months: days.months(), Err: err}
	c.opts.logger.ErrorContext(ctx, "price calendar out of sync with ledger", slog.Any("error", perr))
	return perr
}

func (c *Coordinator) validate(propertyID string, r daterange.DateRange, future bool) error {
	if strings.TrimSpace(propertyID) == "" {
		return fmt.Errorf("%w: property id is required", ErrInvalidRequest)
	}
	var err error
	if future {
		err = domainbooking.ValidateDateRange(r, c.opts.now())
	} else {
		err = r.Validate()
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func rangeDates(r daterange.DateRange) []string {
	days := r.Days()
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, daterange.FormatDay(d))
	}
	return out
}
