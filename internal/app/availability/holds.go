package availability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domain "rentalspot/internal/domain/availability"
	domainbooking "rentalspot/internal/domain/booking"
	"rentalspot/internal/domain/shared/daterange"
)

// holdManager owns the transient reservation of dates during checkout.
// Every ledger change goes through per-month transactions so the decision
// is taken on the document actually being written.
type holdManager struct {
	ledger   *ledger
	bookings domainbooking.Repository
	logger   *slog.Logger
	now      func() time.Time
}

// place marks every night of r as held by bookingID. Days already held by
// the same booking are accepted so a retried checkout converges.
//
// A conflict in any month releases the months held by this call and returns
// a ConflictError. Store failures leave held months in place and surface as
// PartialHoldError.
func (h *holdManager) place(ctx context.Context, propertyID string, r daterange.DateRange, bookingID string) (applied, error) {
	months, days := r.MonthDays()
	out := applied{}
	var (
		failed   []daterange.Month
		firstErr error
	)
	for _, month := range months {
		patches, err := h.ledger.transactMonth(ctx, propertyID, month, days[month], func(doc *domain.MonthAvailability, days []int) ([]domain.DayPatch, error) {
			var taken []int
			patches := make([]domain.DayPatch, 0, len(days))
			for _, d := range days {
				if doc.ExternalBlock(d) != "" || (!doc.IsAvailable(d) && doc.HeldBy(d) != bookingID) {
					taken = append(taken, d)
					continue
				}
				patches = append(patches, domain.DayPatch{Day: d, Available: false, Hold: bookingID})
			}
			if len(taken) > 0 {
				return nil, &domain.ConflictError{PropertyID: propertyID, Dates: formatDays(month, taken), Reason: "dates taken"}
			}
			return patches, nil
		})
		if err != nil {
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				h.compensate(ctx, propertyID, out, bookingID)
				return nil, err
			}
			failed = append(failed, month)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out.merge(month, patches)
	}
	switch {
	case len(failed) == 0:
		return out, nil
	case len(failed) == len(months):
		return nil, firstErr
	default:
		return out, &domain.PartialHoldError{BookingID: bookingID, FailedMonths: failed, Err: firstErr}
	}
}

// compensate releases days a failed placement already held.
func (h *holdManager) compensate(ctx context.Context, propertyID string, held applied, bookingID string) {
	for _, month := range held.months() {
		days := make([]int, 0, len(held[month]))
		for _, p := range held[month] {
			days = append(days, p.Day)
		}
		if _, err := h.ledger.transactMonth(ctx, propertyID, month, days, releaseHeldBy(bookingID)); err != nil {
			h.logger.ErrorContext(ctx, "hold compensation failed",
				slog.String("property_id", propertyID),
				slog.String("booking_id", bookingID),
				slog.String("month", month.String()),
				slog.Any("error", err))
		}
	}
}

// confirm moves an on-hold booking to confirmed. It changes no availability.
func (h *holdManager) confirm(ctx context.Context, bookingID domainbooking.BookingID) (*domainbooking.Booking, error) {
	return h.bookings.Transition(ctx, bookingID, domainbooking.StatusOnHold, domainbooking.StatusConfirmed, h.now())
}

// finalize turns held days into booked days: unavailable without annotation.
// Internal bookings also supersede external blocks on their nights, and any
// booking drops override tags so lifting the override cannot reopen the night.
func (h *holdManager) finalize(ctx context.Context, propertyID string, r daterange.DateRange, bookingID string, internal bool) (applied, error) {
	months, days := r.MonthDays()
	out := applied{}
	for _, month := range months {
		patches, err := h.ledger.transactMonth(ctx, propertyID, month, days[month], func(doc *domain.MonthAvailability, days []int) ([]domain.DayPatch, error) {
			var taken []int
			patches := make([]domain.DayPatch, 0, len(days))
			for _, d := range days {
				if holder := doc.HeldBy(d); holder != "" && holder != bookingID {
					taken = append(taken, d)
					continue
				}
				if tag := doc.ExternalBlock(d); !internal && tag != "" && !isOverrideTag(tag) {
					patches = append(patches, domain.DayPatch{Day: d, Available: false, ClearHold: true})
					continue
				}
				clearTag := internal || isOverrideTag(doc.ExternalBlock(d))
				patches = append(patches, domain.DayPatch{Day: d, Available: false, ClearHold: true, ClearExternalBlock: clearTag})
			}
			if len(taken) > 0 {
				return nil, &domain.ConflictError{PropertyID: propertyID, Dates: formatDays(month, taken), Reason: "held by another booking"}
			}
			return patches, nil
		})
		if err != nil {
			return out, err
		}
		out.merge(month, patches)
	}
	return out, nil
}

// releaseResult lists what a release wrote and which days it left alone.
type releaseResult struct {
	applied applied
	skipped []string
}

// release frees the nights of r that belong to bookingID. With strict set,
// only days holding the booking's id are touched. Otherwise booked days are
// released too, except where occupied names another active booking.
func (h *holdManager) release(ctx context.Context, propertyID string, r daterange.DateRange, bookingID string, strict bool, occupied map[string]bool) (releaseResult, error) {
	months, days := r.MonthDays()
	res := releaseResult{applied: applied{}}
	var errs []error
	for _, month := range months {
		var skipped []int
		decide := func(doc *domain.MonthAvailability, days []int) ([]domain.DayPatch, error) {
			skipped = skipped[:0]
			patches := make([]domain.DayPatch, 0, len(days))
			for _, d := range days {
				holder := doc.HeldBy(d)
				if holder != "" && holder != bookingID {
					skipped = append(skipped, d)
					continue
				}
				if strict && holder != bookingID {
					continue
				}
				if holder == "" && doc.IsAvailable(d) {
					continue
				}
				keep := doc.ExternalBlock(d) != "" || occupied[daterange.FormatDay(month.Date(d))]
				if keep && holder == "" {
					skipped = append(skipped, d)
					continue
				}
				patches = append(patches, domain.DayPatch{Day: d, Available: !keep, ClearHold: holder != ""})
			}
			return patches, nil
		}
		patches, err := h.ledger.transactMonth(ctx, propertyID, month, days[month], decide)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res.applied.merge(month, patches)
		res.skipped = append(res.skipped, formatDays(month, skipped)...)
	}
	return res, errors.Join(errs...)
}

// expire marks an overdue hold expired and releases its days. The booking
// status is compare-and-set first, so a hold confirmed concurrently is left
// alone and reported through ErrStatusChanged.
func (h *holdManager) expire(ctx context.Context, b *domainbooking.Booking) (releaseResult, error) {
	if _, err := h.bookings.Transition(ctx, b.ID, domainbooking.StatusOnHold, domainbooking.StatusExpired, h.now()); err != nil {
		return releaseResult{}, err
	}
	return h.release(ctx, b.PropertyID, b.Range, string(b.ID), true, nil)
}

// occupiedBy lists the nights of r covered by other active bookings.
func (h *holdManager) occupiedBy(ctx context.Context, propertyID string, r daterange.DateRange, exclude domainbooking.BookingID) (map[string]bool, error) {
	others, err := h.bookings.ListActiveOverlapping(ctx, propertyID, r, exclude)
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	for _, b := range others {
		for _, day := range b.Range.Days() {
			if r.ContainsDate(day) {
				out[daterange.FormatDay(day)] = true
			}
		}
	}
	return out, nil
}

func releaseHeldBy(bookingID string) decideFunc {
	return func(doc *domain.MonthAvailability, days []int) ([]domain.DayPatch, error) {
		var patches []domain.DayPatch
		for _, d := range days {
			if doc.HeldBy(d) != bookingID {
				continue
			}
			patches = append(patches, domain.DayPatch{Day: d, Available: doc.ExternalBlock(d) == "", ClearHold: true})
		}
		return patches, nil
	}
}
