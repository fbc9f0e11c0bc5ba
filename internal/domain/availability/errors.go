package availability

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rentalspot/internal/domain/shared/daterange"
)

var (
	ErrNotFound           = errors.New("availability: document not found")
	ErrStore              = errors.New("availability: store unavailable")
	ErrConflict           = errors.New("availability: dates no longer available")
	ErrPartialHold        = errors.New("availability: hold placed on some months only")
	ErrPartialConsistency = errors.New("availability: projections diverged after write")
)

// StoreError is a transient storage failure; callers may retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("availability: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// ConflictError reports days already taken by another booking, hold or
// external block.
type ConflictError struct {
	PropertyID string
	Dates      []string
	Reason     string
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("availability: %s unavailable on %s", e.PropertyID, strings.Join(e.Dates, ", "))
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// PartialHoldError reports a multi-month hold where some months could not be
// written. Held months stay held under the booking id.
type PartialHoldError struct {
	BookingID    string
	FailedMonths []daterange.Month
	Err          error
}

func (e *PartialHoldError) Error() string {
	months := make([]string, 0, len(e.FailedMonths))
	for _, m := range e.FailedMonths {
		months = append(months, string(m))
	}
	return fmt.Sprintf("availability: hold %s failed for months %s: %v", e.BookingID, strings.Join(months, ", "), e.Err)
}

func (e *PartialHoldError) Unwrap() error { return e.Err }

func (e *PartialHoldError) Is(target error) bool { return target == ErrPartialHold }

// PartialConsistencyError means the ledger was written but the price
// calendar mirror was not. The booking flow must retry or fail loudly.
type PartialConsistencyError struct {
	PropertyID string
	Months     []daterange.Month
	Err        error
}

func (e *PartialConsistencyError) Error() string {
	months := make([]string, 0, len(e.Months))
	for _, m := range e.Months {
		months = append(months, string(m))
	}
	return fmt.Sprintf("availability: price calendar of %s not mirrored for %s: %v", e.PropertyID, strings.Join(months, ", "), e.Err)
}

func (e *PartialConsistencyError) Unwrap() error { return e.Err }

func (e *PartialConsistencyError) Is(target error) bool { return target == ErrPartialConsistency }

// ConsistencyWarning describes a day on which the two projections disagree.
// It is logged, never returned.
type ConsistencyWarning struct {
	PropertyID      string
	Date            string
	LedgerAvailable bool
	PriceAvailable  bool
}

func (w ConsistencyWarning) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("property_id", w.PropertyID),
		slog.String("date", w.Date),
		slog.Bool("ledger_available", w.LedgerAvailable),
		slog.Bool("price_available", w.PriceAvailable),
	)
}

// IsRetryable reports whether err is a transient store failure. Partial
// writes are never retried blindly.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrPartialHold) || errors.Is(err, ErrPartialConsistency) {
		return false
	}
	return errors.Is(err, ErrStore)
}
