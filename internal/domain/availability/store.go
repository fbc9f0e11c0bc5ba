package availability

import (
	"context"

	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/shared/daterange"
)

// Target selects which projection a MonthUpdate writes to.
type Target string

const (
	TargetLedger Target = "availability"
	TargetPrices Target = "prices"
)

// DayPatch is a field-level write to one day. Available is always written;
// the annotation fields only apply to the ledger.
type DayPatch struct {
	Day                int
	Available          bool
	Hold               string
	ClearHold          bool
	ExternalBlock      string
	ClearExternalBlock bool
}

// MonthUpdate groups the day patches of one document.
type MonthUpdate struct {
	Target     Target
	PropertyID string
	Month      daterange.Month
	Days       []DayPatch
}

// Store persists per-property-month documents of both projections.
//
// BatchUpdate applies every update atomically per document but gives no
// ordering or atomicity across documents. It fails with a StoreError before
// writing anything when a target document does not exist, so callers ensure
// documents first.
type Store interface {
	Availability(ctx context.Context, propertyID string, month daterange.Month) (*MonthAvailability, error)
	EnsureAvailability(ctx context.Context, propertyID string, month daterange.Month, defaults func() *MonthAvailability) (*MonthAvailability, error)
	// TransactAvailability runs a read-check-write on one ledger document.
	// fn receives a fresh copy read inside the transaction; returning an
	// error aborts without writing.
	TransactAvailability(ctx context.Context, propertyID string, month daterange.Month, fn func(doc *MonthAvailability) error) error

	Prices(ctx context.Context, propertyID string, month daterange.Month) (*pricing.MonthCalendar, error)
	EnsurePrices(ctx context.Context, propertyID string, month daterange.Month, defaults func() *pricing.MonthCalendar) (*pricing.MonthCalendar, error)
	// SetPrices replaces the whole price document.
	SetPrices(ctx context.Context, calendar *pricing.MonthCalendar) error

	BatchUpdate(ctx context.Context, updates []MonthUpdate) error
	Ping(ctx context.Context) error
}
