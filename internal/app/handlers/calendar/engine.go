package calendar

import (
	"context"
	"fmt"
	"strings"

	"rentalspot/internal/app/availability"
	"rentalspot/internal/app/outbox"
	"rentalspot/internal/domain/shared/daterange"
	"rentalspot/internal/domain/shared/events"
)

// Engine is the calendar surface the handlers drive. *availability.Coordinator
// implements it.
type Engine interface {
	CheckAvailability(ctx context.Context, propertyID string, r daterange.DateRange) (availability.Quote, error)
	MonthCalendar(ctx context.Context, propertyID string, month daterange.Month) (availability.MonthView, error)
	HealthCheck(ctx context.Context) (availability.Health, error)
	PlaceHoldForCheckout(ctx context.Context, req availability.HoldRequest) (availability.HoldResult, error)
	ConfirmBooking(ctx context.Context, req availability.BookingRequest) (availability.BookingResult, error)
	CancelBooking(ctx context.Context, bookingID string) (availability.BookingResult, error)
	ReleaseHold(ctx context.Context, bookingID string) (availability.BookingResult, error)
	ApplyExternalBlock(ctx context.Context, propertyID string, r daterange.DateRange, source string) (availability.BlockResult, error)
	ClearExternalBlock(ctx context.Context, propertyID string, r daterange.DateRange, source string) (availability.BlockResult, error)
	Generate(ctx context.Context, propertyID string, monthsAhead int) (availability.GenerationReport, error)
	GenerateAll(ctx context.Context, monthsAhead int) ([]availability.GenerationReport, error)
	SweepExpiredHolds(ctx context.Context) (availability.SweepResult, error)
	Reconcile(ctx context.Context, propertyID string, monthsAhead int) (availability.ReconcileReport, error)
	ReconcileAll(ctx context.Context, monthsAhead int) ([]availability.ReconcileReport, error)
}

var _ Engine = (*availability.Coordinator)(nil)

// Publisher moves the events raised by an engine call into the outbox.
type Publisher struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
}

func (p Publisher) record(ctx context.Context, evs []events.DomainEvent) error {
	encoder := p.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	return outbox.RecordDomainEvents(ctx, p.Outbox, encoder, evs)
}

// finish records evs even when the engine call failed part way: whatever it
// changed must still be announced.
func (p Publisher) finish(ctx context.Context, evs []events.DomainEvent, err error) error {
	if recErr := p.record(ctx, evs); recErr != nil {
		if err != nil {
			return fmt.Errorf("%w (outbox: %v)", err, recErr)
		}
		return recErr
	}
	return err
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", availability.ErrInvalidRequest, field)
	}
	return nil
}
