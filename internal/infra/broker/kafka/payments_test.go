package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/dto"
	"rentalspot/internal/app/handlers/calendar"
	domain "rentalspot/internal/domain/availability"
	"rentalspot/internal/infra/inbox"
)

type calls struct {
	confirms []calendar.ConfirmBookingCommand
	releases []string
	cancels  []string
	fail     error
}

func (c *calls) bus() *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, calendar.ConfirmBookingCommand{}.Key(), commands.HandlerFunc[calendar.ConfirmBookingCommand, *dto.BookingChange](
		func(ctx context.Context, cmd calendar.ConfirmBookingCommand) (*dto.BookingChange, error) {
			c.confirms = append(c.confirms, cmd)
			return &dto.BookingChange{}, c.fail
		}))
	commands.RegisterHandler(bus, calendar.ReleaseHoldCommand{}.Key(), commands.HandlerFunc[calendar.ReleaseHoldCommand, *dto.BookingChange](
		func(ctx context.Context, cmd calendar.ReleaseHoldCommand) (*dto.BookingChange, error) {
			c.releases = append(c.releases, cmd.BookingID)
			return &dto.BookingChange{}, c.fail
		}))
	commands.RegisterHandler(bus, calendar.CancelBookingCommand{}.Key(), commands.HandlerFunc[calendar.CancelBookingCommand, *dto.BookingChange](
		func(ctx context.Context, cmd calendar.CancelBookingCommand) (*dto.BookingChange, error) {
			c.cancels = append(c.cancels, cmd.BookingID)
			return &dto.BookingChange{}, c.fail
		}))
	return bus
}

func message(body string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "payments.events.v1", Partition: 0, Offset: 7, Value: []byte(body)}
}

const succeeded = `{"id":"pay-1","type":"payment.succeeded.v1","data":{"bookingId":"b-1","propertyId":"villa-1","checkIn":"2026-07-01","checkOut":"2026-07-04"}}`

func TestPaymentSucceededConfirmsOnce(t *testing.T) {
	c := &calls{}
	h := &PaymentHandler{Bus: c.bus(), Inbox: inbox.NewMemory()}

	require.NoError(t, h.Handle(context.Background(), message(succeeded)))
	require.NoError(t, h.Handle(context.Background(), message(succeeded)))

	require.Len(t, c.confirms, 1)
	cmd := c.confirms[0]
	assert.Equal(t, "b-1", cmd.BookingID)
	assert.Equal(t, "villa-1", cmd.PropertyID)
	assert.Equal(t, "2026-07-01", cmd.CheckIn.Format("2006-01-02"))
	assert.Equal(t, "2026-07-04", cmd.CheckOut.Format("2006-01-02"))
	assert.Equal(t, "event:pay-1", cmd.IdempotencyKeyV)
}

func TestPaymentFailedAndCancellationFreeNights(t *testing.T) {
	c := &calls{}
	h := &PaymentHandler{Bus: c.bus(), Inbox: inbox.NewMemory()}

	require.NoError(t, h.Handle(context.Background(), message(`{"id":"pay-2","type":"payment.failed","data":{"bookingId":"b-2"}}`)))
	require.NoError(t, h.Handle(context.Background(), message(`{"id":"bk-3","type":"booking.cancelled","data":{"bookingId":"b-3"}}`)))
	require.NoError(t, h.Handle(context.Background(), message(`{"id":"x-1","type":"review.submitted","data":{}}`)))

	assert.Equal(t, []string{"b-2"}, c.releases)
	assert.Equal(t, []string{"b-3"}, c.cancels)
}

func TestTransientFailureIsRedelivered(t *testing.T) {
	c := &calls{fail: &domain.StoreError{Op: "batch", Err: errors.New("timeout")}}
	h := &PaymentHandler{Bus: c.bus(), Inbox: inbox.NewMemory()}

	assert.ErrorIs(t, h.Handle(context.Background(), message(succeeded)), domain.ErrStore)
	c.fail = nil
	require.NoError(t, h.Handle(context.Background(), message(succeeded)))
	assert.Len(t, c.confirms, 2)
}

func TestPermanentFailureIsAcknowledged(t *testing.T) {
	c := &calls{fail: &domain.ConflictError{PropertyID: "villa-1", Dates: []string{"2026-07-02"}}}
	h := &PaymentHandler{Bus: c.bus(), Inbox: inbox.NewMemory()}

	assert.NoError(t, h.Handle(context.Background(), message(succeeded)))
	assert.NoError(t, h.Handle(context.Background(), message("not json")))
	assert.NoError(t, h.Handle(context.Background(), message(`{"id":"pay-9","type":"payment.succeeded","data":{"bookingId":"b-9","checkIn":"bad"}}`)))
	assert.Len(t, c.confirms, 1)
}

func TestTypeFallsBackToHeader(t *testing.T) {
	c := &calls{}
	h := &PaymentHandler{Bus: c.bus()}
	msg := message(`{"data":{"bookingId":"b-5"}}`)
	msg.Headers = []*sarama.RecordHeader{{Key: []byte("ce_type"), Value: []byte("payment.failed.v1")}}

	require.NoError(t, h.Handle(context.Background(), msg))
	assert.Equal(t, []string{"b-5"}, c.releases)
}
