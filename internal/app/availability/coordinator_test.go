package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "rentalspot/internal/domain/availability"
	domainbooking "rentalspot/internal/domain/booking"
	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/shared/daterange"
	"rentalspot/internal/infra/storage/memory"
)

func TestCheckAvailabilityQuotesGeneratedDays(t *testing.T) {
	f := newFixture(t)
	f.generate(t)

	quote, err := f.coord.CheckAvailability(context.Background(), "villa-1", stay(t, "2026-06-19", "2026-06-21"))
	require.NoError(t, err)
	assert.True(t, quote.Available)
	assert.Empty(t, quote.UnavailableDates)
	require.Len(t, quote.Pricing, 2)
	assert.Equal(t, "120", quote.Pricing[0].BaseOccupancyPrice.String())
	assert.Equal(t, pricing.SourceOverride, quote.Pricing[1].PriceSource)
	assert.Equal(t, "320", quote.Total.String())
	assert.Equal(t, "EUR", quote.Currency)
	assert.True(t, quote.MeetsMinimumStay)
}

func TestCheckAvailabilityMinimumStayFromCheckIn(t *testing.T) {
	f := newFixture(t)
	f.generate(t)

	quote, err := f.coord.CheckAvailability(context.Background(), "villa-1", stay(t, "2026-07-10", "2026-07-12"))
	require.NoError(t, err)
	assert.True(t, quote.Available)
	assert.Equal(t, 3, quote.MinimumStay)
	assert.False(t, quote.MeetsMinimumStay)
	assert.Equal(t, "360", quote.Total.String())
}

func TestCheckAvailabilityUngeneratedDaysAreUnavailable(t *testing.T) {
	f := newFixture(t)

	quote, err := f.coord.CheckAvailability(context.Background(), "villa-1", stay(t, "2026-06-10", "2026-06-12"))
	require.NoError(t, err)
	assert.False(t, quote.Available)
	assert.Equal(t, []string{"2026-06-10", "2026-06-11"}, quote.UnavailableDates)
	assert.False(t, quote.Degraded)
	assert.Zero(t, quote.MinimumStay)
	assert.False(t, quote.MeetsMinimumStay)
}

func TestCheckAvailabilityDegradesWhenStoreDown(t *testing.T) {
	var flaky *flakyStore
	f := newFixtureWith(t, func(mem *memory.CalendarStore) domain.Store {
		flaky = &flakyStore{CalendarStore: mem}
		return flaky
	})
	f.generate(t)
	flaky.failReads = true

	quote, err := f.coord.CheckAvailability(context.Background(), "villa-1", stay(t, "2026-06-10", "2026-06-12"))
	require.NoError(t, err)
	assert.True(t, quote.Degraded)
	assert.False(t, quote.Available)
	assert.False(t, quote.MeetsMinimumStay)
	assert.Equal(t, []string{"2026-06-10", "2026-06-11"}, quote.UnavailableDates)
}

func TestCheckAvailabilityRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.CheckAvailability(context.Background(), "", stay(t, "2026-06-10", "2026-06-12"))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.coord.CheckAvailability(context.Background(), "villa-1", daterange.DateRange{CheckIn: day("2026-06-12"), CheckOut: day("2026-06-10")})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPlaceHoldIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	req := HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-10", "2026-06-12")}

	first, err := f.coord.PlaceHoldForCheckout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-06-10", "2026-06-11"}, first.Dates)
	assert.Equal(t, june1.Add(defaultHoldTTL), first.HoldUntil)
	require.Len(t, first.Events, 1)
	assert.Equal(t, "calendar.held", first.Events[0].EventName())

	before := f.month(t, "2026-06")
	second, err := f.coord.PlaceHoldForCheckout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.HoldUntil, second.HoldUntil)

	after := f.month(t, "2026-06")
	assert.Equal(t, before.Days, after.Days)
	assert.Equal(t, "b-1", after.Days[9].HeldBy)
	assert.Equal(t, domain.ReasonHold, after.Days[10].Reason)
	assert.True(t, after.Days[11].Available)

	quote, err := f.coord.CheckAvailability(ctx, "villa-1", req.Range)
	require.NoError(t, err)
	assert.False(t, quote.Available)
	f.assertConsistent(t, "2026-06")
}

func TestPlaceHoldRejectsDifferentRangeForSameBooking(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-10", "2026-06-12")})
	require.NoError(t, err)
	_, err = f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-14", "2026-06-16")})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPlaceHoldRejectsPastCheckIn(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.PlaceHoldForCheckout(context.Background(), HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-05-28", "2026-05-30")})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, domainbooking.ErrCheckInInPast)
}

func TestConcurrentHoldsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	r := stay(t, "2026-06-10", "2026-06-13")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"b-1", "b-2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: id, PropertyID: "villa-1", Range: r})
		}(i, id)
	}
	wg.Wait()

	winners, losers := 0, 0
	for i, err := range errs {
		if err == nil {
			winners++
			continue
		}
		losers++
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"2026-06-10", "2026-06-11", "2026-06-12"}, conflict.Dates)

		loser, err := f.bookings.ByID(ctx, domainbooking.BookingID([]string{"b-1", "b-2"}[i]))
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusExpired, loser.Status)
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)
	f.assertConsistent(t, "2026-06")
}

func TestHoldAcrossMonthBoundary(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()

	res, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-29", "2026-07-02")})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-06-29", "2026-06-30", "2026-07-01"}, res.Dates)
	assert.Equal(t, "b-1", f.month(t, "2026-07").Days[0].HeldBy)
	assert.True(t, f.month(t, "2026-07").Days[1].Available)
	f.assertConsistent(t, "2026-06", "2026-07")
}

func TestConflictInLaterMonthReleasesEarlierMonths(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()

	_, err := f.coord.ApplyExternalBlock(ctx, "villa-1", stay(t, "2026-07-01", "2026-07-02"), "airbnb")
	require.NoError(t, err)

	_, err = f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-29", "2026-07-02")})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"2026-07-01"}, conflict.Dates)

	june := f.month(t, "2026-06")
	assert.True(t, june.Days[28].Available)
	assert.Empty(t, june.Days[28].HeldBy)
	f.assertConsistent(t, "2026-06", "2026-07")
}

func TestStoreFailureOnOneMonthIsPartialHold(t *testing.T) {
	var flaky *flakyStore
	f := newFixtureWith(t, func(mem *memory.CalendarStore) domain.Store {
		flaky = &flakyStore{CalendarStore: mem}
		return flaky
	})
	f.generate(t)
	flaky.failMonths = map[daterange.Month]bool{"2026-07": true}

	_, err := f.coord.PlaceHoldForCheckout(context.Background(), HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-29", "2026-07-02")})
	var partial *domain.PartialHoldError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []daterange.Month{"2026-07"}, partial.FailedMonths)
	assert.False(t, domain.IsRetryable(err))

	assert.Equal(t, "b-1", f.month(t, "2026-06").Days[28].HeldBy)
	f.assertConsistent(t, "2026-06", "2026-07")
}

func TestConfirmFinalizesHold(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	r := stay(t, "2026-06-10", "2026-06-13")

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)
	res, err := f.coord.ConfirmBooking(ctx, BookingRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, res.Status)

	june := f.month(t, "2026-06")
	assert.Equal(t, domain.ReasonBooked, june.Days[9].Reason)
	assert.Empty(t, june.Days[9].HeldBy)

	_, err = f.coord.ConfirmBooking(ctx, BookingRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)

	// Checkout day is free for the next guest.
	quote, err := f.coord.CheckAvailability(ctx, "villa-1", stay(t, "2026-06-12", "2026-06-14"))
	require.NoError(t, err)
	assert.False(t, quote.Available)
	assert.Equal(t, []string{"2026-06-12"}, quote.UnavailableDates)
	f.assertConsistent(t, "2026-06")
}

func TestConfirmAfterSweepConflicts(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	r := stay(t, "2026-06-10", "2026-06-12")

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)
	f.clock.Advance(defaultHoldTTL + time.Minute)

	health, err := f.coord.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, health.AvailabilityStoreReachable)
	assert.Equal(t, 1, health.StaleHeldCount)

	swept, err := f.coord.SweepExpiredHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept.Expired)
	assert.Equal(t, 2, swept.Released)
	require.Len(t, swept.Events, 2)

	_, err = f.coord.ConfirmBooking(ctx, BookingRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	assert.ErrorIs(t, err, domain.ErrConflict)

	quote, err := f.coord.CheckAvailability(ctx, "villa-1", r)
	require.NoError(t, err)
	assert.True(t, quote.Available)
	f.assertConsistent(t, "2026-06")
}

// staleListing returns the overdue holds captured before a concurrent
// confirm, reproducing a sweep that listed a hold just before it was paid.
type staleListing struct {
	*memory.BookingRepository
	listed []*domainbooking.Booking
}

func (s *staleListing) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*domainbooking.Booking, error) {
	return s.listed, nil
}

func TestSweepSkipsHoldConfirmedMeanwhile(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	r := stay(t, "2026-06-10", "2026-06-12")

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)
	f.clock.Advance(defaultHoldTTL + time.Minute)

	listed, err := f.bookings.ListExpiredHolds(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = f.coord.ConfirmBooking(ctx, BookingRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)

	sweeper := NewCoordinator(f.mem, &staleListing{BookingRepository: f.bookings, listed: listed}, f.catalog, WithClock(f.clock.Now), WithRetryBackoff(nil))
	swept, err := sweeper.SweepExpiredHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept.Expired)
	assert.Equal(t, 1, swept.Skipped)

	june := f.month(t, "2026-06")
	assert.Equal(t, domain.ReasonBooked, june.Days[9].Reason)
	assert.Equal(t, domain.ReasonBooked, june.Days[10].Reason)
	f.assertConsistent(t, "2026-06")
}

func TestReleaseHoldFreesDates(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	r := stay(t, "2026-06-10", "2026-06-12")

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)
	res, err := f.coord.ReleaseHold(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCancelled, res.Status)
	assert.Equal(t, []string{"2026-06-10", "2026-06-11"}, res.Dates)

	quote, err := f.coord.CheckAvailability(ctx, "villa-1", r)
	require.NoError(t, err)
	assert.True(t, quote.Available)

	again, err := f.coord.ReleaseHold(ctx, "b-1")
	require.NoError(t, err)
	assert.Empty(t, again.Dates)
	f.assertConsistent(t, "2026-06")
}

func TestCancelConfirmedBooking(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	r := stay(t, "2026-06-10", "2026-06-12")

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)
	_, err = f.coord.ConfirmBooking(ctx, BookingRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)

	res, err := f.coord.CancelBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-06-10", "2026-06-11"}, res.Dates)

	quote, err := f.coord.CheckAvailability(ctx, "villa-1", r)
	require.NoError(t, err)
	assert.True(t, quote.Available)

	_, err = f.coord.CancelBooking(ctx, "missing")
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
	f.assertConsistent(t, "2026-06")
}

func TestCancelKeepsNightsOfAnotherBooking(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()

	_, err := f.coord.ConfirmBooking(ctx, BookingRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-10", "2026-06-13")})
	require.NoError(t, err)
	// A channel booking lands on a night the site already sold.
	_, err = f.coord.ConfirmBooking(ctx, BookingRequest{BookingID: "ch-7", PropertyID: "villa-1", Range: stay(t, "2026-06-12", "2026-06-14"), Channel: "booking.com"})
	require.NoError(t, err)

	res, err := f.coord.CancelBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-06-10", "2026-06-11"}, res.Dates)
	assert.Equal(t, []string{"2026-06-12"}, res.Skipped)
	assert.False(t, f.month(t, "2026-06").Days[11].Available)
	f.assertConsistent(t, "2026-06")
}

func TestExternalBlockLifecycle(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	r := stay(t, "2026-06-15", "2026-06-18")

	blocked, err := f.coord.ApplyExternalBlock(ctx, "villa-1", r, "airbnb")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-06-15", "2026-06-16", "2026-06-17"}, blocked.Dates)
	assert.Equal(t, domain.ReasonExternal, f.month(t, "2026-06").Days[14].Reason)

	_, err = f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-17", "2026-06-19")})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.coord.ClearExternalBlock(ctx, "villa-1", r, "vrbo")
	require.NoError(t, err)
	assert.Equal(t, "airbnb", f.month(t, "2026-06").Days[14].ExternalBlock)

	cleared, err := f.coord.ClearExternalBlock(ctx, "villa-1", r, "airbnb")
	require.NoError(t, err)
	assert.Len(t, cleared.Dates, 3)

	quote, err := f.coord.CheckAvailability(ctx, "villa-1", r)
	require.NoError(t, err)
	assert.True(t, quote.Available)
	f.assertConsistent(t, "2026-06")
}

func TestReleasedHoldKeepsExternalBlock(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-15", "2026-06-17")})
	require.NoError(t, err)
	_, err = f.coord.ApplyExternalBlock(ctx, "villa-1", stay(t, "2026-06-16", "2026-06-17"), "airbnb")
	require.NoError(t, err)

	_, err = f.coord.ReleaseHold(ctx, "b-1")
	require.NoError(t, err)

	june := f.month(t, "2026-06")
	assert.True(t, june.Days[14].Available)
	assert.False(t, june.Days[15].Available)
	assert.Equal(t, domain.ReasonExternal, june.Days[15].Reason)
	assert.Empty(t, june.Days[15].HeldBy)
	f.assertConsistent(t, "2026-06")
}

func TestInternalBookingSupersedesExternalBlock(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	r := stay(t, "2026-06-15", "2026-06-17")

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)
	_, err = f.coord.ApplyExternalBlock(ctx, "villa-1", r, "ical-sync")
	require.NoError(t, err)
	_, err = f.coord.ConfirmBooking(ctx, BookingRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)

	june := f.month(t, "2026-06")
	assert.Equal(t, domain.ReasonBooked, june.Days[14].Reason)
	assert.Empty(t, june.Days[14].ExternalBlock)
	f.assertConsistent(t, "2026-06")
}

func TestTornMirrorIsReportedAndReconciled(t *testing.T) {
	var torn *tornStore
	f := newFixtureWith(t, func(mem *memory.CalendarStore) domain.Store {
		torn = &tornStore{CalendarStore: mem, target: domain.TargetPrices}
		return torn
	}, WithMirrorAttempts(0))
	f.generate(t)
	ctx := context.Background()
	torn.tears = 1

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-06-29", "2026-07-02")})
	var partial *domain.PartialConsistencyError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []daterange.Month{"2026-06", "2026-07"}, partial.Months)

	// July prices still say available but the ledger disagrees.
	quote, err := f.coord.CheckAvailability(ctx, "villa-1", stay(t, "2026-07-01", "2026-07-02"))
	require.NoError(t, err)
	assert.False(t, quote.Available)

	report, err := f.coord.Reconcile(ctx, "villa-1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-07-01"}, report.Repaired)
	require.Len(t, report.Events, 1)
	assert.Equal(t, "calendar.drift_detected", report.Events[0].EventName())
	f.assertConsistent(t, "2026-06", "2026-07")
}

func TestTornLedgerBatchLeavesNoStaleAnnotations(t *testing.T) {
	var torn *tornStore
	f := newFixtureWith(t, func(mem *memory.CalendarStore) domain.Store {
		torn = &tornStore{CalendarStore: mem, target: domain.TargetLedger}
		return torn
	})
	f.generate(t)
	ctx := context.Background()
	torn.tears = 1

	_, err := f.coord.ApplyExternalBlock(ctx, "villa-1", stay(t, "2026-06-30", "2026-07-02"), "airbnb")
	assert.True(t, errors.Is(err, domain.ErrStore))

	june := f.month(t, "2026-06")
	july := f.month(t, "2026-07")
	assert.Equal(t, domain.ReasonExternal, june.Days[29].Reason)
	assert.True(t, july.Days[0].Available)

	_, err = f.coord.Reconcile(ctx, "villa-1", 3)
	require.NoError(t, err)
	f.assertConsistent(t, "2026-06", "2026-07")
}

func TestReconcileReleasesOrphanHolds(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()
	r := stay(t, "2026-06-10", "2026-06-12")

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: r})
	require.NoError(t, err)
	// The checkout flow cancelled the booking without telling the engine.
	_, err = f.bookings.Transition(ctx, "b-1", domainbooking.StatusOnHold, domainbooking.StatusCancelled, f.clock.Now())
	require.NoError(t, err)

	report, err := f.coord.Reconcile(ctx, "villa-1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1"}, report.ReleasedHolds)
	assert.Equal(t, []string{"2026-06-10", "2026-06-11"}, report.Repaired)

	quote, err := f.coord.CheckAvailability(ctx, "villa-1", r)
	require.NoError(t, err)
	assert.True(t, quote.Available)
	f.assertConsistent(t, "2026-06")
}

func TestHealthCheckReportsUnreachableStore(t *testing.T) {
	var flaky *flakyStore
	f := newFixtureWith(t, func(mem *memory.CalendarStore) domain.Store {
		flaky = &flakyStore{CalendarStore: mem, failReads: true}
		return flaky
	})
	health, err := f.coord.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, health.AvailabilityStoreReachable)
}
