package availability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "rentalspot/internal/domain/availability"
	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/property"
	"rentalspot/internal/domain/shared/daterange"
)

type recordingArchive struct {
	mu      sync.Mutex
	reports []GenerationReport
}

func (a *recordingArchive) StoreReport(ctx context.Context, report GenerationReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, report)
	return nil
}

func TestGenerateStartsAtToday(t *testing.T) {
	archive := &recordingArchive{}
	f := newFixture(t, WithReportArchive(archive))
	f.clock.Advance(14 * 24 * time.Hour)

	report := f.generate(t)
	assert.Equal(t, []string{"2026-06", "2026-07", "2026-08"}, report.Months)
	assert.Equal(t, 16+31+31, report.DaysWritten)
	assert.Empty(t, report.Errors)
	require.Len(t, report.Events, 1)
	assert.Equal(t, "calendar.generated", report.Events[0].EventName())
	require.Len(t, archive.reports, 1)
	assert.Equal(t, "villa-1", archive.reports[0].PropertyID)

	june := f.month(t, "2026-06")
	assert.Nil(t, june.Days[13].Price)
	require.NotNil(t, june.Days[14].Price)
	assert.Equal(t, "EUR", june.Currency)
}

func TestGenerateKeepsPastDaysOfCurrentMonth(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	f.clock.Advance(9 * 24 * time.Hour)
	f.generate(t)

	june := f.month(t, "2026-06")
	require.NotNil(t, june.Days[0].Price)
	assert.Equal(t, "120", june.Days[0].Price.BaseOccupancyPrice.String())
}

func TestGenerateAppliesSeasonsAndOverrides(t *testing.T) {
	f := newFixture(t)
	f.generate(t)

	june := f.month(t, "2026-06")
	assert.Equal(t, pricing.SourceBase, june.Days[0].Price.PriceSource)
	assert.Equal(t, "200", june.Days[19].Price.BaseOccupancyPrice.String())
	july := f.month(t, "2026-07")
	assert.Equal(t, pricing.SourceSeason, july.Days[0].Price.PriceSource)
	assert.Equal(t, "summer", july.Days[0].Price.RuleID)
	assert.Equal(t, 3, july.Days[0].Price.MinimumStay)
	assert.Equal(t, "180", july.Days[0].Price.BaseOccupancyPrice.String())
}

func TestOverrideClosingDayBlocksLedger(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()

	june := f.month(t, "2026-06")
	assert.False(t, june.Days[24].Available)
	assert.Equal(t, domain.ReasonExternal, june.Days[24].Reason)
	assert.Equal(t, "override:o-2", june.Days[24].ExternalBlock)

	quote, err := f.coord.CheckAvailability(ctx, "villa-1", stay(t, "2026-06-24", "2026-06-26"))
	require.NoError(t, err)
	assert.False(t, quote.Available)
	assert.Equal(t, []string{"2026-06-25"}, quote.UnavailableDates)

	// Lifting the override reopens the day on the next run.
	p := villa()
	p.Overrides = p.Overrides[:1]
	f.catalog.Put(p)
	f.generate(t)

	quote, err = f.coord.CheckAvailability(ctx, "villa-1", stay(t, "2026-06-24", "2026-06-26"))
	require.NoError(t, err)
	assert.True(t, quote.Available)
	f.assertConsistent(t, "2026-06")
}

func TestLiftedOverrideKeepsChannelBookingClosed(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()

	r := stay(t, "2026-06-25", "2026-06-26")
	_, err := f.coord.ConfirmBooking(ctx, BookingRequest{BookingID: "ext-1", PropertyID: "villa-1", Range: r, Channel: "airbnb"})
	require.NoError(t, err)
	june := f.month(t, "2026-06")
	assert.Empty(t, june.Days[24].ExternalBlock)
	assert.Equal(t, domain.ReasonBooked, june.Days[24].Reason)

	p := villa()
	p.Overrides = p.Overrides[:1]
	f.catalog.Put(p)
	f.generate(t)

	quote, err := f.coord.CheckAvailability(ctx, "villa-1", r)
	require.NoError(t, err)
	assert.False(t, quote.Available)
	assert.Equal(t, []string{"2026-06-25"}, quote.UnavailableDates)
	f.assertConsistent(t, "2026-06")
}

func TestSyncOverrideBlocksKeepsOccupiedNightClosed(t *testing.T) {
	doc := domain.NewMonthAvailability("villa-1", daterange.Month("2026-06"), june1)
	doc.Apply(domain.DayPatch{Day: 25, Available: false, ExternalBlock: "override:o-2"})
	doc.Apply(domain.DayPatch{Day: 26, Available: false, ExternalBlock: "override:o-3"})

	decide := syncOverrideBlocks(map[int]string{}, map[string]bool{"2026-06-25": true})
	patches, err := decide(doc, []int{25, 26})
	require.NoError(t, err)
	require.Len(t, patches, 2)
	assert.Equal(t, domain.DayPatch{Day: 25, Available: false, ClearExternalBlock: true}, patches[0])
	assert.Equal(t, domain.DayPatch{Day: 26, Available: true, ClearExternalBlock: true}, patches[1])
}

func TestOverrideDoesNotTouchChannelBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.coord.ApplyExternalBlock(ctx, "villa-1", stay(t, "2026-06-25", "2026-06-26"), "airbnb")
	require.NoError(t, err)

	f.generate(t)
	assert.Equal(t, "airbnb", f.month(t, "2026-06").Days[24].ExternalBlock)

	p := villa()
	p.Overrides = p.Overrides[:1]
	f.catalog.Put(p)
	f.generate(t)
	assert.Equal(t, "airbnb", f.month(t, "2026-06").Days[24].ExternalBlock)
	assert.False(t, f.month(t, "2026-06").Days[24].Available)
}

func TestGenerateTakesAvailabilityFromLedger(t *testing.T) {
	f := newFixture(t)
	f.generate(t)
	ctx := context.Background()

	_, err := f.coord.PlaceHoldForCheckout(ctx, HoldRequest{BookingID: "b-1", PropertyID: "villa-1", Range: stay(t, "2026-07-10", "2026-07-13")})
	require.NoError(t, err)
	f.generate(t)

	july := f.month(t, "2026-07")
	require.NotNil(t, july.Days[9].Price)
	assert.False(t, july.Days[9].Price.Available)
	assert.Equal(t, "b-1", july.Days[9].HeldBy)
	f.assertConsistent(t, "2026-06", "2026-07", "2026-08")
}

func TestGenerateRoundsToCurrencyMinorUnit(t *testing.T) {
	for _, tc := range []struct {
		currency string
		want     string
	}{
		{currency: "EUR", want: "131.97"},
		{currency: "RON", want: "132"},
	} {
		t.Run(tc.currency, func(t *testing.T) {
			f := newFixture(t)
			f.catalog.Put(property.Property{
				ID:       "villa-1",
				BaseRate: decimal.NewFromInt(100),
				Currency: tc.currency,
				Rules: []pricing.SeasonalRule{{
					ID:              "peak",
					StartDate:       day("2026-06-01"),
					EndDate:         day("2026-06-30"),
					PriceMultiplier: decimal.RequireFromString("1.3197"),
					MinimumStay:     1,
					Enabled:         true,
				}},
			})
			f.generate(t)

			quote, err := f.coord.CheckAvailability(context.Background(), "villa-1", stay(t, "2026-06-10", "2026-06-11"))
			require.NoError(t, err)
			require.Len(t, quote.Pricing, 1)
			assert.Equal(t, tc.want, quote.Pricing[0].BaseOccupancyPrice.String())
			assert.Equal(t, tc.currency, quote.Currency)
		})
	}
}

func TestGenerateCollectsPricingErrors(t *testing.T) {
	f := newFixture(t)
	zero := decimal.Zero
	p := villa()
	p.Overrides = append(p.Overrides, pricing.DateOverride{ID: "o-3", PropertyID: "villa-1", Date: day("2026-06-18"), CustomPrice: &zero})
	f.catalog.Put(p)

	report := f.generate(t)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "2026-06-18", report.Errors[0].Date)
	assert.Equal(t, 30+31+31-1, report.DaysWritten)

	quote, err := f.coord.CheckAvailability(context.Background(), "villa-1", stay(t, "2026-06-17", "2026-06-19"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-06-18"}, quote.UnavailableDates)
}

func TestGenerateAbortsOnConfigurationError(t *testing.T) {
	f := newFixture(t)
	p := villa()
	p.BaseRate = decimal.Zero
	f.catalog.Put(p)

	_, err := f.coord.Generate(context.Background(), "villa-1", 3)
	assert.ErrorIs(t, err, pricing.ErrConfiguration)

	_, err = f.mem.Prices(context.Background(), "villa-1", daterange.Month("2026-06"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerateReportsDaysOfInvalidRule(t *testing.T) {
	f := newFixture(t)
	p := villa()
	p.Rules[0].PriceMultiplier = decimal.Zero
	p.Rules[0].EndDate = day("2026-07-05")
	p.Rules = append(p.Rules, pricing.SeasonalRule{
		ID:         "old",
		PropertyID: "villa-1",
		StartDate:  day("2020-01-01"),
		EndDate:    day("2020-01-31"),
		Enabled:    false,
	})
	f.catalog.Put(p)

	report, err := f.coord.Generate(context.Background(), "villa-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 30+31+31-5, report.DaysWritten)
	require.Len(t, report.Errors, 5)
	assert.Equal(t, "2026-07-01", report.Errors[0].Date)
	assert.Contains(t, report.Errors[0].Error, "seasonal rule summer")

	july := f.month(t, "2026-07")
	assert.Nil(t, july.Days[0].Price)
	require.NotNil(t, july.Days[5].Price)
	assert.Equal(t, pricing.SourceBase, july.Days[5].Price.PriceSource)
}

func TestGenerateReportsRuleWithInvertedRange(t *testing.T) {
	f := newFixture(t)
	p := villa()
	p.Rules = append(p.Rules, pricing.SeasonalRule{
		ID:              "typo",
		PropertyID:      "villa-1",
		StartDate:       day("2026-08-10"),
		EndDate:         day("2026-08-01"),
		PriceMultiplier: decimal.NewFromInt(2),
		MinimumStay:     1,
		Enabled:         true,
	})
	f.catalog.Put(p)

	report, err := f.coord.Generate(context.Background(), "villa-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 30+31+31, report.DaysWritten)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "2026-08-10", report.Errors[0].Date)
	assert.Contains(t, report.Errors[0].Error, "typo")
}

func TestGenerateAllSkipsBrokenProperty(t *testing.T) {
	f := newFixture(t)
	f.catalog.Put(property.Property{ID: "cabin-2", BaseRate: decimal.NewFromInt(80)})

	reports, err := f.coord.GenerateAll(context.Background(), 1)
	assert.ErrorIs(t, err, pricing.ErrConfiguration)
	require.Len(t, reports, 1)
	assert.Equal(t, "villa-1", reports[0].PropertyID)
}

func TestGenerateUnknownProperty(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Generate(context.Background(), "nowhere", 1)
	assert.ErrorIs(t, err, property.ErrPropertyNotFound)
}
