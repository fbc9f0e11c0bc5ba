package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domain "rentalspot/internal/domain/availability"
	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/property"
	"rentalspot/internal/domain/shared/daterange"
	"rentalspot/internal/infra/storage/memory"
)

var june1 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	coord    *Coordinator
	mem      *memory.CalendarStore
	bookings *memory.BookingRepository
	catalog  *memory.PropertyCatalog
	clock    *testClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, opts...)
}

// newFixtureWith builds a coordinator over wrap(memory store) when wrap is set.
func newFixtureWith(t *testing.T, wrap func(*memory.CalendarStore) domain.Store, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		mem:      memory.NewCalendarStore(),
		bookings: memory.NewBookingRepository(),
		catalog:  memory.NewPropertyCatalog(villa()),
		clock:    &testClock{now: june1},
	}
	var store domain.Store = f.mem
	if wrap != nil {
		store = wrap(f.mem)
	}
	base := []Option{WithClock(f.clock.Now), WithRetryBackoff(nil), WithMonthsAhead(3)}
	f.coord = NewCoordinator(store, f.bookings, f.catalog, append(base, opts...)...)
	return f
}

func (f *fixture) generate(t *testing.T) GenerationReport {
	t.Helper()
	report, err := f.coord.Generate(context.Background(), "villa-1", 3)
	require.NoError(t, err)
	return report
}

func (f *fixture) month(t *testing.T, m string) MonthView {
	t.Helper()
	view, err := f.coord.MonthCalendar(context.Background(), "villa-1", daterange.Month(m))
	require.NoError(t, err)
	return view
}

// assertConsistent checks that every generated price day agrees with the
// ledger and that no available day keeps an annotation.
func (f *fixture) assertConsistent(t *testing.T, months ...string) {
	t.Helper()
	ctx := context.Background()
	for _, m := range months {
		doc, err := f.mem.Availability(ctx, "villa-1", daterange.Month(m))
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		require.NoError(t, err)
		require.Empty(t, doc.StaleAnnotations(), "stale annotations in %s", m)
		cal, err := f.mem.Prices(ctx, "villa-1", daterange.Month(m))
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		require.NoError(t, err)
		for d := 1; d <= daterange.Month(m).DaysIn(); d++ {
			if dp, ok := cal.Day(d); ok {
				require.Equal(t, doc.IsAvailable(d), dp.Available, "%s day %d", m, d)
			}
		}
	}
}

func villa() property.Property {
	custom := decimal.NewFromInt(200)
	closed := false
	return property.Property{
		ID:       "villa-1",
		Name:     "Villa by the lake",
		BaseRate: decimal.NewFromInt(120),
		Currency: "EUR",
		Rules: []pricing.SeasonalRule{{
			ID:              "summer",
			PropertyID:      "villa-1",
			StartDate:       day("2026-07-01"),
			EndDate:         day("2026-08-31"),
			PriceMultiplier: decimal.RequireFromString("1.5"),
			MinimumStay:     3,
			Enabled:         true,
		}},
		Overrides: []pricing.DateOverride{
			{ID: "o-1", PropertyID: "villa-1", Date: day("2026-06-20"), CustomPrice: &custom},
			{ID: "o-2", PropertyID: "villa-1", Date: day("2026-06-25"), Available: &closed, Reason: "maintenance"},
		},
	}
}

func day(s string) time.Time {
	d, err := daterange.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func stay(t *testing.T, checkIn, checkOut string) daterange.DateRange {
	t.Helper()
	r, err := daterange.Parse(checkIn, checkOut)
	require.NoError(t, err)
	return r
}

var errConnReset = errors.New("connection reset by peer")

// tornStore applies only the first document of a multi-document batch on
// the chosen target, then fails, like a process dying between two writes.
type tornStore struct {
	*memory.CalendarStore
	target domain.Target
	tears  int
}

func (s *tornStore) BatchUpdate(ctx context.Context, updates []domain.MonthUpdate) error {
	if s.tears > 0 && len(updates) > 1 && updates[0].Target == s.target {
		s.tears--
		if err := s.CalendarStore.BatchUpdate(ctx, updates[:1]); err != nil {
			return err
		}
		return &domain.StoreError{Op: "batch", Err: errConnReset}
	}
	return s.CalendarStore.BatchUpdate(ctx, updates)
}

// flakyStore fails ledger transactions on selected months and, when set,
// every read.
type flakyStore struct {
	*memory.CalendarStore
	failMonths map[daterange.Month]bool
	failReads  bool
}

func (s *flakyStore) TransactAvailability(ctx context.Context, propertyID string, month daterange.Month, fn func(*domain.MonthAvailability) error) error {
	if s.failMonths[month] {
		return &domain.StoreError{Op: "transact " + month.String(), Err: errConnReset}
	}
	return s.CalendarStore.TransactAvailability(ctx, propertyID, month, fn)
}

func (s *flakyStore) Availability(ctx context.Context, propertyID string, month daterange.Month) (*domain.MonthAvailability, error) {
	if s.failReads {
		return nil, &domain.StoreError{Op: "read", Err: errConnReset}
	}
	return s.CalendarStore.Availability(ctx, propertyID, month)
}

func (s *flakyStore) Ping(ctx context.Context) error {
	if s.failReads {
		return errConnReset
	}
	return nil
}
