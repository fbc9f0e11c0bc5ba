package memory

import (
	"context"
	"sync"
	"time"

	domainavailability "rentalspot/internal/domain/availability"
	domainpricing "rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/shared/daterange"
)

type docKey struct {
	propertyID string
	month      daterange.Month
}

// CalendarStore keeps both calendar projections in memory. A single mutex
// serializes every operation, which gives per-document atomicity for free.
// Transaction callbacks must not call back into the store.
type CalendarStore struct {
	mu     sync.Mutex
	ledger map[docKey]*domainavailability.MonthAvailability
	prices map[docKey]*domainpricing.MonthCalendar
	now    func() time.Time
}

func NewCalendarStore() *CalendarStore {
	return &CalendarStore{
		ledger: make(map[docKey]*domainavailability.MonthAvailability),
		prices: make(map[docKey]*domainpricing.MonthCalendar),
		now:    time.Now,
	}
}

func (s *CalendarStore) Availability(ctx context.Context, propertyID string, month daterange.Month) (*domainavailability.MonthAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.ledger[docKey{propertyID, month}]
	if !ok {
		return nil, domainavailability.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *CalendarStore) EnsureAvailability(ctx context.Context, propertyID string, month daterange.Month, defaults func() *domainavailability.MonthAvailability) (*domainavailability.MonthAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey{propertyID, month}
	if doc, ok := s.ledger[key]; ok {
		return doc.Clone(), nil
	}
	var doc *domainavailability.MonthAvailability
	if defaults != nil {
		doc = defaults()
	}
	if doc == nil {
		doc = domainavailability.NewMonthAvailability(propertyID, month, s.now())
	}
	doc.PropertyID, doc.Month = propertyID, month
	s.ledger[key] = doc.Clone()
	return doc.Clone(), nil
}

func (s *CalendarStore) TransactAvailability(ctx context.Context, propertyID string, month daterange.Month, fn func(doc *domainavailability.MonthAvailability) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey{propertyID, month}
	current, ok := s.ledger[key]
	if !ok {
		return domainavailability.ErrNotFound
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return err
	}
	working.Version = current.Version + 1
	working.UpdatedAt = s.now().UTC()
	s.ledger[key] = working
	return nil
}

func (s *CalendarStore) Prices(ctx context.Context, propertyID string, month daterange.Month) (*domainpricing.MonthCalendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cal, ok := s.prices[docKey{propertyID, month}]
	if !ok {
		return nil, domainavailability.ErrNotFound
	}
	return cal.Clone(), nil
}

func (s *CalendarStore) EnsurePrices(ctx context.Context, propertyID string, month daterange.Month, defaults func() *domainpricing.MonthCalendar) (*domainpricing.MonthCalendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey{propertyID, month}
	if cal, ok := s.prices[key]; ok {
		return cal.Clone(), nil
	}
	var cal *domainpricing.MonthCalendar
	if defaults != nil {
		cal = defaults()
	}
	if cal == nil {
		cal = domainpricing.NewMonthCalendar(propertyID, month, s.now())
	}
	s.prices[key] = cal.Clone()
	return cal.Clone(), nil
}

func (s *CalendarStore) SetPrices(ctx context.Context, calendar *domainpricing.MonthCalendar) error {
	if calendar == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := calendar.Clone()
	cp.UpdatedAt = s.now().UTC()
	s.prices[docKey{calendar.PropertyID, calendar.Key()}] = cp
	return nil
}

func (s *CalendarStore) BatchUpdate(ctx context.Context, updates []domainavailability.MonthUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		key := docKey{u.PropertyID, u.Month}
		exists := false
		switch u.Target {
		case domainavailability.TargetLedger:
			_, exists = s.ledger[key]
		case domainavailability.TargetPrices:
			_, exists = s.prices[key]
		}
		if !exists {
			return &domainavailability.StoreError{Op: "batch " + string(u.Target) + " " + u.PropertyID + "/" + string(u.Month), Err: domainavailability.ErrNotFound}
		}
	}
	now := s.now().UTC()
	for _, u := range updates {
		key := docKey{u.PropertyID, u.Month}
		switch u.Target {
		case domainavailability.TargetLedger:
			doc := s.ledger[key]
			for _, p := range u.Days {
				doc.Apply(p)
			}
			doc.Version++
			doc.UpdatedAt = now
		case domainavailability.TargetPrices:
			cal := s.prices[key]
			for _, p := range u.Days {
				cal.SetAvailable(p.Day, p.Available)
			}
			cal.UpdatedAt = now
		}
	}
	return nil
}

func (s *CalendarStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

var _ domainavailability.Store = (*CalendarStore)(nil)
