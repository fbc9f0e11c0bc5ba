package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainbooking "rentalspot/internal/domain/booking"
	"rentalspot/internal/domain/shared/daterange"
)

// BookingRepository stores bookings in memory.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]domainbooking.Booking
}

// NewBookingRepository builds an empty booking repo.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return &b, nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[b.ID]; ok && existing.Version != b.Version {
		return domainbooking.ErrConcurrentUpdate
	} else if !ok && b.Version != 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	r.items[b.ID] = *b
	return nil
}

func (r *BookingRepository) Transition(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.Status, now time.Time) (*domainbooking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	if b.Status != from {
		return nil, domainbooking.ErrStatusChanged
	}
	if err := b.Apply(to, now); err != nil {
		return nil, err
	}
	b.Version++
	r.items[id] = b
	return &b, nil
}

func (r *BookingRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.HoldExpired(now) {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HoldUntil.Before(out[j].HoldUntil) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *BookingRepository) CountExpiredHolds(ctx context.Context, now time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, b := range r.items {
		if b.HoldExpired(now) {
			n++
		}
	}
	return n, nil
}

func (r *BookingRepository) ListActiveOverlapping(ctx context.Context, propertyID string, dr daterange.DateRange, exclude domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if b.ID == exclude || b.PropertyID != propertyID || !b.Active() {
			continue
		}
		if b.Range.Overlaps(dr) {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
