package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "rentalspot/internal/domain/booking"
	"rentalspot/internal/domain/shared/daterange"
)

// BookingRepository keeps the engine's view of bookings in calendar_bookings.
// Status moves are compare-and-set on the stored status.
type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(ctx context.Context, db *mongo.Database) (*BookingRepository, error) {
	col := db.Collection("calendar_bookings")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "hold_until", Value: 1}}},
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "status", Value: 1}, {Key: "range.check_in", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return &BookingRepository{col: col}, nil
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toBooking(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) Transition(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.Status, now time.Time) (*domainbooking.Booking, error) {
	if !domainbooking.CanTransition(from, to) {
		return nil, domainbooking.ErrInvalidState
	}
	filter := bson.M{"_id": string(id), "status": string(from)}
	update := bson.M{
		"$set": bson.M{"status": string(to), "updated_at": now.UTC().UnixMilli()},
		"$inc": bson.M{"version": 1},
	}
	var doc bookingDocument
	err := r.col.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == nil {
		return doc.toBooking(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if _, err := r.ByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, domainbooking.ErrStatusChanged
}

func (r *BookingRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "hold_until", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, expiredFilter(now), opts)
}

func (r *BookingRepository) CountExpiredHolds(ctx context.Context, now time.Time) (int, error) {
	n, err := r.col.CountDocuments(ctx, expiredFilter(now))
	return int(n), err
}

func (r *BookingRepository) ListActiveOverlapping(ctx context.Context, propertyID string, dr daterange.DateRange, exclude domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"property_id":     propertyID,
		"status":          bson.M{"$in": bson.A{string(domainbooking.StatusOnHold), string(domainbooking.StatusConfirmed)}},
		"range.check_in":  bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"range.check_out": bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
	if exclude != "" {
		filter["_id"] = bson.M{"$ne": string(exclude)}
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toBooking())
	}
	return out, nil
}

func expiredFilter(now time.Time) bson.M {
	return bson.M{
		"status":     string(domainbooking.StatusOnHold),
		"hold_until": bson.M{"$lte": now.UTC().UnixMilli()},
	}
}

type bookingDocument struct {
	ID         string        `bson:"_id"`
	PropertyID string        `bson:"property_id"`
	Range      rangeDocument `bson:"range"`
	Status     string        `bson:"status"`
	HoldUntil  int64         `bson:"hold_until"`
	Channel    string        `bson:"channel"`
	CreatedAt  int64         `bson:"created_at"`
	UpdatedAt  int64         `bson:"updated_at"`
	Version    int64         `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:         string(b.ID),
		PropertyID: b.PropertyID,
		Range:      rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Status:     string(b.Status),
		HoldUntil:  b.HoldUntil.UnixMilli(),
		Channel:    b.Channel,
		CreatedAt:  b.CreatedAt.UnixMilli(),
		UpdatedAt:  b.UpdatedAt.UnixMilli(),
		Version:    b.Version,
	}
}

func (d bookingDocument) toBooking() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:         domainbooking.BookingID(d.ID),
		PropertyID: d.PropertyID,
		Range:      daterange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		Status:     domainbooking.Status(d.Status),
		HoldUntil:  timestampToTime(d.HoldUntil),
		Channel:    d.Channel,
		CreatedAt:  timestampToTime(d.CreatedAt),
		UpdatedAt:  timestampToTime(d.UpdatedAt),
		Version:    d.Version,
	}
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
