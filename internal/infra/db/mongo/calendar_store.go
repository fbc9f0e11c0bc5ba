package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "rentalspot/internal/domain/availability"
	domainpricing "rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/shared/daterange"
)

const casAttempts = 5

// CalendarStore keeps one document per property-month in each of
// calendar_availability and calendar_prices. Day maps are keyed "1".."31".
type CalendarStore struct {
	client *mongo.Client
	ledger *mongo.Collection
	prices *mongo.Collection
	now    func() time.Time
}

func NewCalendarStore(ctx context.Context, db *mongo.Database) (*CalendarStore, error) {
	s := &CalendarStore{
		client: db.Client(),
		ledger: db.Collection("calendar_availability"),
		prices: db.Collection("calendar_prices"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	byProperty := mongo.IndexModel{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "month", Value: 1}}}
	if _, err := s.ledger.Indexes().CreateOne(ctx, byProperty); err != nil {
		return nil, err
	}
	if _, err := s.prices.Indexes().CreateOne(ctx, byProperty); err != nil {
		return nil, err
	}
	return s, nil
}

func docID(propertyID string, month daterange.Month) string {
	return propertyID + "|" + string(month)
}

type ledgerDocument struct {
	ID             string            `bson:"_id"`
	PropertyID     string            `bson:"property_id"`
	Month          string            `bson:"month"`
	Available      map[string]bool   `bson:"available"`
	Holds          map[string]string `bson:"holds"`
	ExternalBlocks map[string]string `bson:"external_blocks"`
	Version        int64             `bson:"version"`
	UpdatedAt      time.Time         `bson:"updated_at"`
}

func newLedgerDocument(doc *domainavailability.MonthAvailability) ledgerDocument {
	out := ledgerDocument{
		ID:             docID(doc.PropertyID, doc.Month),
		PropertyID:     doc.PropertyID,
		Month:          string(doc.Month),
		Available:      make(map[string]bool, len(doc.Available)),
		Holds:          make(map[string]string, len(doc.Holds)),
		ExternalBlocks: make(map[string]string, len(doc.ExternalBlocks)),
		Version:        doc.Version,
		UpdatedAt:      doc.UpdatedAt,
	}
	for d, v := range doc.Available {
		out.Available[strconv.Itoa(d)] = v
	}
	for d, v := range doc.Holds {
		out.Holds[strconv.Itoa(d)] = v
	}
	for d, v := range doc.ExternalBlocks {
		out.ExternalBlocks[strconv.Itoa(d)] = v
	}
	return out
}

func (d ledgerDocument) toDomain() *domainavailability.MonthAvailability {
	out := &domainavailability.MonthAvailability{
		PropertyID:     d.PropertyID,
		Month:          daterange.Month(d.Month),
		Available:      make(map[int]bool, len(d.Available)),
		Holds:          make(map[int]string, len(d.Holds)),
		ExternalBlocks: make(map[int]string, len(d.ExternalBlocks)),
		Version:        d.Version,
		UpdatedAt:      d.UpdatedAt,
	}
	for k, v := range d.Available {
		if day, err := strconv.Atoi(k); err == nil {
			out.Available[day] = v
		}
	}
	for k, v := range d.Holds {
		if day, err := strconv.Atoi(k); err == nil && v != "" {
			out.Holds[day] = v
		}
	}
	for k, v := range d.ExternalBlocks {
		if day, err := strconv.Atoi(k); err == nil && v != "" {
			out.ExternalBlocks[day] = v
		}
	}
	return out
}

type dayPriceDocument struct {
	Available   bool   `bson:"available"`
	Price       string `bson:"price,omitempty"`
	PriceSource string `bson:"price_source,omitempty"`
	MinimumStay int    `bson:"minimum_stay,omitempty"`
	RuleID      string `bson:"rule_id,omitempty"`
}

type priceDocument struct {
	ID          string                      `bson:"_id"`
	PropertyID  string                      `bson:"property_id"`
	Month       string                      `bson:"month"`
	Year        int                         `bson:"year"`
	MonthNumber int                         `bson:"month_number"`
	Currency    string                      `bson:"currency,omitempty"`
	Days        map[string]dayPriceDocument `bson:"days"`
	GeneratedAt time.Time                   `bson:"generated_at,omitempty"`
	UpdatedAt   time.Time                   `bson:"updated_at"`
}

func newPriceDocument(cal *domainpricing.MonthCalendar) priceDocument {
	out := priceDocument{
		ID:          docID(cal.PropertyID, cal.Key()),
		PropertyID:  cal.PropertyID,
		Month:       string(cal.Key()),
		Year:        cal.Year,
		MonthNumber: cal.Month,
		Currency:    cal.Currency,
		Days:        make(map[string]dayPriceDocument, len(cal.Days)),
		GeneratedAt: cal.GeneratedAt,
		UpdatedAt:   cal.UpdatedAt,
	}
	for k, d := range cal.Days {
		day := dayPriceDocument{
			Available:   d.Available,
			PriceSource: string(d.PriceSource),
			MinimumStay: d.MinimumStay,
			RuleID:      d.RuleID,
		}
		if d.Priced() {
			day.Price = d.BaseOccupancyPrice.String()
		}
		out.Days[k] = day
	}
	return out
}

func (d priceDocument) toDomain() (*domainpricing.MonthCalendar, error) {
	out := &domainpricing.MonthCalendar{
		PropertyID:  d.PropertyID,
		Year:        d.Year,
		Month:       d.MonthNumber,
		Currency:    d.Currency,
		Days:        make(map[string]domainpricing.DayPrice, len(d.Days)),
		GeneratedAt: d.GeneratedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for k, day := range d.Days {
		price := decimal.Zero
		if day.Price != "" {
			p, err := decimal.NewFromString(day.Price)
			if err != nil {
				return nil, fmt.Errorf("price %s/%s day %s: %w", d.PropertyID, d.Month, k, err)
			}
			price = p
		}
		out.Days[k] = domainpricing.DayPrice{
			Available:          day.Available,
			BaseOccupancyPrice: price,
			PriceSource:        domainpricing.Source(day.PriceSource),
			MinimumStay:        day.MinimumStay,
			RuleID:             day.RuleID,
		}
	}
	return out, nil
}

func (s *CalendarStore) Availability(ctx context.Context, propertyID string, month daterange.Month) (*domainavailability.MonthAvailability, error) {
	var doc ledgerDocument
	if err := s.ledger.FindOne(ctx, bson.M{"_id": docID(propertyID, month)}).Decode(&doc); err != nil {
		return nil, storeErr("read availability", err)
	}
	return doc.toDomain(), nil
}

func (s *CalendarStore) EnsureAvailability(ctx context.Context, propertyID string, month daterange.Month, defaults func() *domainavailability.MonthAvailability) (*domainavailability.MonthAvailability, error) {
	var doc *domainavailability.MonthAvailability
	if defaults != nil {
		doc = defaults()
	}
	if doc == nil {
		doc = domainavailability.NewMonthAvailability(propertyID, month, s.now())
	}
	doc.PropertyID, doc.Month = propertyID, month
	ins := newLedgerDocument(doc)
	if err := s.insertIfMissing(ctx, s.ledger, ins.ID, ins); err != nil {
		return nil, storeErr("ensure availability", err)
	}
	return s.Availability(ctx, propertyID, month)
}

// TransactAvailability is an optimistic read-check-write guarded by the
// document version. A lost race re-reads and calls fn again.
func (s *CalendarStore) TransactAvailability(ctx context.Context, propertyID string, month daterange.Month, fn func(doc *domainavailability.MonthAvailability) error) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := s.Availability(ctx, propertyID, month)
		if err != nil {
			return err
		}
		working := current.Clone()
		if err := fn(working); err != nil {
			return err
		}
		working.Version = current.Version + 1
		working.UpdatedAt = s.now()
		next := newLedgerDocument(working)
		res, err := s.ledger.ReplaceOne(ctx, bson.M{"_id": next.ID, "version": current.Version}, next)
		if err != nil {
			return storeErr("write availability", err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
	}
	return &domainavailability.StoreError{
		Op:  "write availability " + docID(propertyID, month),
		Err: fmt.Errorf("version changed %d times in a row", casAttempts),
	}
}

func (s *CalendarStore) Prices(ctx context.Context, propertyID string, month daterange.Month) (*domainpricing.MonthCalendar, error) {
	var doc priceDocument
	if err := s.prices.FindOne(ctx, bson.M{"_id": docID(propertyID, month)}).Decode(&doc); err != nil {
		return nil, storeErr("read prices", err)
	}
	return doc.toDomain()
}

func (s *CalendarStore) EnsurePrices(ctx context.Context, propertyID string, month daterange.Month, defaults func() *domainpricing.MonthCalendar) (*domainpricing.MonthCalendar, error) {
	var cal *domainpricing.MonthCalendar
	if defaults != nil {
		cal = defaults()
	}
	if cal == nil {
		cal = domainpricing.NewMonthCalendar(propertyID, month, s.now())
	}
	ins := newPriceDocument(cal)
	if err := s.insertIfMissing(ctx, s.prices, ins.ID, ins); err != nil {
		return nil, storeErr("ensure prices", err)
	}
	return s.Prices(ctx, propertyID, month)
}

func (s *CalendarStore) SetPrices(ctx context.Context, calendar *domainpricing.MonthCalendar) error {
	if calendar == nil {
		return nil
	}
	cp := calendar.Clone()
	cp.UpdatedAt = s.now()
	doc := newPriceDocument(cp)
	_, err := s.prices.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return storeErr("write prices", err)
}

// BatchUpdate checks that every target document exists, then sends one
// unordered bulk write per collection. A missing document fails the batch
// before anything is written. Each update touches a single document, so it
// is atomic on its own; the batch is not.
func (s *CalendarStore) BatchUpdate(ctx context.Context, updates []domainavailability.MonthUpdate) error {
	var ledger, prices bulkSet
	now := s.now()
	for _, u := range updates {
		id := docID(u.PropertyID, u.Month)
		switch u.Target {
		case domainavailability.TargetLedger:
			ledger.add(id, mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": id}).SetUpdate(ledgerPatch(u.Days, now)))
		case domainavailability.TargetPrices:
			prices.add(id, mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": id}).SetUpdate(pricePatch(u.Days, now)))
		default:
			return &domainavailability.StoreError{Op: "batch", Err: fmt.Errorf("unknown target %q", u.Target)}
		}
	}
	if err := requireDocuments(ctx, s.ledger, s.ledger.Name(), ledger.distinct()); err != nil {
		return err
	}
	if err := requireDocuments(ctx, s.prices, s.prices.Name(), prices.distinct()); err != nil {
		return err
	}
	if err := s.bulk(ctx, s.ledger, ledger.models); err != nil {
		return err
	}
	return s.bulk(ctx, s.prices, prices.models)
}

type bulkSet struct {
	ids    []string
	models []mongo.WriteModel
}

func (b *bulkSet) add(id string, model mongo.WriteModel) {
	b.ids = append(b.ids, id)
	b.models = append(b.models, model)
}

func (b *bulkSet) distinct() []string {
	seen := make(map[string]bool, len(b.ids))
	out := make([]string, 0, len(b.ids))
	for _, id := range b.ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type documentCounter interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// requireDocuments fails with ErrNotFound unless every id exists. Month
// documents are never deleted, so a passing check holds for the write.
func requireDocuments(ctx context.Context, col documentCounter, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := col.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return storeErr("batch "+name, err)
	}
	if int(n) < len(ids) {
		return &domainavailability.StoreError{
			Op:  "batch " + name,
			Err: fmt.Errorf("%d of %d documents missing: %w", len(ids)-int(n), len(ids), domainavailability.ErrNotFound),
		}
	}
	return nil
}

func (s *CalendarStore) bulk(ctx context.Context, col *mongo.Collection, models []mongo.WriteModel) error {
	if len(models) == 0 {
		return nil
	}
	res, err := col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return storeErr("batch "+col.Name(), err)
	}
	if int(res.MatchedCount) < len(models) {
		return &domainavailability.StoreError{
			Op:  "batch " + col.Name(),
			Err: fmt.Errorf("%d of %d documents missing: %w", len(models)-int(res.MatchedCount), len(models), domainavailability.ErrNotFound),
		}
	}
	return nil
}

// ledgerPatch folds day patches into field updates; a later patch for the
// same day wins, and setting an annotation takes precedence over clearing it.
func ledgerPatch(days []domainavailability.DayPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	unset := bson.M{}
	for _, p := range days {
		key := strconv.Itoa(p.Day)
		set["available."+key] = p.Available
		switch {
		case p.Hold != "":
			set["holds."+key] = p.Hold
			delete(unset, "holds."+key)
		case p.ClearHold:
			unset["holds."+key] = ""
			delete(set, "holds."+key)
		}
		switch {
		case p.ExternalBlock != "":
			set["external_blocks."+key] = p.ExternalBlock
			delete(unset, "external_blocks."+key)
		case p.ClearExternalBlock:
			unset["external_blocks."+key] = ""
			delete(set, "external_blocks."+key)
		}
	}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func pricePatch(days []domainavailability.DayPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	for _, p := range days {
		set["days."+strconv.Itoa(p.Day)+".available"] = p.Available
	}
	return bson.M{"$set": set}
}

func (s *CalendarStore) insertIfMissing(ctx context.Context, col *mongo.Collection, id string, doc any) error {
	_, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// lost the insert race; the winner's document stands
		return nil
	}
	return err
}

func (s *CalendarStore) Ping(ctx context.Context) error {
	return storeErr("ping", s.client.Ping(ctx, nil))
}

// storeErr maps driver errors onto the engine's error kinds: a missing
// document is ErrNotFound, anything else is a retryable StoreError.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domainavailability.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &domainavailability.StoreError{Op: op, Err: err}
	}
}

var _ domainavailability.Store = (*CalendarStore)(nil)
