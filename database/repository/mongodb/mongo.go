package mongoRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/database/repository"
	"tourbook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements repository.Store on a MongoDB replica set.
type MongoStore struct {
	client       *mongo.Client
	productColl  *mongo.Collection
	availColl    *mongo.Collection
	voucherColl  *mongo.Collection
	usageColl    *mongo.Collection
	bookingColl  *mongo.Collection
	paymentColl  *mongo.Collection
	queryTimeout time.Duration
}

// NewMongoStore binds the store to db's collections.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:       db.Client(),
		productColl:  db.Collection("products"),
		availColl:    db.Collection("availability"),
		voucherColl:  db.Collection("vouchers"),
		usageColl:    db.Collection("voucher_usages"),
		bookingColl:  db.Collection("bookings"),
		paymentColl:  db.Collection("payments"),
		queryTimeout: 5 * time.Second,
	}
}

// WithTx runs fn inside a session transaction. The driver retries fn on
// transient errors, which is how concurrent lockers of the same document are
// serialised.
func (s *MongoStore) WithTx(ctx context.Context, fn repository.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{store: s})
	})
	return err
}

func (s *MongoStore) findOne(ctx context.Context, coll *mongo.Collection, filter bson.M, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return mapErr(coll.FindOne(ctx, filter).Decode(out))
}

func (s *MongoStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := s.findOne(ctx, s.bookingColl, bson.M{"id": id}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *MongoStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := s.findOne(ctx, s.paymentColl, bson.M{"id": id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) GetAvailability(ctx context.Context, ref models.ProductRef, date string) (*models.Availability, error) {
	var a models.Availability
	if err := s.findOne(ctx, s.availColl, availFilter(ref, date), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) CountVoucherUsages(ctx context.Context, voucherID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	n, err := s.usageColl.CountDocuments(ctx, bson.M{"voucher_id": voucherID})
	if err != nil {
		return 0, fmt.Errorf("error counting voucher usages: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	filter := bson.M{
		"status":     models.PaymentPending,
		"method":     bson.M{"$in": models.AsynchronousMethods()},
		"created_at": bson.M{"$lt": before},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.paymentColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing stale payments: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Payment
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding stale payments: %w", err)
	}
	return out, nil
}

func (s *MongoStore) SaveProduct(ctx context.Context, p *models.Product) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	filter := bson.M{"id": p.ID, "kind": p.Kind}
	_, err := s.productColl.ReplaceOne(ctx, filter, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving product %s: %w", p.ID, err)
	}
	return nil
}

func (s *MongoStore) SaveAvailability(ctx context.Context, a *models.Availability) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	_, err := s.availColl.ReplaceOne(ctx, availFilter(a.Product, a.Date), a, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving availability: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertVoucher(ctx context.Context, v *models.Voucher) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	if _, err := s.voucherColl.InsertOne(ctx, v); err != nil {
		return mapWriteErr("insert voucher", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func availFilter(ref models.ProductRef, date string) bson.M {
	return bson.M{"product.kind": ref.Kind, "product.id": ref.ID, "date": date}
}

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}

func mapWriteErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
