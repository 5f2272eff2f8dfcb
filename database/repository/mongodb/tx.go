package mongoRepo

import (
	"context"
	"fmt"
	"time"

	"tourbook/database/repository"
	"tourbook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoTx issues every operation on the session context it was handed.
// Locking a document means writing to it: bumping lock_seq inside the
// transaction makes any concurrent transaction that touches the same document
// fail with a write conflict and retry.
type mongoTx struct {
	store *MongoStore
}

var afterUpdate = options.FindOneAndUpdate().SetReturnDocument(options.After)

func (t *mongoTx) lock(ctx context.Context, coll *mongo.Collection, filter bson.M, out interface{}) error {
	update := bson.M{"$inc": bson.M{"lock_seq": 1}}
	return mapErr(coll.FindOneAndUpdate(ctx, filter, update, afterUpdate).Decode(out))
}

func (t *mongoTx) GetProduct(ctx context.Context, ref models.ProductRef) (*models.Product, error) {
	var p models.Product
	err := mapErr(t.store.productColl.FindOne(ctx, bson.M{"id": ref.ID, "kind": ref.Kind}).Decode(&p))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *mongoTx) LockAvailability(ctx context.Context, ref models.ProductRef, date string) (*models.Availability, error) {
	var a models.Availability
	if err := t.lock(ctx, t.store.availColl, availFilter(ref, date), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *mongoTx) AdjustAvailability(ctx context.Context, id string, delta int) (*models.Availability, error) {
	next := bson.M{"$add": bson.A{"$available_slots", delta}}
	filter := bson.M{
		"id": id,
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$gte": bson.A{next, 0}},
			bson.M{"$lte": bson.A{next, "$max_slots"}},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"available_slots": delta},
		"$set": bson.M{"updated_at": time.Now()},
	}

	var a models.Availability
	err := t.store.availColl.FindOneAndUpdate(ctx, filter, update, afterUpdate).Decode(&a)
	if err == mongo.ErrNoDocuments {
		// either the row is gone or the guard rejected the delta
		n, cerr := t.store.availColl.CountDocuments(ctx, bson.M{"id": id})
		if cerr != nil {
			return nil, fmt.Errorf("adjust availability: %w", cerr)
		}
		if n == 0 {
			return nil, repository.ErrNotFound
		}
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("adjust availability: %w", err)
	}
	return &a, nil
}

func (t *mongoTx) LockVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var v models.Voucher
	if err := t.lock(ctx, t.store.voucherColl, bson.M{"code": code}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *mongoTx) CountVoucherUsages(ctx context.Context, voucherID string) (int, error) {
	n, err := t.store.usageColl.CountDocuments(ctx, bson.M{"voucher_id": voucherID})
	if err != nil {
		return 0, fmt.Errorf("count voucher usages: %w", err)
	}
	return int(n), nil
}

func (t *mongoTx) InsertVoucherUsage(ctx context.Context, u *models.VoucherUsage) error {
	if _, err := t.store.usageColl.InsertOne(ctx, u); err != nil {
		return mapWriteErr("insert voucher usage", err)
	}
	return nil
}

func (t *mongoTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	if _, err := t.store.bookingColl.InsertOne(ctx, b); err != nil {
		return mapWriteErr("insert booking", err)
	}
	return nil
}

func (t *mongoTx) GetBookingForUpdate(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := mapErr(t.store.bookingColl.FindOne(ctx, bson.M{"id": id}).Decode(&b))
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *mongoTx) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}}
	res, err := t.store.bookingColl.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("error updating booking %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *mongoTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	if _, err := t.store.paymentColl.InsertOne(ctx, p); err != nil {
		return mapWriteErr("insert payment", err)
	}
	return nil
}

func (t *mongoTx) LockPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := t.lock(ctx, t.store.paymentColl, bson.M{"id": id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *mongoTx) LockPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	if err := t.lock(ctx, t.store.paymentColl, bson.M{"reference": reference}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *mongoTx) UpdatePayment(ctx context.Context, p *models.Payment) error {
	res, err := t.store.paymentColl.ReplaceOne(ctx, bson.M{"id": p.ID}, p)
	if err != nil {
		return mapWriteErr("update payment", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
