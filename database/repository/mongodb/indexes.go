package mongoRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func uniqueID(name string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(name),
	}
}

// EnsureIndexes creates the indexes the booking flow depends on. The unique
// ones back the one-payment-per-booking and one-usage-per-booking rules.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	plan := map[*mongo.Collection][]mongo.IndexModel{
		s.productColl: {
			{
				Keys:    bson.D{{Key: "id", Value: 1}, {Key: "kind", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_product"),
			},
		},
		s.availColl: {
			uniqueID("unique_id"),
			{
				Keys:    bson.D{{Key: "product.kind", Value: 1}, {Key: "product.id", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("product_date_idx"),
			},
		},
		s.voucherColl: {
			uniqueID("unique_id"),
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_code"),
			},
		},
		s.usageColl: {
			uniqueID("unique_id"),
			{
				Keys:    bson.D{{Key: "booking_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_booking"),
			},
			{
				Keys:    bson.D{{Key: "voucher_id", Value: 1}},
				Options: options.Index().SetName("voucher_idx"),
			},
		},
		s.bookingColl: {
			uniqueID("unique_id"),
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("user_created_idx"),
			},
		},
		s.paymentColl: {
			uniqueID("unique_id"),
			{
				Keys:    bson.D{{Key: "booking_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_booking"),
			},
			{
				Keys:    bson.D{{Key: "reference", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_reference"),
			},
			{
				Keys: bson.D{{Key: "transaction_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_transaction").
					SetPartialFilterExpression(bson.M{"transaction_id": bson.M{"$exists": true}}),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("status_created_idx"),
			},
		},
	}

	for coll, indexModels := range plan {
		if _, err := coll.Indexes().CreateMany(ctx, indexModels); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll.Name(), err)
		}
	}
	return nil
}
