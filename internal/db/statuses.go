package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

type StatusRepository struct {
	statuses *mongo.Collection
}

func NewStatusRepository(db *mongo.Database) *StatusRepository {
	return &StatusRepository{statuses: db.Collection(StatusesCollection)}
}

// InsertStatusIfAbsent leaves an existing entry untouched, so a callback that
// raced ahead of the create path keeps its newer state.
func (r *StatusRepository) InsertStatusIfAbsent(ctx context.Context, status *models.OrderStatus) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if status.ID.IsZero() {
		status.ID = primitive.NewObjectID()
	}
	_, err := r.statuses.UpdateOne(ctx,
		bson.M{"collect_id": status.CollectID},
		bson.M{"$setOnInsert": status},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to insert order status: %w", err)
	}
	return nil
}

// UpsertStatus overwrites every ledger field of the order's entry.
func (r *StatusRepository) UpsertStatus(ctx context.Context, status *models.OrderStatus) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	now := time.Now().UTC()
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = now
	}
	if status.CreatedAt.IsZero() {
		status.CreatedAt = now
	}
	update := bson.M{
		"$set": bson.M{
			"collect_id":         status.CollectID,
			"order_amount":       status.OrderAmount,
			"transaction_amount": status.TransactionAmount,
			"payment_mode":       status.PaymentMode,
			"payment_details":    status.PaymentDetails,
			"bank_reference":     status.BankReference,
			"payment_message":    status.PaymentMessage,
			"status":             status.Status,
			"error_message":      status.ErrorMessage,
			"payment_time":       status.PaymentTime,
			"updatedAt":          status.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"createdAt": status.CreatedAt,
		},
	}
	_, err := r.statuses.UpdateOne(ctx, bson.M{"collect_id": status.CollectID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert order status: %w", err)
	}
	return nil
}

func (r *StatusRepository) FindStatusByOrderID(ctx context.Context, orderID primitive.ObjectID) (*models.OrderStatus, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var status models.OrderStatus
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	if err := r.statuses.FindOne(ctx, bson.M{"collect_id": orderID}, opts).Decode(&status); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch order status: %w", err)
	}
	return &status, nil
}
