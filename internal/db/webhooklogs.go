package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

// WebhookLogRepository is append-only: records are inserted once and then
// only their outcome fields change.
type WebhookLogRepository struct {
	logs *mongo.Collection
}

func NewWebhookLogRepository(db *mongo.Database) *WebhookLogRepository {
	return &WebhookLogRepository{logs: db.Collection(WebhookLogsCollection)}
}

func (r *WebhookLogRepository) InsertWebhookLog(ctx context.Context, log *models.WebhookLog) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	if _, err := r.logs.InsertOne(ctx, log); err != nil {
		return fmt.Errorf("failed to insert webhook log: %w", err)
	}
	return nil
}

func (r *WebhookLogRepository) UpdateWebhookLog(ctx context.Context, id primitive.ObjectID, processed bool, errMsg *string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := r.logs.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"processed": processed,
			"error":     errMsg,
			"updatedAt": time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update webhook log: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("webhook log %s: %w", id.Hex(), models.ErrNotFound)
	}
	return nil
}
