package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookLog is the audit record of one inbound webhook call.
type WebhookLog struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Payload    map[string]interface{} `bson:"payload" json:"payload"`
	Status     int                    `bson:"status" json:"status"`
	ReceivedAt time.Time              `bson:"received_at" json:"received_at"`
	Processed  bool                   `bson:"processed" json:"processed"`
	Error      *string                `bson:"error" json:"error,omitempty"`
	CreatedAt  time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time              `bson:"updatedAt" json:"updatedAt"`
}
