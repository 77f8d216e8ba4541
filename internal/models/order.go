package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StudentInfo is embedded in every order. All three fields are required.
type StudentInfo struct {
	Name  string `bson:"name" json:"name" validate:"required"`
	ID    string `bson:"id" json:"id" validate:"required"`
	Email string `bson:"email" json:"email" validate:"required"`
}

// Order is one payment collection attempt for a student. Identity fields are
// written once and never updated.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SchoolID      string             `bson:"school_id" json:"school_id"`
	TrusteeID     string             `bson:"trustee_id" json:"trustee_id"`
	StudentInfo   StudentInfo        `bson:"student_info" json:"student_info"`
	GatewayName   string             `bson:"gateway_name" json:"gateway_name"`
	CustomOrderID string             `bson:"custom_order_id" json:"custom_order_id"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
