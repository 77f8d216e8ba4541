package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// OrderStatus is the status ledger entry of one order. CollectID points back
// at Order.ID; there is at most one entry per order.
type OrderStatus struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CollectID         primitive.ObjectID `bson:"collect_id" json:"collect_id"`
	OrderAmount       float64            `bson:"order_amount" json:"order_amount"`
	TransactionAmount float64            `bson:"transaction_amount" json:"transaction_amount"`
	PaymentMode       string             `bson:"payment_mode" json:"payment_mode"`
	PaymentDetails    string             `bson:"payment_details" json:"payment_details"`
	BankReference     string             `bson:"bank_reference" json:"bank_reference"`
	PaymentMessage    string             `bson:"payment_message" json:"payment_message"`
	Status            string             `bson:"status" json:"status"`
	ErrorMessage      string             `bson:"error_message" json:"error_message"`
	PaymentTime       time.Time          `bson:"payment_time" json:"payment_time"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}
