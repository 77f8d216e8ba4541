package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction is an order joined with its status ledger entry.
type Transaction struct {
	CollectID         primitive.ObjectID `bson:"collect_id" json:"collect_id"`
	SchoolID          string             `bson:"school_id" json:"school_id"`
	Gateway           string             `bson:"gateway" json:"gateway"`
	OrderAmount       float64            `bson:"order_amount" json:"order_amount"`
	TransactionAmount float64            `bson:"transaction_amount" json:"transaction_amount"`
	Status            string             `bson:"status" json:"status"`
	CustomOrderID     string             `bson:"custom_order_id" json:"custom_order_id"`
	StudentInfo       StudentInfo        `bson:"student_info" json:"student_info"`
	PaymentTime       *time.Time         `bson:"payment_time,omitempty" json:"payment_time"`
}

// TransactionQuery selects a page of transactions. Empty slices and strings
// mean "no filter".
type TransactionQuery struct {
	Statuses      []string
	CustomOrderID string
	SchoolIDs     []string
	SortField     string
	SortDesc      bool
	Page          int
	Limit         int
}

// Skip is the number of matching rows before the requested page.
func (q TransactionQuery) Skip() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}
