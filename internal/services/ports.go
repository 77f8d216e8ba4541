package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/gateway"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

type OrderStore interface {
	// InsertOrder returns models.ErrDuplicateKey when custom_order_id is taken.
	InsertOrder(ctx context.Context, order *models.Order) error
	FindOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindOrderByCustomID(ctx context.Context, customOrderID string) (*models.Order, error)
}

type StatusStore interface {
	// InsertStatusIfAbsent writes the entry only when the order has none yet.
	InsertStatusIfAbsent(ctx context.Context, status *models.OrderStatus) error
	// UpsertStatus overwrites the entry for status.CollectID, creating it if needed.
	UpsertStatus(ctx context.Context, status *models.OrderStatus) error
	FindStatusByOrderID(ctx context.Context, orderID primitive.ObjectID) (*models.OrderStatus, error)
}

type WebhookLogStore interface {
	InsertWebhookLog(ctx context.Context, log *models.WebhookLog) error
	UpdateWebhookLog(ctx context.Context, id primitive.ObjectID, processed bool, errMsg *string) error
}

type TransactionStore interface {
	// ListTransactions returns one page plus the count of all matching rows.
	ListTransactions(ctx context.Context, q models.TransactionQuery) ([]models.Transaction, int64, error)
}

type UserStore interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Transactor runs fn inside one store transaction when the store supports it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Gateway interface {
	InitiateCollection(ctx context.Context, orderID string, amount float64, schoolID string) (*gateway.Collection, error)
}
