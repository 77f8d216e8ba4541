package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	OrdersCollection      = "orders"
	StatusesCollection    = "orderstatuses"
	WebhookLogsCollection = "webhooklogs"
	UsersCollection       = "users"
)

// opTimeout bounds every single repository call.
const opTimeout = 5 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// Connect opens a client and pings the primary before returning it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Store bundles every repository over one database. Each embedded repository
// satisfies one of the service ports.
type Store struct {
	*OrderRepository
	*StatusRepository
	*WebhookLogRepository
	*UserRepository
	*TransactionRepository
	*Transactor
}

func NewStore(client *mongo.Client, database *mongo.Database, transactions bool) *Store {
	return &Store{
		OrderRepository:       NewOrderRepository(database),
		StatusRepository:      NewStatusRepository(database),
		WebhookLogRepository:  NewWebhookLogRepository(database),
		UserRepository:        NewUserRepository(database),
		TransactionRepository: NewTransactionRepository(database),
		Transactor:            NewTransactor(client, transactions),
	}
}

// Transactor wraps fn in a MongoDB transaction when enabled. Transactions
// need a replica set, so standalone deployments run fn directly.
type Transactor struct {
	client  *mongo.Client
	enabled bool
}

func NewTransactor(client *mongo.Client, enabled bool) *Transactor {
	return &Transactor{client: client, enabled: enabled}
}

func (t *Transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.enabled || t.client == nil {
		return fn(ctx)
	}
	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
