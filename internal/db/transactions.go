package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

// TransactionRepository is the read side: orders left-joined with their
// latest ledger entry.
type TransactionRepository struct {
	orders *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{orders: db.Collection(OrdersCollection)}
}

func (r *TransactionRepository) ListTransactions(ctx context.Context, q models.TransactionQuery) ([]models.Transaction, int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cur, err := r.orders.Aggregate(ctx, TransactionPipeline(q))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to aggregate transactions: %w", err)
	}
	defer cur.Close(ctx)

	var result []struct {
		Total []struct {
			Count int64 `bson:"count"`
		} `bson:"total"`
		Data []models.Transaction `bson:"data"`
	}
	if err := cur.All(ctx, &result); err != nil {
		return nil, 0, fmt.Errorf("failed to decode transactions: %w", err)
	}
	if len(result) == 0 {
		return []models.Transaction{}, 0, nil
	}

	var total int64
	if len(result[0].Total) > 0 {
		total = result[0].Total[0].Count
	}
	return result[0].Data, total, nil
}

// TransactionPipeline builds the aggregation for q. Order-level filters run
// before the lookup so they can use indexes; the status filter runs after the
// projection so orders without a ledger entry match "pending".
func TransactionPipeline(q models.TransactionQuery) mongo.Pipeline {
	orderMatch := bson.D{}
	if len(q.SchoolIDs) > 0 {
		orderMatch = append(orderMatch, bson.E{Key: "school_id", Value: bson.M{"$in": q.SchoolIDs}})
	}
	if q.CustomOrderID != "" {
		orderMatch = append(orderMatch, bson.E{Key: "custom_order_id", Value: q.CustomOrderID})
	}

	pipeline := mongo.Pipeline{}
	if len(orderMatch) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: orderMatch}})
	}

	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": StatusesCollection,
			"let":  bson.M{"oid": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$collect_id", "$$oid"}}}},
				bson.M{"$sort": bson.D{{Key: "updatedAt", Value: -1}}},
				bson.M{"$limit": 1},
			},
			"as": "status_info",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$status_info", "preserveNullAndEmptyArrays": true}}},
		bson.D{{Key: "$project", Value: bson.M{
			"collect_id":         "$_id",
			"school_id":          1,
			"gateway":            "$gateway_name",
			"order_amount":       bson.M{"$ifNull": bson.A{"$status_info.order_amount", 0}},
			"transaction_amount": bson.M{"$ifNull": bson.A{"$status_info.transaction_amount", 0}},
			"status":             bson.M{"$ifNull": bson.A{"$status_info.status", models.StatusPending}},
			"custom_order_id":    1,
			"student_info":       1,
			"payment_time":       "$status_info.payment_time",
		}}},
	)

	if len(q.Statuses) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"status": bson.M{"$in": q.Statuses}}}})
	}

	dir := 1
	if q.SortDesc {
		dir = -1
	}
	sort := bson.D{{Key: q.SortField, Value: dir}}
	if q.SortField != "_id" && q.SortField != "collect_id" {
		sort = append(sort, bson.E{Key: "_id", Value: 1})
	}

	pipeline = append(pipeline, bson.D{{Key: "$facet", Value: bson.M{
		"total": bson.A{bson.M{"$count": "count"}},
		"data": bson.A{
			bson.M{"$sort": sort},
			bson.M{"$skip": q.Skip()},
			bson.M{"$limit": q.Limit},
		},
	}}})
	return pipeline
}
