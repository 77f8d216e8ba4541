// Package memstore is an in-memory implementation of the service ports with
// the same uniqueness and upsert rules as the MongoDB repositories.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

type Store struct {
	mu       sync.Mutex
	orders   []models.Order
	statuses map[primitive.ObjectID]models.OrderStatus
	logs     []models.WebhookLog
	users    map[string]models.User

	// Injected failures, returned by the named operation when set.
	InsertOrderErr      error
	InsertStatusErr     error
	UpsertStatusErr     error
	InsertWebhookLogErr error
	UpdateWebhookLogErr error
	ListErr             error

	// Counters used by tests to assert write counts.
	StatusWrites int
	LogUpdates   int
	Transactions int
}

func New() *Store {
	return &Store{
		statuses: make(map[primitive.ObjectID]models.OrderStatus),
		users:    make(map[string]models.User),
	}
}

func (s *Store) InsertOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertOrderErr != nil {
		return s.InsertOrderErr
	}
	for _, o := range s.orders {
		if o.CustomOrderID == order.CustomOrderID {
			return fmt.Errorf("%w: custom_order_id %s", models.ErrDuplicateKey, order.CustomOrderID)
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.orders = append(s.orders, *order)
	return nil
}

func (s *Store) FindOrderByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			o := o
			return &o, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) FindOrderByCustomID(_ context.Context, customOrderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.CustomOrderID == customOrderID {
			o := o
			return &o, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order(nil), s.orders...)
}

func (s *Store) InsertStatusIfAbsent(_ context.Context, status *models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertStatusErr != nil {
		return s.InsertStatusErr
	}
	s.StatusWrites++
	if _, ok := s.statuses[status.CollectID]; ok {
		return nil
	}
	if status.ID.IsZero() {
		status.ID = primitive.NewObjectID()
	}
	s.statuses[status.CollectID] = *status
	return nil
}

func (s *Store) UpsertStatus(_ context.Context, status *models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpsertStatusErr != nil {
		return s.UpsertStatusErr
	}
	s.StatusWrites++
	next := *status
	if prev, ok := s.statuses[status.CollectID]; ok {
		next.ID = prev.ID
		next.CreatedAt = prev.CreatedAt
	} else if next.ID.IsZero() {
		next.ID = primitive.NewObjectID()
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	s.statuses[status.CollectID] = next
	return nil
}

func (s *Store) FindStatusByOrderID(_ context.Context, orderID primitive.ObjectID) (*models.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &st, nil
}

func (s *Store) Statuses() []models.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.OrderStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	return out
}

func (s *Store) InsertWebhookLog(_ context.Context, log *models.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertWebhookLogErr != nil {
		return s.InsertWebhookLogErr
	}
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	s.logs = append(s.logs, *log)
	return nil
}

func (s *Store) UpdateWebhookLog(_ context.Context, id primitive.ObjectID, processed bool, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateWebhookLogErr != nil {
		return s.UpdateWebhookLogErr
	}
	for i := range s.logs {
		if s.logs[i].ID == id {
			s.LogUpdates++
			s.logs[i].Processed = processed
			s.logs[i].Error = errMsg
			s.logs[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *Store) WebhookLogs() []models.WebhookLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WebhookLog(nil), s.logs...)
}

func (s *Store) InsertUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return fmt.Errorf("%w: username %s", models.ErrDuplicateKey, user.Username)
	}
	s.users[user.Username] = *user
	return nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

// WithTransaction runs fn directly; the store has no rollback.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.Transactions++
	s.mu.Unlock()
	return fn(ctx)
}

// ListTransactions mirrors the aggregation: left join, defaults, filters,
// sort with an id tie-break, then the page window.
func (s *Store) ListTransactions(_ context.Context, q models.TransactionQuery) ([]models.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, 0, s.ListErr
	}

	var rows []models.Transaction
	for _, o := range s.orders {
		if len(q.SchoolIDs) > 0 && !contains(q.SchoolIDs, o.SchoolID) {
			continue
		}
		if q.CustomOrderID != "" && o.CustomOrderID != q.CustomOrderID {
			continue
		}
		t := models.Transaction{
			CollectID:     o.ID,
			SchoolID:      o.SchoolID,
			Gateway:       o.GatewayName,
			Status:        models.StatusPending,
			CustomOrderID: o.CustomOrderID,
			StudentInfo:   o.StudentInfo,
		}
		if st, ok := s.statuses[o.ID]; ok {
			t.OrderAmount = st.OrderAmount
			t.TransactionAmount = st.TransactionAmount
			t.Status = st.Status
			pt := st.PaymentTime
			t.PaymentTime = &pt
		}
		if len(q.Statuses) > 0 && !contains(q.Statuses, t.Status) {
			continue
		}
		rows = append(rows, t)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := compareField(rows[i], rows[j], q.SortField)
		if q.SortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return rows[i].CollectID.Hex() < rows[j].CollectID.Hex()
	})

	total := int64(len(rows))
	start := q.Skip()
	if start > len(rows) {
		start = len(rows)
	}
	end := start + q.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return append([]models.Transaction{}, rows[start:end]...), total, nil
}

func compareField(a, b models.Transaction, field string) int {
	switch field {
	case "collect_id":
		return strings.Compare(a.CollectID.Hex(), b.CollectID.Hex())
	case "school_id":
		return strings.Compare(a.SchoolID, b.SchoolID)
	case "gateway":
		return strings.Compare(a.Gateway, b.Gateway)
	case "order_amount":
		return compareFloat(a.OrderAmount, b.OrderAmount)
	case "transaction_amount":
		return compareFloat(a.TransactionAmount, b.TransactionAmount)
	case "status":
		return strings.Compare(a.Status, b.Status)
	case "custom_order_id":
		return strings.Compare(a.CustomOrderID, b.CustomOrderID)
	case "student_info.name":
		return strings.Compare(a.StudentInfo.Name, b.StudentInfo.Name)
	case "student_info.id":
		return strings.Compare(a.StudentInfo.ID, b.StudentInfo.ID)
	case "student_info.email":
		return strings.Compare(a.StudentInfo.Email, b.StudentInfo.Email)
	default:
		// payment_time; a missing time sorts lowest, as in MongoDB.
		switch {
		case a.PaymentTime == nil && b.PaymentTime == nil:
			return 0
		case a.PaymentTime == nil:
			return -1
		case b.PaymentTime == nil:
			return 1
		default:
			return a.PaymentTime.Compare(*b.PaymentTime)
		}
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
