package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/gateway"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultSort  = "payment_time"
)

// SortableFields are the projected transaction fields a listing may sort on.
var SortableFields = map[string]bool{
	"collect_id":         true,
	"school_id":          true,
	"gateway":            true,
	"order_amount":       true,
	"transaction_amount": true,
	"status":             true,
	"custom_order_id":    true,
	"payment_time":       true,
	"student_info.name":  true,
	"student_info.id":    true,
	"student_info.email": true,
}

type PaymentService struct {
	log             *slog.Logger
	orders          OrderStore
	statuses        StatusStore
	transactions    TransactionStore
	gateway         Gateway
	defaultSchoolID string
	now             func() time.Time
}

func NewPaymentService(log *slog.Logger, orders OrderStore, statuses StatusStore, transactions TransactionStore, gw Gateway, defaultSchoolID string) *PaymentService {
	return &PaymentService{
		log:             log,
		orders:          orders,
		statuses:        statuses,
		transactions:    transactions,
		gateway:         gw,
		defaultSchoolID: defaultSchoolID,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// OrderInput is what the order registry needs to record a payment attempt.
type OrderInput struct {
	SchoolID      string              `json:"school_id" validate:"required"`
	TrusteeID     string              `json:"trustee_id" validate:"required"`
	StudentInfo   *models.StudentInfo `json:"student_info" validate:"required"`
	GatewayName   string              `json:"gateway_name" validate:"required"`
	CustomOrderID string              `json:"custom_order_id"`
}

// CreatePaymentRequest is the create-payment body. The optional status and
// payment_* fields seed the initial ledger entry.
type CreatePaymentRequest struct {
	OrderInput
	OrderAmount       float64 `json:"order_amount" validate:"gt=0"`
	Status            string  `json:"status"`
	TransactionAmount float64 `json:"transaction_amount" validate:"gte=0"`
	PaymentMode       string  `json:"payment_mode"`
	PaymentDetails    string  `json:"payment_details"`
	PaymentMessage    string  `json:"payment_message"`
	BankReference     string  `json:"bank_reference"`
	PaymentTime       string  `json:"payment_time"`
}

type CreatePaymentResult struct {
	Order      *models.Order
	Status     *models.OrderStatus
	PaymentURL string
}

// CreateOrder records a new order. A missing custom_order_id is generated.
func (s *PaymentService) CreateOrder(ctx context.Context, in OrderInput) (*models.Order, error) {
	in = s.normalizeOrderInput(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		ID:            primitive.NewObjectID(),
		SchoolID:      in.SchoolID,
		TrusteeID:     in.TrusteeID,
		StudentInfo:   *in.StudentInfo,
		GatewayName:   in.GatewayName,
		CustomOrderID: in.CustomOrderID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if order.CustomOrderID == "" {
		order.CustomOrderID = generateCustomOrderID(now)
	}

	if err := s.orders.InsertOrder(ctx, order); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			s.log.Warn("duplicate custom_order_id", "custom_order_id", order.CustomOrderID)
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOrderID, order.CustomOrderID)
		}
		s.log.Error("failed to save order", "custom_order_id", order.CustomOrderID, "err", err)
		return nil, fmt.Errorf("%w: failed to save order: %v", ErrInternal, err)
	}

	s.log.Info("order saved", "order_id", order.ID.Hex(), "custom_order_id", order.CustomOrderID)
	return order, nil
}

// CreatePayment records the order, asks the gateway for a collect URL and
// always leaves exactly one ledger entry behind, on both outcomes.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	req.OrderInput = s.normalizeOrderInput(req.OrderInput)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	paymentTime, err := parsePaymentTime(req.PaymentTime, s.now())
	if err != nil {
		return nil, validationf("payment_time: %v", err)
	}

	order, err := s.CreateOrder(ctx, req.OrderInput)
	if err != nil {
		return nil, err
	}

	collection, gwErr := s.gateway.InitiateCollection(ctx, order.ID.Hex(), req.OrderAmount, order.SchoolID)

	now := s.now()
	status := &models.OrderStatus{
		ID:                primitive.NewObjectID(),
		CollectID:         order.ID,
		OrderAmount:       req.OrderAmount,
		TransactionAmount: req.TransactionAmount,
		PaymentMode:       defaultString(req.PaymentMode, "initial"),
		PaymentDetails:    defaultString(req.PaymentDetails, "N/A"),
		BankReference:     defaultString(req.BankReference, "N/A"),
		PaymentMessage:    defaultString(req.PaymentMessage, "N/A"),
		Status:            defaultString(req.Status, models.StatusPending),
		ErrorMessage:      "N/A",
		PaymentTime:       paymentTime,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if gwErr != nil {
		status.Status = models.StatusFailed
		status.ErrorMessage = gatewayErrorDetail(gwErr)
	}

	// The ledger write must not be lost to a client that hung up mid-call.
	if err := s.statuses.InsertStatusIfAbsent(context.WithoutCancel(ctx), status); err != nil {
		s.log.Error("failed to save order status", "order_id", order.ID.Hex(), "err", err)
		return nil, fmt.Errorf("%w: failed to save order status: %v", ErrInternal, err)
	}

	if gwErr != nil {
		s.log.Error("payment initiation failed", "order_id", order.ID.Hex(), "custom_order_id", order.CustomOrderID, "err", gwErr)
		return nil, fmt.Errorf("payment initiation failed: %w", gwErr)
	}

	s.log.Info("payment initiated", "order_id", order.ID.Hex(), "custom_order_id", order.CustomOrderID, "status", status.Status)
	return &CreatePaymentResult{Order: order, Status: status, PaymentURL: collection.PaymentURL}, nil
}

// ListParams are the raw listing options after query-string parsing.
type ListParams struct {
	Page          int
	Limit         int
	Sort          string
	Order         string
	Statuses      []string
	CustomOrderID string
	SchoolIDs     []string
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	Limit       int   `json:"limit"`
}

type TransactionPage struct {
	Data       []models.Transaction `json:"data"`
	Pagination Pagination           `json:"pagination"`
}

// ListTransactions joins orders with their ledger entries and returns one page.
func (s *PaymentService) ListTransactions(ctx context.Context, p ListParams) (*TransactionPage, error) {
	q, err := buildTransactionQuery(p)
	if err != nil {
		return nil, err
	}

	items, total, err := s.transactions.ListTransactions(ctx, q)
	if err != nil {
		s.log.Error("failed to list transactions", "err", err)
		return nil, fmt.Errorf("%w: failed to list transactions: %v", ErrInternal, err)
	}
	if items == nil {
		items = []models.Transaction{}
	}

	return &TransactionPage{
		Data: items,
		Pagination: Pagination{
			CurrentPage: q.Page,
			TotalPages:  int(math.Ceil(float64(total) / float64(q.Limit))),
			TotalItems:  total,
			Limit:       q.Limit,
		},
	}, nil
}

// ListSchoolTransactions is ListTransactions with the school fixed by the caller.
func (s *PaymentService) ListSchoolTransactions(ctx context.Context, schoolID string, p ListParams) (*TransactionPage, error) {
	schoolID = strings.TrimSpace(schoolID)
	if schoolID == "" {
		return nil, validationf("schoolId is required")
	}
	p.SchoolIDs = []string{schoolID}
	return s.ListTransactions(ctx, p)
}

// GetStatus reports the ledger status of an order, "pending" until the first
// ledger write lands.
func (s *PaymentService) GetStatus(ctx context.Context, customOrderID string) (string, error) {
	order, err := s.orders.FindOrderByCustomID(ctx, customOrderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrOrderNotFound, customOrderID)
		}
		s.log.Error("failed to fetch order", "custom_order_id", customOrderID, "err", err)
		return "", fmt.Errorf("%w: failed to fetch order: %v", ErrInternal, err)
	}

	status, err := s.statuses.FindStatusByOrderID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.StatusPending, nil
		}
		s.log.Error("failed to fetch order status", "order_id", order.ID.Hex(), "err", err)
		return "", fmt.Errorf("%w: failed to fetch order status: %v", ErrInternal, err)
	}
	return status.Status, nil
}

func (s *PaymentService) normalizeOrderInput(in OrderInput) OrderInput {
	in.SchoolID = strings.TrimSpace(in.SchoolID)
	if in.SchoolID == "" {
		in.SchoolID = s.defaultSchoolID
	}
	in.TrusteeID = strings.TrimSpace(in.TrusteeID)
	in.GatewayName = strings.TrimSpace(in.GatewayName)
	in.CustomOrderID = strings.TrimSpace(in.CustomOrderID)
	if in.StudentInfo != nil {
		info := *in.StudentInfo
		info.Name = strings.TrimSpace(info.Name)
		info.ID = strings.TrimSpace(info.ID)
		info.Email = strings.TrimSpace(info.Email)
		in.StudentInfo = &info
	}
	return in
}

func buildTransactionQuery(p ListParams) (models.TransactionQuery, error) {
	q := models.TransactionQuery{
		Statuses:      compact(p.Statuses),
		CustomOrderID: strings.TrimSpace(p.CustomOrderID),
		SchoolIDs:     compact(p.SchoolIDs),
		SortField:     DefaultSort,
		SortDesc:      true,
		Page:          p.Page,
		Limit:         p.Limit,
	}
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Page < 1 {
		return q, validationf("page must be at least 1")
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return q, validationf("limit must be between 1 and %d", MaxLimit)
	}
	if sort := strings.TrimSpace(p.Sort); sort != "" {
		if !SortableFields[sort] {
			return q, validationf("cannot sort by %q", sort)
		}
		q.SortField = sort
	}
	switch strings.ToLower(strings.TrimSpace(p.Order)) {
	case "", "desc":
		q.SortDesc = true
	case "asc":
		q.SortDesc = false
	default:
		return q, validationf("order must be asc or desc")
	}
	return q, nil
}

func gatewayErrorDetail(err error) string {
	var gwErr *gateway.Error
	var protoErr *gateway.ProtocolError
	switch {
	case errors.As(err, &gwErr):
		return gwErr.Body
	case errors.As(err, &protoErr):
		return "Invalid gateway response: collect_request_url missing: " + protoErr.Body
	default:
		return err.Error()
	}
}

// generateCustomOrderID is time-ordered with a random suffix so two orders
// created in the same millisecond do not collide.
func generateCustomOrderID(now time.Time) string {
	return "ORD-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func compact(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
