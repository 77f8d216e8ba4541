package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

const (
	msgMissingOrderInfo = "Missing order_info or order_id"

	// maxRejectedRawBytes caps how much of an unreadable body is kept for audit.
	maxRejectedRawBytes = 64 << 10
)

// WebhookService applies gateway callbacks to the status ledger. Every call
// leaves exactly one audit record behind.
type WebhookService struct {
	log      *slog.Logger
	orders   OrderStore
	statuses StatusStore
	logs     WebhookLogStore
	tx       Transactor
	now      func() time.Time
}

func NewWebhookService(log *slog.Logger, orders OrderStore, statuses StatusStore, logs WebhookLogStore, tx Transactor) *WebhookService {
	return &WebhookService{
		log:      log,
		orders:   orders,
		statuses: statuses,
		logs:     logs,
		tx:       tx,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WebhookPayload is the closed schema of a gateway callback.
type WebhookPayload struct {
	Status    json.RawMessage `json:"status"`
	OrderInfo *OrderInfo      `json:"order_info"`
}

type OrderInfo struct {
	OrderID           string  `json:"order_id"`
	OrderAmount       *Amount `json:"order_amount"`
	TransactionAmount *Amount `json:"transaction_amount"`
	PaymentMode       string  `json:"payment_mode"`
	PaymentDetails    string  `json:"payment_details"`
	BankReference     string  `json:"bank_reference"`
	PaymentMessage    string  `json:"payment_message"`
	Status            string  `json:"status"`
	ErrorMessage      string  `json:"error_message"`
	PaymentTime       string  `json:"payment_time"`
}

// Amount accepts a JSON number or a numeric string.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s", string(b))
	}
	*a = Amount(f)
	return nil
}

func (a *Amount) value() float64 {
	if a == nil {
		return 0
	}
	return float64(*a)
}

// ProcessWebhook records the raw callback, validates it, and upserts the
// ledger entry of the referenced order.
func (s *WebhookService) ProcessWebhook(ctx context.Context, raw []byte) error {
	// Audit writes must land even if the caller goes away.
	auditCtx := context.WithoutCancel(ctx)

	payload, parseErr := decodeRawPayload(raw)
	entry := &models.WebhookLog{
		ID:         primitive.NewObjectID(),
		Payload:    payload,
		Status:     declaredStatus(payload),
		ReceivedAt: s.now(),
		Processed:  false,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	if err := s.logs.InsertWebhookLog(auditCtx, entry); err != nil {
		s.log.Error("failed to record webhook", "err", err)
		return fmt.Errorf("%w: failed to record webhook: %v", ErrInternal, err)
	}
	if parseErr != nil {
		return s.reject(auditCtx, entry, ErrInvalidPayload, "Invalid JSON payload")
	}

	var wp WebhookPayload
	if err := json.Unmarshal(raw, &wp); err != nil {
		return s.reject(auditCtx, entry, ErrInvalidPayload, "Invalid payload: "+err.Error())
	}
	if wp.OrderInfo == nil || strings.TrimSpace(wp.OrderInfo.OrderID) == "" {
		return s.reject(auditCtx, entry, ErrInvalidPayload, msgMissingOrderInfo)
	}
	info := wp.OrderInfo

	orderID := strings.TrimSpace(info.OrderID)
	collectID, err := s.resolveOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.reject(auditCtx, entry, ErrInvalidPayload, "unknown order_id "+orderID)
		}
		return s.reject(auditCtx, entry, ErrInternal, err.Error())
	}

	paymentTime, err := parsePaymentTime(info.PaymentTime, entry.ReceivedAt)
	if err != nil {
		return s.reject(auditCtx, entry, ErrInvalidPayload, "Invalid payment_time format")
	}

	now := s.now()
	update := &models.OrderStatus{
		CollectID:         collectID,
		OrderAmount:       info.OrderAmount.value(),
		TransactionAmount: info.TransactionAmount.value(),
		PaymentMode:       defaultString(info.PaymentMode, "unknown"),
		PaymentDetails:    defaultString(info.PaymentDetails, "N/A"),
		BankReference:     defaultString(info.BankReference, "N/A"),
		PaymentMessage:    defaultString(info.PaymentMessage, "N/A"),
		Status:            defaultString(info.Status, models.StatusPending),
		ErrorMessage:      defaultString(info.ErrorMessage, "N/A"),
		PaymentTime:       paymentTime,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.tx.WithTransaction(auditCtx, func(txCtx context.Context) error {
		if err := s.statuses.UpsertStatus(txCtx, update); err != nil {
			return fmt.Errorf("failed to upsert order status: %w", err)
		}
		if err := s.logs.UpdateWebhookLog(txCtx, entry.ID, true, nil); err != nil {
			return fmt.Errorf("failed to mark webhook processed: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.reject(auditCtx, entry, ErrInternal, err.Error())
	}

	s.log.Info("webhook processed", "order_id", collectID.Hex(), "status", update.Status, "webhook_log_id", entry.ID.Hex())
	return nil
}

// RecordRejected audits a callback whose body could not be read in full, then
// rejects it. partial is whatever arrived before the failure.
func (s *WebhookService) RecordRejected(ctx context.Context, partial []byte, reason string) error {
	if len(partial) > maxRejectedRawBytes {
		partial = partial[:maxRejectedRawBytes]
	}
	now := s.now()
	entry := &models.WebhookLog{
		ID:         primitive.NewObjectID(),
		Payload:    map[string]interface{}{"raw": string(partial)},
		Status:     http.StatusOK,
		ReceivedAt: now,
		Processed:  false,
		Error:      &reason,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.logs.InsertWebhookLog(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error("failed to record webhook", "err", err)
		return &WebhookError{Kind: ErrInternal, Reason: "failed to record webhook: " + err.Error()}
	}
	s.log.Warn("webhook rejected", "webhook_log_id", entry.ID.Hex(), "reason", reason)
	return &WebhookError{Kind: ErrInvalidPayload, Reason: reason}
}

// resolveOrderID maps the callback's order_id to an existing order. The
// gateway echoes our order id; a custom_order_id is accepted as well.
func (s *WebhookService) resolveOrderID(ctx context.Context, orderID string) (primitive.ObjectID, error) {
	if id, err := primitive.ObjectIDFromHex(orderID); err == nil {
		order, err := s.orders.FindOrderByID(ctx, id)
		if err == nil {
			return order.ID, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return primitive.NilObjectID, fmt.Errorf("failed to resolve order_id %s: %w", orderID, err)
		}
	}
	order, err := s.orders.FindOrderByCustomID(ctx, orderID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to resolve order_id %s: %w", orderID, err)
	}
	return order.ID, nil
}

func (s *WebhookService) reject(ctx context.Context, entry *models.WebhookLog, kind error, msg string) error {
	if err := s.logs.UpdateWebhookLog(ctx, entry.ID, false, &msg); err != nil {
		s.log.Error("failed to record webhook error", "webhook_log_id", entry.ID.Hex(), "err", err)
	}
	s.log.Warn("webhook rejected", "webhook_log_id", entry.ID.Hex(), "reason", msg)
	return &WebhookError{Kind: kind, Reason: msg}
}

// decodeRawPayload keeps whatever arrived. Non-object bodies are stored under "raw".
func decodeRawPayload(raw []byte) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		if err == nil {
			err = errors.New("payload is not a JSON object")
		}
		return map[string]interface{}{"raw": string(raw)}, err
	}
	return payload, nil
}

func declaredStatus(payload map[string]interface{}) int {
	switch v := payload["status"].(type) {
	case float64:
		if v != 0 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n != 0 {
			return n
		}
	}
	return http.StatusOK
}
