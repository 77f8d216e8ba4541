package services

import (
	"context"
	"sync"
	"testing"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/db/memstore"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/gateway"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/logging"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

type fakeGateway struct {
	mu     sync.Mutex
	url    string
	err    error
	calls  []string
	onCall func(orderID string)
}

func (g *fakeGateway) InitiateCollection(_ context.Context, orderID string, _ float64, _ string) (*gateway.Collection, error) {
	g.mu.Lock()
	g.calls = append(g.calls, orderID)
	g.mu.Unlock()
	if g.onCall != nil {
		g.onCall(orderID)
	}
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Collection{PaymentURL: g.url}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fixture struct {
	store    *memstore.Store
	gw       *fakeGateway
	payments *PaymentService
	webhooks *WebhookService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	gw := &fakeGateway{url: "https://pay/x"}
	log := logging.Discard()
	return &fixture{
		store:    store,
		gw:       gw,
		payments: NewPaymentService(log, store, store, store, gw, ""),
		webhooks: NewWebhookService(log, store, store, store, store),
	}
}

func validRequest() CreatePaymentRequest {
	return CreatePaymentRequest{
		OrderInput: OrderInput{
			SchoolID:    "S1",
			TrusteeID:   "T1",
			StudentInfo: &models.StudentInfo{Name: "Asha", ID: "STU-1", Email: "asha@example.com"},
			GatewayName: "edviron",
		},
		OrderAmount: 500,
	}
}
