package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/gateway"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/models"
)

func TestCreatePayment_Success(t *testing.T) {
	f := newFixture(t)

	res, err := f.payments.CreatePayment(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://pay/x", res.PaymentURL)
	assert.True(t, strings.HasPrefix(res.Order.CustomOrderID, "ORD-"))
	assert.Equal(t, "S1", res.Order.SchoolID)

	require.Len(t, f.store.Orders(), 1)
	statuses := f.store.Statuses()
	require.Len(t, statuses, 1)
	st := statuses[0]
	assert.Equal(t, res.Order.ID, st.CollectID)
	assert.Equal(t, models.StatusPending, st.Status)
	assert.Equal(t, 500.0, st.OrderAmount)
	assert.Equal(t, "initial", st.PaymentMode)
	assert.Equal(t, "N/A", st.ErrorMessage)
	assert.Equal(t, []string{res.Order.ID.Hex()}, f.gw.calls)
}

func TestCreatePayment_GatewayFailureLeavesFailedEntry(t *testing.T) {
	tests := []struct {
		name      string
		gwErr     error
		wantInMsg string
	}{
		{"upstream 502", &gateway.Error{StatusCode: 502, Body: `{"message":"bad gateway"}`}, `{"message":"bad gateway"}`},
		{"missing url", &gateway.ProtocolError{StatusCode: 200, Body: `{}`}, "collect_request_url missing"},
		{"timeout", gateway.ErrGatewayTimeout, "gateway timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.gw.err = tt.gwErr

			res, err := f.payments.CreatePayment(context.Background(), validRequest())
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.gwErr), "gateway error should stay in the chain")

			require.Len(t, f.store.Orders(), 1)
			statuses := f.store.Statuses()
			require.Len(t, statuses, 1)
			assert.Equal(t, models.StatusFailed, statuses[0].Status)
			assert.Contains(t, statuses[0].ErrorMessage, tt.wantInMsg)
		})
	}
}

func TestCreatePayment_DuplicateCustomOrderID(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.CustomOrderID = "ORD-1"

	_, err := f.payments.CreatePayment(context.Background(), req)
	require.NoError(t, err)

	_, err = f.payments.CreatePayment(context.Background(), req)
	require.ErrorIs(t, err, ErrDuplicateOrderID)

	assert.Len(t, f.store.Orders(), 1)
	assert.Len(t, f.store.Statuses(), 1)
	assert.Equal(t, 1, f.store.StatusWrites)
	assert.Equal(t, 1, f.gw.callCount())
}

func TestCreatePayment_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CreatePaymentRequest)
		wantMsg string
	}{
		{"missing school", func(r *CreatePaymentRequest) { r.SchoolID = " " }, "school_id is required"},
		{"missing trustee", func(r *CreatePaymentRequest) { r.TrusteeID = "" }, "trustee_id is required"},
		{"missing student", func(r *CreatePaymentRequest) { r.StudentInfo = nil }, "student_info is required"},
		{"missing student email", func(r *CreatePaymentRequest) { r.StudentInfo.Email = "" }, "student_info.email is required"},
		{"missing gateway", func(r *CreatePaymentRequest) { r.GatewayName = "" }, "gateway_name is required"},
		{"zero amount", func(r *CreatePaymentRequest) { r.OrderAmount = 0 }, "order_amount must be greater than 0"},
		{"negative transaction amount", func(r *CreatePaymentRequest) { r.TransactionAmount = -1 }, "transaction_amount must be at least 0"},
		{"bad payment time", func(r *CreatePaymentRequest) { r.PaymentTime = "yesterday" }, "payment_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest()
			tt.mutate(&req)

			_, err := f.payments.CreatePayment(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantMsg)

			assert.Empty(t, f.store.Orders())
			assert.Empty(t, f.store.Statuses())
			assert.Zero(t, f.gw.callCount())
		})
	}
}

func TestCreatePayment_DefaultSchool(t *testing.T) {
	f := newFixture(t)
	f.payments.defaultSchoolID = "DEFAULT"
	req := validRequest()
	req.SchoolID = ""

	res, err := f.payments.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "DEFAULT", res.Order.SchoolID)
}

func TestCreatePayment_CallerSeededFields(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Status = models.StatusSuccess
	req.TransactionAmount = 480
	req.PaymentMode = "upi"
	req.PaymentTime = "2024-05-01T10:00:00Z"

	res, err := f.payments.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, res.Status.Status)
	assert.Equal(t, 480.0, res.Status.TransactionAmount)
	assert.Equal(t, "upi", res.Status.PaymentMode)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), res.Status.PaymentTime)
}

func TestCreatePayment_DoesNotOverwriteEarlierWebhook(t *testing.T) {
	f := newFixture(t)
	// The callback lands while the gateway call is still in flight.
	f.gw.onCall = func(orderID string) {
		id, err := primitive.ObjectIDFromHex(orderID)
		require.NoError(t, err)
		require.NoError(t, f.store.UpsertStatus(context.Background(), &models.OrderStatus{
			CollectID: id, Status: models.StatusSuccess, TransactionAmount: 500,
		}))
	}

	res, err := f.payments.CreatePayment(context.Background(), validRequest())
	require.NoError(t, err)

	st, err := f.store.FindStatusByOrderID(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, st.Status)
	assert.Len(t, f.store.Statuses(), 1)
}

func TestCreatePayment_LedgerWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.store.InsertStatusErr = errors.New("disk full")

	_, err := f.payments.CreatePayment(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrInternal)
}

func TestCreatePayment_CancelledClientStillWritesLedger(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.gw.onCall = func(string) { cancel() }

	_, err := f.payments.CreatePayment(ctx, validRequest())
	require.NoError(t, err)
	assert.Len(t, f.store.Statuses(), 1)
}

func TestCreateOrder_GeneratedIDsAreUnique(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.payments.now = func() time.Time { return fixed }

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		o, err := f.payments.CreateOrder(context.Background(), validRequest().OrderInput)
		require.NoError(t, err)
		assert.False(t, seen[o.CustomOrderID], "duplicate id %s", o.CustomOrderID)
		seen[o.CustomOrderID] = true
	}
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.GetStatus(ctx, "nope")
	require.ErrorIs(t, err, ErrOrderNotFound)

	in := validRequest().OrderInput
	in.CustomOrderID = "ORD-NO-LEDGER"
	_, err = f.payments.CreateOrder(ctx, in)
	require.NoError(t, err)
	status, err := f.payments.GetStatus(ctx, "ORD-NO-LEDGER")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)

	f.gw.err = &gateway.Error{StatusCode: 500, Body: "boom"}
	req := validRequest()
	req.CustomOrderID = "ORD-FAILED"
	_, err = f.payments.CreatePayment(ctx, req)
	require.Error(t, err)
	status, err = f.payments.GetStatus(ctx, "ORD-FAILED")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, status)
}

func seedTransactions(t *testing.T, f *fixture, n int) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		req := validRequest()
		req.SchoolID = fmt.Sprintf("S%d", i%3)
		req.CustomOrderID = fmt.Sprintf("ORD-%03d", i)
		req.OrderAmount = float64(100 + i)
		// Repeated timestamps exercise the tie-break.
		req.PaymentTime = base.Add(time.Duration(i/2) * time.Hour).Format(time.RFC3339)
		if i%4 == 0 {
			req.Status = models.StatusSuccess
		}
		_, err := f.payments.CreatePayment(ctx, req)
		require.NoError(t, err)
	}
}

func TestListTransactions_PagesConcatenateToFullSet(t *testing.T) {
	f := newFixture(t)
	seedTransactions(t, f, 23)
	ctx := context.Background()

	full, err := f.payments.ListTransactions(ctx, ListParams{Limit: MaxLimit})
	require.NoError(t, err)
	require.Len(t, full.Data, 23)
	assert.EqualValues(t, 23, full.Pagination.TotalItems)

	var paged []models.Transaction
	for page := 1; ; page++ {
		res, err := f.payments.ListTransactions(ctx, ListParams{Page: page, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, 5, res.Pagination.TotalPages)
		assert.EqualValues(t, 23, res.Pagination.TotalItems)
		if len(res.Data) == 0 {
			break
		}
		paged = append(paged, res.Data...)
	}
	assert.Equal(t, full.Data, paged)

	for i := 1; i < len(full.Data); i++ {
		assert.False(t, full.Data[i].PaymentTime.After(*full.Data[i-1].PaymentTime), "default sort is payment_time desc")
	}
}

func TestListTransactions_Filters(t *testing.T) {
	f := newFixture(t)
	seedTransactions(t, f, 12)
	ctx := context.Background()

	res, err := f.payments.ListTransactions(ctx, ListParams{Statuses: []string{models.StatusSuccess}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Pagination.TotalItems)
	for _, tx := range res.Data {
		assert.Equal(t, models.StatusSuccess, tx.Status)
	}

	res, err = f.payments.ListTransactions(ctx, ListParams{SchoolIDs: []string{"S1", " S2 "}})
	require.NoError(t, err)
	assert.EqualValues(t, 8, res.Pagination.TotalItems)

	res, err = f.payments.ListTransactions(ctx, ListParams{CustomOrderID: "ORD-007"})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 107.0, res.Data[0].OrderAmount)

	res, err = f.payments.ListTransactions(ctx, ListParams{Sort: "order_amount", Order: "asc", Limit: 3})
	require.NoError(t, err)
	require.Len(t, res.Data, 3)
	assert.Equal(t, []float64{100, 101, 102}, []float64{res.Data[0].OrderAmount, res.Data[1].OrderAmount, res.Data[2].OrderAmount})
}

func TestListTransactions_OrderWithoutLedgerDefaults(t *testing.T) {
	f := newFixture(t)
	_, err := f.payments.CreateOrder(context.Background(), validRequest().OrderInput)
	require.NoError(t, err)

	res, err := f.payments.ListTransactions(context.Background(), ListParams{Statuses: []string{"pending"}})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	tx := res.Data[0]
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Zero(t, tx.OrderAmount)
	assert.Zero(t, tx.TransactionAmount)
	assert.Nil(t, tx.PaymentTime)
}

func TestListTransactions_Empty(t *testing.T) {
	f := newFixture(t)
	res, err := f.payments.ListTransactions(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Equal(t, Pagination{CurrentPage: 1, TotalPages: 0, TotalItems: 0, Limit: DefaultLimit}, res.Pagination)
}

func TestListTransactions_BadParams(t *testing.T) {
	f := newFixture(t)
	for _, p := range []ListParams{
		{Page: -1},
		{Limit: MaxLimit + 1},
		{Limit: -5},
		{Sort: "password"},
		{Order: "sideways"},
	} {
		_, err := f.payments.ListTransactions(context.Background(), p)
		assert.ErrorIs(t, err, ErrValidation, "%+v", p)
	}
}

func TestListTransactions_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.ListErr = errors.New("connection reset")
	_, err := f.payments.ListTransactions(context.Background(), ListParams{})
	require.ErrorIs(t, err, ErrInternal)
}

func TestListSchoolTransactions(t *testing.T) {
	f := newFixture(t)
	seedTransactions(t, f, 9)

	res, err := f.payments.ListSchoolTransactions(context.Background(), "S0", ListParams{SchoolIDs: []string{"S1"}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Pagination.TotalItems)
	for _, tx := range res.Data {
		assert.Equal(t, "S0", tx.SchoolID)
	}

	_, err = f.payments.ListSchoolTransactions(context.Background(), " ", ListParams{})
	require.ErrorIs(t, err, ErrValidation)
}
