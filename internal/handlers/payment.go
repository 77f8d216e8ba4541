package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/services"
)

type PaymentHandler struct {
	log     *slog.Logger
	service *services.PaymentService
}

func NewPaymentHandler(log *slog.Logger, service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{log: log, service: service}
}

type createPaymentResponse struct {
	PaymentURL    string `json:"payment_url"`
	CollectID     string `json:"collect_id"`
	CustomOrderID string `json:"custom_order_id"`
}

func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req services.CreatePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.CreatePayment(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, createPaymentResponse{
		PaymentURL:    res.PaymentURL,
		CollectID:     res.Order.ID.Hex(),
		CustomOrderID: res.Order.CustomOrderID,
	})
}

func (h *PaymentHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.ListTransactions(r.Context(), params)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PaymentHandler) GetSchoolTransactions(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.ListSchoolTransactions(r.Context(), mux.Vars(r)["schoolId"], params)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PaymentHandler) GetTransactionStatus(w http.ResponseWriter, r *http.Request) {
	customOrderID := strings.TrimSpace(mux.Vars(r)["custom_order_id"])
	if customOrderID == "" {
		writeError(w, http.StatusBadRequest, "custom_order_id is required")
		return
	}

	status, err := h.service.GetStatus(r.Context(), customOrderID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

type paramError string

func (e paramError) Error() string { return string(e) }

func parseListParams(r *http.Request) (services.ListParams, error) {
	q := r.URL.Query()
	p := services.ListParams{
		Sort:          q.Get("sort"),
		Order:         q.Get("order"),
		CustomOrderID: q.Get("custom_order_id"),
		Statuses:      splitList(q["status"]),
		SchoolIDs:     splitList(q["school_id"]),
	}

	var err error
	if p.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return p, err
	}
	if p.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return p, err
	}
	return p, nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, paramError(name + " must be a number")
	}
	return n, nil
}

// splitList accepts both repeated keys and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
