package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/gateway"
	"github.com/markjakearzadon/schoolpay-gobackend/internal/services"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// writeServiceError maps the service and gateway error taxonomy to HTTP.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		verr     *services.ValidationError
		hookErr  *services.WebhookError
		gwErr    *gateway.Error
		protoErr *gateway.ProtocolError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &hookErr) && errors.Is(hookErr.Kind, services.ErrInvalidPayload):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid payload", Error: hookErr.Reason})
	case errors.As(err, &hookErr):
		log.Error("webhook processing failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Webhook processing failed", Error: hookErr.Reason})
	case errors.Is(err, services.ErrDuplicateOrderID):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "custom_order_id already exists", Error: err.Error()})
	case errors.Is(err, services.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, services.ErrUserExists):
		writeError(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid credentials")
	case errors.As(err, &gwErr):
		status := gwErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Message: "Payment initiation failed", Details: rawOrString(gwErr.Body)})
	case errors.As(err, &protoErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Message: "Invalid gateway response: collect_request_url missing",
			Details: rawOrString(protoErr.Body),
		})
	case errors.Is(err, gateway.ErrGatewayTimeout):
		writeError(w, http.StatusGatewayTimeout, "Payment gateway timed out")
	default:
		log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Internal server error", Error: err.Error()})
	}
}

// rawOrString embeds a JSON body as-is and anything else as a string.
func rawOrString(body string) any {
	if body != "" && json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	return body
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
