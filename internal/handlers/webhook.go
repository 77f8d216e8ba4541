package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/services"
)

type WebhookHandler struct {
	log     *slog.Logger
	service *services.WebhookService
}

func NewWebhookHandler(log *slog.Logger, service *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{log: log, service: service}
}

// Webhook hands the raw body to the service so that malformed callbacks are
// audited as well.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn("failed to read webhook body", "err", err)
		reason := "Failed to read payload: " + err.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reason = fmt.Sprintf("Payload exceeds %d bytes", tooLarge.Limit)
		}
		writeServiceError(w, h.log, h.service.RecordRejected(r.Context(), body, reason))
		return
	}

	if err := h.service.ProcessWebhook(r.Context(), body); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook processed"})
}
