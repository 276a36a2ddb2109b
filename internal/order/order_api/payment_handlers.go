package order_api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-reviews/internal/order"
)

// Stripe caps event payloads well below this.
const maxWebhookBytes = 65536

// StripeWebhook handles webhook events from Stripe
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("StripeWebhook: failed to read body: %v", err))
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	err = h.OrderService.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var webhookErr *order.WebhookError
		if errors.As(err, &webhookErr) {
			h.Logger.Error("WEBHOOK", fmt.Sprintf("StripeWebhook: category=%s status=%d: %s",
				webhookErr.Category, webhookErr.StatusCode, webhookErr.InternalError))
			http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
			return
		}

		h.Logger.Error("WEBHOOK", fmt.Sprintf("StripeWebhook: failed to process webhook: %v", err))
		http.Error(w, "Webhook processing error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
