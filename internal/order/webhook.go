package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-reviews/internal/models"
	"ms-reviews/internal/payment/services"
)

// Error categories for webhook processing.
const (
	ErrorCategoryValidation    = "validation"
	ErrorCategoryNotFound      = "not_found"
	ErrorCategoryConfiguration = "configuration"
	ErrorCategoryProcessing    = "processing"
)

// WebhookError carries what to log and what to answer Stripe with.
type WebhookError struct {
	Category      string
	StatusCode    int
	PublicError   string
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

func newWebhookError(category string, status int, public string, err error) *WebhookError {
	internal := public
	if err != nil {
		internal = fmt.Sprintf("%s: %v", public, err)
	}
	return &WebhookError{
		Category:      category,
		StatusCode:    status,
		PublicError:   public,
		InternalError: internal,
		OriginalErr:   err,
	}
}

// HandleWebhook verifies and applies a Stripe event. A nil return means
// Stripe should get 200, including for events that are ignored.
func (s *OrderService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.Payments.ParseEvent(payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidSignature):
			s.Logger.LogSecurity("WEBHOOK_SIGNATURE", err.Error())
			return newWebhookError(ErrorCategoryValidation, http.StatusBadRequest, "Invalid signature", err)
		case errors.Is(err, services.ErrInvalidEventData):
			return newWebhookError(ErrorCategoryValidation, http.StatusBadRequest, "Invalid event payload", err)
		default:
			return newWebhookError(ErrorCategoryConfiguration, http.StatusInternalServerError, "Webhook not configured", err)
		}
	}

	switch event.Type {
	case services.EventCheckoutCompleted, services.EventAsyncPaymentSucceeded, services.EventPaymentSucceeded:
	default:
		s.Logger.Debug("WEBHOOK", fmt.Sprintf("Ignoring event %s of type %s", event.ID, event.Type))
		return nil
	}

	if event.OrderID == "" {
		return newWebhookError(ErrorCategoryValidation, http.StatusBadRequest, "Missing order_id in metadata", nil)
	}
	if !event.Paid() {
		s.Logger.Info("WEBHOOK", fmt.Sprintf("Event %s for order %s not paid yet (payment_status=%s)", event.ID, event.OrderID, event.PaymentStatus))
		return nil
	}

	if s.Redis != nil && event.ID != "" {
		seen, err := s.Redis.EventProcessed(ctx, event.ID)
		if err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Dedupe check failed for event %s: %v", event.ID, err))
		} else if seen {
			s.Logger.Debug("WEBHOOK", fmt.Sprintf("Event %s already processed", event.ID))
			return nil
		}
	}

	result, err := s.ConfirmPayment(ctx, event.OrderID, models.SourceWebhook)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return newWebhookError(ErrorCategoryNotFound, http.StatusNotFound, "Order not found", err)
		}
		return newWebhookError(ErrorCategoryProcessing, http.StatusInternalServerError, "Failed to confirm payment", err)
	}

	if s.Redis != nil && event.ID != "" {
		if err := s.Redis.MarkEventProcessed(ctx, event.ID, s.settings.EventTTL); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Failed to mark event %s processed: %v", event.ID, err))
		}
	}

	s.Logger.Info("WEBHOOK", fmt.Sprintf("Event %s (%s) for order %s: %s", event.ID, event.Type, event.OrderID, result.Outcome))
	return nil
}
