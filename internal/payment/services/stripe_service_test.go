package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-reviews/internal/config"
	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
)

const testWebhookSecret = "whsec_test_secret"

func newTestService(t *testing.T, apiURL string) *StripeService {
	t.Helper()
	cfg := config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Currency:      "usd",
		ReturnURL:     "https://reviews.example.com/return",
	}

	var backends *stripe.Backends
	if apiURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(apiURL),
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		})
		backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	s, err := NewStripeServiceWithBackends(cfg, backends, logger.NewNopLogger())
	require.NoError(t, err)
	return s
}

func signedEvent(t *testing.T, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_" + eventType,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func TestNewStripeService_RequiresKey(t *testing.T) {
	_, err := NewStripeService(config.StripeConfig{}, logger.NewNopLogger())
	assert.ErrorIs(t, err, ErrStripeClientInitFailed)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(9000), ToMinorUnits(90))
	assert.Equal(t, int64(1999), ToMinorUnits(19.99))
}

func TestParseEvent_CheckoutCompleted(t *testing.T) {
	s := newTestService(t, "")
	payload, sig := signedEvent(t, EventCheckoutCompleted, map[string]interface{}{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"payment_status": "paid",
		"metadata":       map[string]string{"order_id": "order-1"},
	})

	event, err := s.ParseEvent(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, "evt_"+EventCheckoutCompleted, event.ID)
	assert.Equal(t, "order-1", event.OrderID)
	assert.Equal(t, "cs_test_1", event.ObjectID)
	assert.True(t, event.Paid())
}

func TestParseEvent_UnpaidSessionIsNotPaid(t *testing.T) {
	s := newTestService(t, "")
	payload, sig := signedEvent(t, EventCheckoutCompleted, map[string]interface{}{
		"id":                  "cs_test_2",
		"object":              "checkout.session",
		"payment_status":      "unpaid",
		"client_reference_id": "order-2",
	})

	event, err := s.ParseEvent(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, "order-2", event.OrderID)
	assert.False(t, event.Paid())
}

func TestParseEvent_PaymentIntentSucceeded(t *testing.T) {
	s := newTestService(t, "")
	payload, sig := signedEvent(t, EventPaymentSucceeded, map[string]interface{}{
		"id":       "pi_1",
		"object":   "payment_intent",
		"status":   "succeeded",
		"metadata": map[string]string{"order_id": "order-3"},
	})

	event, err := s.ParseEvent(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, "order-3", event.OrderID)
	assert.True(t, event.Paid())
}

func TestParseEvent_BadSignature(t *testing.T) {
	s := newTestService(t, "")
	payload, _ := signedEvent(t, EventCheckoutCompleted, map[string]interface{}{"id": "cs"})

	_, err := s.ParseEvent(payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.ParseEvent(payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseEvent_UnhandledTypeHasNoOrder(t *testing.T) {
	s := newTestService(t, "")
	payload, sig := signedEvent(t, "customer.created", map[string]interface{}{"id": "cus_1", "object": "customer"})

	event, err := s.ParseEvent(payload, sig)
	require.NoError(t, err)
	assert.Empty(t, event.OrderID)
}

func TestCreateSession_SendsAmountAndMetadata(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_9","object":"checkout.session","client_secret":"cs_test_9_secret","payment_status":"unpaid","metadata":{"order_id":"order-9"}}`)
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	sess, err := s.CreateSession(context.Background(), CheckoutSessionParams{
		OrderID: "order-9", ReviewerID: "rev-1", PackageID: "pkg-1", ProductName: "Standard review", Amount: 90,
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_9", sess.ID)
	assert.Equal(t, "cs_test_9_secret", sess.ClientSecret)
	assert.False(t, sess.Paid())

	assert.Equal(t, "embedded", first(form["ui_mode"]))
	assert.Equal(t, "9000", first(form["line_items[0][price_data][unit_amount]"]))
	assert.Equal(t, "usd", first(form["line_items[0][price_data][currency]"]))
	assert.Equal(t, "order-9", first(form["metadata[order_id]"]))
	assert.Equal(t, "order-9", first(form["payment_intent_data[metadata][order_id]"]))
	assert.Equal(t, "rev-1", first(form["metadata[reviewer_id]"]))
}

func TestRetrieveSession_ProviderErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"type":"api_error","message":"unavailable"}}`)
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	_, err := s.RetrieveSession(context.Background(), "cs_test_1")
	require.Error(t, err)

	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Retryable)
	assert.ErrorIs(t, err, models.ErrProvider)
}

func TestRetrieveSession_NotFoundIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`)
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	_, err := s.RetrieveSession(context.Background(), "cs_missing")

	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.False(t, perr.Retryable)
}

func TestRetrieveSession_Paid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","metadata":{"order_id":"order-1"}}`)
	}))
	defer srv.Close()

	sess, err := newTestService(t, srv.URL).RetrieveSession(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.True(t, sess.Paid())
	assert.Equal(t, "order-1", sess.OrderID)
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
