package order

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reviews/internal/models"
	"ms-reviews/internal/order/db/dbtest"
)

func requireWebhookError(t *testing.T, err error, status int) *WebhookError {
	t.Helper()
	var werr *WebhookError
	require.True(t, errors.As(err, &werr), "expected *WebhookError, got %v", err)
	assert.Equal(t, status, werr.StatusCode)
	return werr
}

func TestHandleWebhook_ConfirmsPaidEvents(t *testing.T) {
	cases := []struct {
		name      string
		eventType string
		object    func(order *models.Order) map[string]interface{}
	}{
		{
			name:      "checkout completed",
			eventType: "checkout.session.completed",
			object: func(o *models.Order) map[string]interface{} {
				return checkoutCompleted(o.StripeSessionID, o.ID, "paid")
			},
		},
		{
			name:      "async payment succeeded",
			eventType: "checkout.session.async_payment_succeeded",
			object: func(o *models.Order) map[string]interface{} {
				return checkoutCompleted(o.StripeSessionID, o.ID, "paid")
			},
		},
		{
			name:      "payment intent succeeded",
			eventType: "payment_intent.succeeded",
			object: func(o *models.Order) map[string]interface{} {
				return map[string]interface{}{
					"id":       "pi_test_1",
					"object":   "payment_intent",
					"status":   "succeeded",
					"metadata": map[string]string{"order_id": o.ID},
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			reviewer, pkg := dbtest.SeedCatalog(t, env.store, 40)
			order := dbtest.SeedOrder(t, env.store, reviewer, pkg, "artist-1", models.OrderStatusPending)

			payload, sig := signedEvent(t, "evt_1", tc.eventType, tc.object(order))
			require.NoError(t, env.svc.HandleWebhook(context.Background(), payload, sig))

			stored, err := env.store.GetOrderByID(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusPaid, stored.Status)
			assert.True(t, env.mr.Exists("webhook_event:evt_1"))
		})
	}
}

func TestHandleWebhook_ReplayIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	reviewer, pkg := dbtest.SeedCatalog(t, env.store, 40)
	order := dbtest.SeedOrder(t, env.store, reviewer, pkg, "artist-1", models.OrderStatusPending)
	ctx := context.Background()

	payload, sig := signedEvent(t, "evt_replay", "checkout.session.completed", checkoutCompleted(order.StripeSessionID, order.ID, "paid"))
	require.NoError(t, env.svc.HandleWebhook(ctx, payload, sig))
	require.NoError(t, env.svc.HandleWebhook(ctx, payload, sig))

	// A distinct event for the same order is also harmless.
	payload, sig = signedEvent(t, "evt_other", "payment_intent.succeeded", map[string]interface{}{
		"id": "pi_1", "object": "payment_intent", "status": "succeeded",
		"metadata": map[string]string{"order_id": order.ID},
	})
	require.NoError(t, env.svc.HandleWebhook(ctx, payload, sig))

	assert.Len(t, env.emitter.all(), 1)
	assert.Len(t, env.notifier.all(), 1)
}

func TestHandleWebhook_AfterManualVerify(t *testing.T) {
	env := newTestEnv(t)
	reviewer, pkg := dbtest.SeedCatalog(t, env.store, 40)
	order := dbtest.SeedOrder(t, env.store, reviewer, pkg, "artist-1", models.OrderStatusPending)
	env.gateway.setSession(order.StripeSessionID, "paid")
	ctx := context.Background()

	res, err := env.svc.VerifyPayment(ctx, order.ID, models.Caller{UserID: "artist-1"})
	require.NoError(t, err)
	require.Equal(t, models.OutcomeConfirmed, res.Outcome)

	payload, sig := signedEvent(t, "evt_late", "checkout.session.completed", checkoutCompleted(order.StripeSessionID, order.ID, "paid"))
	require.NoError(t, env.svc.HandleWebhook(ctx, payload, sig))
	assert.Len(t, env.notifier.all(), 1)
}

func TestHandleWebhook_UnpaidSessionIgnored(t *testing.T) {
	env := newTestEnv(t)
	reviewer, pkg := dbtest.SeedCatalog(t, env.store, 40)
	order := dbtest.SeedOrder(t, env.store, reviewer, pkg, "artist-1", models.OrderStatusPending)

	payload, sig := signedEvent(t, "evt_unpaid", "checkout.session.completed", checkoutCompleted(order.StripeSessionID, order.ID, "unpaid"))
	require.NoError(t, env.svc.HandleWebhook(context.Background(), payload, sig))

	stored, err := env.store.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.False(t, env.mr.Exists("webhook_event:evt_unpaid"))
}

func TestHandleWebhook_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("bad signature", func(t *testing.T) {
		payload, _ := signedEvent(t, "evt_sig", "checkout.session.completed", checkoutCompleted("cs_1", "order-1", "paid"))
		err := env.svc.HandleWebhook(ctx, payload, "t=1,v1=deadbeef")
		werr := requireWebhookError(t, err, http.StatusBadRequest)
		assert.Equal(t, ErrorCategoryValidation, werr.Category)
	})

	t.Run("missing order id", func(t *testing.T) {
		payload, sig := signedEvent(t, "evt_noorder", "checkout.session.completed", map[string]interface{}{
			"id": "cs_1", "object": "checkout.session", "payment_status": "paid",
		})
		requireWebhookError(t, env.svc.HandleWebhook(ctx, payload, sig), http.StatusBadRequest)
	})

	t.Run("unknown order", func(t *testing.T) {
		payload, sig := signedEvent(t, "evt_unknown", "checkout.session.completed", checkoutCompleted("cs_1", "missing-order", "paid"))
		werr := requireWebhookError(t, env.svc.HandleWebhook(ctx, payload, sig), http.StatusNotFound)
		assert.ErrorIs(t, werr, models.ErrNotFound)
		assert.False(t, env.mr.Exists("webhook_event:evt_unknown"))
	})

	t.Run("unhandled type", func(t *testing.T) {
		payload, sig := signedEvent(t, "evt_cust", "customer.created", map[string]interface{}{"id": "cus_1", "object": "customer"})
		assert.NoError(t, env.svc.HandleWebhook(ctx, payload, sig))
	})
}
