package order

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-reviews/internal/config"
	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
	"ms-reviews/internal/order/db"
	"ms-reviews/internal/order/db/dbtest"
	orderredis "ms-reviews/internal/order/redis"
	"ms-reviews/internal/payment/services"
)

const testWebhookSecret = "whsec_order_test"

// fakeGateway stands in for Stripe's API while verifying webhooks with the real parser.
type fakeGateway struct {
	mu          sync.Mutex
	parser      *services.StripeService
	sessions    map[string]*services.CheckoutSession
	created     []services.CheckoutSessionParams
	createErr   error
	retrieveErr error
	retrieves   int
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	parser, err := services.NewStripeServiceWithBackends(config.StripeConfig{
		SecretKey:     "sk_test_order",
		WebhookSecret: testWebhookSecret,
		Currency:      "usd",
	}, nil, logger.NewNopLogger())
	require.NoError(t, err)
	return &fakeGateway{parser: parser, sessions: map[string]*services.CheckoutSession{}}
}

func (g *fakeGateway) CreateSession(_ context.Context, p services.CheckoutSessionParams) (*services.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, p)
	if g.createErr != nil {
		return nil, g.createErr
	}
	sess := &services.CheckoutSession{
		ID:            "cs_test_" + p.OrderID,
		ClientSecret:  "cs_test_" + p.OrderID + "_secret",
		PaymentStatus: "unpaid",
		OrderID:       p.OrderID,
	}
	g.sessions[sess.ID] = sess
	copied := *sess
	return &copied, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, sessionID string) (*services.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieves++
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	sess, ok := g.sessions[sessionID]
	if !ok {
		return nil, &models.ProviderError{Op: "retrieve checkout session", Err: errors.New("no such checkout session")}
	}
	copied := *sess
	return &copied, nil
}

func (g *fakeGateway) ParseEvent(payload []byte, signature string) (*services.Event, error) {
	return g.parser.ParseEvent(payload, signature)
}

func (g *fakeGateway) setSession(sessionID, paymentStatus string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[sessionID] = &services.CheckoutSession{ID: sessionID, PaymentStatus: paymentStatus}
}

func (g *fakeGateway) retrieveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retrieves
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []models.OrderStatusEvent
}

func (e *recordingEmitter) Emit(event models.OrderStatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) all() []models.OrderStatusEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.OrderStatusEvent(nil), e.events...)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	sent  []models.Notification
	fails bool
}

func (d *recordingDispatcher) Send(_ context.Context, n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fails {
		return errors.New("dispatcher unavailable")
	}
	d.sent = append(d.sent, n)
	return nil
}

func (d *recordingDispatcher) all() []models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Notification(nil), d.sent...)
}

type published struct {
	topic string
	key   string
	value interface{}
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, topic, key string, v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, key: key, value: v})
	return nil
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type testEnv struct {
	svc      *OrderService
	store    *db.DB
	gateway  *fakeGateway
	emitter  *recordingEmitter
	notifier *recordingDispatcher
	kafka    *recordingPublisher
	redis    *orderredis.Redis
	mr       *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	env := &testEnv{
		store:    dbtest.New(t),
		gateway:  newFakeGateway(t),
		emitter:  &recordingEmitter{},
		notifier: &recordingDispatcher{},
		kafka:    &recordingPublisher{},
		redis:    orderredis.NewRedis(client, logger.NewNopLogger()),
		mr:       mr,
	}

	settings := DefaultSettings()
	settings.InstanceID = "instance-test"
	settings.LockWait = 300 * time.Millisecond

	env.svc = NewOrderService(Deps{
		DB:       env.store,
		Payments: env.gateway,
		Redis:    env.redis,
		Kafka:    env.kafka,
		Emitter:  env.emitter,
		Notifier: env.notifier,
		Logger:   logger.NewNopLogger(),
	}, settings)
	return env
}

func signedEvent(t *testing.T, eventID, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          eventID,
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

func checkoutCompleted(sessionID, orderID, paymentStatus string) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"object":         "checkout.session",
		"payment_status": paymentStatus,
		"metadata":       map[string]string{"order_id": orderID},
	}
}

func validSubmission() models.ReviewSubmission {
	scorecard := make([]models.ScorecardEntry, models.ScorecardLength)
	for i := range scorecard {
		scorecard[i] = models.ScorecardEntry{Metric: "metric-" + string(rune('a'+i)), Score: 7}
	}
	return models.ReviewSubmission{
		ReviewerTitle: "Great groove, muddy low end",
		Summary:       strings.Repeat("The arrangement builds well. ", 5),
		Tags:          []string{"mixing", "arrangement"},
		Scorecard:     scorecard,
		OverallRating: 4,
	}
}
