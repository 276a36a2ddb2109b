package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-reviews/internal/config"
	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
)

var (
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrInvalidSignature       = errors.New("webhook signature verification failed")
	ErrInvalidEventData       = errors.New("invalid webhook event data")
)

// Stripe event types the reconciler acts on.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventPaymentSucceeded      = "payment_intent.succeeded"
)

const paymentStatusPaid = "paid"

type CheckoutSessionParams struct {
	OrderID       string
	ReviewerID    string
	PackageID     string
	ProductName   string
	Amount        float64
	CustomerEmail string
}

type CheckoutSession struct {
	ID            string
	ClientSecret  string
	PaymentStatus string
	OrderID       string
}

func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == paymentStatusPaid
}

// Event is a verified webhook event reduced to what order reconciliation needs.
type Event struct {
	ID            string
	Type          string
	ObjectID      string
	OrderID       string
	PaymentStatus string
}

// Paid reports whether the event proves the money moved. Payment intent
// success events carry no payment_status and always count as paid.
func (e *Event) Paid() bool {
	if e.Type == EventPaymentSucceeded {
		return true
	}
	return e.PaymentStatus == paymentStatusPaid
}

// StripeService handles integration with Stripe Checkout.
type StripeService struct {
	client        *client.API
	webhookSecret string
	currency      string
	returnURL     string
	log           *logger.Logger
}

// NewStripeService builds a client against the live Stripe API.
func NewStripeService(cfg config.StripeConfig, log *logger.Logger) (*StripeService, error) {
	return NewStripeServiceWithBackends(cfg, nil, log)
}

// NewStripeServiceWithBackends lets tests point the client at a fake API.
func NewStripeServiceWithBackends(cfg config.StripeConfig, backends *stripe.Backends, log *logger.Logger) (*StripeService, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(cfg.SecretKey, backends)
	if sc == nil {
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized")
	return &StripeService{
		client:        sc,
		webhookSecret: cfg.WebhookSecret,
		currency:      cfg.Currency,
		returnURL:     cfg.ReturnURL,
		log:           log,
	}, nil
}

// ToMinorUnits converts a decimal amount to cents.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateSession opens an embedded Checkout Session for one order.
func (s *StripeService) CreateSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	metadata := map[string]string{
		"order_id":    p.OrderID,
		"reviewer_id": p.ReviewerID,
		"package_id":  p.PackageID,
	}

	params := &stripe.CheckoutSessionParams{
		UIMode:            stripe.String("embedded"),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ReturnURL:         stripe.String(s.returnURL),
		ClientReferenceID: stripe.String(p.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.ProductName),
					},
					UnitAmount: stripe.Int64(ToMinorUnits(p.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.Context = ctx

	sess, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for order %s: %v", p.OrderID, err))
		return nil, providerError("create session", err)
	}

	s.log.Info("STRIPE", fmt.Sprintf("Created checkout session %s for order %s (%.2f %s)", sess.ID, p.OrderID, p.Amount, s.currency))
	return &CheckoutSession{
		ID:            sess.ID,
		ClientSecret:  sess.ClientSecret,
		PaymentStatus: string(sess.PaymentStatus),
		OrderID:       sess.Metadata["order_id"],
	}, nil
}

// RetrieveSession fetches the provider's current view of a session.
func (s *StripeService) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.client.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve checkout session %s: %v", sessionID, err))
		return nil, providerError("retrieve session", err)
	}

	return &CheckoutSession{
		ID:            sess.ID,
		ClientSecret:  sess.ClientSecret,
		PaymentStatus: string(sess.PaymentStatus),
		OrderID:       sess.Metadata["order_id"],
	}, nil
}

// ParseEvent verifies the signature and extracts the order reference.
// Unhandled event types come back with an empty OrderID.
func (s *StripeService) ParseEvent(payload []byte, signature string) (*Event, error) {
	if s.webhookSecret == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}

	switch out.Type {
	case EventCheckoutCompleted, EventAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEventData, err)
		}
		out.ObjectID = sess.ID
		out.PaymentStatus = string(sess.PaymentStatus)
		out.OrderID = sess.Metadata["order_id"]
		if out.OrderID == "" {
			out.OrderID = sess.ClientReferenceID
		}

	case EventPaymentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEventData, err)
		}
		out.ObjectID = intent.ID
		out.PaymentStatus = string(intent.Status)
		out.OrderID = intent.Metadata["order_id"]
	}

	return out, nil
}

// providerError marks network failures, rate limits and 5xx as retryable.
func providerError(op string, err error) error {
	retryable := true
	var se *stripe.Error
	if errors.As(err, &se) {
		retryable = se.HTTPStatusCode == 0 ||
			se.HTTPStatusCode == http.StatusTooManyRequests ||
			se.HTTPStatusCode >= http.StatusInternalServerError
	}
	return &models.ProviderError{Op: op, Retryable: retryable, Err: err}
}
