package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
	"ms-reviews/internal/notification"
	"ms-reviews/internal/order/discount"
	"ms-reviews/internal/payment/services"
	"ms-reviews/internal/validation"
)

type DBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order, usage *models.PromoCodeUsage) error
	SetStripeSession(ctx context.Context, orderID, sessionID string) error
	TransitionStatus(ctx context.Context, orderID string, from, to models.OrderStatus, at time.Time) (bool, error)
	CompleteOrderWithReview(ctx context.Context, review *models.Review, at time.Time) (bool, error)
	GetReviewByOrderID(ctx context.Context, orderID string) (*models.Review, error)
	GetReviewer(ctx context.Context, id string) (*models.Reviewer, error)
	GetPackage(ctx context.Context, reviewerID, packageID string) (*models.ReviewerPackage, error)
}

// PaymentGateway is the slice of Stripe the order flow uses.
type PaymentGateway interface {
	CreateSession(ctx context.Context, p services.CheckoutSessionParams) (*services.CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*services.CheckoutSession, error)
	ParseEvent(payload []byte, signature string) (*services.Event, error)
}

type RedisLock interface {
	LockOrder(ctx context.Context, orderID string, ttl time.Duration) (string, error)
	UnlockOrder(ctx context.Context, orderID, token string) error
	EventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}

type KafkaPublisher interface {
	PublishJSON(ctx context.Context, topic, key string, v interface{}) error
}

// StatusEmitter fans status changes out to live subscribers on this instance.
type StatusEmitter interface {
	Emit(event models.OrderStatusEvent)
}

type Settings struct {
	InstanceID      string
	PlatformFeeRate float64
	StatusTopic     string
	LockTTL         time.Duration
	LockWait        time.Duration
	EventTTL        time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		InstanceID:      uuid.NewString(),
		PlatformFeeRate: 0.10,
		StatusTopic:     "reviews.order-status",
		LockTTL:         30 * time.Second,
		LockWait:        5 * time.Second,
		EventTTL:        72 * time.Hour,
	}
}

// Deps are the collaborators of OrderService. Redis, Kafka and Emitter may be nil.
type Deps struct {
	DB       DBLayer
	Payments PaymentGateway
	Promos   *discount.DiscountService
	Redis    RedisLock
	Kafka    KafkaPublisher
	Emitter  StatusEmitter
	Notifier notification.Dispatcher
	Logger   *logger.Logger
}

type OrderService struct {
	DB       DBLayer
	Payments PaymentGateway
	Promos   *discount.DiscountService
	Redis    RedisLock
	Kafka    KafkaPublisher
	Emitter  StatusEmitter
	Notifier notification.Dispatcher
	Logger   *logger.Logger

	settings Settings
	validate *validatorv10.Validate
	now      func() time.Time
}

func NewOrderService(d Deps, settings Settings) *OrderService {
	if d.Logger == nil {
		d.Logger = logger.NewNopLogger()
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLogDispatcher(d.Logger)
	}
	if d.Promos == nil {
		if store, ok := d.DB.(discount.PromoStore); ok {
			d.Promos = discount.NewDiscountService(store, d.Logger)
		}
	}
	return &OrderService{
		DB:       d.DB,
		Payments: d.Payments,
		Promos:   d.Promos,
		Redis:    d.Redis,
		Kafka:    d.Kafka,
		Emitter:  d.Emitter,
		Notifier: d.Notifier,
		Logger:   d.Logger,
		settings: settings,
		validate: validation.New(),
		now:      time.Now,
	}
}

// InstanceID identifies status events published by this process.
func (s *OrderService) InstanceID() string {
	return s.settings.InstanceID
}

// ---------------- ORDERS ----------------

// authorize allows admins, the buying artist and the reviewer's user.
func (s *OrderService) authorize(ctx context.Context, order *models.Order, caller models.Caller) error {
	if caller.UserID == "" {
		return models.ErrUnauthorized
	}
	if caller.Admin {
		return nil
	}
	if s.isParticipant(ctx, order, caller.UserID) {
		return nil
	}
	return models.ErrNotOwner
}

func (s *OrderService) isParticipant(ctx context.Context, order *models.Order, userID string) bool {
	if order.ArtistID != "" && order.ArtistID == userID {
		return true
	}
	reviewer, err := s.DB.GetReviewer(ctx, order.ReviewerID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.Logger.Warn("ORDER", fmt.Sprintf("Reviewer lookup failed for order %s: %v", order.ID, err))
		}
		return false
	}
	return order.IsParticipant(userID, reviewer.UserID)
}

// GetOrder returns an order visible to caller.
func (s *OrderService) GetOrder(ctx context.Context, orderID string, caller models.Caller) (*models.Order, error) {
	if caller.UserID == "" {
		return nil, models.ErrUnauthorized
	}
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, order, caller); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetOrderStatus(ctx context.Context, orderID string, caller models.Caller) (*models.OrderStatusResponse, error) {
	order, err := s.GetOrder(ctx, orderID, caller)
	if err != nil {
		return nil, err
	}
	return &models.OrderStatusResponse{OrderID: order.ID, Status: order.Status}, nil
}

// StartCheckout creates a pending order for a reviewer package and opens an
// embedded Stripe Checkout session for it.
func (s *OrderService) StartCheckout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if err := validation.Check(s.validate, req); err != nil {
		return nil, err
	}

	reviewer, err := s.DB.GetReviewer(ctx, req.ReviewerID)
	if err != nil {
		return nil, err
	}
	if !reviewer.IsActive {
		return nil, models.ErrReviewerNotFound
	}
	pkg, err := s.DB.GetPackage(ctx, reviewer.ID, req.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, models.ErrPackageNotFound
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:                  uuid.NewString(),
		ArtistID:            req.ArtistID,
		ReviewerID:          reviewer.ID,
		PackageID:           pkg.ID,
		TrackURL:            req.TrackURL,
		TrackTitle:          req.TrackTitle,
		Note:                req.Note,
		Status:              models.OrderStatusPending,
		RequiredReviewTypes: pkg.RequiredReviewTypes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if order.ArtistID == "" {
		order.GuestEmail = req.GuestEmail
	}
	if len(order.RequiredReviewTypes) == 0 {
		order.RequiredReviewTypes = []models.ReviewType{models.ReviewTypeScorecard}
	}

	usage, err := s.priceOrder(ctx, order, pkg.Price, req.PromoCode)
	if err != nil {
		return nil, err
	}

	err = s.DB.CreateOrder(ctx, order, usage)
	if usage != nil && errors.Is(err, models.ErrPromoMaxUsesReached) {
		s.Logger.Warn("PROMO", fmt.Sprintf("Promo %s ran out before order %s was stored, charging full price", order.PromoCode, order.ID))
		s.setPrice(order, pkg.Price, 0, "")
		err = s.DB.CreateOrder(ctx, order, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	sess, err := s.Payments.CreateSession(ctx, services.CheckoutSessionParams{
		OrderID:       order.ID,
		ReviewerID:    reviewer.ID,
		PackageID:     pkg.ID,
		ProductName:   fmt.Sprintf("%s review by %s", pkg.Name, reviewer.DisplayName),
		Amount:        order.PriceTotal,
		CustomerEmail: order.GuestEmail,
	})
	if err != nil {
		s.Logger.Error("STRIPE", fmt.Sprintf("Checkout session failed for order %s: %v", order.ID, err))
		return nil, err
	}

	if err := s.DB.SetStripeSession(ctx, order.ID, sess.ID); err != nil {
		return nil, fmt.Errorf("store checkout session: %w", err)
	}

	s.Logger.LogOrder("CREATED", order.ID, fmt.Sprintf("package=%s price=%.2f discount=%.2f", pkg.ID, order.PriceTotal, order.DiscountAmount))
	return &models.CheckoutResponse{
		OrderID:      order.ID,
		ClientSecret: sess.ClientSecret,
		PriceTotal:   order.PriceTotal,
		Discount:     order.DiscountAmount,
	}, nil
}

// priceOrder fills in price, fee and discount. A code that does not apply
// leaves the order at full price.
func (s *OrderService) priceOrder(ctx context.Context, order *models.Order, original float64, code string) (*models.PromoCodeUsage, error) {
	s.setPrice(order, original, 0, "")
	if discount.NormalizeCode(code) == "" || s.Promos == nil {
		return nil, nil
	}

	quote, err := s.Promos.Quote(ctx, code, original)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvalid), errors.Is(err, models.ErrConflict):
		s.Logger.Warn("PROMO", fmt.Sprintf("Promo %q not applied to order %s: %v", code, order.ID, err))
		return nil, nil
	default:
		return nil, fmt.Errorf("quote promo: %w", err)
	}

	s.setPrice(order, quote.DiscountedPrice, quote.DiscountAmount, quote.Code)
	return s.Promos.Usage(quote, order.ID, order.ArtistID), nil
}

func (s *OrderService) setPrice(order *models.Order, price, discountAmount float64, code string) {
	order.PriceTotal = models.RoundCents(price)
	order.PlatformFee = models.PlatformFeeFor(order.PriceTotal, s.settings.PlatformFeeRate)
	order.DiscountAmount = discountAmount
	order.PromoCode = code
}

// ---------------- EVENTS ----------------

// publishStatus emits locally and publishes to Kafka for other instances.
func (s *OrderService) publishStatus(ctx context.Context, order *models.Order, source models.ConfirmSource) {
	event := models.OrderStatusEvent{
		OrderID:    order.ID,
		Status:     order.Status,
		Source:     source,
		ArtistID:   order.ArtistID,
		ReviewerID: order.ReviewerID,
		OccurredAt: s.now().UTC(),
		Origin:     s.settings.InstanceID,
	}

	if s.Emitter != nil {
		s.Emitter.Emit(event)
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishJSON(ctx, s.settings.StatusTopic, order.ID, event); err != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("Status event for order %s not published: %v", order.ID, err))
		}
	}
}

func (s *OrderService) notify(ctx context.Context, n models.Notification) {
	if err := s.Notifier.Send(ctx, n); err != nil {
		s.Logger.Warn("NOTIFY", fmt.Sprintf("Notification %q to %s failed: %v", n.Type, n.UserID, err))
	}
}
