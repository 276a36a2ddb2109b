package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
)

// PromoStore is the persistence the promo engine needs.
type PromoStore interface {
	GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
	RedeemPromo(ctx context.Context, usage *models.PromoCodeUsage) error
}

// DiscountService validates promo codes and prices them against an order total.
type DiscountService struct {
	store  PromoStore
	logger *logger.Logger
	now    func() time.Time
}

func NewDiscountService(store PromoStore, log *logger.Logger) *DiscountService {
	return &DiscountService{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// NormalizeCode trims and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a code exists, is active, is inside its window and has uses left.
func (s *DiscountService) Validate(ctx context.Context, code string) (*models.PromoCode, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, models.ErrPromoNotFound
	}

	promo, err := s.store.GetPromoByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}

	if !promo.IsActive {
		return nil, models.ErrPromoNotFound
	}
	if !promo.InWindow(s.now()) {
		return nil, models.ErrPromoExpired
	}
	if promo.Exhausted() {
		return nil, models.ErrPromoMaxUsesReached
	}
	return promo, nil
}

// ComputeDiscount prices a discount against original, clamped to [0, original].
func ComputeDiscount(discountType models.DiscountType, value, original float64) (discountAmount, discountedPrice float64) {
	switch discountType {
	case models.DiscountPercentage:
		discountAmount = original * value / 100
	case models.DiscountFixed:
		discountAmount = value
	}

	if discountAmount < 0 {
		discountAmount = 0
	}
	if discountAmount > original {
		discountAmount = original
	}

	discountAmount = models.RoundCents(discountAmount)
	discountedPrice = models.RoundCents(original - discountAmount)
	if discountedPrice < 0 {
		discountedPrice = 0
	}
	return discountAmount, discountedPrice
}

// Quote validates a code and prices it without recording a use.
func (s *DiscountService) Quote(ctx context.Context, code string, original float64) (*models.PromoQuote, error) {
	promo, err := s.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	amount, price := ComputeDiscount(promo.DiscountType, promo.DiscountValue, original)
	return &models.PromoQuote{
		PromoCodeID:     promo.ID,
		Code:            promo.Code,
		DiscountType:    promo.DiscountType,
		DiscountValue:   promo.DiscountValue,
		DiscountAmount:  amount,
		DiscountedPrice: price,
	}, nil
}

// Usage builds the usage row that redeems quote for an order.
func (s *DiscountService) Usage(quote *models.PromoQuote, orderID, userID string) *models.PromoCodeUsage {
	return &models.PromoCodeUsage{
		ID:             uuid.NewString(),
		PromoCodeID:    quote.PromoCodeID,
		OrderID:        orderID,
		UserID:         userID,
		DiscountAmount: quote.DiscountAmount,
		CreatedAt:      s.now().UTC(),
	}
}

// Apply re-validates, prices and redeems a code for an order in one step.
// The counter increment is guarded, so losing a race for the last use
// returns models.ErrPromoMaxUsesReached and records nothing.
func (s *DiscountService) Apply(ctx context.Context, code, orderID, userID string, original float64) (*models.PromoQuote, error) {
	quote, err := s.Quote(ctx, code, original)
	if err != nil {
		return nil, err
	}

	if err := s.store.RedeemPromo(ctx, s.Usage(quote, orderID, userID)); err != nil {
		return nil, fmt.Errorf("redeem %s: %w", quote.Code, err)
	}

	s.logger.Info("PROMO", fmt.Sprintf("Applied %s to order %s: -%.2f", quote.Code, orderID, quote.DiscountAmount))
	return quote, nil
}
