package discount

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
)

type MockPromoStore struct {
	mock.Mock
}

func (m *MockPromoStore) GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)
	if p, ok := args.Get(0).(*models.PromoCode); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPromoStore) RedeemPromo(ctx context.Context, usage *models.PromoCodeUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

func newService(store PromoStore, now time.Time) *DiscountService {
	s := NewDiscountService(store, logger.NewNopLogger())
	s.now = func() time.Time { return now }
	return s
}

func intPtr(v int) *int { return &v }

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name         string
		kind         models.DiscountType
		value, price float64
		wantAmount   float64
		wantPrice    float64
	}{
		{"percentage", models.DiscountPercentage, 10, 100, 10, 90},
		{"percentage rounds to cents", models.DiscountPercentage, 10, 33.33, 3.33, 30},
		{"fixed", models.DiscountFixed, 25, 100, 25, 75},
		{"fixed clamps to price", models.DiscountFixed, 150, 100, 100, 0},
		{"percentage over 100 clamps", models.DiscountPercentage, 120, 40, 40, 0},
		{"negative clamps to zero", models.DiscountFixed, -5, 40, 0, 40},
		{"unknown type is no discount", "bogus", 10, 40, 0, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, price := ComputeDiscount(tt.kind, tt.value, tt.price)
			assert.Equal(t, tt.wantAmount, amount)
			assert.Equal(t, tt.wantPrice, price)
		})
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		promo   *models.PromoCode
		wantErr error
	}{
		{"valid", &models.PromoCode{Code: "SAVE10", IsActive: true}, nil},
		{"inactive", &models.PromoCode{Code: "SAVE10", IsActive: false}, models.ErrPromoNotFound},
		{"not yet valid", &models.PromoCode{Code: "SAVE10", IsActive: true, ValidFrom: now.Add(time.Hour)}, models.ErrPromoExpired},
		{"expired", &models.PromoCode{Code: "SAVE10", IsActive: true, ValidUntil: now.Add(-time.Hour)}, models.ErrPromoExpired},
		{"exhausted", &models.PromoCode{Code: "SAVE10", IsActive: true, MaxUses: intPtr(5), CurrentUses: 5}, models.ErrPromoMaxUsesReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockPromoStore)
			store.On("GetPromoByCode", mock.Anything, "SAVE10").Return(tt.promo, nil)

			_, err := newService(store, now).Validate(context.Background(), "  save10 ")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestValidate_UnknownAndEmptyCode(t *testing.T) {
	store := new(MockPromoStore)
	store.On("GetPromoByCode", mock.Anything, "NOPE").Return(nil, models.ErrPromoNotFound)
	s := newService(store, time.Now())

	_, err := s.Validate(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrPromoNotFound)

	_, err = s.Validate(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrPromoNotFound)
	store.AssertNumberOfCalls(t, "GetPromoByCode", 1)
}

func TestQuote_Save10On100(t *testing.T) {
	store := new(MockPromoStore)
	store.On("GetPromoByCode", mock.Anything, "SAVE10").Return(&models.PromoCode{
		ID: "p1", Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10, IsActive: true,
	}, nil)

	quote, err := newService(store, time.Now()).Quote(context.Background(), "SAVE10", 100)
	require.NoError(t, err)
	assert.Equal(t, 10.0, quote.DiscountAmount)
	assert.Equal(t, 90.0, quote.DiscountedPrice)
	store.AssertNotCalled(t, "RedeemPromo", mock.Anything, mock.Anything)
}

func TestApply_RecordsUsage(t *testing.T) {
	store := new(MockPromoStore)
	store.On("GetPromoByCode", mock.Anything, "FLAT5").Return(&models.PromoCode{
		ID: "p2", Code: "FLAT5", DiscountType: models.DiscountFixed, DiscountValue: 5, IsActive: true,
	}, nil)
	store.On("RedeemPromo", mock.Anything, mock.MatchedBy(func(u *models.PromoCodeUsage) bool {
		return u.PromoCodeID == "p2" && u.OrderID == "o1" && u.UserID == "u1" && u.DiscountAmount == 5
	})).Return(nil)

	quote, err := newService(store, time.Now()).Apply(context.Background(), "flat5", "o1", "u1", 20)
	require.NoError(t, err)
	assert.Equal(t, 15.0, quote.DiscountedPrice)
	store.AssertExpectations(t)
}

func TestApply_LostRaceForLastUse(t *testing.T) {
	store := new(MockPromoStore)
	store.On("GetPromoByCode", mock.Anything, "LAST").Return(&models.PromoCode{
		ID: "p3", Code: "LAST", DiscountType: models.DiscountFixed, DiscountValue: 5, IsActive: true, MaxUses: intPtr(1),
	}, nil)
	store.On("RedeemPromo", mock.Anything, mock.Anything).Return(models.ErrPromoMaxUsesReached)

	_, err := newService(store, time.Now()).Apply(context.Background(), "LAST", "o1", "u1", 20)
	assert.ErrorIs(t, err, models.ErrPromoMaxUsesReached)
}
