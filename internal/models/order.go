package models

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCompleted OrderStatus = "completed"
)

func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusPaid:
		return 1
	case OrderStatusCompleted:
		return 2
	default:
		return -1
	}
}

func (s OrderStatus) Valid() bool {
	return s.rank() >= 0
}

// Reached reports whether s is target or a later state.
func (s OrderStatus) Reached(target OrderStatus) bool {
	return s.Valid() && target.Valid() && s.rank() >= target.rank()
}

// CanTransition allows only single forward steps: pending→paid and paid→completed.
func CanTransition(from, to OrderStatus) bool {
	return from.Valid() && to.Valid() && to.rank() == from.rank()+1
}

type ReviewType string

const (
	ReviewTypeScorecard ReviewType = "scorecard"
	ReviewTypeWritten   ReviewType = "written"
	ReviewTypeVideo     ReviewType = "video"
	ReviewTypeAudio     ReviewType = "audio"
)

func (t ReviewType) Valid() bool {
	switch t {
	case ReviewTypeScorecard, ReviewTypeWritten, ReviewTypeVideo, ReviewTypeAudio:
		return true
	}
	return false
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID                  string       `bun:"id,pk" json:"id"`
	ArtistID            string       `bun:"artist_id,nullzero" json:"artist_id,omitempty"`
	GuestEmail          string       `bun:"guest_email,nullzero" json:"guest_email,omitempty"`
	ReviewerID          string       `bun:"reviewer_id,notnull" json:"reviewer_id"`
	PackageID           string       `bun:"package_id,notnull" json:"package_id"`
	TrackURL            string       `bun:"track_url,notnull" json:"track_url"`
	TrackTitle          string       `bun:"track_title,notnull" json:"track_title"`
	Note                string       `bun:"note,nullzero" json:"note,omitempty"`
	PriceTotal          float64      `bun:"price_total,notnull" json:"price_total"`
	PlatformFee         float64      `bun:"platform_fee,notnull" json:"platform_fee"`
	Status              OrderStatus  `bun:"status,notnull" json:"status"`
	StripeSessionID     string       `bun:"stripe_session_id,nullzero" json:"stripe_session_id,omitempty"`
	RequiredReviewTypes []ReviewType `bun:"required_review_types" json:"required_review_types"`
	PromoCode           string       `bun:"promo_code,nullzero" json:"promo_code,omitempty"`
	DiscountAmount      float64      `bun:"discount_amount" json:"discount_amount"`
	PaidAt              time.Time    `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
	CompletedAt         time.Time    `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
	CreatedAt           time.Time    `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt           time.Time    `bun:"updated_at,notnull" json:"updated_at"`
}

func (o *Order) IsGuest() bool {
	return o.ArtistID == ""
}

// IsParticipant reports whether userID is the buying artist or the reviewer's user.
func (o *Order) IsParticipant(userID, reviewerUserID string) bool {
	if userID == "" {
		return false
	}
	return (o.ArtistID != "" && o.ArtistID == userID) || (reviewerUserID != "" && reviewerUserID == userID)
}

// PlatformFeeFor derives the platform fee for a price, rounded to cents.
func PlatformFeeFor(price, rate float64) float64 {
	return RoundCents(price * rate)
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// CheckoutRequest starts a purchase of a reviewer package.
type CheckoutRequest struct {
	ReviewerID string `json:"reviewer_id" validate:"required"`
	PackageID  string `json:"package_id" validate:"required"`
	TrackURL   string `json:"track_url" validate:"required,url"`
	TrackTitle string `json:"track_title" validate:"required,notblank"`
	Note       string `json:"note,omitempty" validate:"max=2000"`
	PromoCode  string `json:"promo_code,omitempty"`
	ArtistID   string `json:"-"`
	GuestEmail string `json:"guest_email,omitempty" validate:"omitempty,email"`
}

type CheckoutResponse struct {
	OrderID      string  `json:"order_id"`
	ClientSecret string  `json:"client_secret"`
	PriceTotal   float64 `json:"price_total"`
	Discount     float64 `json:"discount_amount"`
}

type OrderStatusResponse struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}
