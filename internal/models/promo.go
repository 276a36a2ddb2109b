package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	ID            string       `bun:"id,pk" json:"id"`
	Code          string       `bun:"code,unique,notnull" json:"code"`
	DiscountType  DiscountType `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue float64      `bun:"discount_value,notnull" json:"discount_value"`
	MaxUses       *int         `bun:"max_uses" json:"max_uses,omitempty"`
	CurrentUses   int          `bun:"current_uses,notnull" json:"current_uses"`
	ValidFrom     time.Time    `bun:"valid_from,nullzero" json:"valid_from,omitempty"`
	ValidUntil    time.Time    `bun:"valid_until,nullzero" json:"valid_until,omitempty"`
	IsActive      bool         `bun:"is_active,notnull" json:"is_active"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"created_at"`
}

// Exhausted reports whether the usage cap is reached.
func (p *PromoCode) Exhausted() bool {
	return p.MaxUses != nil && p.CurrentUses >= *p.MaxUses
}

// InWindow reports whether now falls within the optional validity window.
func (p *PromoCode) InWindow(now time.Time) bool {
	if !p.ValidFrom.IsZero() && now.Before(p.ValidFrom) {
		return false
	}
	if !p.ValidUntil.IsZero() && now.After(p.ValidUntil) {
		return false
	}
	return true
}

type PromoCodeUsage struct {
	bun.BaseModel `bun:"table:promo_code_usages"`

	ID             string    `bun:"id,pk" json:"id"`
	PromoCodeID    string    `bun:"promo_code_id,notnull" json:"promo_code_id"`
	OrderID        string    `bun:"order_id,notnull" json:"order_id"`
	UserID         string    `bun:"user_id,nullzero" json:"user_id,omitempty"`
	DiscountAmount float64   `bun:"discount_amount,notnull" json:"discount_amount"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

// PromoQuote is the priced outcome of a valid code against an original price.
type PromoQuote struct {
	PromoCodeID     string       `json:"promo_code_id"`
	Code            string       `json:"code"`
	DiscountType    DiscountType `json:"discount_type"`
	DiscountValue   float64      `json:"discount_value"`
	DiscountAmount  float64      `json:"discount_amount"`
	DiscountedPrice float64      `json:"discounted_price"`
}
