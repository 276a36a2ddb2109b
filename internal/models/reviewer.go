package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Reviewer struct {
	bun.BaseModel `bun:"table:reviewers"`

	ID          string    `bun:"id,pk" json:"id"`
	UserID      string    `bun:"user_id,notnull" json:"user_id"`
	DisplayName string    `bun:"display_name,notnull" json:"display_name"`
	IsActive    bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

type ReviewerPackage struct {
	bun.BaseModel `bun:"table:reviewer_packages"`

	ID                  string       `bun:"id,pk" json:"id"`
	ReviewerID          string       `bun:"reviewer_id,notnull" json:"reviewer_id"`
	Name                string       `bun:"name,notnull" json:"name"`
	Price               float64      `bun:"price,notnull" json:"price"`
	RequiredReviewTypes []ReviewType `bun:"required_review_types" json:"required_review_types"`
	IsActive            bool         `bun:"is_active,notnull" json:"is_active"`
	CreatedAt           time.Time    `bun:"created_at,notnull" json:"created_at"`
}
