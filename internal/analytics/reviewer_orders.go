package analytics

import (
	"context"
	"strings"

	"ms-reviews/internal/models"
)

// OrderSortField defines the valid fields for sorting orders
type OrderSortField string

const (
	OrderSortByPrice     OrderSortField = "price"
	OrderSortByCreatedAt OrderSortField = "created_at"
)

// ReviewerOrderOptions contains options for filtering and sorting orders
type ReviewerOrderOptions struct {
	Status   models.OrderStatus
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

const maxOrdersPage = 200

// GetReviewerOrders lists a reviewer's orders, newest first unless told otherwise.
func (s *Service) GetReviewerOrders(ctx context.Context, reviewerID string, options ReviewerOrderOptions) ([]models.Order, error) {
	q := s.db.NewSelect().
		Model((*models.Order)(nil)).
		Where("reviewer_id = ?", reviewerID)

	if options.Status != "" {
		q = q.Where("status = ?", options.Status)
	}

	if options.SortBy != "" {
		direction := "ASC"
		if options.SortDesc {
			direction = "DESC"
		}

		switch OrderSortField(strings.ToLower(options.SortBy)) {
		case OrderSortByPrice:
			q = q.Order("price_total " + direction)
		default:
			q = q.Order("created_at " + direction)
		}
	} else {
		q = q.Order("created_at DESC")
	}

	limit := options.Limit
	if limit <= 0 || limit > maxOrdersPage {
		limit = maxOrdersPage
	}
	q = q.Limit(limit)
	if options.Offset > 0 {
		q = q.Offset(options.Offset)
	}

	orders := []models.Order{}
	if err := q.Scan(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
