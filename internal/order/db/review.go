package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-reviews/internal/models"
)

// errNotPaid rolls back a completion whose order left the paid state mid-flight.
var errNotPaid = errors.New("order no longer paid")

// CompleteOrderWithReview flips paid→completed and inserts the review as one unit.
// It reports false, writing nothing, when the order was not paid at commit time.
func (d *DB) CompleteOrderWithReview(ctx context.Context, review *models.Review, at time.Time) (bool, error) {
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ok, err := transition(ctx, tx, review.OrderID, models.OrderStatusPaid, models.OrderStatusCompleted, at)
		if err != nil {
			return err
		}
		if !ok {
			return errNotPaid
		}

		if _, err := tx.NewInsert().Model(review).Exec(ctx); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		return nil
	})
	if errors.Is(err, errNotPaid) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *DB) GetReviewByOrderID(ctx context.Context, orderID string) (*models.Review, error) {
	var review models.Review
	err := d.Bun.NewSelect().
		Model(&review).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review for order %s: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select review: %w", err)
	}
	return &review, nil
}

func (d *DB) CountReviewsForOrder(ctx context.Context, orderID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Review)(nil)).
		Where("order_id = ?", orderID).
		Count(ctx)
}
