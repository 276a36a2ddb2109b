package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-reviews/internal/models"
)

// ---------------- REVIEWER CATALOG (read-only in this service) ----------------

func (d *DB) GetReviewer(ctx context.Context, id string) (*models.Reviewer, error) {
	var reviewer models.Reviewer
	err := d.Bun.NewSelect().
		Model(&reviewer).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrReviewerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select reviewer: %w", err)
	}
	return &reviewer, nil
}

// GetPackage returns a package only if it belongs to the given reviewer.
func (d *DB) GetPackage(ctx context.Context, reviewerID, packageID string) (*models.ReviewerPackage, error) {
	var pkg models.ReviewerPackage
	err := d.Bun.NewSelect().
		Model(&pkg).
		Where("id = ?", packageID).
		Where("reviewer_id = ?", reviewerID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPackageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select package: %w", err)
	}
	return &pkg, nil
}

func (d *DB) CreateReviewer(ctx context.Context, reviewer *models.Reviewer) error {
	_, err := d.Bun.NewInsert().Model(reviewer).Exec(ctx)
	return err
}

func (d *DB) CreatePackage(ctx context.Context, pkg *models.ReviewerPackage) error {
	_, err := d.Bun.NewInsert().Model(pkg).Exec(ctx)
	return err
}
