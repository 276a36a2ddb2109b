package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-reviews/internal/models"
)

// ---------------- PROMO CODES ----------------

// GetPromoByCode looks up a code exactly as given; callers normalize case.
func (d *DB) GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := d.Bun.NewSelect().
		Model(&promo).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPromoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select promo code: %w", err)
	}
	return &promo, nil
}

func (d *DB) CreatePromo(ctx context.Context, promo *models.PromoCode) error {
	_, err := d.Bun.NewInsert().Model(promo).Exec(ctx)
	return err
}

// RedeemPromo increments the usage counter and appends the usage row atomically.
func (d *DB) RedeemPromo(ctx context.Context, usage *models.PromoCodeUsage) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := redeemPromo(ctx, tx, usage.PromoCodeID); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(usage).Exec(ctx); err != nil {
			return fmt.Errorf("insert promo usage: %w", err)
		}
		return nil
	})
}

// redeemPromo is the single guarded increment that keeps current_uses <= max_uses.
func redeemPromo(ctx context.Context, idb bun.IDB, promoID string) error {
	res, err := idb.NewUpdate().
		Model((*models.PromoCode)(nil)).
		Set("current_uses = current_uses + 1").
		Where("id = ?", promoID).
		Where("is_active = ?", true).
		Where("max_uses IS NULL OR current_uses < max_uses").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment promo usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrPromoMaxUsesReached
	}
	return nil
}

func (d *DB) ListPromoUsages(ctx context.Context, promoID string) ([]models.PromoCodeUsage, error) {
	var usages []models.PromoCodeUsage
	err := d.Bun.NewSelect().
		Model(&usages).
		Where("promo_code_id = ?", promoID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select promo usages: %w", err)
	}
	return usages, nil
}
