package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-reviews/internal/config"
	"ms-reviews/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// Open connects to Postgres through lib/pq and wraps the pool with bun.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	sqldb, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{Bun: bun.NewDB(sqldb, pgdialect.New())}, nil
}

func (d *DB) Close() error {
	return d.Bun.Close()
}

// CreateSchema creates every table from the models. Used for tests and local runs;
// production schemas come from the SQL migrations.
func (d *DB) CreateSchema(ctx context.Context) error {
	tables := []interface{}{
		(*models.Reviewer)(nil),
		(*models.ReviewerPackage)(nil),
		(*models.Order)(nil),
		(*models.PromoCode)(nil),
		(*models.PromoCodeUsage)(nil),
		(*models.Review)(nil),
	}
	for _, model := range tables {
		if _, err := d.Bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", model, err)
		}
	}
	return nil
}

// ---------------- ORDERS ----------------

// GetOrderByID returns models.ErrOrderNotFound when no row matches.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order %s: %w", id, err)
	}
	return &order, nil
}

// CreateOrder inserts a pending order. When usage is non-nil the promo redemption
// (guarded counter increment plus usage row) commits in the same transaction, so an
// exhausted code rolls back the whole order with models.ErrPromoMaxUsesReached.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order, usage *models.PromoCodeUsage) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if usage != nil {
			if err := redeemPromo(ctx, tx, usage.PromoCodeID); err != nil {
				return err
			}
		}

		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if usage != nil {
			if _, err := tx.NewInsert().Model(usage).Exec(ctx); err != nil {
				return fmt.Errorf("insert promo usage: %w", err)
			}
		}
		return nil
	})
}

// SetStripeSession records the provider session opened for an order.
func (d *DB) SetStripeSession(ctx context.Context, orderID, sessionID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("stripe_session_id = ?", sessionID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update stripe session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

// TransitionStatus moves an order from one state to the next with a conditional
// update. It reports false when the order was not in state from, which callers
// treat as a lost race rather than a failure.
func (d *DB) TransitionStatus(ctx context.Context, orderID string, from, to models.OrderStatus, at time.Time) (bool, error) {
	return transition(ctx, d.Bun, orderID, from, to, at)
}

func transition(ctx context.Context, idb bun.IDB, orderID string, from, to models.OrderStatus, at time.Time) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("%s -> %s: %w", from, to, models.ErrInvalidTransition)
	}

	q := idb.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at)

	switch to {
	case models.OrderStatusPaid:
		q = q.Set("paid_at = ?", at)
	case models.OrderStatusCompleted:
		q = q.Set("completed_at = ?", at)
	}

	res, err := q.
		Where("id = ?", orderID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("transition order %s to %s: %w", orderID, to, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
