// Package dbtest opens isolated in-memory SQLite stores for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-reviews/internal/models"
	"ms-reviews/internal/order/db"
)

// New returns a store backed by a private in-memory database with the schema created.
func New(t testing.TB) *db.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// One connection serializes writers the way row locks do in Postgres.
	sqldb.SetMaxOpenConns(1)

	store := &db.DB{Bun: bun.NewDB(sqldb, sqlitedialect.New())}
	if err := store.CreateSchema(context.Background()); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { store.Bun.Close() })
	return store
}

// SeedCatalog inserts an active reviewer and one package with the given price and types.
func SeedCatalog(t testing.TB, store *db.DB, price float64, types ...models.ReviewType) (*models.Reviewer, *models.ReviewerPackage) {
	t.Helper()
	ctx := context.Background()

	reviewer := &models.Reviewer{
		ID:          uuid.NewString(),
		UserID:      "reviewer-user-" + uuid.NewString()[:8],
		DisplayName: "DJ Critic",
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateReviewer(ctx, reviewer); err != nil {
		t.Fatalf("Failed to seed reviewer: %v", err)
	}

	pkg := &models.ReviewerPackage{
		ID:                  uuid.NewString(),
		ReviewerID:          reviewer.ID,
		Name:                "Standard review",
		Price:               price,
		RequiredReviewTypes: types,
		IsActive:            true,
		CreatedAt:           time.Now().UTC(),
	}
	if err := store.CreatePackage(ctx, pkg); err != nil {
		t.Fatalf("Failed to seed package: %v", err)
	}
	return reviewer, pkg
}

// SeedOrder inserts an order in the given status for the reviewer and package.
func SeedOrder(t testing.TB, store *db.DB, reviewer *models.Reviewer, pkg *models.ReviewerPackage, artistID string, status models.OrderStatus) *models.Order {
	t.Helper()

	now := time.Now().UTC()
	order := &models.Order{
		ID:                  uuid.NewString(),
		ArtistID:            artistID,
		ReviewerID:          reviewer.ID,
		PackageID:           pkg.ID,
		TrackURL:            "https://soundcloud.com/artist/track",
		TrackTitle:          "Track",
		PriceTotal:          pkg.Price,
		PlatformFee:         models.PlatformFeeFor(pkg.Price, 0.10),
		Status:              status,
		StripeSessionID:     "cs_test_" + uuid.NewString()[:8],
		RequiredReviewTypes: pkg.RequiredReviewTypes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := store.CreateOrder(context.Background(), order, nil); err != nil {
		t.Fatalf("Failed to seed order: %v", err)
	}
	return order
}
