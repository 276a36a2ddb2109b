package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"ms-reviews/internal/config"
	"ms-reviews/internal/database/migrations"
	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
	"ms-reviews/internal/order/db"
)

const usage = `usage: migrate [flags] <command>

commands:
  up          apply all pending migrations
  down        roll back every migration
  to N        migrate up or down to version N
  version     print the applied version
  seed        insert a sample reviewer, package and promo code (local only)
`

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	log := logger.NewWriterLogger(os.Stdout)
	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("CONFIG", fmt.Sprintf("%s not loaded, using environment variables", *envFile))
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer store.Close()

	runner := migrations.NewRunner(store.Bun, migrations.MigrateOptions{SourceURL: cfg.Database.MigrationsPath}, log)
	defer runner.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "to":
		var version uint64
		version, err = strconv.ParseUint(flag.Arg(1), 10, 32)
		if err == nil {
			err = runner.MigrateTo(uint(version))
		}
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = runner.Version()
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
	case "seed":
		if err = runner.RunMigrations(); err == nil {
			err = seed(ctx, store, log)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	log.Info("DATABASE", "✅ Done")
}

func seed(ctx context.Context, store *db.DB, log *logger.Logger) error {
	now := time.Now().UTC()

	reviewer := &models.Reviewer{
		ID:          uuid.NewString(),
		UserID:      "seed-reviewer",
		DisplayName: "Sample Reviewer",
		IsActive:    true,
		CreatedAt:   now,
	}
	if err := store.CreateReviewer(ctx, reviewer); err != nil {
		return fmt.Errorf("seed reviewer: %w", err)
	}

	packages := []*models.ReviewerPackage{
		{Name: "Quick scorecard", Price: 25, RequiredReviewTypes: []models.ReviewType{models.ReviewTypeScorecard}},
		{Name: "Full written review", Price: 60, RequiredReviewTypes: []models.ReviewType{models.ReviewTypeScorecard, models.ReviewTypeWritten}},
		{Name: "Video reaction", Price: 90, RequiredReviewTypes: []models.ReviewType{models.ReviewTypeScorecard, models.ReviewTypeVideo}},
	}
	for _, pkg := range packages {
		pkg.ID = uuid.NewString()
		pkg.ReviewerID = reviewer.ID
		pkg.IsActive = true
		pkg.CreatedAt = now
		if err := store.CreatePackage(ctx, pkg); err != nil {
			return fmt.Errorf("seed package %q: %w", pkg.Name, err)
		}
		log.Info("SEED", fmt.Sprintf("Package %s: %s (%.2f)", pkg.ID, pkg.Name, pkg.Price))
	}

	maxUses := 100
	promo := &models.PromoCode{
		ID:            uuid.NewString(),
		Code:          "WELCOME10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		MaxUses:       &maxUses,
		ValidUntil:    now.AddDate(0, 3, 0),
		IsActive:      true,
		CreatedAt:     now,
	}
	if err := store.CreatePromo(ctx, promo); err != nil {
		return fmt.Errorf("seed promo: %w", err)
	}

	log.Info("SEED", fmt.Sprintf("Reviewer %s (user %s) with %d packages, promo %s", reviewer.ID, reviewer.UserID, len(packages), promo.Code))
	return nil
}
