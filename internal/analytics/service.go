package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-reviews/internal/models"
)

// Service handles analytics operations
type Service struct {
	db *bun.DB
}

// NewService creates a new analytics service
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Window bounds the creation time of the orders considered. Zero ends are open.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) apply(q *bun.SelectQuery, column string) *bun.SelectQuery {
	if !w.From.IsZero() {
		q = q.Where(column+" >= ?", w.From)
	}
	if !w.To.IsZero() {
		q = q.Where(column+" < ?", w.To)
	}
	return q
}

// ReviewerAnalytics aggregates a reviewer's sales. Revenue counts paid and
// completed orders only.
type ReviewerAnalytics struct {
	ReviewerID       string                     `json:"reviewer_id"`
	OrdersByStatus   map[models.OrderStatus]int `json:"orders_by_status"`
	GrossRevenue     float64                    `json:"gross_revenue"`
	PlatformFees     float64                    `json:"platform_fees"`
	ReviewerEarnings float64                    `json:"reviewer_earnings"`
	DiscountsGiven   float64                    `json:"discounts_given"`
	ReviewsCompleted int                        `json:"reviews_completed"`
	AverageRating    float64                    `json:"average_rating"`
	DailySales       []DailySalesMetrics        `json:"daily_sales"`
	DiscountUsage    []DiscountUsage            `json:"discount_usage"`
}

// DailySalesMetrics contains metrics for a single day
type DailySalesMetrics struct {
	Date       string  `json:"date"`
	Revenue    float64 `json:"revenue"`
	OrdersPaid int     `json:"orders_paid"`
}

// DiscountUsage tracks promo code usage by day
type DiscountUsage struct {
	Date          string  `json:"date"`
	DiscountCode  string  `json:"discount_code"`
	UsageCount    int     `json:"usage_count"`
	TotalDiscount float64 `json:"total_discount_amount"`
}

// GetReviewerAnalytics returns revenue, fee and review metrics for one reviewer.
func (s *Service) GetReviewerAnalytics(ctx context.Context, reviewerID string, window Window) (*ReviewerAnalytics, error) {
	var orders []models.Order
	q := s.db.NewSelect().
		Model(&orders).
		Where("reviewer_id = ?", reviewerID)
	if err := window.apply(q, "created_at").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load reviewer orders: %w", err)
	}

	result := &ReviewerAnalytics{
		ReviewerID:     reviewerID,
		OrdersByStatus: map[models.OrderStatus]int{},
		DailySales:     []DailySalesMetrics{},
		DiscountUsage:  []DiscountUsage{},
	}
	for _, o := range orders {
		result.OrdersByStatus[o.Status]++
		if !o.Status.Reached(models.OrderStatusPaid) {
			continue
		}
		result.GrossRevenue += o.PriceTotal
		result.PlatformFees += o.PlatformFee
		result.DiscountsGiven += o.DiscountAmount
	}
	result.GrossRevenue = models.RoundCents(result.GrossRevenue)
	result.PlatformFees = models.RoundCents(result.PlatformFees)
	result.DiscountsGiven = models.RoundCents(result.DiscountsGiven)
	result.ReviewerEarnings = models.RoundCents(result.GrossRevenue - result.PlatformFees)

	if err := s.reviewStats(ctx, reviewerID, window, result); err != nil {
		return nil, err
	}

	daily, err := s.dailySales(ctx, reviewerID, window)
	if err != nil {
		return nil, err
	}
	result.DailySales = append(result.DailySales, daily...)

	usage, err := s.discountUsage(ctx, reviewerID, window)
	if err != nil {
		return nil, err
	}
	result.DiscountUsage = append(result.DiscountUsage, usage...)

	return result, nil
}

func (s *Service) reviewStats(ctx context.Context, reviewerID string, window Window, out *ReviewerAnalytics) error {
	q := s.db.NewSelect().
		TableExpr("reviews").
		ColumnExpr("COUNT(*)").
		ColumnExpr("AVG(CAST(overall_rating AS REAL))").
		Where("reviewer_id = ?", reviewerID)

	var (
		count int
		avg   sql.NullFloat64
	)
	if err := window.apply(q, "created_at").Scan(ctx, &count, &avg); err != nil {
		return fmt.Errorf("review stats: %w", err)
	}
	out.ReviewsCompleted = count
	out.AverageRating = models.RoundCents(avg.Float64)
	return nil
}

func (s *Service) dailySales(ctx context.Context, reviewerID string, window Window) ([]DailySalesMetrics, error) {
	type dailySalesRaw struct {
		SalesDate  time.Time `bun:"sales_date"`
		Revenue    float64   `bun:"daily_revenue"`
		OrdersPaid int       `bun:"orders_paid"`
	}

	var rows []dailySalesRaw
	q := s.db.NewSelect().
		TableExpr("orders AS o").
		ColumnExpr("DATE(o.paid_at) AS sales_date").
		ColumnExpr("SUM(o.price_total) AS daily_revenue").
		ColumnExpr("COUNT(*) AS orders_paid").
		Where("o.reviewer_id = ?", reviewerID).
		Where("o.status != ?", models.OrderStatusPending).
		Where("o.paid_at IS NOT NULL")
	err := window.apply(q, "o.created_at").
		GroupExpr("DATE(o.paid_at)").
		OrderExpr("sales_date").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}

	out := make([]DailySalesMetrics, len(rows))
	for i, row := range rows {
		out[i] = DailySalesMetrics{
			Date:       row.SalesDate.Format("2006-01-02"),
			Revenue:    models.RoundCents(row.Revenue),
			OrdersPaid: row.OrdersPaid,
		}
	}
	return out, nil
}

func (s *Service) discountUsage(ctx context.Context, reviewerID string, window Window) ([]DiscountUsage, error) {
	type discountUsageRaw struct {
		UsageDate         time.Time `bun:"usage_date"`
		DiscountCode      string    `bun:"discount_code"`
		CodeUsageCount    int       `bun:"code_usage_count"`
		DiscountAmountSum float64   `bun:"discount_amount_sum"`
	}

	var rows []discountUsageRaw
	q := s.db.NewSelect().
		TableExpr("promo_code_usages AS u").
		Join("JOIN promo_codes AS p ON p.id = u.promo_code_id").
		Join("JOIN orders AS o ON o.id = u.order_id").
		ColumnExpr("DATE(u.created_at) AS usage_date").
		ColumnExpr("p.code AS discount_code").
		ColumnExpr("COUNT(*) AS code_usage_count").
		ColumnExpr("SUM(u.discount_amount) AS discount_amount_sum").
		Where("o.reviewer_id = ?", reviewerID)
	err := window.apply(q, "u.created_at").
		GroupExpr("DATE(u.created_at), p.code").
		OrderExpr("usage_date, discount_code").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("discount usage: %w", err)
	}

	out := make([]DiscountUsage, len(rows))
	for i, row := range rows {
		out[i] = DiscountUsage{
			Date:          row.UsageDate.Format("2006-01-02"),
			DiscountCode:  row.DiscountCode,
			UsageCount:    row.CodeUsageCount,
			TotalDiscount: models.RoundCents(row.DiscountAmountSum),
		}
	}
	return out, nil
}
