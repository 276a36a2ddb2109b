package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ms-reviews/internal/models"
	"ms-reviews/internal/validation"
)

// SubmitReview validates a reviewer's submission and, in one transaction,
// stores it and completes the order. requiredTypes overrides the types
// snapshotted on the order when non-empty.
func (s *OrderService) SubmitReview(ctx context.Context, orderID string, caller models.Caller, submission models.ReviewSubmission, requiredTypes []models.ReviewType) (*models.SubmitResult, error) {
	if caller.UserID == "" {
		return nil, models.ErrUnauthorized
	}

	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	reviewer, err := s.DB.GetReviewer(ctx, order.ReviewerID)
	if err != nil {
		return nil, err
	}
	if reviewer.UserID != caller.UserID {
		s.Logger.LogSecurity("REVIEW_DENIED", fmt.Sprintf("user=%s order=%s", caller.UserID, orderID))
		return nil, models.ErrNotOwner
	}

	required := s.requiredTypes(ctx, order, requiredTypes)
	if err := validation.Check(s.validate, validation.ReviewCheck{Submission: submission, Required: required}); err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusPending:
		return nil, models.ErrOrderNotPaid
	case models.OrderStatusCompleted:
		return s.alreadyCompleted(ctx, orderID), nil
	}

	now := s.now().UTC()
	review := models.NewReview(uuid.NewString(), order, submission, now)
	ok, err := s.DB.CompleteOrderWithReview(ctx, review, now)
	if err != nil {
		return nil, fmt.Errorf("complete order %s: %w", orderID, err)
	}
	if !ok {
		current, err := s.DB.GetOrderByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.OrderStatusCompleted {
			return s.alreadyCompleted(ctx, orderID), nil
		}
		return nil, models.ErrOrderNotPaid
	}

	order.Status = models.OrderStatusCompleted
	order.CompletedAt = now
	s.Logger.LogOrder("COMPLETED", orderID, "review "+review.ID)

	s.publishStatus(ctx, order, "")
	if !order.IsGuest() {
		s.notify(ctx, models.Notification{
			UserID:  order.ArtistID,
			Title:   "Your review is ready",
			Message: fmt.Sprintf("%s reviewed %q", reviewer.DisplayName, order.TrackTitle),
			Link:    "/orders/" + orderID + "/review",
			Type:    models.NotificationReviewComplete,
		})
	}

	return &models.SubmitResult{OrderID: orderID, Status: order.Status, ReviewID: review.ID}, nil
}

func (s *OrderService) alreadyCompleted(ctx context.Context, orderID string) *models.SubmitResult {
	result := &models.SubmitResult{OrderID: orderID, Status: models.OrderStatusCompleted, AlreadyCompleted: true}
	if review, err := s.DB.GetReviewByOrderID(ctx, orderID); err == nil {
		result.ReviewID = review.ID
	} else {
		s.Logger.Warn("REVIEW", fmt.Sprintf("Completed order %s has no readable review: %v", orderID, err))
	}
	return result
}

// requiredTypes prefers an explicit list, then the order's snapshot, then
// the package as it is now.
func (s *OrderService) requiredTypes(ctx context.Context, order *models.Order, explicit []models.ReviewType) []models.ReviewType {
	if types := validTypes(explicit); len(types) > 0 {
		return types
	}
	if types := validTypes(order.RequiredReviewTypes); len(types) > 0 {
		return types
	}

	pkg, err := s.DB.GetPackage(ctx, order.ReviewerID, order.PackageID)
	if err != nil {
		s.Logger.Warn("REVIEW", fmt.Sprintf("Package lookup for order %s failed, requiring scorecard only: %v", order.ID, err))
		return []models.ReviewType{models.ReviewTypeScorecard}
	}
	s.Logger.Warn("REVIEW", fmt.Sprintf("Order %s has no review types, using current package %s", order.ID, pkg.ID))
	if types := validTypes(pkg.RequiredReviewTypes); len(types) > 0 {
		return types
	}
	return []models.ReviewType{models.ReviewTypeScorecard}
}

func validTypes(in []models.ReviewType) []models.ReviewType {
	var out []models.ReviewType
	for _, t := range in {
		if t.Valid() {
			out = append(out, t)
		}
	}
	return out
}
