package analytics_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-reviews/internal/models"
)

// ReviewerLookup resolves a reviewer profile. *db.DB satisfies it.
type ReviewerLookup interface {
	GetReviewer(ctx context.Context, id string) (*models.Reviewer, error)
}

// verifyReviewerAccess allows admins and the user behind the reviewer profile.
func (h *Handler) verifyReviewerAccess(ctx context.Context, reviewerID string, caller models.Caller) error {
	h.Logger.Debug("ANALYTICS", fmt.Sprintf("Verifying access to reviewer %s by user %s", reviewerID, caller.UserID))

	if caller.UserID == "" {
		return models.ErrUnauthorized
	}

	reviewer, err := h.Reviewers.GetReviewer(ctx, reviewerID)
	if err != nil {
		return err
	}
	if caller.Admin || reviewer.UserID == caller.UserID {
		return nil
	}

	h.Logger.LogSecurity("ANALYTICS_ACCESS_DENIED", fmt.Sprintf("user %s requested analytics of reviewer %s", caller.UserID, reviewerID))
	return fmt.Errorf("reviewer %s: %w", reviewerID, models.ErrForbidden)
}

func accessStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized access"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "Reviewer not found"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "You do not have permission to access these analytics"
	default:
		return http.StatusInternalServerError, "Failed to verify reviewer access"
	}
}
