package order

import (
	"context"
	"fmt"
	"time"

	"ms-reviews/internal/models"
)

const lockRetryInterval = 100 * time.Millisecond

// ConfirmPayment moves an order from pending to paid. Every confirmation path
// ends here; the guarded update guarantees at most one caller sees Confirmed,
// and only that caller fires side effects.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string, source models.ConfirmSource) (models.ConfirmResult, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return models.ConfirmResult{}, err
	}
	if order.Status.Reached(models.OrderStatusPaid) {
		return alreadyConfirmed(order), nil
	}

	now := s.now().UTC()
	ok, err := s.DB.TransitionStatus(ctx, orderID, models.OrderStatusPending, models.OrderStatusPaid, now)
	if err != nil {
		return models.ConfirmResult{}, fmt.Errorf("confirm order %s: %w", orderID, err)
	}
	if !ok {
		current, err := s.DB.GetOrderByID(ctx, orderID)
		if err != nil {
			return models.ConfirmResult{}, err
		}
		if current.Status.Reached(models.OrderStatusPaid) {
			return alreadyConfirmed(current), nil
		}
		return models.ConfirmResult{}, fmt.Errorf("confirm order %s in status %s: %w", orderID, current.Status, models.ErrInvalidTransition)
	}

	order.Status = models.OrderStatusPaid
	order.PaidAt = now
	s.Logger.LogOrder("PAID", orderID, "confirmed via "+string(source))

	s.publishStatus(ctx, order, source)
	s.notifyReviewer(ctx, order)

	return models.ConfirmResult{OrderID: orderID, Outcome: models.OutcomeConfirmed, Status: models.OrderStatusPaid}, nil
}

func alreadyConfirmed(order *models.Order) models.ConfirmResult {
	return models.ConfirmResult{OrderID: order.ID, Outcome: models.OutcomeAlreadyConfirmed, Status: order.Status}
}

func rejected(order *models.Order, reason string) models.ConfirmResult {
	return models.ConfirmResult{OrderID: order.ID, Outcome: models.OutcomeRejected, Status: order.Status, Reason: reason}
}

func (s *OrderService) notifyReviewer(ctx context.Context, order *models.Order) {
	reviewer, err := s.DB.GetReviewer(ctx, order.ReviewerID)
	if err != nil {
		s.Logger.Warn("NOTIFY", fmt.Sprintf("No reviewer to notify for order %s: %v", order.ID, err))
		return
	}
	s.notify(ctx, models.Notification{
		UserID:  reviewer.UserID,
		Title:   "New review request",
		Message: fmt.Sprintf("%q is waiting for your review", order.TrackTitle),
		Link:    "/reviewer/orders/" + order.ID,
		Type:    models.NotificationOrderPaid,
	})
}

// VerifyPayment asks Stripe directly whether an order's session is paid and
// confirms it if so. It is the fallback for a missed or delayed webhook.
func (s *OrderService) VerifyPayment(ctx context.Context, orderID string, caller models.Caller) (models.ConfirmResult, error) {
	if caller.UserID == "" {
		return models.ConfirmResult{}, models.ErrUnauthorized
	}
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return models.ConfirmResult{}, err
	}
	if !s.isParticipant(ctx, order, caller.UserID) {
		s.Logger.LogSecurity("VERIFY_DENIED", fmt.Sprintf("user=%s order=%s", caller.UserID, orderID))
		return rejected(order, models.ReasonNotOwner), nil
	}
	if order.Status.Reached(models.OrderStatusPaid) {
		return alreadyConfirmed(order), nil
	}
	if order.StripeSessionID == "" {
		return rejected(order, models.ReasonNoSession), nil
	}

	token, busy, err := s.acquireLock(ctx, orderID)
	if err != nil {
		return models.ConfirmResult{}, err
	}
	if busy {
		return rejected(order, models.ReasonLocked), nil
	}
	defer s.releaseLock(orderID, token)

	// Another verification may have finished while we waited.
	order, err = s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return models.ConfirmResult{}, err
	}
	if order.Status.Reached(models.OrderStatusPaid) {
		return alreadyConfirmed(order), nil
	}

	sess, err := s.Payments.RetrieveSession(ctx, order.StripeSessionID)
	if err != nil {
		s.Logger.Error("STRIPE", fmt.Sprintf("Session lookup failed for order %s: %v", orderID, err))
		return models.ConfirmResult{}, err
	}
	if !sess.Paid() {
		s.Logger.LogOrder("VERIFY", orderID, "session "+sess.ID+" payment_status="+sess.PaymentStatus)
		return rejected(order, models.ReasonProviderNotPaid), nil
	}

	return s.ConfirmPayment(ctx, orderID, models.SourceManual)
}

// acquireLock waits up to LockWait for the verification lock and reports
// busy when the wait ran out. Without Redis, or when Redis fails, it returns
// an empty token and verification proceeds on the guarded update alone.
func (s *OrderService) acquireLock(ctx context.Context, orderID string) (token string, busy bool, err error) {
	if s.Redis == nil {
		return "", false, nil
	}

	deadline := s.now().Add(s.settings.LockWait)
	for {
		token, err = s.Redis.LockOrder(ctx, orderID, s.settings.LockTTL)
		if err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Verification lock unavailable for order %s: %v", orderID, err))
			return "", false, nil
		}
		if token != "" {
			return token, false, nil
		}
		if !s.now().Before(deadline) {
			return "", true, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (s *OrderService) releaseLock(orderID, token string) {
	if s.Redis == nil || token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Redis.UnlockOrder(ctx, orderID, token); err != nil {
		s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release verification lock for order %s: %v", orderID, err))
	}
}
