package order

import (
	"context"
	"time"

	"ms-reviews/internal/config"
	"ms-reviews/internal/models"
)

type statusReader interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
}

// StatusPoller re-reads an order until it leaves pending or the window
// closes. It never changes state itself.
type StatusPoller struct {
	store        statusReader
	InitialDelay time.Duration
	Interval     time.Duration
	MaxDuration  time.Duration
}

func NewStatusPoller(store statusReader, cfg config.PollerConfig) *StatusPoller {
	return &StatusPoller{
		store:        store,
		InitialDelay: cfg.InitialDelay,
		Interval:     cfg.Interval,
		MaxDuration:  cfg.MaxDuration,
	}
}

// PollResult is the last status observed and whether it left pending.
type PollResult struct {
	Status  models.OrderStatus `json:"status"`
	Settled bool               `json:"settled"`
}

// Wait polls orderID. Running out of time is not an error; the result just
// comes back unsettled.
func (p *StatusPoller) Wait(ctx context.Context, orderID string) (PollResult, error) {
	order, err := p.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return PollResult{}, err
	}
	result := PollResult{Status: order.Status, Settled: order.Status.Reached(models.OrderStatusPaid)}
	if result.Settled {
		return result, nil
	}

	window := time.NewTimer(p.MaxDuration)
	defer window.Stop()
	next := time.NewTimer(p.InitialDelay)
	defer next.Stop()

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-window.C:
			return result, nil
		case <-next.C:
		}

		order, err := p.store.GetOrderByID(ctx, orderID)
		if err != nil {
			return result, err
		}
		result.Status = order.Status
		if order.Status.Reached(models.OrderStatusPaid) {
			result.Settled = true
			return result, nil
		}
		next.Reset(p.Interval)
	}
}

// WaitForPayment authorizes caller and long-polls the order's status.
func (s *OrderService) WaitForPayment(ctx context.Context, poller *StatusPoller, orderID string, caller models.Caller) (PollResult, error) {
	if _, err := s.GetOrder(ctx, orderID, caller); err != nil {
		return PollResult{}, err
	}
	return poller.Wait(ctx, orderID)
}
