package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-reviews/internal/logger"
)

const (
	orderLockPrefix = "order_verify_lock:"
	webhookPrefix   = "webhook_event:"
)

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{
		Client: client,
		Logger: log,
	}
}

// LockOrder takes a short exclusive lock on an order. It returns the owner token,
// or "" when another holder has the lock.
func (r *Redis) LockOrder(ctx context.Context, orderID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, orderLockPrefix+orderID, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("lock order %s: %w", orderID, err)
	}
	if !ok {
		r.Logger.Debug("REDIS", fmt.Sprintf("Order %s is already locked", orderID))
		return "", nil
	}
	return token, nil
}

// UnlockOrder releases a lock held with token. Expired or stolen locks are left alone.
func (r *Redis) UnlockOrder(ctx context.Context, orderID, token string) error {
	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, r.Client, []string{orderLockPrefix + orderID}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("unlock order %s: %w", orderID, err)
	}
	return nil
}

// EventProcessed reports whether a webhook event id was already handled.
func (r *Redis) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := r.Client.Exists(ctx, webhookPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("check webhook event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// MarkEventProcessed remembers a handled webhook event id for ttl.
func (r *Redis) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	if err := r.Client.Set(ctx, webhookPrefix+eventID, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("mark webhook event %s: %w", eventID, err)
	}
	return nil
}
