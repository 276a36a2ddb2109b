// Package notification hands user-facing notifications to the delivery pipeline.
//
// Dispatcher is the only path by which request handling writes data owned by
// another user. Delivery is best-effort.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
)

type Dispatcher interface {
	Send(ctx context.Context, n models.Notification) error
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// KafkaDispatcher publishes notifications keyed by recipient.
type KafkaDispatcher struct {
	publisher Publisher
	topic     string
	logger    *logger.Logger
}

func NewKafkaDispatcher(publisher Publisher, topic string, log *logger.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{publisher: publisher, topic: topic, logger: log}
}

func (d *KafkaDispatcher) Send(ctx context.Context, n models.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("notification %q has no recipient", n.Title)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := d.publisher.Publish(ctx, d.topic, n.UserID, value); err != nil {
		return err
	}

	d.logger.Info("NOTIFY", fmt.Sprintf("Queued %s notification for user %s", n.Type, n.UserID))
	return nil
}

// LogDispatcher only logs. Used when Kafka is disabled.
type LogDispatcher struct {
	logger *logger.Logger
}

func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{logger: log}
}

func (d *LogDispatcher) Send(_ context.Context, n models.Notification) error {
	d.logger.Info("NOTIFY", fmt.Sprintf("[disabled] %s for user %s: %s", n.Type, n.UserID, n.Title))
	return nil
}
