package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-reviews/internal/models"
)

// StatusRelay forwards status events published by other instances to this
// instance's SSE subscribers.
type StatusRelay struct {
	instanceID string
	emitter    StatusEmitter
}

func NewStatusRelay(instanceID string, emitter StatusEmitter) *StatusRelay {
	return &StatusRelay{instanceID: instanceID, emitter: emitter}
}

// Handle is a kafka.Consumer handler.
func (r *StatusRelay) Handle(_ context.Context, msg kafka.Message) error {
	var event models.OrderStatusEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("decode status event: %w", err)
	}
	if event.OrderID == "" || !event.Status.Valid() {
		return fmt.Errorf("malformed status event at offset %d", msg.Offset)
	}
	// Local subscribers already got events this instance produced.
	if event.Origin == r.instanceID {
		return nil
	}
	r.emitter.Emit(event)
	return nil
}
