package sse

import (
	"context"
	"sync"

	"ms-reviews/internal/models"
)

// OrderEventEmitter fans order status changes out to SSE clients watching that order.
type OrderEventEmitter struct {
	clients map[string][]chan models.OrderStatusEvent
	mu      sync.RWMutex
}

func NewOrderEventEmitter() *OrderEventEmitter {
	return &OrderEventEmitter{
		clients: make(map[string][]chan models.OrderStatusEvent),
	}
}

// Subscribe registers a client for orderID. The channel is closed once ctx is done.
func (e *OrderEventEmitter) Subscribe(ctx context.Context, orderID string) <-chan models.OrderStatusEvent {
	clientChan := make(chan models.OrderStatusEvent, 10)

	e.mu.Lock()
	e.clients[orderID] = append(e.clients[orderID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(orderID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts to every subscriber of the event's order without blocking.
// Slow clients with a full buffer miss the event.
func (e *OrderEventEmitter) Emit(event models.OrderStatusEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[event.OrderID] {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *OrderEventEmitter) remove(orderID string, clientChan chan models.OrderStatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[orderID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[orderID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[orderID]) == 0 {
		delete(e.clients, orderID)
	}
}

func (e *OrderEventEmitter) ClientCount(orderID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[orderID])
}
