package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-reviews/internal/auth"
	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
	"ms-reviews/internal/order"
	"ms-reviews/internal/sse"
)

// SSEHandler streams order status changes to the artist and reviewer.
type SSEHandler struct {
	OrderService *order.OrderService
	EventEmitter *sse.OrderEventEmitter
	Logger       *logger.Logger
	AdminRole    string
	Heartbeat    time.Duration
}

func NewSSEHandler(orderService *order.OrderService, emitter *sse.OrderEventEmitter, log *logger.Logger, adminRole string) *SSEHandler {
	return &SSEHandler{
		OrderService: orderService,
		EventEmitter: emitter,
		Logger:       log,
		AdminRole:    adminRole,
		Heartbeat:    15 * time.Second,
	}
}

// HandleOrderEvents sends the current status, then every change until the
// client disconnects or the order completes.
func (h *SSEHandler) HandleOrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	current, err := h.OrderService.GetOrder(ctx, orderID, auth.Caller(ctx, h.AdminRole))
	if err != nil {
		writeError(h.Logger, w, r, err)
		return
	}

	// Subscribe before writing so no change slips between the snapshot and the stream.
	eventChan := h.EventEmitter.Subscribe(ctx, orderID)

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h.setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":%q,\"order_id\":%q}\n\n", current.Status, orderID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to order events for order: %s", orderID))
	if current.Status == models.OrderStatusCompleted {
		return
	}

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize status event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", jsonData)
			flusher.Flush()
			if event.Status == models.OrderStatusCompleted {
				return
			}

		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from order events for: %s", orderID))
			return
		}
	}
}

// Helper function to set up SSE headers
func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
