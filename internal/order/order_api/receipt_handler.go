package order_api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-reviews/internal/models"
	"ms-reviews/internal/receipt"
	"ms-reviews/internal/utils"
)

type ReceiptVerification struct {
	Valid       bool               `json:"valid"`
	OrderID     string             `json:"order_id"`
	ReviewerID  string             `json:"reviewer_id"`
	Status      models.OrderStatus `json:"status"`
	CompletedAt time.Time          `json:"completed_at"`
}

// GetReceiptQR returns a PNG QR code vouching for a completed review.
func (h *Handler) GetReceiptQR(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.OrderService.GetOrder(r.Context(), orderID, h.caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	claims, err := receipt.ClaimsFor(order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	png, err := h.Receipts.QR(claims)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("render receipt for %s: %w", orderID, err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// VerifyReceipt checks a scanned receipt token against the current order.
func (h *Handler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Receipts.Parse(r.URL.Query().Get("token"))
	if err != nil {
		h.Logger.LogSecurity("RECEIPT_INVALID", fmt.Sprintf("rejected receipt token from %s", r.RemoteAddr))
		h.writeError(w, r, err)
		return
	}

	order, err := h.OrderService.DB.GetOrderByID(r.Context(), claims.OrderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, ReceiptVerification{
		Valid:       order.Status == models.OrderStatusCompleted && order.ReviewerID == claims.ReviewerID,
		OrderID:     order.ID,
		ReviewerID:  order.ReviewerID,
		Status:      order.Status,
		CompletedAt: claims.CompletedAt,
	})
}
