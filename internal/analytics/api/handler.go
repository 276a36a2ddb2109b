package analytics_api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-reviews/internal/analytics"
	"ms-reviews/internal/auth"
	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
	"ms-reviews/internal/utils"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service   *analytics.Service
	Reviewers ReviewerLookup
	Logger    *logger.Logger
	AdminRole string
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, reviewers ReviewerLookup, log *logger.Logger, adminRole string) *Handler {
	return &Handler{
		Service:   service,
		Reviewers: reviewers,
		Logger:    log,
		AdminRole: adminRole,
	}
}

// RegisterRoutes registers the analytics routes on an authenticated chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reviewers/{reviewerId}", func(r chi.Router) {
		r.Get("/analytics", h.GetReviewerAnalytics)
		r.Get("/orders", h.GetReviewerOrders)
	})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	reviewerID := chi.URLParam(r, "reviewerId")
	caller := auth.Caller(r.Context(), h.AdminRole)

	if err := h.verifyReviewerAccess(r.Context(), reviewerID, caller); err != nil {
		status, message := accessStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("ANALYTICS", "Error verifying reviewer access: "+err.Error())
		}
		_ = utils.WriteJSON(w, status, utils.ErrorResponse(message, ""))
		return "", false
	}
	return reviewerID, true
}

// parseWindow reads ?from= and ?to= as dates; to is inclusive.
func parseWindow(r *http.Request) (analytics.Window, error) {
	var window analytics.Window
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return window, fmt.Errorf("from: %w", err)
		}
		window.From = from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return window, fmt.Errorf("to: %w", err)
		}
		window.To = to.AddDate(0, 0, 1)
	}
	return window, nil
}

// GetReviewerAnalytics handles revenue analytics request for a reviewer
func (h *Handler) GetReviewerAnalytics(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		_ = utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid date range", err.Error()))
		return
	}

	result, err := h.Service.GetReviewerAnalytics(r.Context(), reviewerID, window)
	if err != nil {
		h.Logger.Error("ANALYTICS", "Error getting reviewer analytics: "+err.Error())
		_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to get analytics", ""))
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, result)
}

// GetReviewerOrders handles the reviewer's order listing
func (h *Handler) GetReviewerOrders(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	options := analytics.ReviewerOrderOptions{
		Status: models.OrderStatus(query.Get("status")),
		SortBy: query.Get("sort_by"),
	}
	if options.Status != "" && !options.Status.Valid() {
		_ = utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid status", string(options.Status)))
		return
	}
	options.SortDesc, _ = strconv.ParseBool(query.Get("sort_desc"))
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		options.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		options.Offset = offset
	}

	orders, err := h.Service.GetReviewerOrders(r.Context(), reviewerID, options)
	if err != nil {
		h.Logger.Error("ANALYTICS", "Error getting reviewer orders: "+err.Error())
		_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to get orders", ""))
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, orders)
}
