package order_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-reviews/internal/auth"
	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
	"ms-reviews/internal/order"
	"ms-reviews/internal/order/discount"
	"ms-reviews/internal/receipt"
	"ms-reviews/internal/utils"
)

const maxBodyBytes = 1 << 20

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	OrderService *order.OrderService
	Promos       *discount.DiscountService
	Poller       *order.StatusPoller
	Receipts     *receipt.Generator
	Logger       *logger.Logger
	AdminRole    string
	HealthChecks map[string]HealthCheck
}

func (h *Handler) caller(r *http.Request) models.Caller {
	return auth.Caller(r.Context(), h.AdminRole)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			_ = utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ValidationResponse([]string{typeProblem(typeErr)}))
			return false
		}
		h.Logger.Warn("API", fmt.Sprintf("%s %s: invalid body: %v", r.Method, r.URL.Path, err))
		_ = utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return false
	}
	return true
}

func typeProblem(err *json.UnmarshalTypeError) string {
	switch err.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return err.Field + " must be a whole number"
	case reflect.Float32, reflect.Float64:
		return err.Field + " must be a number"
	case reflect.String:
		return err.Field + " must be a string"
	case reflect.Slice:
		return err.Field + " must be a list"
	default:
		return err.Field + " has the wrong type"
	}
}

// writeError maps error categories onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(h.Logger, w, r, err)
}

func writeError(log *logger.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		_ = utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ValidationResponse(verr.Problems))
		return
	}

	status, message := http.StatusInternalServerError, "Internal error"
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, models.ErrForbidden):
		status, message = http.StatusForbidden, "Forbidden"
	case errors.Is(err, models.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, models.ErrConflict):
		status, message = http.StatusConflict, "Conflict"
	case errors.Is(err, models.ErrInvalid):
		status, message = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, models.ErrProvider):
		status, message = http.StatusBadGateway, "Payment provider error"
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "Timed out"
	}

	detail := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		if status == http.StatusInternalServerError {
			detail = ""
		}
	} else {
		log.Warn("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
	_ = utils.WriteJSON(w, status, utils.ErrorResponse(message, detail))
}

// Checkout starts a purchase. Authenticated callers buy as artists, anonymous
// callers must supply guest_email.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ArtistID = auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("Checkout: reviewer=%s package=%s artist=%q", req.ReviewerID, req.PackageID, req.ArtistID))

	resp, err := h.OrderService.StartCheckout(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusCreated, resp)
}

// GetOrderStatus returns the order status; with ?wait=true it long-polls until paid.
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	caller := h.caller(r)

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait && h.Poller != nil {
		res, err := h.OrderService.WaitForPayment(r.Context(), h.Poller, orderID, caller)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		_ = utils.WriteJSON(w, http.StatusOK, models.OrderStatusResponse{OrderID: orderID, Status: res.Status})
		return
	}

	resp, err := h.OrderService.GetOrderStatus(r.Context(), orderID, caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, resp)
}

// VerifyPayment asks the provider directly whether the order was paid.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("VerifyPayment: orderId=%s", orderID))

	res, err := h.OrderService.VerifyPayment(r.Context(), orderID, h.caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Reason == models.ReasonNotOwner {
		status = http.StatusForbidden
	}
	_ = utils.WriteJSON(w, status, models.VerifyPaymentResponse{
		Success: res.Success(),
		Status:  res.Status,
		Error:   res.Reason,
	})
}

// SubmitReview completes a paid order with the reviewer's review.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var submission models.ReviewSubmission
	if !h.decode(w, r, &submission) {
		return
	}

	res, err := h.OrderService.SubmitReview(r.Context(), orderID, h.caller(r), submission, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyCompleted {
		status = http.StatusOK
	}
	_ = utils.WriteJSON(w, status, res)
}

// PreviewPromo prices a code against ?amount= without redeeming it.
func (h *Handler) PreviewPromo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	amount := 0.0
	if raw := r.URL.Query().Get("amount"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			_ = utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid amount", raw))
			return
		}
		amount = parsed
	}

	quote, err := h.Promos.Quote(r.Context(), code, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, quote)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true
	for name, check := range h.HealthChecks {
		if err := check(r.Context()); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		_ = utils.WriteJSON(w, http.StatusServiceUnavailable, utils.APIResponse{Success: false, Message: "degraded", Data: checks})
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", checks))
}
