package order_api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	analytics_api "ms-reviews/internal/analytics/api"
	"ms-reviews/internal/auth"
	"ms-reviews/internal/logger"
)

type RouterConfig struct {
	Handler        *Handler
	SSE            *SSEHandler
	Analytics      *analytics_api.Handler
	Verifier       auth.Verifier
	Logger         *logger.Logger
	AllowedOrigins []string
}

// NewRouter wires the public, optionally authenticated and protected routes.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(cfg.Logger))

	// --- Public Routes ---
	r.Get("/healthz", cfg.Handler.Health)
	// Stripe signs the body; it must reach the handler untouched.
	r.Post("/webhooks/payment", cfg.Handler.StripeWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		r.Get("/promo-codes/{code}", cfg.Handler.PreviewPromo)
		if cfg.Handler.Receipts != nil {
			r.Get("/receipts/verify", cfg.Handler.VerifyReceipt)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.Optional(cfg.Verifier, cfg.Logger))
			r.Post("/checkout", cfg.Handler.Checkout)
		})

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Verifier, cfg.Logger))

			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.Get("/status", cfg.Handler.GetOrderStatus)
				r.Get("/events", cfg.SSE.HandleOrderEvents)
				r.Post("/verify-payment", cfg.Handler.VerifyPayment)
				r.Post("/review", cfg.Handler.SubmitReview)
				if cfg.Handler.Receipts != nil {
					r.Get("/receipt.png", cfg.Handler.GetReceiptQR)
				}
			})

			if cfg.Analytics != nil {
				cfg.Analytics.RegisterRoutes(r)
			}
		})
	})

	return r
}

// RequestLogger logs method, path, status and duration of every request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start).Round(time.Microsecond).String())
				if status >= http.StatusInternalServerError {
					log.Debug("API", fmt.Sprintf("request_id=%s", middleware.GetReqID(r.Context())))
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
