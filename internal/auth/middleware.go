package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// Middleware rejects requests without a valid bearer token.
func Middleware(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			id, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Optional attaches the identity when a token is present and lets anonymous
// requests through. A token that fails verification is still rejected.
func Optional(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	required := Middleware(verifier, log)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := ExtractTokenFromRequest(r); errors.Is(err, ErrMissingToken) {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.UserID
}

// Caller returns the request's caller, with Admin set when it holds adminRole.
func Caller(ctx context.Context, adminRole string) models.Caller {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return models.Caller{}
	}
	return models.Caller{UserID: id.UserID, Admin: adminRole != "" && id.HasRole(adminRole)}
}
