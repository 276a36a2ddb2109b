package models

import (
	"errors"
	"fmt"
	"strings"
)

// Categories. Handlers map these to HTTP status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid request")
	ErrProvider     = errors.New("payment provider error")
)

var (
	ErrOrderNotFound       = fmt.Errorf("order %w", ErrNotFound)
	ErrReviewerNotFound    = fmt.Errorf("reviewer %w", ErrNotFound)
	ErrPackageNotFound     = fmt.Errorf("package %w", ErrNotFound)
	ErrPromoNotFound       = fmt.Errorf("promo code %w", ErrNotFound)
	ErrPromoExpired        = fmt.Errorf("promo code expired: %w", ErrInvalid)
	ErrPromoMaxUsesReached = fmt.Errorf("promo code usage limit reached: %w", ErrConflict)
	ErrOrderNotPaid        = fmt.Errorf("order not paid: %w", ErrConflict)
	ErrInvalidTransition   = fmt.Errorf("invalid status transition: %w", ErrConflict)
	ErrNotOwner            = fmt.Errorf("caller does not own this order: %w", ErrForbidden)
)

// ValidationError carries every problem found in a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// ProviderError wraps a failed call to the payment provider.
type ProviderError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}
