package models

import "time"

// ConfirmSource identifies which channel observed a payment.
type ConfirmSource string

const (
	SourceWebhook ConfirmSource = "webhook"
	SourceManual  ConfirmSource = "manual"
	SourcePoll    ConfirmSource = "poll"
)

type ConfirmOutcome string

const (
	OutcomeConfirmed        ConfirmOutcome = "confirmed"
	OutcomeAlreadyConfirmed ConfirmOutcome = "already_confirmed"
	OutcomeRejected         ConfirmOutcome = "rejected"
)

// Rejection reasons for manual verification.
const (
	ReasonNotOwner        = "not_owner"
	ReasonNoSession       = "no_session"
	ReasonProviderNotPaid = "provider_not_paid"
	ReasonLocked          = "verification_in_progress"
)

type ConfirmResult struct {
	OrderID string         `json:"order_id"`
	Outcome ConfirmOutcome `json:"outcome"`
	Status  OrderStatus    `json:"status"`
	Reason  string         `json:"reason,omitempty"`
}

// Success reports whether the order is paid after the attempt.
func (r ConfirmResult) Success() bool {
	return r.Outcome == OutcomeConfirmed || r.Outcome == OutcomeAlreadyConfirmed
}

// OrderStatusEvent is published whenever an order changes state.
type OrderStatusEvent struct {
	OrderID    string        `json:"order_id"`
	Status     OrderStatus   `json:"status"`
	Source     ConfirmSource `json:"source,omitempty"`
	ArtistID   string        `json:"artist_id,omitempty"`
	ReviewerID string        `json:"reviewer_id"`
	OccurredAt time.Time     `json:"occurred_at"`
	// Origin is the instance that produced the event.
	Origin string `json:"origin,omitempty"`
}

type NotificationType string

const (
	NotificationOrderPaid      NotificationType = "order_paid"
	NotificationReviewComplete NotificationType = "review_completed"
)

type Notification struct {
	UserID    string           `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
}

// VerifyPaymentResponse is returned by manual verification.
type VerifyPaymentResponse struct {
	Success bool        `json:"success"`
	Status  OrderStatus `json:"status,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID string
	Admin  bool
}
