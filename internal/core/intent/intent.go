// Package intent implements the payment and refund intent lifecycles. An
// intent is a declared movement of funds; only a payment intent in SETTLED
// state counts as paid.
package intent

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment intent.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInitiated  Status = "INITIATED"
	StatusConfirming Status = "CONFIRMING"
	StatusSettled    Status = "SETTLED"
	StatusFailed     Status = "FAILED"
	StatusExpired    Status = "EXPIRED"
	StatusRefunded   Status = "REFUNDED"
)

// Terminal reports whether no further transition is allowed out of s,
// except SETTLED -> REFUNDED on completion of refund disbursement.
func (s Status) Terminal() bool {
	switch s {
	case StatusFailed, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// transitions is the forward-only payment state machine.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInitiated, StatusFailed, StatusExpired},
	StatusInitiated:  {StatusConfirming, StatusFailed, StatusExpired},
	StatusConfirming: {StatusSettled, StatusFailed},
	StatusSettled:    {StatusRefunded},
}

// CanTransition reports whether s may advance to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RefundStatus is the lifecycle state of a refund intent.
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "PENDING"
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusCompleted  RefundStatus = "COMPLETED"
	RefundStatusFailed     RefundStatus = "FAILED"
)

// Error codes surfaced by intent creation and transitions.
const (
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeInvalidAmounts         = "INVALID_AMOUNTS"
	CodeInvalidDiscount        = "INVALID_DISCOUNT"
	CodeDiscountCodeRequired   = "DISCOUNT_CODE_REQUIRED"
	CodeIntentNotFound         = "INTENT_NOT_FOUND"
	CodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	CodePaymentNotSettled      = "PAYMENT_NOT_SETTLED"
	CodeRefundExceedsRemaining = "REFUND_EXCEEDS_REMAINING"
)

// PaymentIntent is the record governing when settlement of a payment is
// legal. Intents are never deleted.
type PaymentIntent struct {
	ID             string          `json:"id"`
	Reference      string          `json:"reference"`
	OrderID        string          `json:"orderId"`
	Amount         decimal.Decimal `json:"amount"`         // customer charge
	OriginalAmount decimal.Decimal `json:"originalAmount"` // full goods value
	DiscountAmount decimal.Decimal `json:"discountAmount"` // originalAmount - amount
	DiscountCode   string          `json:"discountCode,omitempty"`
	Provider       string          `json:"provider"`
	ProviderRef    string          `json:"providerRef,omitempty"`
	Currency       string          `json:"currency"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// RefundIntent is a declared refund against a settled payment. Disbursement
// entries are not emitted yet; the intent record is the system of record.
type RefundIntent struct {
	ID              string          `json:"id"`
	Reference       string          `json:"reference"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	Description     string          `json:"description,omitempty"`
	Status          RefundStatus    `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Store is the payment-intent persistence consumed by the service and the
// settlement orchestrator.
type Store interface {
	// Insert persists a new intent. Implementations return a unique-violation
	// error when the reference already exists.
	Insert(ctx context.Context, pi *PaymentIntent) error
	// GetByID returns the intent, or nil if absent.
	GetByID(ctx context.Context, id string) (*PaymentIntent, error)
	// GetByReference returns the intent with the reference, or nil.
	GetByReference(ctx context.Context, ref string) (*PaymentIntent, error)
	// UpdateStatus sets the status of an existing intent.
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// RefundStore is the refund-intent persistence.
type RefundStore interface {
	Insert(ctx context.Context, ri *RefundIntent) error
	GetByID(ctx context.Context, id string) (*RefundIntent, error)
	// ListByPayment returns all refund intents on a payment, oldest first.
	ListByPayment(ctx context.Context, paymentIntentID string) ([]*RefundIntent, error)
}
