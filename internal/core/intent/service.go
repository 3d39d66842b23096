package intent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/core/errs"
	"github.com/sokopay/ledgerd/internal/core/reference"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

// refundMintAttempts bounds the re-read loop when two refund creations race
// on the same sequence number.
const refundMintAttempts = 3

// Service creates and advances payment and refund intents.
type Service struct {
	payments Store
	refunds  RefundStore
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates an intent service.
func NewService(payments Store, refunds RefundStore, log zerolog.Logger) *Service {
	return &Service{
		payments: payments,
		refunds:  refunds,
		log:      log.With().Str("component", "intent").Logger(),
		now:      time.Now,
	}
}

// CreatePaymentInput is the request to create a payment intent.
type CreatePaymentInput struct {
	OrderID        string
	Amount         decimal.Decimal
	OriginalAmount decimal.Decimal
	DiscountCode   string
	Provider       string
	Currency       string
	Metadata       map[string]any
}

// CreatePayment creates a payment intent in PENDING state. Creation is
// idempotent on the derived reference: if an intent with that reference
// exists it is returned unchanged and created is false (first writer wins
// the full record, no field comparison).
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*PaymentIntent, bool, error) {
	if in.OrderID == "" {
		return nil, false, errs.New(CodeInvalidAmount, "order id is required")
	}
	if !in.Amount.IsPositive() {
		return nil, false, errs.Newf(CodeInvalidAmount, "amount must be positive, got %s", in.Amount)
	}
	if in.OriginalAmount.LessThan(in.Amount) {
		return nil, false, errs.Newf(CodeInvalidAmounts,
			"original amount %s must be >= amount %s", in.OriginalAmount, in.Amount)
	}
	discount := in.OriginalAmount.Sub(in.Amount)
	if discount.IsNegative() {
		return nil, false, errs.New(CodeInvalidDiscount, "discount amount cannot be negative")
	}
	if discount.IsPositive() && in.DiscountCode == "" {
		return nil, false, errs.New(CodeDiscountCodeRequired,
			"discount code is required when a discount is applied")
	}

	ref := reference.Payment(in.OrderID)

	existing, err := s.payments.GetByReference(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	currency := in.Currency
	if currency == "" {
		currency = "NGN"
	}

	now := s.now().UTC()
	pi := &PaymentIntent{
		ID:             uuid.NewString(),
		Reference:      ref,
		OrderID:        in.OrderID,
		Amount:         in.Amount,
		OriginalAmount: in.OriginalAmount,
		DiscountAmount: discount,
		DiscountCode:   in.DiscountCode,
		Provider:       in.Provider,
		Currency:       currency,
		Metadata:       in.Metadata,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.payments.Insert(ctx, pi); err != nil {
		// A concurrent creator won the reference: return its record.
		if errors.Is(err, relationaldb.ErrUniqueViolation) {
			winner, readErr := s.payments.GetByReference(ctx, ref)
			if readErr != nil {
				return nil, false, readErr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	s.log.Info().
		Str("intent_id", pi.ID).
		Str("reference", pi.Reference).
		Str("order_id", pi.OrderID).
		Str("amount", pi.Amount.StringFixed(4)).
		Str("discount", discount.StringFixed(4)).
		Msg("payment intent created")

	return pi, true, nil
}

// GetPayment returns the payment intent by id.
func (s *Service) GetPayment(ctx context.Context, id string) (*PaymentIntent, error) {
	pi, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pi == nil {
		return nil, errs.Newf(CodeIntentNotFound, "payment intent %s not found", id)
	}
	return pi, nil
}

// GetPaymentByReference returns the payment intent by its reference.
func (s *Service) GetPaymentByReference(ctx context.Context, ref string) (*PaymentIntent, error) {
	pi, err := s.payments.GetByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if pi == nil {
		return nil, errs.Newf(CodeIntentNotFound, "payment intent with reference %s not found", ref)
	}
	return pi, nil
}

// GetPaymentByOrderID derives the reference for the order and reads by it.
func (s *Service) GetPaymentByOrderID(ctx context.Context, orderID string) (*PaymentIntent, error) {
	return s.GetPaymentByReference(ctx, reference.Payment(orderID))
}

// Transition advances a payment intent along the forward-only state machine.
// Settlement to SETTLED is not reachable here: only the settlement
// orchestrator performs that transition, inside its own transaction.
func (s *Service) Transition(ctx context.Context, id string, next Status) (*PaymentIntent, error) {
	if next == StatusSettled {
		return nil, errs.New(CodeInvalidTransition, "SETTLED is reserved for the settlement orchestrator")
	}

	pi, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !pi.Status.CanTransition(next) {
		return nil, errs.Newf(CodeInvalidTransition,
			"cannot transition intent %s from %s to %s", id, pi.Status, next).
			WithDetail("current", string(pi.Status)).
			WithDetail("requested", string(next))
	}

	if err := s.payments.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	pi.Status = next
	pi.UpdatedAt = s.now().UTC()

	s.log.Info().
		Str("intent_id", id).
		Str("status", string(next)).
		Msg("payment intent transitioned")

	return pi, nil
}

// CreateRefundInput is the request to create a refund intent.
type CreateRefundInput struct {
	PaymentIntentID string
	Amount          decimal.Decimal
	Reason          string
	Description     string
}

// CreateRefund records a refund intent against a settled payment. The sum of
// all non-failed refund amounts may never exceed the payment amount.
// Disbursement ledger entries are not emitted here.
func (s *Service) CreateRefund(ctx context.Context, in CreateRefundInput) (*RefundIntent, error) {
	if !in.Amount.IsPositive() {
		return nil, errs.Newf(CodeInvalidAmount, "refund amount must be positive, got %s", in.Amount)
	}

	pi, err := s.payments.GetByID(ctx, in.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if pi == nil {
		return nil, errs.Newf(CodeIntentNotFound, "payment intent %s not found", in.PaymentIntentID)
	}
	if pi.Status != StatusSettled {
		return nil, errs.Newf(CodePaymentNotSettled,
			"payment %s is %s, refunds require SETTLED", pi.ID, pi.Status)
	}

	// The sequence is derived from the current refund count, so a unique
	// violation means another creator got there first: re-read and re-mint.
	var lastErr error
	for attempt := 0; attempt < refundMintAttempts; attempt++ {
		refunds, err := s.refunds.ListByPayment(ctx, pi.ID)
		if err != nil {
			return nil, err
		}

		// The sequence counts every refund so references of failed attempts
		// stay burned; only non-failed amounts count against the budget.
		active := decimal.Zero
		sequence := 1
		for _, r := range refunds {
			sequence++
			if r.Status == RefundStatusFailed {
				continue
			}
			active = active.Add(r.Amount)
		}

		if active.Add(in.Amount).GreaterThan(pi.Amount) {
			return nil, errs.Newf(CodeRefundExceedsRemaining,
				"refund %s exceeds remaining refundable %s on payment %s",
				in.Amount.StringFixed(4), pi.Amount.Sub(active).StringFixed(4), pi.ID).
				WithDetail("remaining", pi.Amount.Sub(active).StringFixed(4))
		}

		now := s.now().UTC()
		ri := &RefundIntent{
			ID:              uuid.NewString(),
			Reference:       reference.Refund(pi.ID, sequence),
			PaymentIntentID: pi.ID,
			Amount:          in.Amount,
			Reason:          in.Reason,
			Description:     in.Description,
			Status:          RefundStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		err = s.refunds.Insert(ctx, ri)
		if err == nil {
			s.log.Info().
				Str("refund_id", ri.ID).
				Str("reference", ri.Reference).
				Str("payment_intent_id", pi.ID).
				Str("amount", ri.Amount.StringFixed(4)).
				Msg("refund intent created")
			return ri, nil
		}
		if !errors.Is(err, relationaldb.ErrUniqueViolation) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}
