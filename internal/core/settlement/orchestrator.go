// Package settlement converts a confirmed payment intent into ledger entries
// inside one serializable transaction. The orchestrator is the only component
// allowed to append to the ledger; everything else reads.
package settlement

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sokopay/ledgerd/internal/audit"
	"github.com/sokopay/ledgerd/internal/core/errs"
	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/core/reference"
)

// Actor recorded on settlement audit events.
const Actor = "settlement-service"

// Error codes surfaced by settlement pre-checks.
const (
	CodeInvalidStatusForSettlement = "INVALID_STATUS_FOR_SETTLEMENT"
)

// TxContext exposes the transaction-bound stores the orchestrator writes
// through. All reads and writes of one settlement go through one TxContext.
type TxContext interface {
	Intents() intent.Store
	Entries() ledger.EntryStore
	Balances() ledger.BalanceStore
}

// Store runs a function inside one serializable settlement transaction with
// the mandated timeout. Any error rolls the whole transaction back.
// Serialization conflicts surface as retryable SERIALIZATION_FAILURE errors.
type Store interface {
	WithinSettlementTx(ctx context.Context, fn func(ctx context.Context, tx TxContext) error) error
}

// Result is the outcome of a settlement call.
type Result struct {
	Intent         *intent.PaymentIntent `json:"intent"`
	Entries        []*ledger.Entry       `json:"entries"`
	AlreadySettled bool                  `json:"alreadySettled"`
	Message        string                `json:"message"`
}

// Orchestrator is the sole ledger writer.
type Orchestrator struct {
	store  Store
	engine *ledger.Engine
	audit  audit.Recorder
	log    zerolog.Logger
}

// NewOrchestrator creates a settlement orchestrator.
func NewOrchestrator(store Store, engine *ledger.Engine, recorder audit.Recorder, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		engine: engine,
		audit:  recorder,
		log:    log.With().Str("component", "settlement").Logger(),
	}
}

// SettlePayment settles the payment intent by id. The call is idempotent:
// once an intent is SETTLED, further calls return the existing entries and
// perform no writes.
func (o *Orchestrator) SettlePayment(ctx context.Context, intentID string) (*Result, error) {
	var result *Result

	err := o.store.WithinSettlementTx(ctx, func(ctx context.Context, tx TxContext) error {
		pi, err := tx.Intents().GetByID(ctx, intentID)
		if err != nil {
			return err
		}
		if pi == nil {
			return errs.Newf(intent.CodeIntentNotFound, "payment intent %s not found", intentID)
		}

		if pi.Status == intent.StatusSettled {
			existing, err := o.collectLegs(ctx, tx, pi)
			if err != nil {
				return err
			}
			result = &Result{
				Intent:         pi,
				Entries:        existing,
				AlreadySettled: true,
				Message:        "Payment already settled",
			}
			return nil
		}

		if pi.Status != intent.StatusConfirming {
			return errs.Newf(CodeInvalidStatusForSettlement,
				"intent %s is %s, settlement requires CONFIRMING", pi.ID, pi.Status).
				WithDetail("current", string(pi.Status)).
				WithDetail("required", string(intent.StatusConfirming))
		}

		entries, err := o.emitLegs(ctx, tx, pi)
		if err != nil {
			return err
		}

		if err := tx.Intents().UpdateStatus(ctx, pi.ID, intent.StatusSettled); err != nil {
			return err
		}
		pi.Status = intent.StatusSettled

		result = &Result{
			Intent:  pi,
			Entries: entries,
			Message: fmt.Sprintf("Payment settled with %d ledger entries", len(entries)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadySettled {
		o.audit.Record(ctx, audit.Event{
			Action:  audit.ActionPaymentSettled,
			Actor:   Actor,
			Outcome: audit.OutcomeSuccess,
			Details: map[string]any{
				"intentId":   result.Intent.ID,
				"reference":  result.Intent.Reference,
				"entryCount": len(result.Entries),
			},
		})
	}

	return result, nil
}

// SettlePaymentByReference resolves the intent by reference and delegates.
func (o *Orchestrator) SettlePaymentByReference(ctx context.Context, ref string) (*Result, error) {
	var intentID string

	// Resolution happens outside the settlement transaction; the id is
	// re-read under the transaction in SettlePayment.
	err := o.store.WithinSettlementTx(ctx, func(ctx context.Context, tx TxContext) error {
		pi, err := tx.Intents().GetByReference(ctx, ref)
		if err != nil {
			return err
		}
		if pi == nil {
			return errs.Newf(intent.CodeIntentNotFound, "payment intent with reference %s not found", ref)
		}
		intentID = pi.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return o.SettlePayment(ctx, intentID)
}

// SettleByReference satisfies the webhook pipeline's settler dependency.
func (o *Orchestrator) SettleByReference(ctx context.Context, ref string) error {
	_, err := o.SettlePaymentByReference(ctx, ref)
	return err
}

// emitLegs appends one entry for a zero-discount payment, three for a
// discounted one: primary escrow credit, marketing debit, subsidy escrow
// credit, in that order. The ordering is observable through walletSeq on
// PLATFORM_ESCROW.
func (o *Orchestrator) emitLegs(ctx context.Context, tx TxContext, pi *intent.PaymentIntent) ([]*ledger.Entry, error) {
	primary, err := o.engine.Append(ctx, tx.Entries(), tx.Balances(), ledger.AppendInput{
		Reference:   pi.Reference,
		OrderID:     pi.OrderID,
		AccountID:   ledger.AccountPlatformEscrow,
		EntryType:   ledger.EntryTypeCredit,
		Amount:      pi.Amount,
		Description: fmt.Sprintf("Payment received for order %s", pi.OrderID),
	})
	if err != nil {
		return nil, err
	}
	entries := []*ledger.Entry{primary}

	if !pi.DiscountAmount.IsPositive() {
		return entries, nil
	}

	// An insufficient marketing balance fails the whole settlement: the
	// primary credit above rolls back with the transaction.
	subsidyDebit, err := o.engine.Append(ctx, tx.Entries(), tx.Balances(), ledger.AppendInput{
		Reference:   reference.DiscountLeg(pi.Reference),
		OrderID:     pi.OrderID,
		AccountID:   ledger.AccountMarketingWallet,
		EntryType:   ledger.EntryTypeDebit,
		Amount:      pi.DiscountAmount,
		Description: fmt.Sprintf("Discount subsidy for order %s (%s)", pi.OrderID, pi.DiscountCode),
	})
	if err != nil {
		return nil, err
	}
	entries = append(entries, subsidyDebit)

	subsidyCredit, err := o.engine.Append(ctx, tx.Entries(), tx.Balances(), ledger.AppendInput{
		Reference:   reference.DiscountEscrowLeg(pi.Reference),
		OrderID:     pi.OrderID,
		AccountID:   ledger.AccountPlatformEscrow,
		EntryType:   ledger.EntryTypeCredit,
		Amount:      pi.DiscountAmount,
		Description: fmt.Sprintf("Discount subsidy credit for order %s", pi.OrderID),
	})
	if err != nil {
		return nil, err
	}
	return append(entries, subsidyCredit), nil
}

// collectLegs gathers the entries an already settled intent emitted.
func (o *Orchestrator) collectLegs(ctx context.Context, tx TxContext, pi *intent.PaymentIntent) ([]*ledger.Entry, error) {
	lookups := []struct {
		accountID string
		ref       string
	}{
		{ledger.AccountPlatformEscrow, pi.Reference},
		{ledger.AccountMarketingWallet, reference.DiscountLeg(pi.Reference)},
		{ledger.AccountPlatformEscrow, reference.DiscountEscrowLeg(pi.Reference)},
	}

	var entries []*ledger.Entry
	for _, l := range lookups {
		entry, err := tx.Entries().GetByReference(ctx, l.accountID, l.ref)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
