package settlement_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokopay/ledgerd/internal/audit"
	"github.com/sokopay/ledgerd/internal/core/errs"
	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/core/settlement"
	"github.com/sokopay/ledgerd/internal/testing/memstore"
)

// captureRecorder collects audit events for assertions.
type captureRecorder struct {
	events []audit.Event
}

func (r *captureRecorder) Record(ctx context.Context, e audit.Event) {
	r.events = append(r.events, e)
}

type fixture struct {
	store        *memstore.Store
	engine       *ledger.Engine
	orchestrator *settlement.Orchestrator
	recorder     *captureRecorder
}

func newFixture() *fixture {
	store := memstore.New()
	engine := ledger.NewEngine(zerolog.Nop())
	recorder := &captureRecorder{}
	return &fixture{
		store:        store,
		engine:       engine,
		orchestrator: settlement.NewOrchestrator(store, engine, recorder, zerolog.Nop()),
		recorder:     recorder,
	}
}

// confirmingIntent stores a payment intent in CONFIRMING state.
func (f *fixture) confirmingIntent(t *testing.T, orderID, amount, original, code string) *intent.PaymentIntent {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	orig := decimal.RequireFromString(original)
	pi := &intent.PaymentIntent{
		ID:             "pi_" + orderID,
		Reference:      "PAYMENT_" + orderID,
		OrderID:        orderID,
		Amount:         amt,
		OriginalAmount: orig,
		DiscountAmount: orig.Sub(amt),
		DiscountCode:   code,
		Provider:       "flutterwave",
		Currency:       "NGN",
		Status:         intent.StatusConfirming,
	}
	require.NoError(t, f.store.Payments().Insert(context.Background(), pi))
	return pi
}

// fundMarketing credits the marketing wallet through the engine.
func (f *fixture) fundMarketing(t *testing.T, amount string) {
	t.Helper()
	_, err := f.engine.Append(context.Background(), f.store.Entries(), f.store.Balances(), ledger.AppendInput{
		Reference: "GENESIS_MARKETING_WALLET",
		AccountID: ledger.AccountMarketingWallet,
		EntryType: ledger.EntryTypeCredit,
		Amount:    decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
}

func balanceOf(t *testing.T, s *memstore.Store, accountID string) decimal.Decimal {
	t.Helper()
	b, err := s.Balances().Get(context.Background(), accountID)
	require.NoError(t, err)
	if b == nil {
		return decimal.Zero
	}
	return b.Balance
}

func TestSettlePaymentWithoutDiscount(t *testing.T) {
	f := newFixture()
	pi := f.confirmingIntent(t, "ORD-1", "1000", "1000", "")

	result, err := f.orchestrator.SettlePayment(context.Background(), pi.ID)
	require.NoError(t, err)

	assert.False(t, result.AlreadySettled)
	assert.Equal(t, intent.StatusSettled, result.Intent.Status)
	require.Len(t, result.Entries, 1)

	entry := result.Entries[0]
	assert.Equal(t, ledger.AccountPlatformEscrow, entry.AccountID)
	assert.Equal(t, ledger.EntryTypeCredit, entry.EntryType)
	assert.Equal(t, pi.Reference, entry.Reference)
	assert.Equal(t, "Payment received for order ORD-1", entry.Description)

	assert.True(t, balanceOf(t, f.store, ledger.AccountPlatformEscrow).
		Equal(decimal.RequireFromString("1000")))

	stored, err := f.store.Payments().GetByID(context.Background(), pi.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusSettled, stored.Status)

	require.Len(t, f.recorder.events, 1)
	assert.Equal(t, audit.ActionPaymentSettled, f.recorder.events[0].Action)
	assert.Equal(t, settlement.Actor, f.recorder.events[0].Actor)
}

func TestSettlePaymentWithDiscount(t *testing.T) {
	f := newFixture()
	f.fundMarketing(t, "1000000")
	pi := f.confirmingIntent(t, "ORD-2", "900", "1000", "WELCOME10")

	result, err := f.orchestrator.SettlePayment(context.Background(), pi.ID)
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)

	primary, subsidyDebit, subsidyCredit := result.Entries[0], result.Entries[1], result.Entries[2]

	assert.Equal(t, ledger.AccountPlatformEscrow, primary.AccountID)
	assert.True(t, primary.Amount.Equal(decimal.RequireFromString("900")))

	assert.Equal(t, ledger.AccountMarketingWallet, subsidyDebit.AccountID)
	assert.Equal(t, ledger.EntryTypeDebit, subsidyDebit.EntryType)
	assert.True(t, subsidyDebit.Amount.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, "PAYMENT_ORD-2_DISC", subsidyDebit.Reference)
	assert.Contains(t, subsidyDebit.Description, "WELCOME10")

	assert.Equal(t, ledger.AccountPlatformEscrow, subsidyCredit.AccountID)
	assert.Equal(t, ledger.EntryTypeCredit, subsidyCredit.EntryType)
	assert.Equal(t, "PAYMENT_ORD-2_DISC_ESCROW", subsidyCredit.Reference)

	// The two escrow legs chain in emission order.
	assert.Equal(t, primary.WalletSeq+1, subsidyCredit.WalletSeq)
	assert.Equal(t, primary.EntryHash, subsidyCredit.PrevHash)

	assert.True(t, balanceOf(t, f.store, ledger.AccountPlatformEscrow).
		Equal(decimal.RequireFromString("1000")))
	assert.True(t, balanceOf(t, f.store, ledger.AccountMarketingWallet).
		Equal(decimal.RequireFromString("999900")))
}

func TestSettlePaymentIdempotent(t *testing.T) {
	f := newFixture()
	f.fundMarketing(t, "1000000")
	pi := f.confirmingIntent(t, "ORD-3", "900", "1000", "WELCOME10")

	first, err := f.orchestrator.SettlePayment(context.Background(), pi.ID)
	require.NoError(t, err)

	second, err := f.orchestrator.SettlePayment(context.Background(), pi.ID)
	require.NoError(t, err)

	assert.True(t, second.AlreadySettled)
	assert.Equal(t, "Payment already settled", second.Message)
	require.Len(t, second.Entries, 3)
	assert.Equal(t, first.Entries[0].ID, second.Entries[0].ID)

	// No balance movement on the re-settle.
	assert.True(t, balanceOf(t, f.store, ledger.AccountMarketingWallet).
		Equal(decimal.RequireFromString("999900")))

	// Only the first settlement audits.
	assert.Len(t, f.recorder.events, 1)
}

func TestSettlePaymentRequiresConfirming(t *testing.T) {
	f := newFixture()
	pi := f.confirmingIntent(t, "ORD-4", "500", "500", "")
	require.NoError(t, f.store.Payments().UpdateStatus(context.Background(), pi.ID, intent.StatusPending))

	_, err := f.orchestrator.SettlePayment(context.Background(), pi.ID)
	require.Error(t, err)
	assert.Equal(t, settlement.CodeInvalidStatusForSettlement, errs.CodeOf(err))

	// Nothing was written.
	entries, err := f.store.Entries().ListRange(context.Background(), ledger.AccountPlatformEscrow, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSettlePaymentNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.orchestrator.SettlePayment(context.Background(), "missing")
	assert.Equal(t, intent.CodeIntentNotFound, errs.CodeOf(err))
}

func TestSettlePaymentRollsBackOnInsufficientSubsidy(t *testing.T) {
	f := newFixture()
	f.fundMarketing(t, "50") // discount is 100, marketing cannot cover it
	pi := f.confirmingIntent(t, "ORD-5", "900", "1000", "WELCOME10")

	_, err := f.orchestrator.SettlePayment(context.Background(), pi.ID)
	require.Error(t, err)
	assert.Equal(t, ledger.CodeInsufficientBalance, errs.CodeOf(err))

	// The whole transaction rolled back: the primary escrow credit is gone
	// and the intent still awaits settlement.
	entries, err := f.store.Entries().ListRange(context.Background(), ledger.AccountPlatformEscrow, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.True(t, balanceOf(t, f.store, ledger.AccountMarketingWallet).
		Equal(decimal.RequireFromString("50")))

	stored, err := f.store.Payments().GetByID(context.Background(), pi.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.StatusConfirming, stored.Status)

	assert.Empty(t, f.recorder.events)
}

func TestSettlePaymentByReference(t *testing.T) {
	f := newFixture()
	pi := f.confirmingIntent(t, "ORD-6", "250", "250", "")

	result, err := f.orchestrator.SettlePaymentByReference(context.Background(), pi.Reference)
	require.NoError(t, err)
	assert.Equal(t, pi.ID, result.Intent.ID)
	assert.Equal(t, intent.StatusSettled, result.Intent.Status)

	_, err = f.orchestrator.SettlePaymentByReference(context.Background(), "PAYMENT_UNKNOWN")
	assert.Equal(t, intent.CodeIntentNotFound, errs.CodeOf(err))
}

func TestSeedGenesis(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.orchestrator.SeedGenesis(context.Background()))

	assert.True(t, balanceOf(t, f.store, ledger.AccountMarketingWallet).
		Equal(decimal.RequireFromString("1000000")))
	assert.True(t, balanceOf(t, f.store, ledger.AccountPlatformEscrow).IsZero())
	assert.True(t, balanceOf(t, f.store, ledger.AccountLegacyMigration).IsZero())

	genesis, err := f.store.Entries().GetByReference(context.Background(),
		ledger.AccountMarketingWallet, settlement.GenesisMarketingReference)
	require.NoError(t, err)
	require.NotNil(t, genesis)
	assert.Equal(t, int64(1), genesis.WalletSeq)
	assert.Empty(t, genesis.PrevHash)

	require.Len(t, f.recorder.events, 1)
	assert.Equal(t, audit.ActionGenesisSeeded, f.recorder.events[0].Action)

	// Seeding again is a no-op.
	require.NoError(t, f.orchestrator.SeedGenesis(context.Background()))
	assert.True(t, balanceOf(t, f.store, ledger.AccountMarketingWallet).
		Equal(decimal.RequireFromString("1000000")))
	assert.Len(t, f.recorder.events, 1)
}
