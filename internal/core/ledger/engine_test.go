package ledger_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokopay/ledgerd/internal/core/errs"
	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/testing/memstore"
)

func newTestEngine() (*ledger.Engine, *memstore.Store) {
	return ledger.NewEngine(zerolog.Nop()), memstore.New()
}

func mustAppend(t *testing.T, e *ledger.Engine, s *memstore.Store, in ledger.AppendInput) *ledger.Entry {
	t.Helper()
	entry, err := e.Append(context.Background(), s.Entries(), s.Balances(), in)
	require.NoError(t, err)
	return entry
}

func credit(account, ref, amount string) ledger.AppendInput {
	return ledger.AppendInput{
		Reference: ref,
		AccountID: account,
		EntryType: ledger.EntryTypeCredit,
		Amount:    decimal.RequireFromString(amount),
	}
}

func debit(account, ref, amount string) ledger.AppendInput {
	in := credit(account, ref, amount)
	in.EntryType = ledger.EntryTypeDebit
	return in
}

func TestAppendFirstEntry(t *testing.T) {
	e, s := newTestEngine()

	entry := mustAppend(t, e, s, credit("WALLET_A", "PAYMENT_ORD-1", "1000"))

	assert.Equal(t, int64(1), entry.WalletSeq)
	assert.Empty(t, entry.PrevHash)
	assert.Len(t, entry.EntryHash, 64)
	assert.NotEmpty(t, entry.ID)

	balance, err := s.Balances().Get(context.Background(), "WALLET_A")
	require.NoError(t, err)
	require.NotNil(t, balance)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("1000")))
	assert.Equal(t, int64(1), balance.LastEntrySeq)
	assert.Equal(t, ledger.DefaultCurrency, balance.Currency)
}

func TestAppendChainsSequencesAndHashes(t *testing.T) {
	e, s := newTestEngine()

	first := mustAppend(t, e, s, credit("WALLET_A", "REF_1", "100"))
	second := mustAppend(t, e, s, credit("WALLET_A", "REF_2", "50"))
	third := mustAppend(t, e, s, debit("WALLET_A", "REF_3", "30"))

	assert.Equal(t, int64(2), second.WalletSeq)
	assert.Equal(t, first.EntryHash, second.PrevHash)
	assert.Equal(t, int64(3), third.WalletSeq)
	assert.Equal(t, second.EntryHash, third.PrevHash)

	balance, err := s.Balances().Get(context.Background(), "WALLET_A")
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("120")))
	assert.Equal(t, int64(3), balance.LastEntrySeq)
}

func TestAppendIdempotentOnReference(t *testing.T) {
	e, s := newTestEngine()

	first := mustAppend(t, e, s, credit("WALLET_A", "PAYMENT_ORD-1", "1000"))
	again := mustAppend(t, e, s, credit("WALLET_A", "PAYMENT_ORD-1", "1000"))

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.EntryHash, again.EntryHash)

	// No double-count on the balance.
	balance, err := s.Balances().Get(context.Background(), "WALLET_A")
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("1000")))
	assert.Equal(t, int64(1), balance.LastEntrySeq)

	entries, err := s.Entries().ListRange(context.Background(), "WALLET_A", 1, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAppendDebitOnNonExistentWallet(t *testing.T) {
	e, s := newTestEngine()

	_, err := e.Append(context.Background(), s.Entries(), s.Balances(),
		debit("WALLET_NEW", "REF_1", "10"))
	require.Error(t, err)
	assert.Equal(t, ledger.CodeDebitOnNonExistentWallet, errs.CodeOf(err))
}

func TestAppendInsufficientBalance(t *testing.T) {
	e, s := newTestEngine()
	mustAppend(t, e, s, credit("WALLET_A", "REF_1", "100"))

	_, err := e.Append(context.Background(), s.Entries(), s.Balances(),
		debit("WALLET_A", "REF_2", "100.0001"))
	require.Error(t, err)
	assert.Equal(t, ledger.CodeInsufficientBalance, errs.CodeOf(err))

	var core *errs.Error
	require.ErrorAs(t, err, &core)
	assert.Equal(t, "100.0000", core.Details["balance"])
	assert.Equal(t, "100.0001", core.Details["amount"])
}

func TestAppendDebitToExactlyZero(t *testing.T) {
	e, s := newTestEngine()
	mustAppend(t, e, s, credit("WALLET_A", "REF_1", "100"))

	entry := mustAppend(t, e, s, debit("WALLET_A", "REF_2", "100"))
	assert.Equal(t, int64(2), entry.WalletSeq)

	balance, err := s.Balances().Get(context.Background(), "WALLET_A")
	require.NoError(t, err)
	assert.True(t, balance.Balance.IsZero())
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	e, s := newTestEngine()

	tests := []struct {
		name string
		in   ledger.AppendInput
	}{
		{"missing account", credit("", "REF", "10")},
		{"missing reference", credit("WALLET_A", "", "10")},
		{"zero amount", credit("WALLET_A", "REF", "0")},
		{"negative amount", credit("WALLET_A", "REF", "-5")},
		{"unknown entry type", ledger.AppendInput{
			Reference: "REF", AccountID: "WALLET_A",
			EntryType: "TRANSFER", Amount: decimal.RequireFromString("10"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Append(context.Background(), s.Entries(), s.Balances(), tt.in)
			require.Error(t, err)
			assert.Equal(t, ledger.CodeInvalidEntryInput, errs.CodeOf(err))
		})
	}
}

func TestRecomputeBalanceMatchesCache(t *testing.T) {
	e, s := newTestEngine()
	mustAppend(t, e, s, credit("WALLET_A", "REF_1", "500"))
	mustAppend(t, e, s, debit("WALLET_A", "REF_2", "120.5"))
	mustAppend(t, e, s, credit("WALLET_A", "REF_3", "20.75"))

	recomputed, err := e.RecomputeBalance(context.Background(), s.Entries(), "WALLET_A")
	require.NoError(t, err)

	balance, err := s.Balances().Get(context.Background(), "WALLET_A")
	require.NoError(t, err)
	assert.True(t, recomputed.Equal(balance.Balance))
	assert.True(t, recomputed.Equal(decimal.RequireFromString("400.25")))
}
