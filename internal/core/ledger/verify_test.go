package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokopay/ledgerd/internal/core/ledger"
)

func TestVerifyChainIntactAccount(t *testing.T) {
	e, s := newTestEngine()
	mustAppend(t, e, s, credit("WALLET_A", "REF_1", "100"))
	mustAppend(t, e, s, credit("WALLET_A", "REF_2", "200"))
	mustAppend(t, e, s, debit("WALLET_A", "REF_3", "50"))

	result, err := e.VerifyChain(context.Background(), s.Entries(), "WALLET_A", 0, 0)
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, 3, result.EntriesVerified)
	assert.Equal(t, "Chain integrity verified", result.Message)
}

func TestVerifyChainEmptyAccount(t *testing.T) {
	e, s := newTestEngine()

	result, err := e.VerifyChain(context.Background(), s.Entries(), "WALLET_EMPTY", 0, 0)
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, 0, result.EntriesVerified)
}

func TestVerifyChainDetectsTamperedAmount(t *testing.T) {
	e, s := newTestEngine()
	mustAppend(t, e, s, credit("WALLET_A", "REF_1", "100"))
	mustAppend(t, e, s, credit("WALLET_A", "REF_2", "200"))
	mustAppend(t, e, s, credit("WALLET_A", "REF_3", "300"))

	s.Entries().Tamper("WALLET_A", 2, func(entry *ledger.Entry) {
		entry.Amount = decimal.RequireFromString("999")
	})

	result, err := e.VerifyChain(context.Background(), s.Entries(), "WALLET_A", 0, 0)
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.Equal(t, int64(2), result.BrokenAtSeq)
	assert.Equal(t, "Chain broken at sequence 2", result.Message)
	assert.NotEqual(t, result.ExpectedHash, result.ActualHash)
}

func TestVerifyChainDetectsBrokenLink(t *testing.T) {
	e, s := newTestEngine()
	mustAppend(t, e, s, credit("WALLET_A", "REF_1", "100"))
	mustAppend(t, e, s, credit("WALLET_A", "REF_2", "200"))

	// Rewrite prev hash and recompute the entry hash so only the link check
	// can catch it.
	s.Entries().Tamper("WALLET_A", 2, func(entry *ledger.Entry) {
		entry.PrevHash = "0000000000000000000000000000000000000000000000000000000000000000"
		entry.EntryHash = ledger.HashInputOf(entry).Hash()
	})

	result, err := e.VerifyChain(context.Background(), s.Entries(), "WALLET_A", 0, 0)
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.Equal(t, int64(2), result.BrokenAtSeq)
	assert.Equal(t, "Previous hash mismatch at sequence 2", result.Message)
}

func TestVerifyChainWindowBootstrapsPrevHash(t *testing.T) {
	e, s := newTestEngine()
	mustAppend(t, e, s, credit("WALLET_A", "REF_1", "100"))
	mustAppend(t, e, s, credit("WALLET_A", "REF_2", "200"))
	mustAppend(t, e, s, credit("WALLET_A", "REF_3", "300"))
	mustAppend(t, e, s, credit("WALLET_A", "REF_4", "400"))

	result, err := e.VerifyChain(context.Background(), s.Entries(), "WALLET_A", 2, 3)
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.EntriesVerified)
}

func TestVerifyChainIsReadOnly(t *testing.T) {
	e, s := newTestEngine()
	mustAppend(t, e, s, credit("WALLET_A", "REF_1", "100"))

	first, err := e.VerifyChain(context.Background(), s.Entries(), "WALLET_A", 0, 0)
	require.NoError(t, err)
	second, err := e.VerifyChain(context.Background(), s.Entries(), "WALLET_A", 0, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
