package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONGenesisEntry(t *testing.T) {
	in := HashInput{
		AccountID: AccountMarketingWallet,
		WalletSeq: 1,
		Reference: "GENESIS_MARKETING_WALLET",
		EntryType: EntryTypeCredit,
		Amount:    decimal.RequireFromString("1000000"),
	}

	want := `{"prevHash":null,"accountId":"MARKETING_WALLET","walletSeq":1,` +
		`"reference":"GENESIS_MARKETING_WALLET","entryType":"CREDIT",` +
		`"amount":"1000000.0000","description":null}`
	assert.Equal(t, want, string(in.CanonicalJSON()))
}

func TestCanonicalJSONChainedEntry(t *testing.T) {
	in := HashInput{
		PrevHash:    "ab12",
		AccountID:   AccountPlatformEscrow,
		WalletSeq:   2,
		Reference:   "PAYMENT_ORD-77",
		EntryType:   EntryTypeCredit,
		Amount:      decimal.RequireFromString("1000"),
		Description: "Payment received for order ORD-77",
	}

	want := `{"prevHash":"ab12","accountId":"PLATFORM_ESCROW","walletSeq":2,` +
		`"reference":"PAYMENT_ORD-77","entryType":"CREDIT","amount":"1000.0000",` +
		`"description":"Payment received for order ORD-77"}`
	assert.Equal(t, want, string(in.CanonicalJSON()))
}

func TestCanonicalJSONEscaping(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        string
	}{
		{"quote and backslash", `say "hi" \now`, `"say \"hi\" \\now"`},
		{"short escapes", "a\tb\nc\rd", `"a\tb\nc\rd"`},
		{"other control chars", "x\x01y", `"x\u0001y"`},
		{"no html escaping", "<a>&</a>", `"<a>&</a>"`},
		{"utf8 passes through", "naïra ₦", `"naïra ₦"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := appendJSONString(nil, tt.description)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestHashIsLowercaseHexSHA256(t *testing.T) {
	in := HashInput{
		AccountID: AccountPlatformEscrow,
		WalletSeq: 1,
		Reference: "PAYMENT_ORD-1",
		EntryType: EntryTypeCredit,
		Amount:    decimal.RequireFromString("250.5"),
	}

	got := in.Hash()
	require.Len(t, got, 64)

	sum := sha256.Sum256(in.CanonicalJSON())
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestHashStableAcrossAmountRepresentations(t *testing.T) {
	a := HashInput{AccountID: "A", WalletSeq: 1, Reference: "R", EntryType: EntryTypeCredit,
		Amount: decimal.RequireFromString("1000")}
	b := a
	b.Amount = decimal.RequireFromString("1000.00")
	c := a
	c.Amount = decimal.RequireFromString("1000.0000")

	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, a.Hash(), c.Hash())
}

func TestHashChangesWithEveryField(t *testing.T) {
	base := HashInput{
		PrevHash:    "aa",
		AccountID:   "A",
		WalletSeq:   1,
		Reference:   "R",
		EntryType:   EntryTypeCredit,
		Amount:      decimal.RequireFromString("10"),
		Description: "d",
	}

	mutations := map[string]func(in *HashInput){
		"prevHash":    func(in *HashInput) { in.PrevHash = "bb" },
		"accountId":   func(in *HashInput) { in.AccountID = "B" },
		"walletSeq":   func(in *HashInput) { in.WalletSeq = 2 },
		"reference":   func(in *HashInput) { in.Reference = "S" },
		"entryType":   func(in *HashInput) { in.EntryType = EntryTypeDebit },
		"amount":      func(in *HashInput) { in.Amount = decimal.RequireFromString("10.0001") },
		"description": func(in *HashInput) { in.Description = "e" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			mutated := base
			mutate(&mutated)
			assert.NotEqual(t, base.Hash(), mutated.Hash())
		})
	}
}

func TestCanonicalAmount(t *testing.T) {
	assert.Equal(t, "1000.0000", CanonicalAmount(decimal.RequireFromString("1000")))
	assert.Equal(t, "0.1000", CanonicalAmount(decimal.RequireFromString("0.1")))
	assert.Equal(t, "99.9999", CanonicalAmount(decimal.RequireFromString("99.99985")))
}
