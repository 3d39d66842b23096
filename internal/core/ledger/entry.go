// Package ledger implements the append-only hash-chained ledger engine:
// canonical entry hashing, the append algorithm with atomic balance-cache
// maintenance, chain verification and balance recomputation.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/core/errs"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryTypeCredit EntryType = "CREDIT"
	EntryTypeDebit  EntryType = "DEBIT"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t == EntryTypeCredit || t == EntryTypeDebit
}

// Well-known accounts seeded at installation.
const (
	AccountMarketingWallet = "MARKETING_WALLET"
	AccountPlatformEscrow  = "PLATFORM_ESCROW"
	AccountLegacyMigration = "LEGACY_MIGRATION_WALLET"
)

// DefaultCurrency is the currency assigned to balance rows at creation.
const DefaultCurrency = "NGN"

// AmountScale is the fixed-point scale of every monetary amount.
const AmountScale = 4

// Error codes surfaced by the engine.
const (
	CodeInsufficientBalance      = "INSUFFICIENT_BALANCE"
	CodeDebitOnNonExistentWallet = "DEBIT_ON_NON_EXISTENT_WALLET"
	CodeInvalidEntryInput        = "INVALID_ENTRY_INPUT"
	CodeSerializationFailure     = "SERIALIZATION_FAILURE"
)

// Entry is one immutable ledger entry. Entries are created only by the
// settlement path and are never updated or deleted.
type Entry struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"accountId"`
	WalletSeq   int64           `json:"walletSeq"`
	Reference   string          `json:"reference"`
	OrderID     string          `json:"orderId,omitempty"`
	EntryType   EntryType       `json:"entryType"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	PrevHash    string          `json:"prevHash,omitempty"` // empty iff WalletSeq == 1
	EntryHash   string          `json:"entryHash"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Balance is the derived per-account balance cache row. It is mutated only
// inside the same transaction as the entry that moves it.
type Balance struct {
	AccountID     string          `json:"accountId"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	LastEntrySeq  int64           `json:"lastEntrySeq"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

// AppendInput is the request to append one entry.
type AppendInput struct {
	Reference   string
	OrderID     string
	AccountID   string
	EntryType   EntryType
	Amount      decimal.Decimal
	Description string
}

// Validate checks the structural invariants of the input.
func (in *AppendInput) Validate() error {
	if in.AccountID == "" {
		return errs.New(CodeInvalidEntryInput, "account id is required")
	}
	if in.Reference == "" {
		return errs.New(CodeInvalidEntryInput, "reference is required")
	}
	if !in.EntryType.Valid() {
		return errs.Newf(CodeInvalidEntryInput, "unknown entry type %q", in.EntryType)
	}
	if !in.Amount.IsPositive() {
		return errs.Newf(CodeInvalidEntryInput, "amount must be positive, got %s", in.Amount)
	}
	return nil
}

// EntryStore is the ledger-entry persistence the engine runs against.
// Implementations bound to a transaction must serialize concurrent appenders
// on the same account (tail row lock or serializable isolation).
type EntryStore interface {
	// GetByReference returns the entry with (accountID, reference), or nil.
	GetByReference(ctx context.Context, accountID, ref string) (*Entry, error)
	// GetTail returns the entry with the maximum wallet sequence on the
	// account, or nil if the account has no entries. Transaction-bound
	// implementations must take the per-account tail lock here.
	GetTail(ctx context.Context, accountID string) (*Entry, error)
	// Insert persists a new entry.
	Insert(ctx context.Context, entry *Entry) error
	// ListRange returns entries on the account with fromSeq <= walletSeq <=
	// toSeq in ascending sequence order. toSeq <= 0 means unbounded.
	ListRange(ctx context.Context, accountID string, fromSeq, toSeq int64) ([]*Entry, error)
	// GetBySeq returns the entry at an exact wallet sequence, or nil.
	GetBySeq(ctx context.Context, accountID string, seq int64) (*Entry, error)
}

// ListFilter narrows the paginated entry listing. Zero values mean
// unfiltered; Limit is clamped to [1, 100] with a default of 50.
type ListFilter struct {
	AccountID string
	Reference string
	OrderID   string
	EntryType string
	FromDate  *time.Time
	ToDate    *time.Time
	Page      int
	Limit     int
}

// EntryLister is the read-only paginated listing consumed by the API layer.
type EntryLister interface {
	// List returns one page of matching entries, newest first, and the total
	// match count.
	List(ctx context.Context, f ListFilter) ([]*Entry, int64, error)
}

// BalanceStore is the balance-cache persistence the engine runs against.
type BalanceStore interface {
	// Get returns the cache row for the account, or nil if absent.
	Get(ctx context.Context, accountID string) (*Balance, error)
	// Create inserts a new cache row.
	Create(ctx context.Context, balance *Balance) error
	// Update sets balance and last entry sequence on an existing row.
	Update(ctx context.Context, accountID string, balance decimal.Decimal, lastEntrySeq int64) error
}
