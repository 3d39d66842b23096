package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/core/errs"
)

// Engine appends entries and maintains the balance cache. It holds no state
// of its own: callers supply the stores, which are expected to be bound to a
// serializable transaction for writes.
type Engine struct {
	log zerolog.Logger
	now func() time.Time
}

// NewEngine creates a ledger engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "ledger").Logger(),
		now: time.Now,
	}
}

// Append appends one entry to the account chain and updates the balance
// cache, all against the supplied stores.
//
// The operation is idempotent on (accountID, reference): if an entry with
// that reference already exists it is returned unchanged and nothing is
// written.
func (e *Engine) Append(ctx context.Context, entries EntryStore, balances BalanceStore, in AppendInput) (*Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	// Idempotency probe.
	existing, err := entries.GetByReference(ctx, in.AccountID, in.Reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e.log.Debug().
			Str("account_id", in.AccountID).
			Str("reference", in.Reference).
			Int64("wallet_seq", existing.WalletSeq).
			Msg("append is an idempotent hit, returning existing entry")
		return existing, nil
	}

	// Tail lock: the store serializes concurrent appenders here.
	tail, err := entries.GetTail(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}

	var prevHash string
	walletSeq := int64(1)
	if tail != nil {
		prevHash = tail.EntryHash
		walletSeq = tail.WalletSeq + 1
	}

	entry := &Entry{
		ID:          uuid.NewString(),
		AccountID:   in.AccountID,
		WalletSeq:   walletSeq,
		Reference:   in.Reference,
		OrderID:     in.OrderID,
		EntryType:   in.EntryType,
		Amount:      in.Amount,
		Description: in.Description,
		PrevHash:    prevHash,
		CreatedAt:   e.now().UTC(),
	}
	entry.EntryHash = HashInputOf(entry).Hash()

	if err := entries.Insert(ctx, entry); err != nil {
		return nil, err
	}

	if err := e.applyToBalance(ctx, balances, entry); err != nil {
		return nil, err
	}

	e.log.Info().
		Str("account_id", entry.AccountID).
		Int64("wallet_seq", entry.WalletSeq).
		Str("reference", entry.Reference).
		Str("entry_type", string(entry.EntryType)).
		Str("amount", CanonicalAmount(entry.Amount)).
		Msg("ledger entry appended")

	return entry, nil
}

// applyToBalance folds one freshly inserted entry into the cache row.
func (e *Engine) applyToBalance(ctx context.Context, balances BalanceStore, entry *Entry) error {
	cache, err := balances.Get(ctx, entry.AccountID)
	if err != nil {
		return err
	}

	if cache == nil {
		if entry.EntryType == EntryTypeDebit {
			return errs.Newf(CodeDebitOnNonExistentWallet,
				"cannot debit account %s: no wallet exists", entry.AccountID)
		}
		return balances.Create(ctx, &Balance{
			AccountID:     entry.AccountID,
			Balance:       entry.Amount,
			Currency:      DefaultCurrency,
			LastEntrySeq:  entry.WalletSeq,
			LastUpdatedAt: entry.CreatedAt,
		})
	}

	newBalance := cache.Balance.Add(entry.Amount)
	if entry.EntryType == EntryTypeDebit {
		newBalance = cache.Balance.Sub(entry.Amount)
	}
	if newBalance.IsNegative() {
		return errs.Newf(CodeInsufficientBalance,
			"insufficient balance on %s: have %s, need %s",
			entry.AccountID, CanonicalAmount(cache.Balance), CanonicalAmount(entry.Amount)).
			WithDetail("accountId", entry.AccountID).
			WithDetail("balance", CanonicalAmount(cache.Balance)).
			WithDetail("amount", CanonicalAmount(entry.Amount))
	}

	return balances.Update(ctx, entry.AccountID, newBalance, entry.WalletSeq)
}

// RecomputeBalance reduces the full chain of an account to its balance.
// Used for cache-vs-chain audits; the result must equal the cached balance.
func (e *Engine) RecomputeBalance(ctx context.Context, entries EntryStore, accountID string) (decimal.Decimal, error) {
	all, err := entries.ListRange(ctx, accountID, 1, 0)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, entry := range all {
		if entry.EntryType == EntryTypeCredit {
			total = total.Add(entry.Amount)
		} else {
			total = total.Sub(entry.Amount)
		}
	}
	return total, nil
}
