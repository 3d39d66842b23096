package postgres

import (
	"context"
	"database/sql"

	"github.com/sokopay/ledgerd/internal/core/errs"
	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/core/settlement"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

// SettlementStore implements settlement.Store: one serializable transaction
// with the settlement timeout around each settlement.
type SettlementStore struct {
	db *Database
}

// NewSettlementStore creates the settlement transaction runner.
func NewSettlementStore(db *Database) *SettlementStore {
	return &SettlementStore{db: db}
}

func (s *SettlementStore) WithinSettlementTx(ctx context.Context, fn func(ctx context.Context, tx settlement.TxContext) error) error {
	if s.db.DB() == nil {
		return relationaldb.ErrDatabaseClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.db.Config().SettlementTimeout)
	defer cancel()

	// sqlite is serializable by construction; its driver rejects explicit
	// isolation levels.
	var opts *sql.TxOptions
	if s.db.Config().Driver == "postgres" {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	tx, err := s.db.DB().BeginTx(ctx, opts)
	if err != nil {
		return relationaldb.NewTransactionError("settlement_begin", "failed to begin settlement transaction", err)
	}

	tc := newTxContext(tx, s.db.Config().Driver, s.db.rb)

	if err := fn(ctx, tc); err != nil {
		tx.Rollback()
		return asCoreError(err)
	}

	if err := tx.Commit(); err != nil {
		return asCoreError(classify("settlement_commit", err))
	}
	return nil
}

// asCoreError surfaces retryable isolation conflicts under the caller-visible
// SERIALIZATION_FAILURE code; everything else passes through.
func asCoreError(err error) error {
	if err == nil {
		return nil
	}
	if relationaldb.IsRetryable(err) {
		return errs.Wrap(ledger.CodeSerializationFailure,
			"settlement transaction conflicted, retry", err)
	}
	return err
}

// txContext bundles the transaction-bound repositories of one settlement.
type txContext struct {
	intents  *IntentRepository
	entries  *EntryRepository
	balances *BalanceRepository
}

func newTxContext(tx *sql.Tx, driver string, rb rebind) *txContext {
	return &txContext{
		intents:  newIntentRepositoryWithTx(tx, rb),
		entries:  newEntryRepositoryWithTx(tx, driver, rb),
		balances: newBalanceRepositoryWithTx(tx, rb),
	}
}

func (tc *txContext) Intents() intent.Store {
	return tc.intents
}

func (tc *txContext) Entries() ledger.EntryStore {
	return tc.entries
}

func (tc *txContext) Balances() ledger.BalanceStore {
	return tc.balances
}
