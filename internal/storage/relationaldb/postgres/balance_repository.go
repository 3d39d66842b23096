package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

// BalanceRepository implements ledger.BalanceStore.
type BalanceRepository struct {
	db *sql.DB
	tx *sql.Tx
	rb rebind
}

// NewBalanceRepository creates a repository bound to the pool.
func NewBalanceRepository(db *Database) *BalanceRepository {
	return &BalanceRepository{db: db.DB(), rb: db.rb}
}

func newBalanceRepositoryWithTx(tx *sql.Tx, rb rebind) *BalanceRepository {
	return &BalanceRepository{tx: tx, rb: rb}
}

func (r *BalanceRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *BalanceRepository) Get(ctx context.Context, accountID string) (*ledger.Balance, error) {
	query := r.rb(`SELECT account_id, balance, currency, last_entry_seq, last_updated_at
		FROM wallet_balances WHERE account_id = $1`)

	var b ledger.Balance
	var balanceStr string
	err := r.getExecutor().QueryRowContext(ctx, query, accountID).Scan(
		&b.AccountID, &balanceStr, &b.Currency, &b.LastEntrySeq, &b.LastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_balance", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, relationaldb.NewDataError("get_balance", "invalid balance in storage", err)
	}
	b.Balance = balance
	return &b, nil
}

func (r *BalanceRepository) Create(ctx context.Context, b *ledger.Balance) error {
	query := r.rb(`INSERT INTO wallet_balances
		(account_id, balance, currency, last_entry_seq, last_updated_at)
		VALUES ($1, $2, $3, $4, $5)`)

	_, err := r.getExecutor().ExecContext(ctx, query,
		b.AccountID, b.Balance.StringFixed(4), b.Currency, b.LastEntrySeq, b.LastUpdatedAt)
	if err != nil {
		return classify("create_balance", err)
	}
	return nil
}

func (r *BalanceRepository) Update(ctx context.Context, accountID string, balance decimal.Decimal, lastEntrySeq int64) error {
	query := r.rb(`UPDATE wallet_balances
		SET balance = $1, last_entry_seq = $2, last_updated_at = $3
		WHERE account_id = $4`)

	res, err := r.getExecutor().ExecContext(ctx, query,
		balance.StringFixed(4), lastEntrySeq, time.Now().UTC(), accountID)
	if err != nil {
		return classify("update_balance", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return classify("update_balance", err)
	}
	if affected == 0 {
		return relationaldb.NewDataError("update_balance", "balance row does not exist", nil)
	}
	return nil
}
