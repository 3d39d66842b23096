package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

const entryColumns = `id, account_id, wallet_seq, reference, order_id, entry_type,
	amount, description, prev_hash, entry_hash, created_at`

// EntryRepository implements ledger.EntryStore.
type EntryRepository struct {
	db     *sql.DB
	tx     *sql.Tx
	driver string
	rb     rebind
}

// NewEntryRepository creates a repository bound to the pool.
func NewEntryRepository(db *Database) *EntryRepository {
	return &EntryRepository{db: db.DB(), driver: db.Config().Driver, rb: db.rb}
}

// newEntryRepositoryWithTx creates a repository bound to a transaction.
func newEntryRepositoryWithTx(tx *sql.Tx, driver string, rb rebind) *EntryRepository {
	return &EntryRepository{tx: tx, driver: driver, rb: rb}
}

func (r *EntryRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *EntryRepository) GetByReference(ctx context.Context, accountID, ref string) (*ledger.Entry, error) {
	query := r.rb(`SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = $1 AND reference = $2`)

	entry, err := scanEntry(r.getExecutor().QueryRowContext(ctx, query, accountID, ref))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_entry_by_reference", err)
	}
	return entry, nil
}

func (r *EntryRepository) GetTail(ctx context.Context, accountID string) (*ledger.Entry, error) {
	// Per-account advisory lock before the tail read serializes concurrent
	// appenders on the same account. sqlite serializes writers through its
	// single connection instead.
	if r.tx != nil && r.driver == "postgres" {
		if _, err := r.tx.ExecContext(ctx,
			"SELECT pg_advisory_xact_lock(hashtext($1))", accountID); err != nil {
			return nil, classify("lock_entry_tail", err)
		}
	}

	query := r.rb(`SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = $1 ORDER BY wallet_seq DESC LIMIT 1`)

	entry, err := scanEntry(r.getExecutor().QueryRowContext(ctx, query, accountID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_entry_tail", err)
	}
	return entry, nil
}

func (r *EntryRepository) GetBySeq(ctx context.Context, accountID string, seq int64) (*ledger.Entry, error) {
	query := r.rb(`SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = $1 AND wallet_seq = $2`)

	entry, err := scanEntry(r.getExecutor().QueryRowContext(ctx, query, accountID, seq))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_entry_by_seq", err)
	}
	return entry, nil
}

func (r *EntryRepository) Insert(ctx context.Context, e *ledger.Entry) error {
	query := r.rb(`INSERT INTO ledger_entries
		(id, account_id, wallet_seq, reference, order_id, entry_type,
		 amount, description, prev_hash, entry_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)

	_, err := r.getExecutor().ExecContext(ctx, query,
		e.ID, e.AccountID, e.WalletSeq, e.Reference, nullable(e.OrderID), string(e.EntryType),
		e.Amount.StringFixed(4), nullable(e.Description), nullable(e.PrevHash), e.EntryHash, e.CreatedAt)
	if err != nil {
		return classify("insert_entry", err)
	}
	return nil
}

func (r *EntryRepository) ListRange(ctx context.Context, accountID string, fromSeq, toSeq int64) ([]*ledger.Entry, error) {
	if fromSeq <= 0 {
		fromSeq = 1
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = $1 AND wallet_seq >= $2`
	args := []any{accountID, fromSeq}
	if toSeq > 0 {
		query += ` AND wallet_seq <= $3`
		args = append(args, toSeq)
	}
	query += ` ORDER BY wallet_seq ASC`

	rows, err := r.getExecutor().QueryContext(ctx, r.rb(query), args...)
	if err != nil {
		return nil, classify("list_entry_range", err)
	}
	defer rows.Close()

	return collectEntries(rows, "list_entry_range")
}

// List returns one page of entries matching the filter, newest first, and
// the total match count.
func (r *EntryRepository) List(ctx context.Context, f ledger.ListFilter) ([]*ledger.Entry, int64, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.AccountID != "" {
		conds = append(conds, "account_id = "+arg(f.AccountID))
	}
	if f.Reference != "" {
		conds = append(conds, "reference = "+arg(f.Reference))
	}
	if f.OrderID != "" {
		conds = append(conds, "order_id = "+arg(f.OrderID))
	}
	if f.EntryType != "" {
		conds = append(conds, "entry_type = "+arg(f.EntryType))
	}
	if f.FromDate != nil {
		conds = append(conds, "created_at >= "+arg(*f.FromDate))
	}
	if f.ToDate != nil {
		conds = append(conds, "created_at <= "+arg(*f.ToDate))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := r.rb("SELECT COUNT(*) FROM ledger_entries" + where)
	if err := r.getExecutor().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, classify("count_entries", err)
	}

	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	query := `SELECT ` + entryColumns + ` FROM ledger_entries` + where +
		` ORDER BY created_at DESC, wallet_seq DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(offset)

	rows, err := r.getExecutor().QueryContext(ctx, r.rb(query), args...)
	if err != nil {
		return nil, 0, classify("list_entries", err)
	}
	defer rows.Close()

	entries, err := collectEntries(rows, "list_entries")
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*ledger.Entry, error) {
	var e ledger.Entry
	var orderID, description, prevHash sql.NullString
	var amountStr string
	var entryType string

	err := row.Scan(&e.ID, &e.AccountID, &e.WalletSeq, &e.Reference, &orderID, &entryType,
		&amountStr, &description, &prevHash, &e.EntryHash, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, relationaldb.NewDataError("scan_entry", "invalid amount in storage", err)
	}

	e.OrderID = orderID.String
	e.Description = description.String
	e.PrevHash = prevHash.String
	e.EntryType = ledger.EntryType(entryType)
	e.Amount = amount
	return &e, nil
}

func collectEntries(rows *sql.Rows, operation string) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, classify(operation, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(operation, err)
	}
	return entries, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
