package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

const intentColumns = `id, reference, order_id, amount, original_amount, discount_amount,
	discount_code, provider, provider_ref, currency, metadata, status, created_at, updated_at`

// IntentRepository implements intent.Store.
type IntentRepository struct {
	db *sql.DB
	tx *sql.Tx
	rb rebind
}

// NewIntentRepository creates a repository bound to the pool.
func NewIntentRepository(db *Database) *IntentRepository {
	return &IntentRepository{db: db.DB(), rb: db.rb}
}

func newIntentRepositoryWithTx(tx *sql.Tx, rb rebind) *IntentRepository {
	return &IntentRepository{tx: tx, rb: rb}
}

func (r *IntentRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *IntentRepository) Insert(ctx context.Context, pi *intent.PaymentIntent) error {
	var metadata sql.NullString
	if len(pi.Metadata) > 0 {
		raw, err := json.Marshal(pi.Metadata)
		if err != nil {
			return relationaldb.NewDataError("insert_intent", "failed to encode metadata", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	query := r.rb(`INSERT INTO payment_intents (` + intentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`)

	_, err := r.getExecutor().ExecContext(ctx, query,
		pi.ID, pi.Reference, pi.OrderID,
		pi.Amount.StringFixed(4), pi.OriginalAmount.StringFixed(4), pi.DiscountAmount.StringFixed(4),
		nullable(pi.DiscountCode), pi.Provider, nullable(pi.ProviderRef), pi.Currency,
		metadata, string(pi.Status), pi.CreatedAt, pi.UpdatedAt)
	if err != nil {
		return classify("insert_intent", err)
	}
	return nil
}

func (r *IntentRepository) GetByID(ctx context.Context, id string) (*intent.PaymentIntent, error) {
	return r.getOne(ctx, "get_intent_by_id",
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = $1`, id)
}

func (r *IntentRepository) GetByReference(ctx context.Context, ref string) (*intent.PaymentIntent, error) {
	return r.getOne(ctx, "get_intent_by_reference",
		`SELECT `+intentColumns+` FROM payment_intents WHERE reference = $1`, ref)
}

func (r *IntentRepository) UpdateStatus(ctx context.Context, id string, status intent.Status) error {
	query := r.rb(`UPDATE payment_intents SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`)

	res, err := r.getExecutor().ExecContext(ctx, query, string(status), id)
	if err != nil {
		return classify("update_intent_status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify("update_intent_status", err)
	}
	if affected == 0 {
		return relationaldb.NewDataError("update_intent_status", "payment intent does not exist", nil)
	}
	return nil
}

func (r *IntentRepository) getOne(ctx context.Context, operation, query string, arg any) (*intent.PaymentIntent, error) {
	var pi intent.PaymentIntent
	var amountStr, originalStr, discountStr, status string
	var discountCode, providerRef, metadata sql.NullString

	err := r.getExecutor().QueryRowContext(ctx, r.rb(query), arg).Scan(
		&pi.ID, &pi.Reference, &pi.OrderID, &amountStr, &originalStr, &discountStr,
		&discountCode, &pi.Provider, &providerRef, &pi.Currency,
		&metadata, &status, &pi.CreatedAt, &pi.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(operation, err)
	}

	if pi.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, relationaldb.NewDataError(operation, "invalid amount in storage", err)
	}
	if pi.OriginalAmount, err = decimal.NewFromString(originalStr); err != nil {
		return nil, relationaldb.NewDataError(operation, "invalid original amount in storage", err)
	}
	if pi.DiscountAmount, err = decimal.NewFromString(discountStr); err != nil {
		return nil, relationaldb.NewDataError(operation, "invalid discount amount in storage", err)
	}

	pi.DiscountCode = discountCode.String
	pi.ProviderRef = providerRef.String
	pi.Status = intent.Status(status)

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &pi.Metadata); err != nil {
			return nil, relationaldb.NewDataError(operation, "invalid metadata in storage", err)
		}
	}

	return &pi, nil
}
