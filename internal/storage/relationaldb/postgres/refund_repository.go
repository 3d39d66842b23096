package postgres

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

const refundColumns = `id, reference, payment_intent_id, amount, reason, description,
	status, created_at, updated_at`

// RefundRepository implements intent.RefundStore.
type RefundRepository struct {
	db *sql.DB
	tx *sql.Tx
	rb rebind
}

// NewRefundRepository creates a repository bound to the pool.
func NewRefundRepository(db *Database) *RefundRepository {
	return &RefundRepository{db: db.DB(), rb: db.rb}
}

func (r *RefundRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RefundRepository) Insert(ctx context.Context, ri *intent.RefundIntent) error {
	query := r.rb(`INSERT INTO refund_intents (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)

	_, err := r.getExecutor().ExecContext(ctx, query,
		ri.ID, ri.Reference, ri.PaymentIntentID, ri.Amount.StringFixed(4),
		ri.Reason, nullable(ri.Description), string(ri.Status), ri.CreatedAt, ri.UpdatedAt)
	if err != nil {
		return classify("insert_refund", err)
	}
	return nil
}

func (r *RefundRepository) GetByID(ctx context.Context, id string) (*intent.RefundIntent, error) {
	query := r.rb(`SELECT ` + refundColumns + ` FROM refund_intents WHERE id = $1`)

	ri, err := scanRefund(r.getExecutor().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_refund_by_id", err)
	}
	return ri, nil
}

func (r *RefundRepository) ListByPayment(ctx context.Context, paymentIntentID string) ([]*intent.RefundIntent, error) {
	query := r.rb(`SELECT ` + refundColumns + ` FROM refund_intents
		WHERE payment_intent_id = $1 ORDER BY created_at ASC`)

	rows, err := r.getExecutor().QueryContext(ctx, query, paymentIntentID)
	if err != nil {
		return nil, classify("list_refunds_by_payment", err)
	}
	defer rows.Close()

	var refunds []*intent.RefundIntent
	for rows.Next() {
		ri, err := scanRefund(rows)
		if err != nil {
			return nil, classify("list_refunds_by_payment", err)
		}
		refunds = append(refunds, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list_refunds_by_payment", err)
	}
	return refunds, nil
}

func scanRefund(row rowScanner) (*intent.RefundIntent, error) {
	var ri intent.RefundIntent
	var amountStr, status string
	var description sql.NullString

	err := row.Scan(&ri.ID, &ri.Reference, &ri.PaymentIntentID, &amountStr,
		&ri.Reason, &description, &status, &ri.CreatedAt, &ri.UpdatedAt)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, relationaldb.NewDataError("scan_refund", "invalid amount in storage", err)
	}

	ri.Amount = amount
	ri.Description = description.String
	ri.Status = intent.RefundStatus(status)
	return &ri, nil
}
