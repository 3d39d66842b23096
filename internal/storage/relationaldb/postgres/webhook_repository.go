package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sokopay/ledgerd/internal/core/webhook"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

const webhookColumns = `id, provider, provider_event_id, reference, payload, headers,
	status, error_message, received_at, processed_at`

// WebhookRepository implements webhook.InboxStore.
type WebhookRepository struct {
	db *sql.DB
	rb rebind
}

// NewWebhookRepository creates a repository bound to the pool. The inbox is
// never written inside a settlement transaction, so no tx-bound variant
// exists.
func NewWebhookRepository(db *Database) *WebhookRepository {
	return &WebhookRepository{db: db.DB(), rb: db.rb}
}

func (r *WebhookRepository) Insert(ctx context.Context, e *webhook.InboxEntry) error {
	headers, err := json.Marshal(e.Headers)
	if err != nil {
		return relationaldb.NewDataError("insert_webhook", "failed to encode headers", err)
	}

	query := r.rb(`INSERT INTO webhook_inbox (` + webhookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)

	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.Provider, e.ProviderEventID, nullable(e.Reference),
		string(e.Payload), string(headers), string(e.Status),
		nullable(e.ErrorMessage), e.ReceivedAt, e.ProcessedAt)
	if err != nil {
		return classify("insert_webhook", err)
	}
	return nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*webhook.InboxEntry, error) {
	query := r.rb(`SELECT ` + webhookColumns + ` FROM webhook_inbox WHERE id = $1`)

	entry, err := scanWebhook(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_webhook_by_id", err)
	}
	return entry, nil
}

func (r *WebhookRepository) GetByProviderEvent(ctx context.Context, provider, providerEventID string) (*webhook.InboxEntry, error) {
	query := r.rb(`SELECT ` + webhookColumns + ` FROM webhook_inbox
		WHERE provider = $1 AND provider_event_id = $2`)

	entry, err := scanWebhook(r.db.QueryRowContext(ctx, query, provider, providerEventID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_webhook_by_provider_event", err)
	}
	return entry, nil
}

func (r *WebhookRepository) UpdateStatus(ctx context.Context, id string, status webhook.Status, errorMessage string, processedAt *time.Time) error {
	query := r.rb(`UPDATE webhook_inbox
		SET status = $1, error_message = $2, processed_at = $3 WHERE id = $4`)

	res, err := r.db.ExecContext(ctx, query,
		string(status), nullable(errorMessage), processedAt, id)
	if err != nil {
		return classify("update_webhook_status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify("update_webhook_status", err)
	}
	if affected == 0 {
		return relationaldb.NewDataError("update_webhook_status", "webhook does not exist", nil)
	}
	return nil
}

func scanWebhook(row rowScanner) (*webhook.InboxEntry, error) {
	var e webhook.InboxEntry
	var reference, errorMessage sql.NullString
	var payload, headers, status string
	var processedAt sql.NullTime

	err := row.Scan(&e.ID, &e.Provider, &e.ProviderEventID, &reference, &payload, &headers,
		&status, &errorMessage, &e.ReceivedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	e.Reference = reference.String
	e.Payload = []byte(payload)
	e.Status = webhook.Status(status)
	e.ErrorMessage = errorMessage.String
	if processedAt.Valid {
		t := processedAt.Time
		e.ProcessedAt = &t
	}

	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &e.Headers); err != nil {
			return nil, relationaldb.NewDataError("scan_webhook", "invalid headers in storage", err)
		}
	}

	return &e, nil
}
