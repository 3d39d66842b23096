package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver for dev/standalone mode

	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

// Database implements relationaldb.Database over database/sql, for the
// postgres and sqlite drivers.
type Database struct {
	db     *sql.DB
	config *relationaldb.Config
	rb     rebind
}

// NewDatabase creates a database instance for the given configuration.
func NewDatabase(config *relationaldb.Config) (*Database, error) {
	if err := config.Validate(); err != nil {
		return nil, relationaldb.NewConfigurationError("new_database", "invalid configuration", err)
	}

	return &Database{
		config: config,
		rb:     rebindFor(config.Driver),
	}, nil
}

// Open opens the connection pool and initializes the schema.
func (d *Database) Open(ctx context.Context) error {
	sqlDB, err := sql.Open(d.config.Driver, d.config.DSN)
	if err != nil {
		return relationaldb.NewConnectionError("open", "failed to open database connection", err)
	}

	sqlDB.SetMaxOpenConns(d.config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(d.config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(d.config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, d.config.DefaultTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return relationaldb.NewConnectionError("open", "failed to ping database", err)
	}

	d.db = sqlDB

	if err := d.initSchema(ctx); err != nil {
		d.db.Close()
		d.db = nil
		return relationaldb.NewSchemaError("open", "failed to initialize schema", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close(ctx context.Context) error {
	if d.db == nil {
		return nil
	}

	err := d.db.Close()
	d.db = nil

	if err != nil {
		return relationaldb.NewConnectionError("close", "failed to close database connection", err)
	}
	return nil
}

// Ping tests the database connection.
func (d *Database) Ping(ctx context.Context) error {
	if d.db == nil {
		return relationaldb.ErrDatabaseClosed
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.DefaultTimeout)
	defer cancel()

	if err := d.db.PingContext(ctx); err != nil {
		return relationaldb.NewConnectionError("ping", "database ping failed", err)
	}
	return nil
}

// DB exposes the underlying pool for repository construction.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Config returns the active configuration.
func (d *Database) Config() *relationaldb.Config {
	return d.config
}

// initSchema creates tables, unique indexes and the append-only guard
// idempotently.
func (d *Database) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			wallet_seq BIGINT NOT NULL,
			reference TEXT NOT NULL,
			order_id TEXT,
			entry_type TEXT NOT NULL CHECK (entry_type IN ('CREDIT', 'DEBIT')),
			amount NUMERIC(20,4) NOT NULL CHECK (amount > 0),
			description TEXT,
			prev_hash TEXT,
			entry_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (account_id, reference),
			UNIQUE (account_id, wallet_seq)
		)`,

		`CREATE TABLE IF NOT EXISTS wallet_balances (
			account_id TEXT PRIMARY KEY,
			balance NUMERIC(20,4) NOT NULL CHECK (balance >= 0),
			currency TEXT NOT NULL,
			last_entry_seq BIGINT NOT NULL,
			last_updated_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS payment_intents (
			id TEXT PRIMARY KEY,
			reference TEXT NOT NULL UNIQUE,
			order_id TEXT NOT NULL,
			amount NUMERIC(20,4) NOT NULL,
			original_amount NUMERIC(20,4) NOT NULL,
			discount_amount NUMERIC(20,4) NOT NULL,
			discount_code TEXT,
			provider TEXT NOT NULL,
			provider_ref TEXT,
			currency TEXT NOT NULL,
			metadata TEXT,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS refund_intents (
			id TEXT PRIMARY KEY,
			reference TEXT NOT NULL UNIQUE,
			payment_intent_id TEXT NOT NULL,
			amount NUMERIC(20,4) NOT NULL,
			reason TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS webhook_inbox (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			reference TEXT,
			payload TEXT NOT NULL,
			headers TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT,
			received_at TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ,
			UNIQUE (provider, provider_event_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_order_id ON ledger_entries(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_created_at ON ledger_entries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_intents_order_id ON payment_intents(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_refund_intents_payment ON refund_intents(payment_intent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_inbox_reference ON webhook_inbox(reference)`,
	}

	queries = append(queries, d.appendOnlyGuards()...)

	for _, query := range queries {
		if _, err := d.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// appendOnlyGuards returns driver-specific triggers that reject UPDATE and
// DELETE on ledger_entries. Corrections to the ledger are new entries.
func (d *Database) appendOnlyGuards() []string {
	if d.config.Driver == "sqlite" {
		return []string{
			`CREATE TRIGGER IF NOT EXISTS trg_ledger_entries_no_update
				BEFORE UPDATE ON ledger_entries
				BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END`,
			`CREATE TRIGGER IF NOT EXISTS trg_ledger_entries_no_delete
				BEFORE DELETE ON ledger_entries
				BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END`,
		}
	}

	return []string{
		`CREATE OR REPLACE FUNCTION ledger_entries_immutable() RETURNS trigger AS $guard$
			BEGIN
				RAISE EXCEPTION 'ledger entries are append-only';
			END
		$guard$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS trg_ledger_entries_immutable ON ledger_entries`,
		`CREATE TRIGGER trg_ledger_entries_immutable
			BEFORE UPDATE OR DELETE ON ledger_entries
			FOR EACH ROW EXECUTE FUNCTION ledger_entries_immutable()`,
	}
}
