package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL mirrors migrations/001_init.sql. The tracking store is small
// enough that the server bootstraps its own schema at startup instead of
// requiring a migration step.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS invoices (
    trx_number          BIGINT PRIMARY KEY,
    invoice_num         TEXT NOT NULL,
    customer_id         TEXT NOT NULL DEFAULT '',
    customer_name       TEXT NOT NULL DEFAULT '',
    customer_tin        TEXT NOT NULL DEFAULT '',
    customer_email      TEXT NOT NULL DEFAULT '',
    customer_phone      TEXT NOT NULL DEFAULT '',
    customer_address    TEXT NOT NULL DEFAULT '',
    customer_city       TEXT NOT NULL DEFAULT '',
    invoice_date        DATE,
    amount              NUMERIC(14,2) NOT NULL DEFAULT 0,
    tax_amount          NUMERIC(14,2) NOT NULL DEFAULT 0,
    invoice_description TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'pending',
    irn                 TEXT,
    qr_code             TEXT,
    posted_at           TIMESTAMPTZ,
    error_message       TEXT,
    raw_api_response    TEXT,
    last_synced         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices (status);
CREATE INDEX IF NOT EXISTS idx_invoices_date ON invoices (invoice_date DESC);

CREATE TABLE IF NOT EXISTS invoice_lines (
    trx_number BIGINT NOT NULL REFERENCES invoices (trx_number) ON DELETE CASCADE,
    line_num   INT NOT NULL,
    item_code  TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    quantity   NUMERIC(14,4) NOT NULL DEFAULT 0,
    unit_price NUMERIC(14,4) NOT NULL DEFAULT 0,
    amount     NUMERIC(14,2) NOT NULL DEFAULT 0,
    tax_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
    PRIMARY KEY (trx_number, line_num)
);
`

// EnsureSchema creates the tracking tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
