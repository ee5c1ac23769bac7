package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrInvoiceNotFound is returned when a transaction key has no local record.
var ErrInvoiceNotFound = errors.New("invoice not found in local database")

// Store is the local tracking store. All implementations serialize writers:
// one logical unit of work at a time, and the internal lock is never held
// across a Sage read or an API call.
type Store interface {
	// InvoiceKeys returns the set of transaction keys already tracked.
	InvoiceKeys(ctx context.Context) (map[int64]bool, error)

	// ApplySyncPlan applies one reconciliation pass as a single transaction.
	// Updates touch only ledger-derived columns.
	ApplySyncPlan(ctx context.Context, plan SyncPlan) error

	// GetInvoice returns one invoice or ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, trxNumber int64) (*Invoice, error)

	// ListInvoices returns one page of invoices (newest first) and the
	// total row count.
	ListInvoices(ctx context.Context, page, perPage int) ([]Invoice, int, error)

	// Stats returns the status breakdown.
	Stats(ctx context.Context) (*InvoiceStats, error)

	// PendingKeys returns the transaction keys eligible for submission,
	// oldest first.
	PendingKeys(ctx context.Context) ([]int64, error)

	// ReplaceLines swaps the stored line set for a transaction wholesale.
	ReplaceLines(ctx context.Context, trxNumber int64, lines []InvoiceLine) error

	// GetLines returns the stored lines for a transaction, in line order.
	GetLines(ctx context.Context, trxNumber int64) ([]InvoiceLine, error)

	// MarkPosted records a successful submission: reference, scan payload,
	// tax figure, posted timestamp, and clears any prior error.
	MarkPosted(ctx context.Context, trxNumber int64, irn, qrCode string, taxAmount decimal.Decimal, rawResponse string) error

	// MarkFailed records a failed submission attempt. Posted invoices are
	// never downgraded.
	MarkFailed(ctx context.Context, trxNumber int64, errorMessage, rawResponse string) error
}

type pgStore struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
}

func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const invoiceColumns = `trx_number, invoice_num, customer_id, customer_name, customer_tin,
       customer_email, customer_phone, customer_address, customer_city,
       invoice_date, amount, tax_amount, invoice_description, status,
       irn, qr_code, posted_at, error_message, raw_api_response, last_synced`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.TrxNumber, &inv.InvoiceNum, &inv.CustomerID, &inv.CustomerName, &inv.CustomerTIN,
		&inv.CustomerEmail, &inv.CustomerPhone, &inv.CustomerAddress, &inv.CustomerCity,
		&inv.InvoiceDate, &inv.Amount, &inv.TaxAmount, &inv.Description, &inv.Status,
		&inv.IRN, &inv.QRCode, &inv.PostedAt, &inv.ErrorMessage, &inv.RawAPIResponse, &inv.LastSynced,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *pgStore) InvoiceKeys(ctx context.Context) (map[int64]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.pool.Query(ctx, "SELECT trx_number FROM invoices")
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[int64]bool)
	for rows.Next() {
		var trx int64
		if err := rows.Scan(&trx); err != nil {
			return nil, fmt.Errorf("failed to scan invoice key: %w", err)
		}
		keys[trx] = true
	}
	return keys, rows.Err()
}

func (s *pgStore) ApplySyncPlan(ctx context.Context, plan SyncPlan) error {
	if len(plan.Inserts) == 0 && len(plan.Updates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, inv := range plan.Inserts {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoices (trx_number, invoice_num, customer_id, customer_name,
			       customer_tin, customer_email, customer_phone, customer_address,
			       customer_city, invoice_date, amount, invoice_description, status, last_synced)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'pending', $13)
		`, inv.TrxNumber, inv.InvoiceNum, inv.CustomerID, inv.CustomerName,
			inv.CustomerTIN, inv.CustomerEmail, inv.CustomerPhone, inv.CustomerAddress,
			inv.CustomerCity, inv.InvoiceDate, inv.Amount, inv.Description, inv.LastSynced)
		if err != nil {
			return fmt.Errorf("failed to insert invoice %d: %w", inv.TrxNumber, err)
		}
	}

	for _, inv := range plan.Updates {
		_, err := tx.Exec(ctx, `
			UPDATE invoices
			SET invoice_num = $2, customer_id = $3, customer_name = $4, customer_tin = $5,
			    customer_email = $6, customer_phone = $7, customer_address = $8,
			    customer_city = $9, invoice_date = $10, amount = $11,
			    invoice_description = $12, last_synced = $13
			WHERE trx_number = $1
		`, inv.TrxNumber, inv.InvoiceNum, inv.CustomerID, inv.CustomerName, inv.CustomerTIN,
			inv.CustomerEmail, inv.CustomerPhone, inv.CustomerAddress,
			inv.CustomerCity, inv.InvoiceDate, inv.Amount, inv.Description, inv.LastSynced)
		if err != nil {
			return fmt.Errorf("failed to update invoice %d: %w", inv.TrxNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sync transaction: %w", err)
	}
	return nil
}

func (s *pgStore) GetInvoice(ctx context.Context, trxNumber int64) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE trx_number = $1", trxNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", trxNumber, err)
	}
	return inv, nil
}

func (s *pgStore) ListInvoices(ctx context.Context, page, perPage int) ([]Invoice, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 25
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		ORDER BY invoice_date DESC NULLS LAST, trx_number DESC
		LIMIT $1 OFFSET $2
	`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

func (s *pgStore) Stats(ctx context.Context) (*InvoiceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st InvoiceStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'posted'),
		       COUNT(*) FILTER (WHERE status = 'failed')
		FROM invoices
	`).Scan(&st.Total, &st.Pending, &st.Posted, &st.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute invoice stats: %w", err)
	}
	return &st, nil
}

func (s *pgStore) PendingKeys(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.pool.Query(ctx,
		"SELECT trx_number FROM invoices WHERE status = 'pending' ORDER BY trx_number")
	if err != nil {
		return nil, fmt.Errorf("failed to query pending invoices: %w", err)
	}
	defer rows.Close()

	var keys []int64
	for rows.Next() {
		var trx int64
		if err := rows.Scan(&trx); err != nil {
			return nil, fmt.Errorf("failed to scan pending key: %w", err)
		}
		keys = append(keys, trx)
	}
	return keys, rows.Err()
}

func (s *pgStore) ReplaceLines(ctx context.Context, trxNumber int64, lines []InvoiceLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin line replacement: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM invoice_lines WHERE trx_number = $1", trxNumber); err != nil {
		return fmt.Errorf("failed to clear lines for %d: %w", trxNumber, err)
	}

	for i, line := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines (trx_number, line_num, item_code, description,
			       quantity, unit_price, amount, tax_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, trxNumber, i+1, line.ItemCode, line.Description,
			line.Quantity, line.UnitPrice, line.Amount, line.TaxAmount)
		if err != nil {
			return fmt.Errorf("failed to insert line %d for %d: %w", i+1, trxNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit line replacement: %w", err)
	}
	return nil
}

func (s *pgStore) GetLines(ctx context.Context, trxNumber int64) ([]InvoiceLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.pool.Query(ctx, `
		SELECT trx_number, line_num, item_code, description, quantity, unit_price, amount, tax_amount
		FROM invoice_lines
		WHERE trx_number = $1
		ORDER BY line_num
	`, trxNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines for %d: %w", trxNumber, err)
	}
	defer rows.Close()

	var lines []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.TrxNumber, &l.LineNum, &l.ItemCode, &l.Description,
			&l.Quantity, &l.UnitPrice, &l.Amount, &l.TaxAmount); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *pgStore) MarkPosted(ctx context.Context, trxNumber int64, irn, qrCode string, taxAmount decimal.Decimal, rawResponse string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'posted', irn = $2, qr_code = $3, tax_amount = $4,
		    raw_api_response = $5, posted_at = NOW(), error_message = NULL
		WHERE trx_number = $1
	`, trxNumber, irn, qrCode, taxAmount, rawResponse)
	if err != nil {
		return fmt.Errorf("failed to mark invoice %d posted: %w", trxNumber, err)
	}
	return nil
}

func (s *pgStore) MarkFailed(ctx context.Context, trxNumber int64, errorMessage, rawResponse string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Guard: a posted invoice is terminal and never downgraded.
	_, err := s.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'failed', error_message = $2, raw_api_response = $3
		WHERE trx_number = $1 AND status <> 'posted'
	`, trxNumber, errorMessage, rawResponse)
	if err != nil {
		return fmt.Errorf("failed to mark invoice %d failed: %w", trxNumber, err)
	}
	return nil
}
