package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPosted  Status = "posted"
	StatusFailed  Status = "failed"
)

// Invoice is the local tracking record for one Sage sales transaction.
// Ledger fields are overwritten on every sync; lifecycle fields (Status,
// IRN, QRCode, PostedAt, ErrorMessage, TaxAmount, RawAPIResponse) are only
// touched by the submission path.
type Invoice struct {
	TrxNumber       int64           `json:"trx_number"`
	InvoiceNum      string          `json:"invoice_num"`
	CustomerID      string          `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerTIN     string          `json:"customer_tin"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	CustomerCity    string          `json:"customer_city"`
	InvoiceDate     *time.Time      `json:"invoice_date,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Description     string          `json:"invoice_description"`
	Status          Status          `json:"status"`
	IRN             *string         `json:"irn,omitempty"`
	QRCode          *string         `json:"qr_code,omitempty"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	RawAPIResponse  *string         `json:"-"`
	LastSynced      time.Time       `json:"last_synced"`
}

// InvoiceLine is one resolved sellable line of an invoice. Amount is always
// Quantity × UnitPrice, never the ledger row's raw stored amount.
type InvoiceLine struct {
	TrxNumber   int64           `json:"trx_number"`
	LineNum     int             `json:"line_num"`
	ItemCode    string          `json:"item_code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// SourceHeader is a sales transaction header read from Sage, enriched
// best-effort with customer master data.
type SourceHeader struct {
	TrxNumber       int64
	InvoiceNum      string
	CustomerID      string
	CustomerName    string
	CustomerTIN     string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	CustomerCity    string
	Date            *time.Time
	Amount          decimal.Decimal
	Description     string
}

// InvoiceStats is the status breakdown shown on the dashboard.
type InvoiceStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Posted  int `json:"posted"`
	Failed  int `json:"failed"`
}
