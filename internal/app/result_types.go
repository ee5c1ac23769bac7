package app

import "einvoice-bridge/internal/core"

// SyncResult is returned by SyncInvoices.
type SyncResult struct {
	Synced   int    `json:"synced"`
	New      int    `json:"new"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

// InvoiceListResult is one page of the invoice dashboard.
type InvoiceListResult struct {
	Invoices   []core.Invoice `json:"invoices"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// InvoiceDetailResult is returned by GetInvoice.
type InvoiceDetailResult struct {
	Invoice *core.Invoice      `json:"invoice"`
	Lines   []core.InvoiceLine `json:"lines"`
}

// BulkSubmitResult summarizes a submit-all-pending run.
type BulkSubmitResult struct {
	Attempted int                 `json:"attempted"`
	Posted    int                 `json:"posted"`
	Failed    int                 `json:"failed"`
	Results   []core.SubmitResult `json:"results"`
}

// DebugLinesResult exposes raw line resolution for one transaction.
type DebugLinesResult struct {
	TrxNumber    int64              `json:"trx_number"`
	Lines        []core.InvoiceLine `json:"lines"`
	AggregateTax string             `json:"aggregate_tax"`
	Error        string             `json:"error,omitempty"`
}
