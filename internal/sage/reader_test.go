package sage_test

import (
	"context"
	"testing"
	"time"

	"einvoice-bridge/internal/sage"
	"github.com/shopspring/decimal"
)

func jrnlRowColumns() []string {
	return []string{
		"JrnlKey_TrxNumber", "GLAcntNumber", "Amount", "Quantity",
		"UnitCost", "RowNumber", "ItemRecordNumber", "RowDescription",
	}
}

func catalogColumns() []string {
	return []string{"ItemRecordNumber", "ItemID", "ItemDescription", "SalesPrice1"}
}

func newLineFake(detailRows, catalogRows []sage.Row) *fakeQuerier {
	return &fakeQuerier{
		columns: map[string][]string{
			"JrnlRow":  jrnlRowColumns(),
			"LineItem": catalogColumns(),
		},
		counts: map[string]int{"JrnlRow.JrnlKey_TrxNumber": len(detailRows)},
		rows: map[string][]sage.Row{
			"JrnlRow":  detailRows,
			"LineItem": catalogRows,
		},
	}
}

func TestResolveLines_SeparatesTaxPosting(t *testing.T) {
	// Sales postings are negative in the receivables journal. The VAT row
	// has no linked item and no quantity.
	src := newLineFake(
		[]sage.Row{
			{"ItemRecordNumber": int64(5), "Quantity": -2.0, "UnitCost": -500.0,
				"Amount": -1000.0, "RowDescription": ""},
			{"ItemRecordNumber": int64(0), "Quantity": 0.0, "UnitCost": 0.0,
				"Amount": -75.0, "RowDescription": "VAT @ 7.5%"},
		},
		[]sage.Row{
			{"ItemRecordNumber": int64(5), "ItemID": "GUARD",
				"ItemDescription": "Guard services", "SalesPrice1": 0.0},
		},
	)
	r := sage.NewReader(src)

	lines, aggTax, err := r.ResolveLines(context.Background(), 100)
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}

	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1 (tax posting excluded)", len(lines))
	}
	if !aggTax.Equal(decimal.NewFromInt(75)) {
		t.Errorf("aggregate tax = %s, want 75", aggTax)
	}

	l := lines[0]
	if l.LineNum != 1 || l.ItemCode != "GUARD" {
		t.Errorf("line = %+v", l)
	}
	if l.Description != "Guard services" {
		t.Errorf("description = %q, want catalog description", l.Description)
	}
	if !l.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("quantity = %s, want 2 (absolute)", l.Quantity)
	}
	if !l.UnitPrice.Equal(decimal.NewFromInt(500)) {
		t.Errorf("unit price = %s, want 500 (absolute)", l.UnitPrice)
	}
	if !l.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("amount = %s, want 1000", l.Amount)
	}
}

func TestResolveLines_DropsGLOnlyRows(t *testing.T) {
	// A row with no quantity and no linked item is a GL posting, not a
	// sellable line.
	src := newLineFake(
		[]sage.Row{
			{"ItemRecordNumber": int64(0), "Quantity": 0.0, "UnitCost": 0.0,
				"Amount": -1075.0, "RowDescription": "Accounts receivable"},
		},
		nil,
	)
	r := sage.NewReader(src)

	lines, _, err := r.ResolveLines(context.Background(), 100)
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("lines = %d, want 0", len(lines))
	}
}

func TestResolveLines_PriceFallsBackToCatalog(t *testing.T) {
	src := newLineFake(
		[]sage.Row{
			{"ItemRecordNumber": int64(7), "Quantity": -1.0, "UnitCost": 0.0,
				"Amount": -650.0, "RowDescription": ""},
		},
		[]sage.Row{
			{"ItemRecordNumber": int64(7), "ItemID": "PATROL",
				"ItemDescription": "Patrol service", "SalesPrice1": 650.0},
		},
	)
	r := sage.NewReader(src)

	lines, _, err := r.ResolveLines(context.Background(), 100)
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if !lines[0].UnitPrice.Equal(decimal.NewFromInt(650)) {
		t.Errorf("unit price = %s, want catalog price 650", lines[0].UnitPrice)
	}
}

func TestResolveLines_PriceFallsBackToRowAmount(t *testing.T) {
	src := newLineFake(
		[]sage.Row{
			{"ItemRecordNumber": int64(9), "Quantity": -1.0, "UnitCost": 0.0,
				"Amount": -880.0, "RowDescription": "One-off callout"},
		},
		nil,
	)
	r := sage.NewReader(src)

	lines, _, err := r.ResolveLines(context.Background(), 100)
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if !lines[0].UnitPrice.Equal(decimal.NewFromInt(880)) {
		t.Errorf("unit price = %s, want row amount 880", lines[0].UnitPrice)
	}
	if lines[0].Description != "One-off callout" {
		t.Errorf("description = %q", lines[0].Description)
	}
}

func TestResolveLines_QuantityDefaultsToOneForLinkedItems(t *testing.T) {
	src := newLineFake(
		[]sage.Row{
			{"ItemRecordNumber": int64(7), "Quantity": 0.0, "UnitCost": -200.0,
				"Amount": -200.0, "RowDescription": ""},
		},
		nil,
	)
	r := sage.NewReader(src)

	lines, _, err := r.ResolveLines(context.Background(), 100)
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1 (kept via item link)", len(lines))
	}
	if !lines[0].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("quantity = %s, want 1", lines[0].Quantity)
	}
}

func TestResolveLines_NoForeignKeyMatchDefersToFallback(t *testing.T) {
	src := newLineFake(nil, nil)
	src.counts = map[string]int{}
	r := sage.NewReader(src)

	lines, aggTax, err := r.ResolveLines(context.Background(), 100)
	if err != nil {
		t.Fatalf("ResolveLines: %v", err)
	}
	if lines != nil || !aggTax.IsZero() {
		t.Errorf("lines = %v, tax = %s; want empty result signalling header fallback", lines, aggTax)
	}
}

func TestFetchHeaders_EnrichesFromMasterData(t *testing.T) {
	date := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	src := &fakeQuerier{
		columns: map[string][]string{},
		rows: map[string][]sage.Row{
			"JrnlHdr": {
				{"JrnlKey_TrxNumber": int64(100), "CustVendId": int64(12),
					"TransactionDate": date, "MainAmount": 1075.0,
					"Reference": "INV-100", "Description": "August guarding"},
				{"JrnlKey_TrxNumber": int64(101), "CustVendId": int64(99),
					"TransactionDate": date, "MainAmount": 500.0,
					"Reference": "", "Description": "Walk-in client"},
			},
			"Customers": {
				{"CustomerRecordNumber": int64(12), "CustomerID": "ACME",
					"Customer_Bill_Name": "Acme Ltd", "Phone_Number": "+2348000000000",
					"eMail_Address": "ap@acme.example", "SalesTaxResaleNum": "12345678-0001"},
			},
			"Address": {
				{"CustomerRecordNumber": int64(12), "AddressLine1": "1 Broad Street",
					"AddressLine2": "Marina", "City": "Lagos Island"},
				{"CustomerRecordNumber": int64(12), "AddressLine1": "Warehouse Rd",
					"AddressLine2": "", "City": "Apapa"},
			},
		},
	}
	r := sage.NewReader(src)

	headers, err := r.FetchHeaders(context.Background(),
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchHeaders: %v", err)
	}
	if len(headers) != 2 {
		t.Fatalf("headers = %d, want 2", len(headers))
	}

	h := headers[0]
	if h.TrxNumber != 100 || h.InvoiceNum != "INV-100" {
		t.Errorf("header = %+v", h)
	}
	if h.CustomerName != "Acme Ltd" || h.CustomerID != "ACME" {
		t.Errorf("customer = %q / %q", h.CustomerName, h.CustomerID)
	}
	if h.CustomerTIN != "12345678-0001" || h.CustomerEmail != "ap@acme.example" {
		t.Errorf("tin/email = %q / %q", h.CustomerTIN, h.CustomerEmail)
	}
	// Both address lines joined; the first address row per customer wins.
	if h.CustomerAddress != "1 Broad Street, Marina" || h.CustomerCity != "Lagos Island" {
		t.Errorf("address = %q / %q", h.CustomerAddress, h.CustomerCity)
	}
	if !h.Amount.Equal(decimal.NewFromInt(1075)) {
		t.Errorf("amount = %s", h.Amount)
	}
	if h.Date == nil || !h.Date.Equal(date) {
		t.Errorf("date = %v", h.Date)
	}

	// No reference and no customer record: synthesized number, description
	// stands in for the name.
	h = headers[1]
	if h.InvoiceNum != "TRX-101" {
		t.Errorf("invoice num = %q, want TRX-101", h.InvoiceNum)
	}
	if h.CustomerName != "Walk-in client" {
		t.Errorf("customer name = %q, want header description", h.CustomerName)
	}
}
