package core_test

import (
	"errors"
	"testing"
	"time"

	"einvoice-bridge/internal/core"
	"github.com/shopspring/decimal"
)

func testDefaults() core.PayloadDefaults {
	return core.PayloadDefaults{
		TIN:             "23773131-0001",
		Email:           "noemail@placeholder.com",
		Phone:           "+234",
		City:            "Lagos",
		PostalZone:      "100001",
		Country:         "NG",
		Currency:        "NGN",
		TaxRatePercent:  dec("7.5"),
		HSNCode:         "2710.19",
		ProductCategory: "Security Services",
	}
}

func TestBuildPayload(t *testing.T) {
	date := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	inv := &core.Invoice{
		TrxNumber:    100,
		InvoiceNum:   "INV-100",
		CustomerName: "Acme Ltd",
		InvoiceDate:  &date,
	}
	lines := []core.InvoiceLine{
		{LineNum: 1, ItemCode: "GUARD", Description: "Guard services", Quantity: dec("2"), UnitPrice: dec("500"), Amount: dec("1000"), TaxAmount: dec("75")},
		{LineNum: 2, ItemCode: "FREE", Description: "Comp item", Quantity: dec("1"), UnitPrice: decimal.Zero, Amount: decimal.Zero},
	}

	payload, totals, err := core.BuildPayload(inv, lines, testDefaults())
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}

	if payload.DocumentIdentifier != "INV-100" {
		t.Errorf("document_identifier = %q", payload.DocumentIdentifier)
	}
	if payload.IssueDate != "2026-08-10" {
		t.Errorf("issue_date = %q", payload.IssueDate)
	}
	if payload.InvoiceTypeCode != "394" {
		t.Errorf("invoice_type_code = %q", payload.InvoiceTypeCode)
	}
	if payload.DocumentCurrencyCode != "NGN" || payload.TaxCurrencyCode != "NGN" {
		t.Errorf("currency = %q / %q", payload.DocumentCurrencyCode, payload.TaxCurrencyCode)
	}

	// The zero-priced line is dropped.
	if len(payload.InvoiceLine) != 1 {
		t.Fatalf("invoice_line count = %d, want 1", len(payload.InvoiceLine))
	}
	l := payload.InvoiceLine[0]
	if l.ItemName != "Guard services" || l.SellersItemIdentification != "GUARD" {
		t.Errorf("line item = %q / %q", l.ItemName, l.SellersItemIdentification)
	}
	if !l.DiscountAmount.Equal(dec("1")) {
		t.Errorf("discount_amount = %s, want 1", l.DiscountAmount)
	}
	if l.HSNCode != "2710.19" || l.ProductCategory != "Security Services" {
		t.Errorf("classification = %q / %q", l.HSNCode, l.ProductCategory)
	}
	if l.UOM != "ST" || l.TaxCategoryID != "STANDARD_VAT" {
		t.Errorf("uom/tax category = %q / %q", l.UOM, l.TaxCategoryID)
	}

	if !totals.Subtotal.Equal(dec("1000")) || !totals.TaxAmount.Equal(dec("75")) || !totals.GrandTotal.Equal(dec("1075")) {
		t.Errorf("totals = %s/%s/%s, want 1000/75/1075", totals.Subtotal, totals.TaxAmount, totals.GrandTotal)
	}
}

func TestBuildPayload_CustomerDefaults(t *testing.T) {
	inv := &core.Invoice{TrxNumber: 100, InvoiceNum: "INV-100", CustomerName: "Acme Ltd"}
	lines := []core.InvoiceLine{
		{LineNum: 1, Quantity: dec("1"), UnitPrice: dec("100"), Amount: dec("100")},
	}

	payload, _, err := core.BuildPayload(inv, lines, testDefaults())
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}

	c := payload.AccountingCustomerParty
	if c.TIN != "23773131-0001" {
		t.Errorf("tin = %q", c.TIN)
	}
	if c.Email != "noemail@placeholder.com" {
		t.Errorf("email = %q", c.Email)
	}
	if c.Telephone != "+234" {
		t.Errorf("telephone = %q", c.Telephone)
	}
	if c.PostalAddress.StreetName != "N/A" || c.PostalAddress.CityName != "Lagos" {
		t.Errorf("address = %q / %q", c.PostalAddress.StreetName, c.PostalAddress.CityName)
	}
	if c.PostalAddress.PostalZone != "100001" || c.PostalAddress.Country != "NG" {
		t.Errorf("postal/country = %q / %q", c.PostalAddress.PostalZone, c.PostalAddress.Country)
	}

	// A line with no description or item code still gets identifiable values.
	l := payload.InvoiceLine[0]
	if l.ItemName != "Service" {
		t.Errorf("item_name = %q, want Service", l.ItemName)
	}
	if l.SellersItemIdentification != "ITEM-1" {
		t.Errorf("sellers_item_identification = %q, want ITEM-1", l.SellersItemIdentification)
	}
}

func TestBuildPayload_CustomerDataPreserved(t *testing.T) {
	inv := &core.Invoice{
		TrxNumber:       100,
		InvoiceNum:      "INV-100",
		CustomerName:    "Acme Ltd",
		CustomerTIN:     "12345678-0001",
		CustomerEmail:   "ap@acme.example",
		CustomerPhone:   "+2348000000000",
		CustomerAddress: "1 Broad Street",
		CustomerCity:    "Ikeja",
	}
	lines := []core.InvoiceLine{
		{LineNum: 1, Quantity: dec("1"), UnitPrice: dec("100"), Amount: dec("100")},
	}

	payload, _, err := core.BuildPayload(inv, lines, testDefaults())
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}

	c := payload.AccountingCustomerParty
	if c.TIN != "12345678-0001" || c.Email != "ap@acme.example" || c.Telephone != "+2348000000000" {
		t.Errorf("customer fields overridden: %q / %q / %q", c.TIN, c.Email, c.Telephone)
	}
	if c.PostalAddress.StreetName != "1 Broad Street" || c.PostalAddress.CityName != "Ikeja" {
		t.Errorf("address overridden: %q / %q", c.PostalAddress.StreetName, c.PostalAddress.CityName)
	}
}

func TestBuildPayload_NoBillableLines(t *testing.T) {
	inv := &core.Invoice{TrxNumber: 100, InvoiceNum: "INV-100"}
	lines := []core.InvoiceLine{
		{LineNum: 1, Quantity: dec("1"), UnitPrice: decimal.Zero},
		{LineNum: 2, Quantity: dec("1"), UnitPrice: dec("-50")},
	}

	_, _, err := core.BuildPayload(inv, lines, testDefaults())
	if !errors.Is(err, core.ErrNoBillableLines) {
		t.Fatalf("err = %v, want ErrNoBillableLines", err)
	}
}
