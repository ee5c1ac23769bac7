package core

import (
	"errors"
	"fmt"

	"einvoice-bridge/internal/firs"
	"github.com/shopspring/decimal"
)

// ErrNoBillableLines is returned when every resolved line has a non-positive
// unit price and nothing can be submitted.
var ErrNoBillableLines = errors.New("no valid line items (all zero prices)")

// PayloadDefaults carries the fallback values applied when Sage master data
// is incomplete, plus the fixed classification fields the endpoint expects.
type PayloadDefaults struct {
	TIN             string
	Email           string
	Phone           string
	City            string
	PostalZone      string
	Country         string
	Currency        string
	TaxRatePercent  decimal.Decimal
	HSNCode         string
	ProductCategory string
}

// Totals is the monetary summary of a built payload.
type Totals struct {
	Subtotal   decimal.Decimal
	TaxAmount  decimal.Decimal
	GrandTotal decimal.Decimal
}

// BuildPayload converts a tracked invoice and its resolved lines into the
// endpoint document. Lines with a non-positive unit price are dropped; if
// none survive the transformation fails rather than submit an empty set.
// The defaulted customer TIN is a known gap in the source data, not a
// correctness feature.
func BuildPayload(inv *Invoice, lines []InvoiceLine, d PayloadDefaults) (*firs.InvoicePayload, Totals, error) {
	one := decimal.NewFromInt(1)

	var apiLines []firs.Line
	subtotal := decimal.Zero
	tax := decimal.Zero
	for i, line := range lines {
		if !line.UnitPrice.IsPositive() {
			continue
		}

		name := line.Description
		if name == "" {
			name = "Service"
		}
		itemID := line.ItemCode
		if itemID == "" {
			itemID = fmt.Sprintf("ITEM-%d", i+1)
		}

		apiLines = append(apiLines, firs.Line{
			HSNCode:     d.HSNCode,
			PriceAmount: line.UnitPrice,
			// The endpoint rejects zero discounts.
			DiscountAmount:            one,
			UOM:                       "ST",
			InvoicedQuantity:          line.Quantity,
			ProductCategory:           d.ProductCategory,
			TaxRate:                   d.TaxRatePercent,
			TaxCategoryID:             "STANDARD_VAT",
			ItemName:                  name,
			SellersItemIdentification: itemID,
		})
		subtotal = subtotal.Add(line.Amount)
		tax = tax.Add(line.TaxAmount)
	}

	if len(apiLines) == 0 {
		return nil, Totals{}, ErrNoBillableLines
	}

	issueDate := ""
	if inv.InvoiceDate != nil {
		issueDate = inv.InvoiceDate.Format("2006-01-02")
	}

	payload := &firs.InvoicePayload{
		DocumentIdentifier:   inv.InvoiceNum,
		IssueDate:            issueDate,
		InvoiceTypeCode:      "394",
		DocumentCurrencyCode: d.Currency,
		TaxCurrencyCode:      d.Currency,
		AccountingCustomerParty: firs.CustomerParty{
			PartyName:           inv.CustomerName,
			TIN:                 fallback(inv.CustomerTIN, d.TIN),
			Email:               fallback(inv.CustomerEmail, d.Email),
			Telephone:           fallback(inv.CustomerPhone, d.Phone),
			BusinessDescription: "Customer",
			PostalAddress: firs.PostalAddress{
				StreetName: fallback(inv.CustomerAddress, "N/A"),
				CityName:   fallback(inv.CustomerCity, d.City),
				PostalZone: d.PostalZone,
				Country:    d.Country,
			},
		},
		InvoiceLine: apiLines,
	}

	totals := Totals{
		Subtotal:   subtotal,
		TaxAmount:  tax,
		GrandTotal: subtotal.Add(tax),
	}
	return payload, totals, nil
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
