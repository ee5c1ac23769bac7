package firs

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// InvoicePayload is the document shape accepted by POST /invoice/generate.
type InvoicePayload struct {
	DocumentIdentifier      string        `json:"document_identifier"`
	IssueDate               string        `json:"issue_date"`
	InvoiceTypeCode         string        `json:"invoice_type_code"`
	DocumentCurrencyCode    string        `json:"document_currency_code"`
	TaxCurrencyCode         string        `json:"tax_currency_code"`
	AccountingCustomerParty CustomerParty `json:"accounting_customer_party"`
	InvoiceLine             []Line        `json:"invoice_line"`
}

type CustomerParty struct {
	PartyName           string        `json:"party_name"`
	TIN                 string        `json:"tin"`
	Email               string        `json:"email"`
	Telephone           string        `json:"telephone"`
	BusinessDescription string        `json:"business_description"`
	PostalAddress       PostalAddress `json:"postal_address"`
}

type PostalAddress struct {
	StreetName string `json:"street_name"`
	CityName   string `json:"city_name"`
	PostalZone string `json:"postal_zone"`
	Country    string `json:"country"`
}

type Line struct {
	HSNCode                   string          `json:"hsn_code"`
	PriceAmount               decimal.Decimal `json:"price_amount"`
	DiscountAmount            decimal.Decimal `json:"discount_amount"`
	UOM                       string          `json:"uom"`
	InvoicedQuantity          decimal.Decimal `json:"invoiced_quantity"`
	ProductCategory           string          `json:"product_category"`
	TaxRate                   decimal.Decimal `json:"tax_rate"`
	TaxCategoryID             string          `json:"tax_category_id"`
	ItemName                  string          `json:"item_name"`
	SellersItemIdentification string          `json:"sellers_item_identification"`
}

// GenerateResult is the classified outcome of an /invoice/generate call.
// A non-nil result means the endpoint answered; transport failures are
// returned as errors instead.
type GenerateResult struct {
	StatusCode int
	IRN        string
	QRCode     string
	Message    string
	RawBody    string
}

// Accepted reports whether the endpoint issued an IRN for a new document.
func (r *GenerateResult) Accepted() bool {
	return r.StatusCode == 200 || r.StatusCode == 201
}

// Conflict reports whether the document already exists on the portal.
// The IRN field carries the existing reference when the endpoint embeds one.
func (r *GenerateResult) Conflict() bool {
	return r.StatusCode == 409
}

// generateEnvelope covers the response shapes the endpoint has been seen to
// return: the IRN under "data" on success, under "errors" on conflict, and
// occasionally at the top level.
type generateEnvelope struct {
	Data    *irnBlock `json:"data"`
	Errors  *irnBlock `json:"errors"`
	IRN     string    `json:"irn"`
	QRCode  string    `json:"qr_code"`
	Message string    `json:"message"`
}

type irnBlock struct {
	IRN    string `json:"irn"`
	QRCode string `json:"qr_code"`
}

func classify(status int, body []byte) *GenerateResult {
	res := &GenerateResult{StatusCode: status, RawBody: string(body)}

	var env generateEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		res.Message = truncate(string(body), 300)
		return res
	}

	switch {
	case status == 200 || status == 201:
		res.IRN = env.IRN
		res.QRCode = env.QRCode
		if env.Data != nil {
			if env.Data.IRN != "" {
				res.IRN = env.Data.IRN
			}
			if env.Data.QRCode != "" {
				res.QRCode = env.Data.QRCode
			}
		}
	case status == 409:
		res.IRN = env.IRN
		res.QRCode = env.QRCode
		if env.Errors != nil {
			if env.Errors.IRN != "" {
				res.IRN = env.Errors.IRN
			}
			if env.Errors.QRCode != "" {
				res.QRCode = env.Errors.QRCode
			}
		}
	}

	res.Message = env.Message
	if res.Message == "" {
		res.Message = truncate(string(body), 300)
	}
	return res
}

// truncate caps s at n bytes, backing off to a rune boundary so the result
// stays valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
