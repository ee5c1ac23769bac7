package core

import (
	"context"
	"fmt"
	"unicode/utf8"

	"einvoice-bridge/internal/firs"
	"einvoice-bridge/internal/logger"
	"github.com/shopspring/decimal"
)

// SubmitStore is the slice of Store the submitter needs.
type SubmitStore interface {
	GetInvoice(ctx context.Context, trxNumber int64) (*Invoice, error)
	ReplaceLines(ctx context.Context, trxNumber int64, lines []InvoiceLine) error
	MarkPosted(ctx context.Context, trxNumber int64, irn, qrCode string, taxAmount decimal.Decimal, rawResponse string) error
	MarkFailed(ctx context.Context, trxNumber int64, errorMessage, rawResponse string) error
}

// LineSource resolves the sellable lines and the aggregate VAT posting for
// a transaction from the accounting source. An empty line set with a nil
// error means the source simply has no detail rows for the transaction.
type LineSource interface {
	ResolveLines(ctx context.Context, trxNumber int64) ([]InvoiceLine, decimal.Decimal, error)
}

// Generator is the single endpoint call the submitter makes.
type Generator interface {
	GenerateInvoice(ctx context.Context, payload *firs.InvoicePayload) (*firs.GenerateResult, error)
}

// SubmitResult reports the outcome of one submission attempt.
type SubmitResult struct {
	TrxNumber int64  `json:"trx_number"`
	OK        bool   `json:"ok"`
	Status    Status `json:"status"`
	IRN       string `json:"irn,omitempty"`
	Message   string `json:"message,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Submitter drives an invoice through pending → posted | failed. The store
// lock is only taken inside the store's own methods, never across the line
// resolution or the endpoint call.
type Submitter struct {
	store    SubmitStore
	lines    LineSource
	api      Generator
	defaults PayloadDefaults
}

func NewSubmitter(store SubmitStore, lines LineSource, api Generator, defaults PayloadDefaults) *Submitter {
	return &Submitter{store: store, lines: lines, api: api, defaults: defaults}
}

// Submit posts one invoice to the endpoint. Posted invoices are rejected
// immediately with their existing reference and no network call. A non-nil
// error means the attempt could not be carried out at all; endpoint
// rejections come back as OK=false results with the invoice marked failed.
func (s *Submitter) Submit(ctx context.Context, trxNumber int64) (*SubmitResult, error) {
	log := logger.WithComponent("submit")

	inv, err := s.store.GetInvoice(ctx, trxNumber)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusPosted {
		irn := ""
		if inv.IRN != nil {
			irn = *inv.IRN
		}
		return &SubmitResult{
			TrxNumber: trxNumber,
			OK:        false,
			Status:    StatusPosted,
			IRN:       irn,
			Message:   "Already posted",
		}, nil
	}

	rateFraction := s.defaults.TaxRatePercent.Div(decimal.NewFromInt(100))

	lines, aggregateTax, lineErr := s.lines.ResolveLines(ctx, trxNumber)
	if lineErr != nil {
		log.Warn().Int64("trx", trxNumber).Err(lineErr).Msg("line resolution failed, trying header fallback")
	}

	if len(lines) == 0 {
		amt := inv.Amount.Abs()
		if amt.IsPositive() {
			desc := inv.Description
			if desc == "" {
				desc = inv.CustomerName
			}
			if desc == "" {
				desc = s.defaults.ProductCategory
			}
			itemCode := inv.InvoiceNum
			if itemCode == "" {
				itemCode = fmt.Sprintf("TRX-%d", trxNumber)
			}
			log.Info().Int64("trx", trxNumber).Str("desc", desc).Msg("no detail rows, using header fallback line")
			lines = []InvoiceLine{{
				TrxNumber:   trxNumber,
				LineNum:     1,
				ItemCode:    itemCode,
				Description: desc,
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   amt,
				Amount:      amt,
				TaxAmount:   ImpliedTax(amt, rateFraction),
			}}
		} else {
			msg := "No line items and zero invoice amount"
			if lineErr != nil {
				msg = lineErr.Error()
			}
			if err := s.store.MarkFailed(ctx, trxNumber, truncate(msg, 500), ""); err != nil {
				return nil, err
			}
			return &SubmitResult{TrxNumber: trxNumber, OK: false, Status: StatusFailed, Message: msg}, nil
		}
	} else {
		lines = ApportionTax(lines, aggregateTax, rateFraction)
	}

	if err := s.store.ReplaceLines(ctx, trxNumber, lines); err != nil {
		return nil, err
	}

	payload, totals, err := BuildPayload(inv, lines, s.defaults)
	if err != nil {
		if markErr := s.store.MarkFailed(ctx, trxNumber, truncate(err.Error(), 500), ""); markErr != nil {
			return nil, markErr
		}
		return &SubmitResult{TrxNumber: trxNumber, OK: false, Status: StatusFailed, Message: err.Error()}, nil
	}

	// The ledger's own aggregate VAT posting is authoritative for the
	// invoice-level figure; the per-line split is an approximation and its
	// sum can drift above the aggregate in the greedy path.
	if aggregateTax.IsPositive() {
		totals.TaxAmount = aggregateTax
		totals.GrandTotal = totals.Subtotal.Add(aggregateTax)
	}

	log.Info().Int64("trx", trxNumber).
		Str("document", payload.DocumentIdentifier).
		Str("customer", payload.AccountingCustomerParty.PartyName).
		Int("lines", len(payload.InvoiceLine)).
		Msg("submitting invoice")

	res, err := s.api.GenerateInvoice(ctx, payload)
	if err != nil {
		msg := "Connection error: " + truncate(err.Error(), 200)
		if markErr := s.store.MarkFailed(ctx, trxNumber, msg, ""); markErr != nil {
			return nil, markErr
		}
		return &SubmitResult{TrxNumber: trxNumber, OK: false, Status: StatusFailed, Message: msg}, nil
	}

	switch {
	case res.Accepted():
		if err := s.store.MarkPosted(ctx, trxNumber, res.IRN, res.QRCode, totals.TaxAmount, res.RawBody); err != nil {
			return nil, err
		}
		log.Info().Int64("trx", trxNumber).Str("irn", res.IRN).Msg("invoice posted")
		return &SubmitResult{TrxNumber: trxNumber, OK: true, Status: StatusPosted, IRN: res.IRN}, nil

	case res.Conflict() && res.IRN != "":
		// The document was accepted by a prior attempt whose local status
		// update never landed. Converge instead of failing.
		if err := s.store.MarkPosted(ctx, trxNumber, res.IRN, res.QRCode, totals.TaxAmount, res.RawBody); err != nil {
			return nil, err
		}
		log.Info().Int64("trx", trxNumber).Str("irn", res.IRN).Msg("invoice already existed on portal, marked posted")
		return &SubmitResult{
			TrxNumber: trxNumber, OK: true, Status: StatusPosted, IRN: res.IRN,
			Note: "Already existed on FIRS",
		}, nil

	case res.Conflict():
		msg := res.Message
		if msg == "" {
			msg = "Invoice already exists (409)"
		}
		if err := s.store.MarkFailed(ctx, trxNumber, truncate(msg, 500), res.RawBody); err != nil {
			return nil, err
		}
		return &SubmitResult{TrxNumber: trxNumber, OK: false, Status: StatusFailed, Message: msg}, nil

	default:
		msg := res.Message
		log.Warn().Int64("trx", trxNumber).Int("status", res.StatusCode).Str("error", truncate(msg, 200)).Msg("endpoint rejected invoice")
		if err := s.store.MarkFailed(ctx, trxNumber, truncate(msg, 500), res.RawBody); err != nil {
			return nil, err
		}
		return &SubmitResult{TrxNumber: trxNumber, OK: false, Status: StatusFailed, Message: msg}, nil
	}
}

// truncate caps s at n bytes, backing off to a rune boundary so the stored
// message stays valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
