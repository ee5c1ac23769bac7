package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"einvoice-bridge/internal/core"
	"einvoice-bridge/internal/firs"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	invoice *core.Invoice

	replacedLines []core.InvoiceLine
	postedIRN     string
	postedQR      string
	postedTax     decimal.Decimal
	postedRaw     string
	failedMsg     string
	failedRaw     string
	markPostedN   int
	markFailedN   int
}

func (f *fakeStore) GetInvoice(ctx context.Context, trx int64) (*core.Invoice, error) {
	if f.invoice == nil {
		return nil, core.ErrInvoiceNotFound
	}
	return f.invoice, nil
}

func (f *fakeStore) ReplaceLines(ctx context.Context, trx int64, lines []core.InvoiceLine) error {
	f.replacedLines = lines
	return nil
}

func (f *fakeStore) MarkPosted(ctx context.Context, trx int64, irn, qr string, tax decimal.Decimal, raw string) error {
	f.markPostedN++
	f.postedIRN, f.postedQR, f.postedTax, f.postedRaw = irn, qr, tax, raw
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, trx int64, msg, raw string) error {
	f.markFailedN++
	f.failedMsg, f.failedRaw = msg, raw
	return nil
}

type fakeLines struct {
	lines []core.InvoiceLine
	tax   decimal.Decimal
	err   error
}

func (f *fakeLines) ResolveLines(ctx context.Context, trx int64) ([]core.InvoiceLine, decimal.Decimal, error) {
	return f.lines, f.tax, f.err
}

type fakeAPI struct {
	result  *firs.GenerateResult
	err     error
	calls   int
	payload *firs.InvoicePayload
}

func (f *fakeAPI) GenerateInvoice(ctx context.Context, p *firs.InvoicePayload) (*firs.GenerateResult, error) {
	f.calls++
	f.payload = p
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func pendingInvoice(amount string) *core.Invoice {
	return &core.Invoice{
		TrxNumber:    100,
		InvoiceNum:   "INV-100",
		CustomerName: "Acme Ltd",
		Amount:       dec(amount),
		Status:       core.StatusPending,
	}
}

func billableLines() []core.InvoiceLine {
	return []core.InvoiceLine{
		{TrxNumber: 100, LineNum: 1, ItemCode: "GUARD", Description: "Guard services",
			Quantity: dec("2"), UnitPrice: dec("500"), Amount: dec("1000")},
	}
}

func newTestSubmitter(st *fakeStore, ls *fakeLines, api *fakeAPI) *core.Submitter {
	return core.NewSubmitter(st, ls, api, testDefaults())
}

func TestSubmit_AlreadyPostedSkipsEndpoint(t *testing.T) {
	irn := "IRN-EXISTING"
	inv := pendingInvoice("1075")
	inv.Status = core.StatusPosted
	inv.IRN = &irn

	st := &fakeStore{invoice: inv}
	api := &fakeAPI{}
	res, err := newTestSubmitter(st, &fakeLines{}, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if api.calls != 0 {
		t.Errorf("endpoint called %d times, want 0", api.calls)
	}
	if res.OK || res.Status != core.StatusPosted {
		t.Errorf("result = %+v", res)
	}
	if res.Message != "Already posted" {
		t.Errorf("message = %q", res.Message)
	}
	if res.IRN != "IRN-EXISTING" {
		t.Errorf("irn = %q", res.IRN)
	}
}

func TestSubmit_Success(t *testing.T) {
	st := &fakeStore{invoice: pendingInvoice("1075")}
	ls := &fakeLines{lines: billableLines(), tax: dec("75")}
	api := &fakeAPI{result: &firs.GenerateResult{
		StatusCode: 201, IRN: "IRN-NEW", QRCode: "data:image/png;base64,abc", RawBody: `{"data":{"irn":"IRN-NEW"}}`,
	}}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !res.OK || res.Status != core.StatusPosted || res.IRN != "IRN-NEW" {
		t.Fatalf("result = %+v", res)
	}
	if st.markPostedN != 1 || st.postedIRN != "IRN-NEW" || st.postedQR != "data:image/png;base64,abc" {
		t.Errorf("MarkPosted: n=%d irn=%q qr=%q", st.markPostedN, st.postedIRN, st.postedQR)
	}
	if !st.postedTax.Equal(dec("75")) {
		t.Errorf("posted tax = %s, want 75", st.postedTax)
	}
	if len(st.replacedLines) != 1 {
		t.Fatalf("replaced lines = %d, want 1", len(st.replacedLines))
	}
	// The aggregate VAT posting lands on the single matching line.
	if !st.replacedLines[0].TaxAmount.Equal(dec("75")) {
		t.Errorf("line tax = %s, want 75", st.replacedLines[0].TaxAmount)
	}
	if api.payload == nil || api.payload.DocumentIdentifier != "INV-100" {
		t.Errorf("payload = %+v", api.payload)
	}
}

func TestSubmit_AggregateTaxPersistedOverLineSum(t *testing.T) {
	// Two 600 lines against a 1000 taxable base: greedy apportionment marks
	// both (per-line sum 90), but the invoice-level figure must carry the
	// ledger's aggregate posting of 75.
	st := &fakeStore{invoice: pendingInvoice("1275")}
	ls := &fakeLines{
		lines: []core.InvoiceLine{
			{TrxNumber: 100, LineNum: 1, ItemCode: "GUARD", Description: "Guard services",
				Quantity: dec("1"), UnitPrice: dec("600"), Amount: dec("600")},
			{TrxNumber: 100, LineNum: 2, ItemCode: "PATROL", Description: "Patrol service",
				Quantity: dec("1"), UnitPrice: dec("600"), Amount: dec("600")},
		},
		tax: dec("75"),
	}
	api := &fakeAPI{result: &firs.GenerateResult{StatusCode: 201, IRN: "IRN-NEW"}}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}

	if !st.postedTax.Equal(dec("75")) {
		t.Errorf("posted tax = %s, want aggregate 75", st.postedTax)
	}
	if !core.SumLineTax(st.replacedLines).Equal(dec("90")) {
		t.Errorf("line tax sum = %s, want 90", core.SumLineTax(st.replacedLines))
	}
}

func TestSubmit_ConflictWithIRNConverges(t *testing.T) {
	st := &fakeStore{invoice: pendingInvoice("1075")}
	ls := &fakeLines{lines: billableLines(), tax: dec("75")}
	api := &fakeAPI{result: &firs.GenerateResult{
		StatusCode: 409, IRN: "IRN-PRIOR", QRCode: "qr-prior", RawBody: `{"errors":{"irn":"IRN-PRIOR"}}`,
	}}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !res.OK || res.Status != core.StatusPosted || res.IRN != "IRN-PRIOR" {
		t.Fatalf("result = %+v", res)
	}
	if res.Note != "Already existed on FIRS" {
		t.Errorf("note = %q", res.Note)
	}
	if st.markPostedN != 1 || st.markFailedN != 0 {
		t.Errorf("posted=%d failed=%d", st.markPostedN, st.markFailedN)
	}
}

func TestSubmit_ConflictWithoutIRNFails(t *testing.T) {
	st := &fakeStore{invoice: pendingInvoice("1075")}
	ls := &fakeLines{lines: billableLines(), tax: dec("75")}
	api := &fakeAPI{result: &firs.GenerateResult{StatusCode: 409, RawBody: `{"message":"duplicate"}`}}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if res.OK || res.Status != core.StatusFailed {
		t.Fatalf("result = %+v", res)
	}
	if st.markFailedN != 1 {
		t.Errorf("MarkFailed calls = %d, want 1", st.markFailedN)
	}
}

func TestSubmit_TransportError(t *testing.T) {
	st := &fakeStore{invoice: pendingInvoice("1075")}
	ls := &fakeLines{lines: billableLines(), tax: dec("75")}
	api := &fakeAPI{err: errors.New("dial tcp: connection refused")}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if res.OK || res.Status != core.StatusFailed {
		t.Fatalf("result = %+v", res)
	}
	if !strings.HasPrefix(res.Message, "Connection error: ") {
		t.Errorf("message = %q", res.Message)
	}
	if !strings.HasPrefix(st.failedMsg, "Connection error: ") {
		t.Errorf("stored message = %q", st.failedMsg)
	}
}

func TestSubmit_TransportErrorTruncated(t *testing.T) {
	st := &fakeStore{invoice: pendingInvoice("1075")}
	ls := &fakeLines{lines: billableLines(), tax: dec("75")}
	api := &fakeAPI{err: errors.New(strings.Repeat("x", 400))}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(res.Message) != len("Connection error: ")+200 {
		t.Errorf("message length = %d", len(res.Message))
	}
}

func TestSubmit_TransportErrorTruncatesOnRuneBoundary(t *testing.T) {
	st := &fakeStore{invoice: pendingInvoice("1075")}
	ls := &fakeLines{lines: billableLines(), tax: dec("75")}
	api := &fakeAPI{err: errors.New("x" + strings.Repeat("₦", 100))}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	msg := strings.TrimPrefix(res.Message, "Connection error: ")
	if len(msg) > 200 {
		t.Errorf("message length = %d, want <= 200", len(msg))
	}
	if !utf8.ValidString(msg) {
		t.Errorf("message is not valid UTF-8: %q", msg)
	}
	if !utf8.ValidString(st.failedMsg) {
		t.Errorf("stored message is not valid UTF-8: %q", st.failedMsg)
	}
}

func TestSubmit_HeaderFallbackLine(t *testing.T) {
	// No detail rows in the source but the header carries an amount: submit a
	// single synthesized line with tax backed out of the gross figure.
	st := &fakeStore{invoice: pendingInvoice("1075")}
	ls := &fakeLines{}
	api := &fakeAPI{result: &firs.GenerateResult{StatusCode: 201, IRN: "IRN-NEW"}}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}

	if len(st.replacedLines) != 1 {
		t.Fatalf("replaced lines = %d, want 1", len(st.replacedLines))
	}
	l := st.replacedLines[0]
	if !l.Quantity.Equal(dec("1")) || !l.UnitPrice.Equal(dec("1075")) {
		t.Errorf("qty/price = %s/%s, want 1/1075", l.Quantity, l.UnitPrice)
	}
	if !l.TaxAmount.Equal(dec("75")) {
		t.Errorf("implied tax = %s, want 75", l.TaxAmount)
	}
	if l.ItemCode != "INV-100" {
		t.Errorf("item code = %q, want INV-100", l.ItemCode)
	}
	// The customer name stands in for a missing description.
	if l.Description != "Acme Ltd" {
		t.Errorf("description = %q, want Acme Ltd", l.Description)
	}
}

func TestSubmit_NoLinesZeroAmountFails(t *testing.T) {
	st := &fakeStore{invoice: pendingInvoice("0")}
	api := &fakeAPI{}

	res, err := newTestSubmitter(st, &fakeLines{}, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if api.calls != 0 {
		t.Errorf("endpoint called %d times, want 0", api.calls)
	}
	if res.OK || res.Status != core.StatusFailed {
		t.Fatalf("result = %+v", res)
	}
	if res.Message != "No line items and zero invoice amount" {
		t.Errorf("message = %q", res.Message)
	}
	if st.markFailedN != 1 {
		t.Errorf("MarkFailed calls = %d, want 1", st.markFailedN)
	}
}

func TestSubmit_LineResolutionErrorRecordedWhenNoFallback(t *testing.T) {
	st := &fakeStore{invoice: pendingInvoice("0")}
	ls := &fakeLines{err: errors.New("no usable data columns in JrnlRow")}
	api := &fakeAPI{}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Message != "no usable data columns in JrnlRow" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestSubmit_AllZeroPricedLinesFails(t *testing.T) {
	st := &fakeStore{invoice: pendingInvoice("1075")}
	ls := &fakeLines{lines: []core.InvoiceLine{
		{TrxNumber: 100, LineNum: 1, Quantity: dec("1"), UnitPrice: decimal.Zero},
	}}
	api := &fakeAPI{}

	res, err := newTestSubmitter(st, ls, api).Submit(context.Background(), 100)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if api.calls != 0 {
		t.Errorf("endpoint called %d times, want 0", api.calls)
	}
	if res.OK || res.Status != core.StatusFailed {
		t.Fatalf("result = %+v", res)
	}
	if res.Message != core.ErrNoBillableLines.Error() {
		t.Errorf("message = %q", res.Message)
	}
}
