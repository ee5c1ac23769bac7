package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"einvoice-bridge/internal/config"
	"einvoice-bridge/internal/core"
	"einvoice-bridge/internal/firs"
	"einvoice-bridge/internal/pdf"
	"einvoice-bridge/internal/sage"
)

// ErrNotPosted is returned by Receipt for invoices without an accepted
// submission; there is no reference or scan payload to print yet.
var ErrNotPosted = errors.New("invoice not posted yet")

// ApplicationService is the single interface both adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must
// contain no display logic of any kind.
type ApplicationService interface {
	// SyncInvoices reconciles Sage sales headers into the local store.
	// Empty date strings default to the current calendar month.
	SyncInvoices(ctx context.Context, dateFrom, dateTo string) (*SyncResult, error)

	// SubmitInvoice posts one pending or failed invoice to the endpoint.
	SubmitInvoice(ctx context.Context, trxNumber int64) (*core.SubmitResult, error)

	// SubmitPending posts every pending invoice sequentially.
	SubmitPending(ctx context.Context) (*BulkSubmitResult, error)

	// ListInvoices returns one dashboard page, newest first.
	ListInvoices(ctx context.Context, page int) (*InvoiceListResult, error)

	// GetInvoice returns one tracked invoice with its stored lines.
	GetInvoice(ctx context.Context, trxNumber int64) (*InvoiceDetailResult, error)

	// Stats returns the status breakdown.
	Stats(ctx context.Context) (*core.InvoiceStats, error)

	// DebugLines runs line resolution for a transaction without submitting.
	DebugLines(ctx context.Context, trxNumber int64) (*DebugLinesResult, error)

	// Receipt renders the PDF receipt for a posted invoice. Invoices that
	// have not been accepted yet return ErrNotPosted.
	Receipt(ctx context.Context, trxNumber int64) (filename string, data []byte, err error)

	// Resources fetches a portal reference-data collection.
	Resources(ctx context.Context, kind firs.ResourceKind) (json.RawMessage, error)

	// UpdatePaymentStatus patches the payment state of a posted invoice.
	UpdatePaymentStatus(ctx context.Context, irn, paymentStatus, reference string) (json.RawMessage, error)

	// DiscoverSchema lists the live columns of the Sage tables the bridge
	// reads, for operator follow-up when probing reports gaps.
	DiscoverSchema(ctx context.Context) (map[string][]string, error)
}

type appService struct {
	store     core.Store
	reader    *sage.Reader
	client    *firs.Client
	submitter *core.Submitter
	defaults  core.PayloadDefaults
	supplier  pdf.Supplier
	cfg       *config.Config
}

// NewAppService wires the service. reader may be nil when no Sage DSN is
// configured; Sage-backed operations then return a configuration error but
// the dashboard and store reads keep working.
func NewAppService(store core.Store, reader *sage.Reader, client *firs.Client, cfg *config.Config) ApplicationService {
	defaults := core.PayloadDefaults{
		TIN:             cfg.DefaultTIN,
		Email:           cfg.DefaultEmail,
		Phone:           cfg.DefaultPhone,
		City:            cfg.DefaultCity,
		PostalZone:      cfg.DefaultPostalZone,
		Country:         cfg.SupplierCountry,
		Currency:        cfg.Currency,
		TaxRatePercent:  cfg.VATRatePercent,
		HSNCode:         "2710.19",
		ProductCategory: "Security Services",
	}

	s := &appService{
		store:    store,
		reader:   reader,
		client:   client,
		defaults: defaults,
		supplier: pdf.Supplier{Name: cfg.SupplierName, Address: cfg.SupplierAddress},
		cfg:      cfg,
	}
	if reader != nil {
		s.submitter = core.NewSubmitter(store, reader, client, defaults)
	}
	return s
}

func (s *appService) requireSage() error {
	if s.reader == nil {
		return fmt.Errorf("sage source not configured: set SAGE_ODBC_CONN")
	}
	return nil
}

func (s *appService) SyncInvoices(ctx context.Context, dateFrom, dateTo string) (*SyncResult, error) {
	if err := s.requireSage(); err != nil {
		return nil, err
	}

	now := time.Now()
	from, to := core.DefaultSyncRange(now)
	if dateFrom != "" {
		parsed, err := time.Parse("2006-01-02", dateFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid date_from %q: %w", dateFrom, err)
		}
		from = parsed
	}
	if dateTo != "" {
		parsed, err := time.Parse("2006-01-02", dateTo)
		if err != nil {
			return nil, fmt.Errorf("invalid date_to %q: %w", dateTo, err)
		}
		to = parsed
	}

	headers, err := s.reader.FetchHeaders(ctx, from, to)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.InvoiceKeys(ctx)
	if err != nil {
		return nil, err
	}

	plan := core.BuildSyncPlan(headers, existing, now)
	if err := s.store.ApplySyncPlan(ctx, plan); err != nil {
		return nil, err
	}

	return &SyncResult{
		Synced:   len(headers),
		New:      len(plan.Inserts),
		DateFrom: from.Format("2006-01-02"),
		DateTo:   to.Format("2006-01-02"),
	}, nil
}

func (s *appService) SubmitInvoice(ctx context.Context, trxNumber int64) (*core.SubmitResult, error) {
	if err := s.requireSage(); err != nil {
		return nil, err
	}
	return s.submitter.Submit(ctx, trxNumber)
}

func (s *appService) SubmitPending(ctx context.Context) (*BulkSubmitResult, error) {
	if err := s.requireSage(); err != nil {
		return nil, err
	}

	keys, err := s.store.PendingKeys(ctx)
	if err != nil {
		return nil, err
	}

	// Submissions run serially; the endpoint's concurrency tolerance is
	// unknown.
	out := &BulkSubmitResult{Attempted: len(keys)}
	for _, trx := range keys {
		res, err := s.submitter.Submit(ctx, trx)
		if err != nil {
			return nil, fmt.Errorf("bulk submit stopped at %d: %w", trx, err)
		}
		if res.OK {
			out.Posted++
		} else {
			out.Failed++
		}
		out.Results = append(out.Results, *res)
	}
	return out, nil
}

func (s *appService) ListInvoices(ctx context.Context, page int) (*InvoiceListResult, error) {
	const perPage = 25
	invoices, total, err := s.store.ListInvoices(ctx, page, perPage)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	return &InvoiceListResult{
		Invoices:   invoices,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func (s *appService) GetInvoice(ctx context.Context, trxNumber int64) (*InvoiceDetailResult, error) {
	inv, err := s.store.GetInvoice(ctx, trxNumber)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.GetLines(ctx, trxNumber)
	if err != nil {
		return nil, err
	}
	return &InvoiceDetailResult{Invoice: inv, Lines: lines}, nil
}

func (s *appService) Stats(ctx context.Context) (*core.InvoiceStats, error) {
	return s.store.Stats(ctx)
}

func (s *appService) DebugLines(ctx context.Context, trxNumber int64) (*DebugLinesResult, error) {
	if err := s.requireSage(); err != nil {
		return nil, err
	}

	lines, aggregateTax, err := s.reader.ResolveLines(ctx, trxNumber)
	res := &DebugLinesResult{
		TrxNumber:    trxNumber,
		Lines:        lines,
		AggregateTax: aggregateTax.String(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res, nil
}

func (s *appService) Receipt(ctx context.Context, trxNumber int64) (string, []byte, error) {
	detail, err := s.GetInvoice(ctx, trxNumber)
	if err != nil {
		return "", nil, err
	}
	if detail.Invoice.Status != core.StatusPosted {
		return "", nil, ErrNotPosted
	}
	data, err := pdf.Render(detail.Invoice, detail.Lines, s.supplier, s.cfg.VATRatePercent)
	if err != nil {
		return "", nil, err
	}
	return pdf.FileName(detail.Invoice), data, nil
}

func (s *appService) Resources(ctx context.Context, kind firs.ResourceKind) (json.RawMessage, error) {
	return s.client.Resources(ctx, kind)
}

func (s *appService) UpdatePaymentStatus(ctx context.Context, irn, paymentStatus, reference string) (json.RawMessage, error) {
	return s.client.UpdatePaymentStatus(ctx, irn, paymentStatus, reference)
}

func (s *appService) DiscoverSchema(ctx context.Context) (map[string][]string, error) {
	if err := s.requireSage(); err != nil {
		return nil, err
	}
	return s.reader.Discover(ctx), nil
}
