package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"einvoice-bridge/internal/app"
	"einvoice-bridge/internal/core"
	"einvoice-bridge/internal/firs"
	"einvoice-bridge/internal/logger"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc app.ApplicationService
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)
	r.Get("/download/{trx}", h.download)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/invoices", h.listInvoices)
		r.Get("/api/invoices/{trx}", h.getInvoice)
		r.Get("/api/stats", h.stats)
		r.Get("/api/debug-lines/{trx}", h.debugLines)
		r.Get("/api/resources/{kind}", h.resources)

		r.Post("/api/sync", h.sync)
		r.Post("/api/post/{trx}", h.submit)
		r.Post("/api/post-bulk", h.submitBulk)
		r.Patch("/api/payment/{irn}", h.updatePayment)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func trxParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "trx"), 10, 64)
}

// listInvoices always answers: a store failure degrades to an empty page so
// the dashboard stays usable while the database is down.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	result, err := h.svc.ListInvoices(r.Context(), page)
	if err != nil {
		l := logger.WithRequestID(requestIDFromContext(r.Context()))
		l.Warn().Err(err).Msg("invoice list unavailable, serving empty page")
		result = &app.InvoiceListResult{Page: page, PerPage: 25, TotalPages: 1}
	}
	if result.Invoices == nil {
		result.Invoices = []core.Invoice{}
	}
	writeJSON(w, result)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	trx, err := trxParam(r)
	if err != nil {
		writeError(w, r, "invalid transaction number", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	detail, err := h.svc.GetInvoice(r.Context(), trx)
	if err != nil {
		if errors.Is(err, core.ErrInvoiceNotFound) {
			writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
			return
		}
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, detail)
}

// stats degrades to zeros like the list view.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		l := logger.WithRequestID(requestIDFromContext(r.Context()))
		l.Warn().Err(err).Msg("stats unavailable, serving zeros")
		st = &core.InvoiceStats{}
	}
	writeJSON(w, st)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DateFrom string `json:"date_from"`
		DateTo   string `json:"date_to"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, "invalid request body", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	}

	result, err := h.svc.SyncInvoices(r.Context(), req.DateFrom, req.DateTo)
	if err != nil {
		writeError(w, r, err.Error(), "SYNC_FAILED", http.StatusBadGateway)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	trx, err := trxParam(r)
	if err != nil {
		writeError(w, r, "invalid transaction number", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.SubmitInvoice(r.Context(), trx)
	if err != nil {
		if errors.Is(err, core.ErrInvoiceNotFound) {
			writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
			return
		}
		writeError(w, r, err.Error(), "SUBMIT_FAILED", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) submitBulk(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.SubmitPending(r.Context())
	if err != nil {
		writeError(w, r, err.Error(), "SUBMIT_FAILED", http.StatusInternalServerError)
		return
	}
	if result.Results == nil {
		result.Results = []core.SubmitResult{}
	}
	writeJSON(w, result)
}

func (h *Handler) debugLines(w http.ResponseWriter, r *http.Request) {
	trx, err := trxParam(r)
	if err != nil {
		writeError(w, r, "invalid transaction number", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.DebugLines(r.Context(), trx)
	if err != nil {
		writeError(w, r, err.Error(), "DEBUG_FAILED", http.StatusBadGateway)
		return
	}
	if result.Lines == nil {
		result.Lines = []core.InvoiceLine{}
	}
	writeJSON(w, result)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	trx, err := trxParam(r)
	if err != nil {
		writeError(w, r, "invalid transaction number", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	filename, data, err := h.svc.Receipt(r.Context(), trx)
	if err != nil {
		if errors.Is(err, core.ErrInvoiceNotFound) {
			writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
			return
		}
		if errors.Is(err, app.ErrNotPosted) {
			writeError(w, r, err.Error(), "NOT_POSTED", http.StatusNotFound)
			return
		}
		writeError(w, r, err.Error(), "PDF_FAILED", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}

func (h *Handler) resources(w http.ResponseWriter, r *http.Request) {
	kind := firs.ResourceKind(chi.URLParam(r, "kind"))
	switch kind {
	case firs.ResourceAll, firs.ResourceHSCodes, firs.ResourceServiceCodes,
		firs.ResourceCurrencies, firs.ResourceCountries:
	default:
		writeError(w, r, "unknown resource kind", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	data, err := h.svc.Resources(r.Context(), kind)
	if err != nil {
		writeError(w, r, err.Error(), "UPSTREAM_FAILED", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	irn := chi.URLParam(r, "irn")

	var req struct {
		PaymentStatus string `json:"payment_status"`
		Reference     string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if req.PaymentStatus == "" {
		writeError(w, r, "payment_status is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	data, err := h.svc.UpdatePaymentStatus(r.Context(), irn, req.PaymentStatus, req.Reference)
	if err != nil {
		writeError(w, r, err.Error(), "UPSTREAM_FAILED", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
