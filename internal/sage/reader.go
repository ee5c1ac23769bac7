package sage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"einvoice-bridge/internal/core"
	"einvoice-bridge/internal/logger"
	"github.com/shopspring/decimal"
)

const (
	tableHeaders   = "JrnlHdr"
	tableRows      = "JrnlRow"
	tableCatalog   = "LineItem"
	tableCustomers = "Customers"
	tableAddress   = "Address"
)

var fkCandidates = []string{
	"JrnlKey_TrxNumber", "Journal", "JournalKey", "TrxNumber", "TransactionNumber",
}

type catalogItem struct {
	itemID      string
	description string
	price       decimal.Decimal
}

// Reader extracts sales headers and line items from the Sage company file,
// resolving column names through the prober on first use.
type Reader struct {
	src    Querier
	prober *Prober

	mu            sync.Mutex
	catalog       map[int64]catalogItem
	catalogLoaded bool
}

func NewReader(src Querier) *Reader {
	return &Reader{src: src, prober: NewProber(src)}
}

// ── Headers ──────────────────────────────────────────────────────────────────

// FetchHeaders reads sales transaction headers for the date range and
// enriches them best-effort with customer and address master data. Master
// data failures degrade to bare headers, never fail the fetch.
func (r *Reader) FetchHeaders(ctx context.Context, from, to time.Time) ([]core.SourceHeader, error) {
	log := logger.WithComponent("sage")

	rows, err := r.src.Query(ctx, `
		SELECT JrnlKey_TrxNumber, CustVendId, TransactionDate,
		       MainAmount, Reference, Description
		FROM "JrnlHdr"
		WHERE Module = 'R'
		  AND TransactionDate >= ?
		  AND TransactionDate <= ?
		ORDER BY TransactionDate DESC
	`, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to read sales headers: %w", err)
	}

	custMap := r.customerMap(ctx)
	addrMap := r.addressMap(ctx)

	headers := make([]core.SourceHeader, 0, len(rows))
	for _, row := range rows {
		trx := asInt64(row["JrnlKey_TrxNumber"])
		custRec := asInt64(row["CustVendId"])
		ref := asString(row["Reference"])
		desc := asString(row["Description"])

		invNum := ref
		if invNum == "" {
			invNum = fmt.Sprintf("TRX-%d", trx)
		}

		cust := custMap[custRec]
		addr := addrMap[custRec]
		name := cust.name
		if name == "" {
			name = desc
		}

		headers = append(headers, core.SourceHeader{
			TrxNumber:       trx,
			InvoiceNum:      invNum,
			CustomerID:      cust.id,
			CustomerName:    name,
			CustomerTIN:     cust.tin,
			CustomerEmail:   cust.email,
			CustomerPhone:   cust.phone,
			CustomerAddress: addr.address,
			CustomerCity:    addr.city,
			Date:            asTime(row["TransactionDate"]),
			Amount:          asDecimal(row["MainAmount"]),
			Description:     desc,
		})
	}

	log.Info().Int("headers", len(headers)).
		Str("from", from.Format("2006-01-02")).Str("to", to.Format("2006-01-02")).
		Msg("fetched sales headers")
	return headers, nil
}

type customerRecord struct {
	id, name, phone, email, tin string
}

func (r *Reader) customerMap(ctx context.Context) map[int64]customerRecord {
	out := make(map[int64]customerRecord)
	rows, err := r.src.Query(ctx, `
		SELECT CustomerRecordNumber, CustomerID, Customer_Bill_Name,
		       Phone_Number, eMail_Address, SalesTaxResaleNum
		FROM "Customers"
	`)
	if err != nil {
		l := logger.WithComponent("sage")
		l.Warn().Err(err).Msg("customer master read failed, headers will be bare")
		return out
	}
	for _, row := range rows {
		out[asInt64(row["CustomerRecordNumber"])] = customerRecord{
			id:    asString(row["CustomerID"]),
			name:  asString(row["Customer_Bill_Name"]),
			phone: asString(row["Phone_Number"]),
			email: asString(row["eMail_Address"]),
			tin:   asString(row["SalesTaxResaleNum"]),
		}
	}
	return out
}

type addressRecord struct {
	address, city string
}

func (r *Reader) addressMap(ctx context.Context) map[int64]addressRecord {
	out := make(map[int64]addressRecord)
	rows, err := r.src.Query(ctx, `
		SELECT CustomerRecordNumber, AddressLine1, AddressLine2, City
		FROM "Address"
	`)
	if err != nil {
		l := logger.WithComponent("sage")
		l.Warn().Err(err).Msg("address master read failed")
		return out
	}
	for _, row := range rows {
		rec := asInt64(row["CustomerRecordNumber"])
		if _, seen := out[rec]; seen {
			continue
		}
		parts := []string{asString(row["AddressLine1"]), asString(row["AddressLine2"])}
		nonEmpty := parts[:0]
		for _, p := range parts {
			if p != "" {
				nonEmpty = append(nonEmpty, p)
			}
		}
		out[rec] = addressRecord{
			address: strings.Join(nonEmpty, ", "),
			city:    asString(row["City"]),
		}
	}
	return out
}

// ── Line items ───────────────────────────────────────────────────────────────

// ResolveLines reads the detail rows of one transaction and turns them into
// sellable invoice lines. The second return is the aggregate VAT amount when
// the ledger carries the tax as its own posting row; tax apportionment
// across lines is the caller's concern.
//
// An empty line set with a nil error means the transaction has no usable
// detail rows (common for simple service invoices) and the caller should
// fall back to the header amount.
func (r *Reader) ResolveLines(ctx context.Context, trxNumber int64) ([]core.InvoiceLine, decimal.Decimal, error) {
	log := logger.WithComponent("sage")

	fk, err := r.prober.ResolveForeignKey(ctx, tableRows, trxNumber, fkCandidates...)
	if err != nil {
		log.Info().Int64("trx", trxNumber).Msg("no fk column matches transaction, deferring to header fallback")
		return nil, decimal.Zero, nil
	}

	amountCol, _ := r.prober.ResolveColumn(ctx, tableRows, "Amount")
	qtyCol, _ := r.prober.ResolveColumn(ctx, tableRows, "Quantity", "StockingQuantity")
	priceCol, _ := r.prober.ResolveColumn(ctx, tableRows, "UnitCost", "UnitPrice", "StockingUnitCost")
	descCol, _ := r.prober.ResolveColumn(ctx, tableRows, "RowDescription", "Description",
		"ItemDescription", "LineDescription", "Memo")
	itemRecCol, _ := r.prober.ResolveColumn(ctx, tableRows, "ItemRecordNumber")
	glacctCol, _ := r.prober.ResolveColumn(ctx, tableRows, "GLAcntNumber")
	rowNumCol, _ := r.prober.ResolveColumn(ctx, tableRows, "RowNumber")

	var selectCols []string
	for _, c := range []string{glacctCol, amountCol, qtyCol, priceCol, rowNumCol, itemRecCol, descCol} {
		if c != "" {
			selectCols = append(selectCols, `"`+c+`"`)
		}
	}
	if len(selectCols) == 0 {
		return nil, decimal.Zero, fmt.Errorf("no usable data columns in %s", tableRows)
	}

	query := fmt.Sprintf(`SELECT %s FROM "%s" WHERE "%s" = ?`,
		strings.Join(selectCols, ", "), tableRows, fk)
	rows, err := r.src.Query(ctx, query, trxNumber)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to read detail rows for %d: %w", trxNumber, err)
	}

	catalog := r.loadCatalog(ctx)

	var lines []core.InvoiceLine
	aggregateTax := decimal.Zero

	for _, row := range rows {
		qty := decimal.Zero
		if qtyCol != "" {
			qty = asDecimal(row[qtyCol])
		}
		amount := decimal.Zero
		if amountCol != "" {
			amount = asDecimal(row[amountCol])
		}
		unitCost := decimal.Zero
		if priceCol != "" {
			unitCost = asDecimal(row[priceCol])
		}
		var itemRec int64
		if itemRecCol != "" {
			itemRec = asInt64(row[itemRecCol])
		}
		rowDesc := ""
		if descCol != "" {
			rowDesc = asString(row[descCol])
		}

		// A description mentioning tax/VAT on a row with no linked item and
		// no quantity is the ledger's aggregate VAT posting, not a sellable
		// line.
		lowered := strings.ToLower(rowDesc)
		if (strings.Contains(lowered, "tax") || strings.Contains(lowered, "vat")) &&
			itemRec == 0 && qty.IsZero() {
			aggregateTax = aggregateTax.Add(amount.Abs())
			log.Debug().Int64("trx", trxNumber).Str("desc", rowDesc).
				Str("amount", amount.String()).Msg("detail row classified as aggregate tax posting")
			continue
		}

		item := catalog[itemRec]

		desc := rowDesc
		if desc == "" {
			desc = item.description
		}
		if desc == "" {
			desc = item.itemID
		}
		if desc == "" {
			desc = "Service"
		}

		unitPrice := unitCost.Abs()
		if unitPrice.IsZero() {
			if item.price.IsPositive() {
				unitPrice = item.price
			} else {
				unitPrice = amount.Abs()
			}
		}

		keep := !qty.IsZero() || itemRec > 0
		log.Debug().Int64("trx", trxNumber).Int64("item_rec", itemRec).
			Str("qty", qty.String()).Str("amount", amount.String()).
			Str("desc", desc).Bool("keep", keep).Msg("detail row")
		if !keep {
			continue
		}

		normQty := qty.Abs()
		if normQty.IsZero() {
			normQty = decimal.NewFromInt(1)
		}

		itemCode := item.itemID
		if itemCode == "" {
			itemCode = strconv.FormatInt(itemRec, 10)
		}

		lines = append(lines, core.InvoiceLine{
			TrxNumber:   trxNumber,
			LineNum:     len(lines) + 1,
			ItemCode:    itemCode,
			Description: desc,
			Quantity:    normQty,
			UnitPrice:   unitPrice,
			Amount:      normQty.Mul(unitPrice),
		})
	}

	log.Info().Int64("trx", trxNumber).Int("rows", len(rows)).Int("lines", len(lines)).
		Str("aggregate_tax", aggregateTax.String()).Msg("resolved detail rows")
	return lines, aggregateTax, nil
}

// loadCatalog builds the item lookup once per session. Failures degrade to
// an id-only lookup, then to an empty one.
func (r *Reader) loadCatalog(ctx context.Context) map[int64]catalogItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.catalogLoaded {
		return r.catalog
	}
	r.catalog = make(map[int64]catalogItem)
	r.catalogLoaded = true

	log := logger.WithComponent("sage")

	recCol, err := r.prober.ResolveColumn(ctx, tableCatalog, "ItemRecordNumber", "RecordNumber")
	if err != nil {
		log.Warn().Err(err).Msg("item catalog has no record number column, descriptions unavailable")
		return r.catalog
	}
	idCol, err := r.prober.ResolveColumn(ctx, tableCatalog, "ItemID")
	if err != nil {
		log.Warn().Err(err).Msg("item catalog has no ItemID column, descriptions unavailable")
		return r.catalog
	}
	descCol, _ := r.prober.ResolveColumn(ctx, tableCatalog, "ItemDescription", "Description", "SalesDescription")
	priceCol, _ := r.prober.ResolveColumn(ctx, tableCatalog, "SalesPrice1", "SalesPrice", "Price", "UnitPrice", "Cost")

	selectCols := []string{recCol, idCol}
	if descCol != "" {
		selectCols = append(selectCols, descCol)
	}
	if priceCol != "" {
		selectCols = append(selectCols, priceCol)
	}

	query := fmt.Sprintf(`SELECT %s FROM "%s" WHERE %s <> ''`,
		strings.Join(selectCols, ", "), tableCatalog, idCol)
	rows, err := r.src.Query(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("item catalog query failed, retrying id-only")
		rows, err = r.src.Query(ctx, fmt.Sprintf(
			`SELECT %s, %s FROM "%s" WHERE %s <> ''`, recCol, idCol, tableCatalog, idCol))
		if err != nil {
			log.Warn().Err(err).Msg("item catalog unavailable")
			return r.catalog
		}
		descCol, priceCol = "", ""
	}

	for _, row := range rows {
		item := catalogItem{itemID: asString(row[idCol])}
		if descCol != "" {
			item.description = asString(row[descCol])
		}
		if priceCol != "" {
			item.price = asDecimal(row[priceCol])
		}
		r.catalog[asInt64(row[recCol])] = item
	}
	log.Info().Int("items", len(r.catalog)).Msg("loaded item catalog")
	return r.catalog
}

// ── Discovery ────────────────────────────────────────────────────────────────

// Discover lists the live column sets of the tables the bridge touches.
// Used by operators when probing reports gaps on an unfamiliar install.
func (r *Reader) Discover(ctx context.Context) map[string][]string {
	out := make(map[string][]string)
	for _, table := range []string{tableHeaders, tableRows, tableCatalog, tableCustomers, tableAddress} {
		cols, err := r.prober.Columns(ctx, table)
		if err != nil {
			l := logger.WithComponent("sage")
			l.Warn().Str("table", table).Err(err).Msg("table not readable")
			continue
		}
		out[table] = cols
	}
	return out
}
