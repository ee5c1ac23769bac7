// Package pdf renders the printable e-invoice receipt with the portal's
// QR payload embedded.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"einvoice-bridge/internal/core"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// Supplier is the issuing party block printed on every receipt.
type Supplier struct {
	Name    string
	Address string
}

const (
	pageWidth  = 210.0
	marginLeft = 12.0
)

// Render produces the receipt PDF for a tracked invoice. A missing QR
// payload renders the document without the scan block; everything else is
// taken from the local store as-is.
func Render(inv *core.Invoice, lines []core.InvoiceLine, supplier Supplier, vatRatePercent decimal.Decimal) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Header band
	pdf.SetFillColor(15, 23, 42)
	pdf.Rect(0, 0, pageWidth, 26, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 15)
	pdf.Text(marginLeft, 11, supplier.Name)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Text(marginLeft, 18, supplier.Address)

	pdf.SetFillColor(22, 163, 74)
	pdf.RoundedRect(pageWidth-56, 7, 44, 12, 2, "1234", "F")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(pageWidth-49, 14.5, "E-INVOICE")

	y := 36.0
	pdf.SetTextColor(30, 41, 59)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.Text(marginLeft, y, "INVOICE")
	y += 9

	irn := "Pending"
	if inv.IRN != nil && *inv.IRN != "" {
		irn = *inv.IRN
	}
	dateStr := ""
	if inv.InvoiceDate != nil {
		dateStr = inv.InvoiceDate.Format("2006-01-02")
	}
	meta := [][2]string{
		{"Invoice No:", inv.InvoiceNum},
		{"Date:", dateStr},
		{"IRN:", irn},
		{"Currency:", "NGN"},
	}
	for _, m := range meta {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(100, 116, 139)
		pdf.Text(marginLeft, y, m[0])
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(30, 41, 59)
		pdf.Text(marginLeft+28, y, m[1])
		y += 5.5
	}

	// QR block top-right
	if inv.QRCode != nil && *inv.QRCode != "" {
		png, err := qrcode.Encode(*inv.QRCode, qrcode.Medium, 256)
		if err == nil {
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
			pdf.ImageOptions("qr", pageWidth-50, 32, 38, 38, false, opts, 0, "")
		}
	}

	// Bill-to box
	y += 4
	pdf.SetFillColor(248, 250, 252)
	pdf.SetDrawColor(226, 232, 240)
	pdf.Rect(marginLeft-2, y-4, pageWidth-2*(marginLeft-2)-55, 26, "FD")
	pdf.SetTextColor(37, 99, 235)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.Text(marginLeft+2, y+1, "BILL TO")
	pdf.SetTextColor(30, 41, 59)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Text(marginLeft+2, y+7, inv.CustomerName)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(100, 116, 139)
	addr := strings.Trim(inv.CustomerAddress+", "+inv.CustomerCity, ", ")
	if len(addr) > 80 {
		addr = addr[:80]
	}
	pdf.Text(marginLeft+2, y+12, addr)
	if inv.CustomerTIN != "" {
		pdf.Text(marginLeft+2, y+17, "TIN: "+inv.CustomerTIN)
	}
	y += 30

	// Line table
	pdf.SetY(y)
	pdf.SetX(marginLeft - 2)
	pdf.SetFillColor(15, 23, 42)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 8)
	widths := []float64{12, 92, 16, 33, 33}
	headings := []string{"#", "Description", "Qty", "Unit Price (N)", "Amount (N)"}
	for i, h := range headings {
		align := "L"
		if i >= 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(30, 41, 59)
	subtotal := decimal.Zero
	for i, line := range lines {
		if i%2 == 1 {
			pdf.SetFillColor(248, 250, 252)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		amount := line.Quantity.Mul(line.UnitPrice)
		subtotal = subtotal.Add(amount)

		desc := line.Description
		if desc == "" {
			desc = "Service"
		}
		if len(desc) > 45 {
			desc = desc[:45]
		}
		pdf.SetX(marginLeft - 2)
		pdf.CellFormat(widths[0], 6, fmt.Sprintf("%d", line.LineNum), "1", 0, "C", true, 0, "")
		pdf.CellFormat(widths[1], 6, desc, "1", 0, "L", true, 0, "")
		pdf.CellFormat(widths[2], 6, line.Quantity.String(), "1", 0, "R", true, 0, "")
		pdf.CellFormat(widths[3], 6, money(line.UnitPrice), "1", 0, "R", true, 0, "")
		pdf.CellFormat(widths[4], 6, money(amount), "1", 0, "R", true, 0, "")
		pdf.Ln(-1)
	}

	// Totals box
	rateFraction := vatRatePercent.Div(decimal.NewFromInt(100))
	tax := subtotal.Mul(rateFraction).Round(2)
	grand := subtotal.Add(tax)

	ty := pdf.GetY() + 6
	tx := pageWidth - 80.0
	pdf.SetFillColor(248, 250, 252)
	pdf.SetDrawColor(226, 232, 240)
	pdf.Rect(tx, ty, 68, 26, "FD")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 116, 139)
	pdf.Text(tx+4, ty+6, "Subtotal:")
	pdf.Text(tx+4, ty+12, fmt.Sprintf("VAT (%s%%):", vatRatePercent.String()))
	pdf.SetTextColor(30, 41, 59)
	pdf.Text(tx+40, ty+6, "N"+money(subtotal))
	pdf.Text(tx+40, ty+12, "N"+money(tax))
	pdf.SetDrawColor(15, 23, 42)
	pdf.Line(tx+4, ty+15, tx+64, ty+15)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(15, 23, 42)
	pdf.Text(tx+4, ty+22, "TOTAL:")
	pdf.Text(tx+36, ty+22, "N"+money(grand))

	// Footer band
	pdf.SetFillColor(15, 23, 42)
	pdf.Rect(0, 277, pageWidth, 20, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.Text(marginLeft, 284, "IRN: "+irn)
	pdf.SetFont("Helvetica", "", 7)
	pdf.Text(marginLeft, 290, "System-generated e-invoice. Validated by Nigeria E-Invoicing Portal (FIRS).")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName returns a filesystem-safe name for the receipt.
func FileName(inv *core.Invoice) string {
	name := inv.InvoiceNum
	if name == "" {
		name = fmt.Sprintf("TRX-%d", inv.TrxNumber)
	}
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return r.Replace(name) + ".pdf"
}

func money(d decimal.Decimal) string {
	s := d.Round(2).StringFixed(2)
	// Insert thousands separators into the integer part.
	dot := strings.Index(s, ".")
	intPart, frac := s[:dot], s[dot:]
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
