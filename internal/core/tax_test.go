package core_test

import (
	"testing"

	"einvoice-bridge/internal/core"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func lines(amounts ...string) []core.InvoiceLine {
	out := make([]core.InvoiceLine, len(amounts))
	for i, a := range amounts {
		out[i] = core.InvoiceLine{LineNum: i + 1, Amount: dec(a)}
	}
	return out
}

func TestApportionTax_SingleLineMatch(t *testing.T) {
	// Aggregate tax 75 at 7.5% implies a taxable base of 1000: only the
	// 1000 line carries the tax.
	ls := core.ApportionTax(lines("1000", "500"), dec("75"), dec("0.075"))

	if !ls[0].TaxAmount.Equal(dec("75")) {
		t.Errorf("line 1 tax = %s, want 75", ls[0].TaxAmount)
	}
	if !ls[1].TaxAmount.IsZero() {
		t.Errorf("line 2 tax = %s, want 0", ls[1].TaxAmount)
	}
}

func TestApportionTax_SingleLineMatchWithinTolerance(t *testing.T) {
	ls := core.ApportionTax(lines("999.99", "500"), dec("75"), dec("0.075"))
	if !ls[0].TaxAmount.Equal(dec("75")) {
		t.Errorf("line 1 tax = %s, want 75", ls[0].TaxAmount)
	}
}

func TestApportionTax_AllLinesMatch(t *testing.T) {
	// 600 + 400 = 1000 = 75 / 0.075: every line is taxed at the rate.
	ls := core.ApportionTax(lines("600", "400"), dec("75"), dec("0.075"))

	if !ls[0].TaxAmount.Equal(dec("45")) {
		t.Errorf("line 1 tax = %s, want 45", ls[0].TaxAmount)
	}
	if !ls[1].TaxAmount.Equal(dec("30")) {
		t.Errorf("line 2 tax = %s, want 30", ls[1].TaxAmount)
	}
}

func TestApportionTax_GreedyLargestFirst(t *testing.T) {
	// Base 1000; no single line and no full-sum match. Greedy takes 800
	// then 300 and stops before 200.
	ls := core.ApportionTax(lines("200", "800", "300"), dec("75"), dec("0.075"))

	if ls[1].TaxAmount.IsZero() {
		t.Error("largest line (800) should be taxed")
	}
	if ls[2].TaxAmount.IsZero() {
		t.Error("second-largest line (300) should be taxed")
	}
	if !ls[0].TaxAmount.IsZero() {
		t.Errorf("smallest line tax = %s, want 0 (threshold reached)", ls[0].TaxAmount)
	}
}

func TestApportionTax_GreedyTieBreakByLineNumber(t *testing.T) {
	// Equal amounts: the earlier line wins the tie.
	ls := core.ApportionTax(lines("500", "500", "500"), dec("75"), dec("0.075"))

	if ls[0].TaxAmount.IsZero() || ls[1].TaxAmount.IsZero() {
		t.Error("lines 1 and 2 should be taxed")
	}
	if !ls[2].TaxAmount.IsZero() {
		t.Errorf("line 3 tax = %s, want 0", ls[2].TaxAmount)
	}
}

func TestApportionTax_NoAggregateTax(t *testing.T) {
	ls := core.ApportionTax(lines("1000"), decimal.Zero, dec("0.075"))
	if !ls[0].TaxAmount.IsZero() {
		t.Errorf("tax = %s, want 0 when no aggregate tax detected", ls[0].TaxAmount)
	}
}

func TestImpliedTax(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"tax-inclusive 1075", "1075", "75"},
		{"tax-inclusive 215", "215", "15"},
		{"zero amount", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.ImpliedTax(dec(tt.amount), dec("0.075"))
			if !got.Equal(dec(tt.want)) {
				t.Errorf("ImpliedTax(%s) = %s, want %s", tt.amount, got, tt.want)
			}
		})
	}
}
