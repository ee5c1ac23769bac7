package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// apportionTolerance absorbs rounding drift between the ledger's aggregate
// tax posting and quantity×price line amounts.
var apportionTolerance = decimal.NewFromFloat(0.02)

// ApportionTax distributes an aggregate VAT amount across the lines it
// plausibly applied to. The ledger stores tax as one aggregate posting, so
// the taxable base is reconstructed as aggregateTax / rateFraction and
// matched against line amounts:
//
//  1. a single line matching the base within tolerance carries the full tax;
//  2. failing that, if all lines together match the base, every line is taxed;
//  3. failing that, lines are taxed greedily, largest amount first (line
//     number breaks ties), until the taxed total reaches the base.
//
// Lines not marked taxed keep a zero TaxAmount. The input slice is modified
// in place and returned.
func ApportionTax(lines []InvoiceLine, aggregateTax, rateFraction decimal.Decimal) []InvoiceLine {
	if len(lines) == 0 || !aggregateTax.IsPositive() || !rateFraction.IsPositive() {
		return lines
	}

	base := aggregateTax.Div(rateFraction)

	for i := range lines {
		if lines[i].Amount.Sub(base).Abs().LessThanOrEqual(apportionTolerance) {
			lines[i].TaxAmount = aggregateTax
			return lines
		}
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	if total.Sub(base).Abs().LessThanOrEqual(apportionTolerance) {
		for i := range lines {
			lines[i].TaxAmount = lines[i].Amount.Mul(rateFraction).Round(2)
		}
		return lines
	}

	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		la, lb := lines[order[a]], lines[order[b]]
		if !la.Amount.Equal(lb.Amount) {
			return la.Amount.GreaterThan(lb.Amount)
		}
		return la.LineNum < lb.LineNum
	})

	taxed := decimal.Zero
	for _, idx := range order {
		if taxed.GreaterThanOrEqual(base.Sub(apportionTolerance)) {
			break
		}
		lines[idx].TaxAmount = lines[idx].Amount.Mul(rateFraction).Round(2)
		taxed = taxed.Add(lines[idx].Amount)
	}
	return lines
}

// ImpliedTax back-computes the VAT contained in a tax-inclusive amount:
// amount − amount / (1 + rateFraction).
func ImpliedTax(amount, rateFraction decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !rateFraction.IsPositive() {
		return decimal.Zero
	}
	divisor := decimal.NewFromInt(1).Add(rateFraction)
	return amount.Sub(amount.Div(divisor)).Round(2)
}

// SumLineTax totals the per-line tax assignments of a resolved line set.
func SumLineTax(lines []InvoiceLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TaxAmount)
	}
	return total
}
