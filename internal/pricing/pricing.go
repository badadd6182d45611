// Package pricing computes cart and order totals.
package pricing

import (
	"github.com/shopspring/decimal"
)

// DiscountType is how a coupon reduces the subtotal.
type DiscountType string

const (
	Percentage DiscountType = "percentage"
	Fixed      DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == Percentage || t == Fixed
}

var hundred = decimal.NewFromInt(100)

// Line is one priced cart or order line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Amount returns price × quantity.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Discount describes an applied coupon.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Totals is the result of pricing a set of lines.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Compute prices lines with an optional discount.
// The discount never exceeds the subtotal, so Subtotal - Discount == Total and Total >= 0.
func Compute(lines []Line, discount *Discount) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Amount())
	}

	off := decimal.Zero
	if discount != nil {
		off = discountAmount(subtotal, *discount)
	}
	if off.GreaterThan(subtotal) {
		off = subtotal
	}
	if off.IsNegative() {
		off = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal.Round(2),
		Discount: off.Round(2),
		Total:    subtotal.Sub(off).Round(2),
	}
}

func discountAmount(subtotal decimal.Decimal, d Discount) decimal.Decimal {
	switch d.Type {
	case Percentage:
		return subtotal.Mul(d.Value).Div(hundred).Round(2)
	case Fixed:
		return d.Value
	default:
		return decimal.Zero
	}
}
