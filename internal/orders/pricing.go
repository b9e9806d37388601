package orders

import "github.com/shopspring/decimal"

// Pricing computes order totals from a frozen subtotal and discount.
// Tax applies to the discounted subtotal; shipping is a flat fee.
type Pricing struct {
	TaxRateBasisPoints int
	ShippingFlatCents  int
}

// Totals is the money breakdown persisted on an order.
// Identity: Total = Subtotal + Tax + Shipping - Discount.
type Totals struct {
	SubtotalCents int
	TaxCents      int
	ShippingCents int
	DiscountCents int
	TotalCents    int
}

// Compute derives the full breakdown. Tax is rounded half up to whole
// cents. Discount is clamped to the subtotal before anything else.
func (p Pricing) Compute(subtotalCents, discountCents int) Totals {
	if discountCents > subtotalCents {
		discountCents = subtotalCents
	}
	if discountCents < 0 {
		discountCents = 0
	}

	taxable := subtotalCents - discountCents
	tax := int(decimal.NewFromInt(int64(taxable)).
		Mul(decimal.NewFromInt(int64(p.TaxRateBasisPoints))).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart())

	return Totals{
		SubtotalCents: subtotalCents,
		TaxCents:      tax,
		ShippingCents: p.ShippingFlatCents,
		DiscountCents: discountCents,
		TotalCents:    subtotalCents + tax + p.ShippingFlatCents - discountCents,
	}
}
