package Models

import "github.com/shopspring/decimal"

// Round2 rounds liters and money half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DecimalPtr is a convenience for optional measures.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	r := Round2(d)
	return &r
}

// Mul2 multiplies two quantities and rounds the product.
func Mul2(a, b decimal.Decimal) decimal.Decimal {
	return Round2(a.Mul(b))
}
