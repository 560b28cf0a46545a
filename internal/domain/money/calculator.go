// Package money は注文金額の計算（小計・税・送料・合計）を行う。外部状態は持たない。
package money

import "github.com/shopspring/decimal"

// 税率は一律18%。課税対象は小計+送料。
var TaxRate = decimal.RequireFromString("0.18")

const places = 2

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// LineTotal は単価×数量を小数2桁に丸めた明細金額。
func LineTotal(unitPrice decimal.Decimal, qty int64) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(qty)).Round(places)
}

// Calculate は明細と送料から合計を出す。
// 小計は明細ごとに丸めてから合算し、税は (小計+送料) に対して最後に丸める。
// 負の値の検証は呼び出し側（入力境界）で行う。
func Calculate(lines []Line, shipping decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l.UnitPrice, l.Quantity))
	}
	shipping = shipping.Round(places)
	tax := subtotal.Add(shipping).Mul(TaxRate).Round(places)

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// Balanced は total == subtotal + tax + shipping を満たすか。
func (t Totals) Balanced() bool {
	return t.Total.Equal(t.Subtotal.Add(t.Tax).Add(t.Shipping))
}
