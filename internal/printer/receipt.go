package printer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"artemisa_pos/internal/sales"
)

// Money formats an amount the way receipts show it: "$" and thousands
// separated by dots, no decimals when the amount is whole.
func Money(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	d = d.Round(2)
	whole := d.Truncate(0)
	frac := d.Sub(whole)

	digits := whole.String()
	var out []byte
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	s := sign + "$" + string(out)
	if !frac.IsZero() {
		s += fmt.Sprintf(",%02d", frac.Shift(2).IntPart())
	}
	return s
}

// RenderSale lays out one sale as a receipt.
func RenderSale(sale sales.Sale, width int, storeName string, loc *time.Location) []byte {
	if loc == nil {
		loc = time.Local
	}
	d := NewDocument(width)

	d.Align(AlignCenter)
	if storeName != "" {
		d.Bold(true).DoubleSize(true).Line(storeName).DoubleSize(false).Bold(false)
	}
	number := sale.ID
	if sale.Consecutive > 0 {
		number = fmt.Sprint(sale.Consecutive)
	}
	d.Line("Recibo #" + number)
	d.Line("Fecha: " + sale.Created.In(loc).Format("02/01/2006 15:04"))
	d.Align(AlignLeft).Rule('-')

	for _, it := range sale.Products {
		d.Columns(fmt.Sprintf("%s (x%d)", it.Name, it.Quantity), Money(it.Subtotal()))
		if it.Price.Valid {
			d.Line("  Precio unitario: " + Money(it.Price.Decimal))
		}
	}

	d.Rule('-')
	if sale.IsForAll {
		d.Columns("Precio por mayor", "Sí")
	}
	d.Bold(true).Columns("Total", Money(sale.TotalPrice)).Bold(false)
	d.Columns("Método de pago", string(sale.PayType))
	if sale.MoneyReturned.Valid && sale.MoneyReturned.Decimal.IsPositive() {
		d.Columns("Cambio devuelto", Money(sale.MoneyReturned.Decimal))
	}
	d.Feed(1).Align(AlignCenter).Line("¡Gracias por su compra!")
	return d.Cut().Bytes()
}
