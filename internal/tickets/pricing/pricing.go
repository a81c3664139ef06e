package pricing

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/bukari-app/bukari-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

// Quote is the priced result of a purchase request before charging.
type Quote struct {
	UnitPrice       decimal.Decimal
	Quantity        int
	DiscountPercent decimal.Decimal
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	Total           decimal.Decimal
}

// Compute prices quantity units at unitPrice with an optional percentage
// discount. All arithmetic is exact decimal; the result is rounded to two
// places only at the end so repeated quotes for the same inputs always agree.
func Compute(unitPrice decimal.Decimal, quantity int, discountPercent decimal.Decimal) (*Quote, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if unitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(oneHundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percentage must be between 0 and 100")
	}

	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	discount := subtotal.Mul(discountPercent).Div(oneHundred)
	total := subtotal.Sub(discount)

	return &Quote{
		UnitPrice:       unitPrice,
		Quantity:        quantity,
		DiscountPercent: discountPercent,
		Subtotal:        subtotal.Round(2),
		DiscountAmount:  discount.Round(2),
		Total:           total.Round(2),
	}, nil
}
