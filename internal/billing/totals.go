package billing

import (
	"strings"

	"github.com/shopspring/decimal"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/store"
)

var (
	hundred = decimal.NewFromInt(100)

	// DefaultTaxRate is the notional inclusive tax shown on bills.
	DefaultTaxRate = decimal.RequireFromString("0.05")
)

func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total())
	}
	return total
}

// Discount returns the discount amount for a subtotal, clamped to the subtotal.
func Discount(subtotal decimal.Decimal, spec domain.DiscountSpec) (decimal.Decimal, error) {
	if spec.Value.IsNegative() {
		return decimal.Zero, store.Invalid("discount value must not be negative")
	}
	var amount decimal.Decimal
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case domain.DiscountNone:
		return decimal.Zero, nil
	case domain.DiscountPercentage:
		amount = subtotal.Mul(spec.Value).Div(hundred)
	case domain.DiscountFixed:
		amount = spec.Value
	default:
		return decimal.Zero, store.Invalid("unknown discount type %q", spec.Type)
	}
	return decimal.Min(amount.Round(2), subtotal), nil
}

func Total(subtotal decimal.Decimal, discount decimal.Decimal) decimal.Decimal {
	return decimal.Max(subtotal.Sub(discount), decimal.Zero)
}

// BalanceDue is what remains owed after payment. A nil amountPaid means the bill
// was paid in full.
func BalanceDue(total decimal.Decimal, amountPaid *decimal.Decimal) decimal.Decimal {
	if amountPaid == nil {
		return decimal.Zero
	}
	return decimal.Max(total.Sub(*amountPaid), decimal.Zero)
}

// ImpliedInclusiveTax splits the notional tax out of a tax-inclusive subtotal.
// It is informational and never changes the total.
func ImpliedInclusiveTax(subtotal decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	net := subtotal.DivRound(decimal.NewFromInt(1).Add(rate), 8)
	return subtotal.Sub(net).Round(2)
}

// ParseAmountPaid reads the amount tendered. Blank input returns nil.
func ParseAmountPaid(raw string) (*decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	paid, err := decimal.NewFromString(value)
	if err != nil {
		return nil, store.Invalid("amount_paid %q is not a number", value)
	}
	if err := CheckAmount("amount_paid", paid); err != nil {
		return nil, err
	}
	return &paid, nil
}

// CheckAmount rejects negative money values and values finer than one cent.
func CheckAmount(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return store.Invalid("%s must not be negative", field)
	}
	if !value.Equal(value.Round(2)) {
		return store.Invalid("%s must have at most 2 decimal places", field)
	}
	return nil
}

// Compute bundles the bill arithmetic for a set of priced lines.
func Compute(lines []Line, spec domain.DiscountSpec, amountPaid *decimal.Decimal, taxRate decimal.Decimal) (domain.BillTotals, error) {
	subtotal := Subtotal(lines)
	discount, err := Discount(subtotal, spec)
	if err != nil {
		return domain.BillTotals{}, err
	}
	total := Total(subtotal, discount)
	paid := total
	if amountPaid != nil {
		paid = *amountPaid
	}
	return domain.BillTotals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Tax:            ImpliedInclusiveTax(subtotal, taxRate),
		Total:          total,
		AmountPaid:     paid,
		BalanceDue:     BalanceDue(total, amountPaid),
	}, nil
}
