package billing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/store"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestDiscountClampsToSubtotal(t *testing.T) {
	got, err := Discount(d("100"), domain.DiscountSpec{Type: domain.DiscountFixed, Value: d("150")})
	if err != nil {
		t.Fatalf("discount failed: %v", err)
	}
	if !got.Equal(d("100")) {
		t.Fatalf("expected discount 100, got %s", got)
	}
	if total := Total(d("100"), got); !total.IsZero() {
		t.Fatalf("expected zero total, got %s", total)
	}

	got, err = Discount(d("200"), domain.DiscountSpec{Type: domain.DiscountPercentage, Value: d("150")})
	if err != nil {
		t.Fatalf("discount failed: %v", err)
	}
	if !got.Equal(d("200")) {
		t.Fatalf("expected percentage discount clamped to 200, got %s", got)
	}
}

func TestDiscountNeverExceedsSubCentSubtotal(t *testing.T) {
	subtotal := Subtotal([]Line{{Quantity: 3, UnitPrice: d("0.125")}})
	for _, spec := range []domain.DiscountSpec{
		{Type: domain.DiscountFixed, Value: d("5")},
		{Type: domain.DiscountPercentage, Value: d("100")},
	} {
		got, err := Discount(subtotal, spec)
		if err != nil {
			t.Fatalf("discount failed: %v", err)
		}
		if got.GreaterThan(subtotal) {
			t.Fatalf("%s discount %s exceeds subtotal %s", spec.Type, got, subtotal)
		}
		if total := Total(subtotal, got); !total.IsZero() {
			t.Fatalf("expected zero total, got %s", total)
		}
	}

	got, err := Discount(d("10"), domain.DiscountSpec{Type: domain.DiscountPercentage, Value: d("33.333")})
	if err != nil || !got.Equal(d("3.33")) {
		t.Fatalf("expected 3.33, got %s err=%v", got, err)
	}
}

func TestCheckAmountRejectsSubCentValues(t *testing.T) {
	for _, raw := range []string{"0.125", "-1"} {
		if err := CheckAmount("price", d(raw)); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected %s to be rejected, got %v", raw, err)
		}
	}
	for _, raw := range []string{"0", "2.5", "1.500"} {
		if err := CheckAmount("price", d(raw)); err != nil {
			t.Fatalf("expected %s to be accepted, got %v", raw, err)
		}
	}
	if _, err := ParseAmountPaid("1.005"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected sub-cent amount paid to be rejected, got %v", err)
	}
}

func TestDiscountPercentage(t *testing.T) {
	got, err := Discount(d("250"), domain.DiscountSpec{Type: "percentage", Value: d("10")})
	if err != nil {
		t.Fatalf("discount failed: %v", err)
	}
	if !got.Equal(d("25")) {
		t.Fatalf("expected 25, got %s", got)
	}
}

func TestDiscountRejectsBadInput(t *testing.T) {
	if _, err := Discount(d("10"), domain.DiscountSpec{Type: domain.DiscountFixed, Value: d("-1")}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for negative value, got %v", err)
	}
	if _, err := Discount(d("10"), domain.DiscountSpec{Type: "bogo", Value: d("1")}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
	got, err := Discount(d("10"), domain.DiscountSpec{})
	if err != nil || !got.IsZero() {
		t.Fatalf("expected no discount, got %s err=%v", got, err)
	}
}

func TestBalanceDueDefaultsToFullPayment(t *testing.T) {
	paid, err := ParseAmountPaid("")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if due := BalanceDue(d("500"), paid); !due.IsZero() {
		t.Fatalf("expected zero balance for blank payment, got %s", due)
	}

	paid, err = ParseAmountPaid("300")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if due := BalanceDue(d("500"), paid); !due.Equal(d("200")) {
		t.Fatalf("expected balance 200, got %s", due)
	}

	over := d("800")
	if due := BalanceDue(d("500"), &over); !due.IsZero() {
		t.Fatalf("expected overpayment to clamp to zero, got %s", due)
	}

	if _, err := ParseAmountPaid("abc"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImpliedInclusiveTax(t *testing.T) {
	got := ImpliedInclusiveTax(d("105"), DefaultTaxRate)
	if !got.Equal(d("5")) {
		t.Fatalf("expected 5, got %s", got)
	}
	if zero := ImpliedInclusiveTax(d("105"), decimal.Zero); !zero.IsZero() {
		t.Fatalf("expected zero tax at zero rate, got %s", zero)
	}
}

func TestCartKeepsCapturedPrice(t *testing.T) {
	cart := NewCart()
	if err := cart.Add(Line{MedicineID: "med-1", Name: "Paracetamol", Quantity: 2, UnitPrice: d("10")}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := cart.Add(Line{MedicineID: "med-1", Name: "Paracetamol", Quantity: 3, UnitPrice: d("12")}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	lines := cart.Lines()
	if len(lines) != 1 || lines[0].Quantity != 5 || !lines[0].UnitPrice.Equal(d("10")) {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if total := Subtotal(lines); !total.Equal(d("50")) {
		t.Fatalf("expected subtotal 50, got %s", total)
	}

	if err := cart.Add(Line{MedicineID: "med-2", Quantity: 0, UnitPrice: d("1")}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	cart.Remove("med-1")
	if cart.Len() != 0 {
		t.Fatalf("expected empty cart")
	}
}

func TestComputeBundlesTotals(t *testing.T) {
	lines := []Line{
		{MedicineID: "a", Quantity: 2, UnitPrice: d("52.50")},
		{MedicineID: "b", Quantity: 1, UnitPrice: d("105")},
	}
	paid := d("150")
	totals, err := Compute(lines, domain.DiscountSpec{Type: domain.DiscountFixed, Value: d("10")}, &paid, DefaultTaxRate)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !totals.Subtotal.Equal(d("210")) || !totals.DiscountAmount.Equal(d("10")) || !totals.Total.Equal(d("200")) {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if !totals.BalanceDue.Equal(d("50")) || !totals.AmountPaid.Equal(d("150")) {
		t.Fatalf("unexpected payment totals: %+v", totals)
	}
	if !totals.Tax.Equal(d("10")) {
		t.Fatalf("expected tax 10, got %s", totals.Tax)
	}
}
