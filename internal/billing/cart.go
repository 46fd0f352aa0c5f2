package billing

import (
	"github.com/shopspring/decimal"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/store"
)

// Line is a priced cart entry. UnitPrice is fixed when the line is added.
type Line struct {
	MedicineID string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
}

func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the in-progress sale of one terminal session.
type Cart struct {
	lines []Line
}

func NewCart() *Cart {
	return &Cart{}
}

// Add appends a line, or bumps the quantity of an existing line for the same
// medicine while keeping the price it was first captured at.
func (c *Cart) Add(line Line) error {
	if line.MedicineID == "" {
		return store.Invalid("medicine_id is required")
	}
	if line.Quantity <= 0 {
		return store.Invalid("quantity must be greater than zero")
	}
	if line.UnitPrice.IsNegative() {
		return store.Invalid("unit price must not be negative")
	}
	for i := range c.lines {
		if c.lines[i].MedicineID == line.MedicineID {
			c.lines[i].Quantity += line.Quantity
			return nil
		}
	}
	c.lines = append(c.lines, line)
	return nil
}

func (c *Cart) SetQuantity(medicineID string, quantity int) error {
	for i := range c.lines {
		if c.lines[i].MedicineID != medicineID {
			continue
		}
		if quantity <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
		c.lines[i].Quantity = quantity
		return nil
	}
	return store.ErrNotFound
}

func (c *Cart) Remove(medicineID string) {
	_ = c.SetQuantity(medicineID, 0)
}

func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// SaleLines converts the cart into unallocated sale lines.
func (c *Cart) SaleLines() []domain.SaleLine {
	out := make([]domain.SaleLine, 0, len(c.lines))
	for _, line := range c.lines {
		out = append(out, domain.SaleLine{
			MedicineID:   line.MedicineID,
			MedicineName: line.Name,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineTotal:    line.Total(),
		})
	}
	return out
}

func (c *Cart) Totals(spec domain.DiscountSpec, amountPaid *decimal.Decimal, taxRate decimal.Decimal) (domain.BillTotals, error) {
	return Compute(c.lines, spec, amountPaid, taxRate)
}
