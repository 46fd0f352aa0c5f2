package service

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medshop/backend/internal/billing"
	"medshop/backend/internal/domain"
	"medshop/backend/internal/inventory"
	"medshop/backend/internal/invoice"
	"medshop/backend/internal/store"
)

var paymentMethods = []string{domain.PaymentCash, domain.PaymentCard, domain.PaymentUPI}

// Sell takes quantity units of one medicine in FEFO order and records it as a
// paid cash sale. The unit price is the one shown for the medicine before the
// sale. When stock is short nothing changes and an *store.InsufficientStockError
// is returned.
func (s *Service) Sell(ctx context.Context, medicineID string, quantity int) (domain.SaleLineResult, error) {
	if quantity <= 0 {
		return domain.SaleLineResult{}, store.Invalid("quantity must be greater than zero")
	}
	before, err := s.GetStockSummary(ctx, medicineID)
	if err != nil {
		return domain.SaleLineResult{}, err
	}
	if before.TotalStock < quantity {
		err := &store.InsufficientStockError{MedicineID: medicineID, Requested: quantity, Available: before.TotalStock}
		recordSaleOutcome(0, err)
		return domain.SaleLineResult{}, err
	}

	price := decimal.Zero
	if before.UnitPrice != nil {
		price = *before.UnitPrice
	}
	cart := billing.NewCart()
	if err := cart.Add(billing.Line{MedicineID: medicineID, Name: before.Medicine.Name, Quantity: quantity, UnitPrice: price}); err != nil {
		return domain.SaleLineResult{}, err
	}
	totals, err := cart.Totals(domain.DiscountSpec{}, nil, s.taxRate)
	if err != nil {
		return domain.SaleLineResult{}, err
	}

	sale, err := s.commitSale(ctx, domain.Sale{
		StoreID:       s.storeID,
		Lines:         cart.SaleLines(),
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		AmountPaid:    totals.AmountPaid,
		BalanceDue:    totals.BalanceDue,
		PaymentMethod: domain.PaymentCash,
	}, quantity)
	if err != nil {
		return domain.SaleLineResult{}, err
	}

	after, err := s.GetStockSummary(ctx, medicineID)
	if err != nil {
		return domain.SaleLineResult{}, err
	}
	line := sale.Lines[0]
	return domain.SaleLineResult{
		SaleID:       sale.ID,
		MedicineID:   line.MedicineID,
		MedicineName: line.MedicineName,
		Quantity:     line.Quantity,
		UnitPrice:    line.UnitPrice,
		LineTotal:    line.LineTotal,
		Deductions:   line.Deductions,
		Summary:      after,
	}, nil
}

// ComputeBillTotals prices explicit lines without touching stock.
func (s *Service) ComputeBillTotals(req domain.BillTotalsRequest) (domain.BillTotals, error) {
	lines := make([]billing.Line, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return domain.BillTotals{}, store.Invalid("items[%d]: quantity must be greater than zero", i)
		}
		if err := billing.CheckAmount(fmt.Sprintf("items[%d].unit_price", i), item.UnitPrice); err != nil {
			return domain.BillTotals{}, err
		}
		lines = append(lines, billing.Line{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	paid, err := billing.ParseAmountPaid(req.AmountPaid)
	if err != nil {
		return domain.BillTotals{}, err
	}
	return billing.Compute(lines, req.Discount, paid, s.taxRate)
}

// QuoteCart prices a cart against current stock. Nothing is reserved.
func (s *Service) QuoteCart(ctx context.Context, req domain.CartQuoteRequest) (domain.CartQuote, error) {
	cart, err := s.buildCart(ctx, req.Items)
	if err != nil {
		return domain.CartQuote{}, err
	}
	paid, err := billing.ParseAmountPaid(req.AmountPaid)
	if err != nil {
		return domain.CartQuote{}, err
	}
	totals, err := cart.Totals(req.Discount, paid, s.taxRate)
	if err != nil {
		return domain.CartQuote{}, err
	}
	return domain.CartQuote{Lines: cart.SaleLines(), Totals: totals}, nil
}

// Checkout turns a cart into a sale. Every line is allocated FEFO in one
// transaction together with the customer balance update.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Sale, error) {
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = domain.PaymentCash
	}
	if !slices.Contains(paymentMethods, method) {
		return nil, store.Invalid("payment_method must be one of %s", strings.Join(paymentMethods, ", "))
	}

	customerName := strings.TrimSpace(req.CustomerName)
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID != "" {
		customer, err := s.repo.GetCustomer(ctx, s.storeID, customerID)
		if err != nil {
			return nil, err
		}
		customerName = customer.Name
	}

	cart, err := s.buildCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	paid, err := billing.ParseAmountPaid(req.AmountPaid)
	if err != nil {
		return nil, err
	}
	totals, err := cart.Totals(req.Discount, paid, s.taxRate)
	if err != nil {
		return nil, err
	}

	units := 0
	for _, line := range cart.Lines() {
		units += line.Quantity
	}
	discountType := strings.ToLower(strings.TrimSpace(req.Discount.Type))
	discountValue := decimal.Zero
	if discountType != domain.DiscountNone {
		discountValue = req.Discount.Value
	}

	sale, err := s.commitSale(ctx, domain.Sale{
		StoreID:        s.storeID,
		CustomerID:     customerID,
		CustomerName:   customerName,
		Lines:          cart.SaleLines(),
		Subtotal:       totals.Subtotal,
		DiscountType:   discountType,
		DiscountValue:  discountValue,
		DiscountAmount: totals.DiscountAmount,
		Tax:            totals.Tax,
		Total:          totals.Total,
		AmountPaid:     totals.AmountPaid,
		BalanceDue:     totals.BalanceDue,
		PaymentMethod:  method,
	}, units)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Service) commitSale(ctx context.Context, sale domain.Sale, units int) (*domain.Sale, error) {
	if actor, ok := ActorFromContext(ctx); ok {
		sale.Cashier = actor.Username
	}
	sale.CreatedAt = s.now().UTC()

	var committed *domain.Sale
	err := s.retryOnConflict("create_sale", func() error {
		var err error
		committed, err = s.repo.CreateSale(ctx, sale)
		return err
	})
	recordSaleOutcome(units, err)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "sale", "sale", committed.ID,
		fmt.Sprintf("%d line(s) total %s paid %s via %s", len(committed.Lines), committed.Total.StringFixed(2), committed.AmountPaid.StringFixed(2), committed.PaymentMethod))
	s.invalidateDashboard(ctx)
	return committed, nil
}

// buildCart prices the requested items. A line keeps the price the terminal
// captured when one is given, otherwise the current FEFO price. Quantities for
// the same medicine are merged before the stock check.
func (s *Service) buildCart(ctx context.Context, items []domain.CartItemRequest) (*billing.Cart, error) {
	if len(items) == 0 {
		return nil, store.Invalid("cart is empty")
	}

	cart := billing.NewCart()
	summaries := make(map[string]domain.StockSummary)
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, store.Invalid("items[%d]: quantity must be greater than zero", i)
		}
		summary, ok := summaries[item.MedicineID]
		if !ok {
			var err error
			summary, err = s.GetStockSummary(ctx, item.MedicineID)
			if err != nil {
				return nil, err
			}
			summaries[item.MedicineID] = summary
		}

		price := decimal.Zero
		switch {
		case item.UnitPrice != nil:
			if err := billing.CheckAmount(fmt.Sprintf("items[%d].unit_price", i), *item.UnitPrice); err != nil {
				return nil, err
			}
			price = *item.UnitPrice
		case summary.UnitPrice != nil:
			price = *summary.UnitPrice
		}
		if err := cart.Add(billing.Line{
			MedicineID: item.MedicineID,
			Name:       summary.Medicine.Name,
			Quantity:   item.Quantity,
			UnitPrice:  price,
		}); err != nil {
			return nil, err
		}
	}

	for _, line := range cart.Lines() {
		available := summaries[line.MedicineID].TotalStock
		if line.Quantity > available {
			return nil, &store.InsufficientStockError{MedicineID: line.MedicineID, Requested: line.Quantity, Available: available}
		}
	}
	return cart, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, s.storeID, saleID)
}

// ListSales returns sales newest first. from and to are optional YYYY-MM-DD
// bounds, both inclusive.
func (s *Service) ListSales(ctx context.Context, from string, to string, limit int) ([]domain.Sale, error) {
	filter := domain.SaleFilter{Limit: limit}
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	if from != "" {
		day, err := parseDay("from", from)
		if err != nil {
			return nil, err
		}
		filter.From = day
	}
	if to != "" {
		day, err := parseDay("to", to)
		if err != nil {
			return nil, err
		}
		filter.To = day.AddDate(0, 0, 1)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, store.Invalid("from must not be after to")
	}
	return s.repo.ListSales(ctx, s.storeID, filter)
}

// RenderInvoice writes the sale's PDF invoice to w.
func (s *Service) RenderInvoice(ctx context.Context, saleID string, w io.Writer) error {
	sale, err := s.repo.GetSale(ctx, s.storeID, saleID)
	if err != nil {
		return err
	}
	if err := invoice.Render(w, s.settings, *sale); err != nil {
		return fmt.Errorf("render invoice %s: %w", saleID, err)
	}
	return nil
}

func parseDay(field string, raw string) (time.Time, error) {
	parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, store.Invalid("%s must be YYYY-MM-DD", field)
	}
	return inventory.Day(parsed), nil
}
