package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/store"
	"medshop/backend/internal/store/memory"
)

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return newTestServiceWithCache(t, nil)
}

func newTestServiceWithCache(t *testing.T, dashboardCache *fakeDashboardCache) *Service {
	t.Helper()
	opts := Options{
		StoreID:  "main-store",
		Settings: domain.Settings{ShopName: "Test Pharmacy"},
		Now:      func() time.Time { return testNow },
	}
	if dashboardCache == nil {
		return New(memory.New(), nil, zap.NewNop(), opts)
	}
	return New(memory.New(), dashboardCache, zap.NewNop(), opts)
}

func staffContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "nisha", Role: domain.RoleStaff})
}

func addStock(t *testing.T, svc *Service, name string, batch string, expiry string, qty int, price string) domain.AddStockResponse {
	t.Helper()
	resp, err := svc.AddStock(staffContext(), domain.AddStockRequest{
		Name:         name,
		Category:     "General",
		BatchNumber:  batch,
		ExpiryDate:   expiry,
		Quantity:     qty,
		SellingPrice: decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("add stock %s/%s failed: %v", name, batch, err)
	}
	return resp
}

func TestSellDrawsSoonestExpiryFirst(t *testing.T) {
	svc := newTestService(t)
	first := addStock(t, svc, "Paracetamol", "B", "2024-06", 10, "2.50")
	second := addStock(t, svc, "Paracetamol", "A", "2024-03", 3, "2.50")
	if !first.MedicineCreated || second.MedicineCreated {
		t.Fatalf("expected the second delivery to reuse the medicine")
	}
	if second.Summary.TotalStock != 13 {
		t.Fatalf("expected 13 units after both deliveries, got %d", second.Summary.TotalStock)
	}

	result, err := svc.Sell(staffContext(), first.Medicine.ID, 5)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if len(result.Deductions) != 2 {
		t.Fatalf("expected two deductions, got %+v", result.Deductions)
	}
	if result.Deductions[0].BatchNumber != "A" || result.Deductions[0].Quantity != 3 {
		t.Fatalf("expected 3 from batch A first, got %+v", result.Deductions[0])
	}
	if result.Deductions[1].BatchNumber != "B" || result.Deductions[1].Quantity != 2 {
		t.Fatalf("expected 2 from batch B second, got %+v", result.Deductions[1])
	}
	if !result.LineTotal.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("expected line total 12.50, got %s", result.LineTotal)
	}
	if result.Summary.TotalStock != 8 {
		t.Fatalf("expected 8 units left, got %d", result.Summary.TotalStock)
	}
	if result.Summary.NearestExpiry == nil || result.Summary.NearestExpiry.Month() != time.June {
		t.Fatalf("expected nearest expiry to move to June, got %v", result.Summary.NearestExpiry)
	}

	sale, err := svc.GetSale(context.Background(), result.SaleID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if sale.Cashier != "nisha" || sale.PaymentMethod != domain.PaymentCash || !sale.BalanceDue.IsZero() {
		t.Fatalf("unexpected stored sale: %+v", sale)
	}
}

func TestSellShortStockLeavesBatchesUntouched(t *testing.T) {
	svc := newTestService(t)
	resp := addStock(t, svc, "Ibuprofen", "I1", "2024-05", 4, "3.00")

	_, err := svc.Sell(staffContext(), resp.Medicine.ID, 7)
	var short *store.InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if short.Shortfall() != 3 || short.Available != 4 {
		t.Fatalf("unexpected shortfall: %+v", short)
	}

	summary, err := svc.GetStockSummary(context.Background(), resp.Medicine.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.TotalStock != 4 {
		t.Fatalf("stock changed after failed sale: %d", summary.TotalStock)
	}
}

func TestSellRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestService(t)
	resp := addStock(t, svc, "Ibuprofen", "I1", "2024-05", 4, "3.00")

	if _, err := svc.Sell(staffContext(), resp.Medicine.ID, 0); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Sell(staffContext(), "med-missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentSellsNeverOversell(t *testing.T) {
	svc := newTestService(t)
	resp := addStock(t, svc, "Cetirizine", "C1", "2025-01", 10, "1.50")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Sell(staffContext(), resp.Medicine.ID, 3)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, store.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	summary, err := svc.GetStockSummary(context.Background(), resp.Medicine.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if succeeded != 3 || summary.TotalStock != 1 {
		t.Fatalf("expected 3 sales and 1 unit left, got %d sales and %d units", succeeded, summary.TotalStock)
	}
}

func TestCheckoutAddsBalanceDueToCustomer(t *testing.T) {
	svc := newTestService(t)
	ctx := staffContext()
	resp := addStock(t, svc, "Amoxicillin", "AMX", "2024-09", 10, "2.50")

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Ravi", Phone: "9000000001"})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}

	sale, err := svc.Checkout(ctx, domain.CheckoutRequest{
		CustomerID: customer.ID,
		Items:      []domain.CartItemRequest{{MedicineID: resp.Medicine.ID, Quantity: 4}},
		Discount:   domain.DiscountSpec{Type: domain.DiscountPercentage, Value: decimal.NewFromInt(10)},
		AmountPaid: "5",
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !sale.Total.Equal(decimal.RequireFromString("9")) || !sale.BalanceDue.Equal(decimal.RequireFromString("4")) {
		t.Fatalf("unexpected totals: total=%s balance=%s", sale.Total, sale.BalanceDue)
	}
	if sale.PaymentMethod != domain.PaymentCash || sale.CustomerName != "Ravi" {
		t.Fatalf("unexpected sale header: %+v", sale)
	}

	updated, err := svc.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if !updated.Balance.Equal(decimal.RequireFromString("4")) {
		t.Fatalf("expected customer balance 4, got %s", updated.Balance)
	}

	history, err := svc.CustomerSales(ctx, customer.ID, 0)
	if err != nil {
		t.Fatalf("customer sales failed: %v", err)
	}
	if len(history) != 1 || history[0].ID != sale.ID {
		t.Fatalf("unexpected purchase history: %+v", history)
	}
}

func TestCheckoutBlankAmountPaidMeansPaidInFull(t *testing.T) {
	svc := newTestService(t)
	resp := addStock(t, svc, "ORS", "O1", "2025-02", 5, "12.00")

	sale, err := svc.Checkout(staffContext(), domain.CheckoutRequest{
		CustomerName:  "Walk-in",
		Items:         []domain.CartItemRequest{{MedicineID: resp.Medicine.ID, Quantity: 2}},
		PaymentMethod: "UPI",
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !sale.AmountPaid.Equal(sale.Total) || !sale.BalanceDue.IsZero() {
		t.Fatalf("expected paid in full, got paid=%s balance=%s", sale.AmountPaid, sale.BalanceDue)
	}
	if sale.PaymentMethod != domain.PaymentUPI || sale.CustomerName != "Walk-in" {
		t.Fatalf("unexpected sale header: %+v", sale)
	}
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	svc := newTestService(t)
	resp := addStock(t, svc, "ORS", "O1", "2025-02", 5, "12.00")

	_, err := svc.Checkout(staffContext(), domain.CheckoutRequest{
		Items:         []domain.CartItemRequest{{MedicineID: resp.Medicine.ID, Quantity: 1}},
		PaymentMethod: "cheque",
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQuoteCartMergesLinesBeforeStockCheck(t *testing.T) {
	svc := newTestService(t)
	resp := addStock(t, svc, "Zinc", "Z1", "2025-02", 3, "4.00")

	_, err := svc.QuoteCart(context.Background(), domain.CartQuoteRequest{
		Items: []domain.CartItemRequest{
			{MedicineID: resp.Medicine.ID, Quantity: 2},
			{MedicineID: resp.Medicine.ID, Quantity: 2},
		},
	})
	var short *store.InsufficientStockError
	if !errors.As(err, &short) || short.Requested != 4 {
		t.Fatalf("expected merged quantity to exceed stock, got %v", err)
	}

	captured := decimal.RequireFromString("3.75")
	quote, err := svc.QuoteCart(context.Background(), domain.CartQuoteRequest{
		Items: []domain.CartItemRequest{
			{MedicineID: resp.Medicine.ID, Quantity: 1, UnitPrice: &captured},
			{MedicineID: resp.Medicine.ID, Quantity: 1},
		},
		Discount: domain.DiscountSpec{Type: domain.DiscountFixed, Value: decimal.NewFromInt(100)},
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if len(quote.Lines) != 1 || quote.Lines[0].Quantity != 2 || !quote.Lines[0].UnitPrice.Equal(captured) {
		t.Fatalf("expected one merged line at the captured price, got %+v", quote.Lines)
	}
	if !quote.Totals.DiscountAmount.Equal(decimal.RequireFromString("7.5")) || !quote.Totals.Total.IsZero() {
		t.Fatalf("expected discount clamped to subtotal, got %+v", quote.Totals)
	}
}

func TestComputeBillTotals(t *testing.T) {
	svc := newTestService(t)

	totals, err := svc.ComputeBillTotals(domain.BillTotalsRequest{
		Items: []domain.BillItem{
			{Quantity: 2, UnitPrice: decimal.RequireFromString("50")},
			{Quantity: 1, UnitPrice: decimal.RequireFromString("5")},
		},
		Discount:   domain.DiscountSpec{Type: domain.DiscountFixed, Value: decimal.NewFromInt(5)},
		AmountPaid: "120",
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !totals.Subtotal.Equal(decimal.NewFromInt(105)) || !totals.Total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if !totals.BalanceDue.IsZero() || !totals.Tax.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("unexpected balance or tax: %+v", totals)
	}

	if _, err := svc.ComputeBillTotals(domain.BillTotalsRequest{
		Items:    []domain.BillItem{{Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
		Discount: domain.DiscountSpec{Type: domain.DiscountFixed, Value: decimal.NewFromInt(-1)},
	}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected negative discount to be rejected, got %v", err)
	}
}

func TestListInventoryFilters(t *testing.T) {
	svc := newTestService(t)
	addStock(t, svc, "Paracetamol", "P1", "2024-06", 13, "2.00")
	addStock(t, svc, "Amoxicillin", "A1", "2024-02-01", 4, "7.50")
	addStock(t, svc, "Zinc", "Z1", "2025-01", 0, "4.00")
	addStock(t, svc, "Cough Syrup", "C1", "2023-12", 15, "60.00")

	cases := []struct {
		name  string
		query domain.InventoryQuery
		want  []string
	}{
		{"all", domain.InventoryQuery{}, []string{"Amoxicillin", "Cough Syrup", "Paracetamol", "Zinc"}},
		{"low", domain.InventoryQuery{Stock: domain.StockFilterLow}, []string{"Amoxicillin"}},
		{"out", domain.InventoryQuery{Stock: domain.StockFilterOut}, []string{"Zinc"}},
		{"healthy", domain.InventoryQuery{Stock: domain.StockFilterHealthy}, []string{"Cough Syrup", "Paracetamol"}},
		{"expired", domain.InventoryQuery{Expiry: domain.ExpiryFilterExpired}, []string{"Cough Syrup"}},
		{"near", domain.InventoryQuery{Expiry: domain.ExpiryFilterNear}, []string{"Amoxicillin"}},
		{"search", domain.InventoryQuery{Search: "AMOX"}, []string{"Amoxicillin"}},
		{"page", domain.InventoryQuery{Page: 2, PageSize: 3}, []string{"Zinc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := svc.ListInventory(context.Background(), tc.query)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(page.Items) != len(tc.want) {
				t.Fatalf("expected %v, got %d items", tc.want, len(page.Items))
			}
			for i, item := range page.Items {
				if item.Medicine.Name != tc.want[i] {
					t.Fatalf("item %d: expected %s, got %s", i, tc.want[i], item.Medicine.Name)
				}
			}
		})
	}

	if _, err := svc.ListInventory(context.Background(), domain.InventoryQuery{Stock: "plenty"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected unknown filter to be rejected, got %v", err)
	}
}

func TestSuggestMedicinesPrefersPrefixMatches(t *testing.T) {
	svc := newTestService(t)
	addStock(t, svc, "Vitamin C", "V1", "2025-01", 5, "1.00")
	addStock(t, svc, "Calcium + Vitamin D", "V2", "2025-01", 5, "1.00")

	suggestions, err := svc.SuggestMedicines(context.Background(), "vit")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(suggestions) != 2 || suggestions[0].Medicine.Name != "Vitamin C" {
		t.Fatalf("unexpected suggestions: %+v", suggestions)
	}
}

func TestUpdateBatchClearsExpiry(t *testing.T) {
	svc := newTestService(t)
	resp := addStock(t, svc, "Zinc", "Z1", "2025-01", 5, "4.00")

	blank := ""
	qty := 9
	updated, err := svc.UpdateBatch(staffContext(), resp.Batch.ID, domain.BatchUpdateRequest{ExpiryDate: &blank, Quantity: &qty})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ExpiryDate != nil || updated.Quantity != 9 {
		t.Fatalf("unexpected batch after update: %+v", updated)
	}

	negative := -1
	if _, err := svc.UpdateBatch(staffContext(), resp.Batch.ID, domain.BatchUpdateRequest{Quantity: &negative}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExpenseStatsGroupsByCategoryAndMonth(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, req := range []domain.ExpenseCreateRequest{
		{Description: "January rent", Amount: decimal.NewFromInt(5000), Category: "Rent", Date: "2024-01-02"},
		{Description: "Power bill", Amount: decimal.NewFromInt(800), Category: "Utilities"},
		{Description: "December rent", Amount: decimal.NewFromInt(5000), Category: "Rent", Date: "2023-12-02"},
		{Description: "Old repair", Amount: decimal.NewFromInt(300), Category: "Maintenance", Date: "2023-03-10"},
	} {
		if _, err := svc.CreateExpense(ctx, req); err != nil {
			t.Fatalf("create expense %q failed: %v", req.Description, err)
		}
	}

	stats, err := svc.ExpenseStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !stats.Total.Equal(decimal.NewFromInt(11100)) || !stats.ThisMonth.Equal(decimal.NewFromInt(5800)) {
		t.Fatalf("unexpected totals: total=%s month=%s", stats.Total, stats.ThisMonth)
	}
	if len(stats.ByCategory) != 3 || stats.ByCategory[0].Category != "Rent" {
		t.Fatalf("unexpected category breakdown: %+v", stats.ByCategory)
	}
	if len(stats.Monthly) != 6 || stats.Monthly[0].Month != "2023-08" || stats.Monthly[5].Month != "2024-01" {
		t.Fatalf("unexpected months: %+v", stats.Monthly)
	}
	if !stats.Monthly[4].Amount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected December total 5000, got %s", stats.Monthly[4].Amount)
	}

	if _, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Description: "Snacks", Amount: decimal.NewFromInt(10), Category: "Food"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected unknown category to be rejected, got %v", err)
	}
}

func TestDashboardIsCachedUntilMutation(t *testing.T) {
	fake := newFakeDashboardCache()
	svc := newTestServiceWithCache(t, fake)
	addStock(t, svc, "Amoxicillin", "A1", "2024-02-01", 4, "7.50")

	stats, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if stats.TotalMedicines != 1 || stats.LowStockCount != 1 || stats.NearExpiryCount != 1 {
		t.Fatalf("unexpected dashboard: %+v", stats)
	}
	if len(stats.SalesLast7Days) != 7 || stats.SalesLast7Days[6].Date != "2024-01-15" {
		t.Fatalf("unexpected daily series: %+v", stats.SalesLast7Days)
	}
	if _, ok := fake.values["main-store"]; !ok {
		t.Fatalf("expected dashboard to be cached")
	}

	resp := addStock(t, svc, "Paracetamol", "P1", "2024-06", 20, "2.00")
	if _, ok := fake.values["main-store"]; ok {
		t.Fatalf("expected add stock to invalidate the cached dashboard")
	}
	if _, err := svc.Sell(staffContext(), resp.Medicine.ID, 2); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	stats, err = svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if stats.TotalMedicines != 2 || stats.TodayBills != 1 || !stats.TodaySales.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("dashboard not recomputed: %+v", stats)
	}
}

func TestRenderInvoiceWritesPDF(t *testing.T) {
	svc := newTestService(t)
	resp := addStock(t, svc, "Paracetamol", "P1", "2024-06", 20, "2.00")
	result, err := svc.Sell(staffContext(), resp.Medicine.ID, 2)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.RenderInvoice(context.Background(), result.SaleID, &buf); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected a PDF document")
	}
	if err := svc.RenderInvoice(context.Background(), "inv-missing", &buf); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMutationsWriteAuditLog(t *testing.T) {
	svc := newTestService(t)
	resp := addStock(t, svc, "Zinc", "Z1", "2025-01", 5, "4.00")
	if err := svc.DeleteMedicine(staffContext(), resp.Medicine.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected create, add_stock and delete entries, got %+v", logs)
	}
	for _, entry := range logs {
		if entry.Actor != "nisha (staff)" {
			t.Fatalf("unexpected actor %q", entry.Actor)
		}
	}
}

type fakeDashboardCache struct {
	mu     sync.Mutex
	values map[string]*domain.DashboardStats
}

func newFakeDashboardCache() *fakeDashboardCache {
	return &fakeDashboardCache{values: make(map[string]*domain.DashboardStats)}
}

func (c *fakeDashboardCache) Get(_ context.Context, storeID string) (*domain.DashboardStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[storeID]
	return value, ok, nil
}

func (c *fakeDashboardCache) Set(_ context.Context, storeID string, value *domain.DashboardStats, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[storeID] = value
	return nil
}

func (c *fakeDashboardCache) Invalidate(_ context.Context, storeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, storeID)
	return nil
}

// conflictingStore fails the first conflicts sale commits with ErrConflict.
type conflictingStore struct {
	*memory.Store
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (s *conflictingStore) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	s.attempts++
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return nil, store.ErrConflict
	}
	s.mu.Unlock()
	return s.Store.CreateSale(ctx, sale)
}

func TestSellRetriesOnceAfterConflict(t *testing.T) {
	repo := &conflictingStore{Store: memory.New(), conflicts: 1}
	svc := New(repo, nil, zap.NewNop(), Options{StoreID: "main-store", Now: func() time.Time { return testNow }})
	resp := addStock(t, svc, "Cetirizine", "C1", "2025-01", 10, "1.50")

	result, err := svc.Sell(staffContext(), resp.Medicine.ID, 3)
	if err != nil {
		t.Fatalf("expected sell to commit on retry, got %v", err)
	}
	if repo.attempts != 2 || result.Summary.TotalStock != 7 {
		t.Fatalf("expected 2 attempts and 7 left, got %d attempts and %d left", repo.attempts, result.Summary.TotalStock)
	}

	repo.conflicts, repo.attempts = 2, 0
	if _, err := svc.Sell(staffContext(), resp.Medicine.ID, 3); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict after one retry, got %v", err)
	}
	if repo.attempts != 2 {
		t.Fatalf("expected exactly one retry, got %d attempts", repo.attempts)
	}
	summary, err := svc.GetStockSummary(context.Background(), resp.Medicine.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.TotalStock != 7 {
		t.Fatalf("expected stock unchanged at 7, got %d", summary.TotalStock)
	}
}

func TestAmountsFinerThanOneCentRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := staffContext()
	resp := addStock(t, svc, "Amoxicillin", "AMX", "2024-09", 10, "2.50")
	fine := decimal.RequireFromString("0.125")

	if _, err := svc.AddStock(ctx, domain.AddStockRequest{Name: "Zinc", Quantity: 5, SellingPrice: fine}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("add stock: expected validation error, got %v", err)
	}
	if _, err := svc.AddBatch(ctx, resp.Medicine.ID, domain.BatchCreateRequest{Quantity: 5, PurchasePrice: fine}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("add batch: expected validation error, got %v", err)
	}
	if _, err := svc.UpdateBatch(ctx, resp.Batch.ID, domain.BatchUpdateRequest{SellingPrice: &fine}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("update batch: expected validation error, got %v", err)
	}
	items := []domain.CartItemRequest{{MedicineID: resp.Medicine.ID, Quantity: 3, UnitPrice: &fine}}
	if _, err := svc.QuoteCart(ctx, domain.CartQuoteRequest{Items: items}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("quote: expected validation error, got %v", err)
	}
	if _, err := svc.ComputeBillTotals(domain.BillTotalsRequest{Items: []domain.BillItem{{Quantity: 3, UnitPrice: fine}}}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("bill totals: expected validation error, got %v", err)
	}
	checkout := domain.CheckoutRequest{
		Items:      []domain.CartItemRequest{{MedicineID: resp.Medicine.ID, Quantity: 1}},
		AmountPaid: "1.005",
	}
	if _, err := svc.Checkout(ctx, checkout); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("checkout: expected validation error, got %v", err)
	}
	if _, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Description: "Power", Amount: decimal.RequireFromString("10.001"), Category: "Utilities"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expense: expected validation error, got %v", err)
	}

	summary, err := svc.GetStockSummary(context.Background(), resp.Medicine.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.TotalStock != 10 {
		t.Fatalf("expected rejected requests to leave stock at 10, got %d", summary.TotalStock)
	}

	trailing, err := svc.ComputeBillTotals(domain.BillTotalsRequest{Items: []domain.BillItem{{Quantity: 2, UnitPrice: decimal.RequireFromString("1.500")}}})
	if err != nil || !trailing.Subtotal.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected trailing zeros to be accepted, got %+v err=%v", trailing, err)
	}
}

func TestListCustomersCountsRecentSignups(t *testing.T) {
	clock := testNow.AddDate(0, -2, 0)
	svc := New(memory.New(), nil, zap.NewNop(), Options{StoreID: "main-store", Now: func() time.Time { return clock }})
	ctx := staffContext()

	if _, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Meera", Phone: "9000000002"}); err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	clock = testNow
	if _, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Arjun", Phone: "9000000003"}); err != nil {
		t.Fatalf("create customer failed: %v", err)
	}

	page, err := svc.ListCustomers(ctx, domain.CustomerQuery{})
	if err != nil {
		t.Fatalf("list customers failed: %v", err)
	}
	if page.Total != 2 || page.NewLast30Days != 1 {
		t.Fatalf("expected 2 customers with 1 new, got total %d new %d", page.Total, page.NewLast30Days)
	}

	page, err = svc.ListCustomers(ctx, domain.CustomerQuery{Search: "meera"})
	if err != nil {
		t.Fatalf("search customers failed: %v", err)
	}
	if page.Total != 1 || page.NewLast30Days != 1 {
		t.Fatalf("expected new count to cover the whole store, got total %d new %d", page.Total, page.NewLast30Days)
	}
}
