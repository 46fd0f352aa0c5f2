package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AddStockRequest struct {
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Manufacturer      string          `json:"manufacturer"`
	Shelf             string          `json:"shelf"`
	LowStockThreshold *int            `json:"low_stock_threshold"`
	BatchNumber       string          `json:"batch_number"`
	ExpiryDate        string          `json:"expiry_date"`
	Quantity          int             `json:"quantity"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
}

type AddStockResponse struct {
	Medicine        Medicine     `json:"medicine"`
	Batch           Batch        `json:"batch"`
	MedicineCreated bool         `json:"medicine_created"`
	Summary         StockSummary `json:"summary"`
}

type BatchCreateRequest struct {
	BatchNumber   string          `json:"batch_number"`
	ExpiryDate    string          `json:"expiry_date"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
}

// BatchUpdateRequest is a partial update. An empty ExpiryDate clears the expiry.
type BatchUpdateRequest struct {
	BatchNumber   *string          `json:"batch_number"`
	Quantity      *int             `json:"quantity"`
	ExpiryDate    *string          `json:"expiry_date"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SellingPrice  *decimal.Decimal `json:"selling_price"`
}

type MedicineUpdateRequest struct {
	Name              *string `json:"name"`
	Category          *string `json:"category"`
	Manufacturer      *string `json:"manufacturer"`
	Shelf             *string `json:"shelf"`
	LowStockThreshold *int    `json:"low_stock_threshold"`
	ResetThreshold    bool    `json:"reset_threshold"`
}

type MedicineDetail struct {
	Medicine Medicine     `json:"medicine"`
	Batches  []Batch      `json:"batches"`
	Summary  StockSummary `json:"summary"`
}

const (
	StockFilterAll     = "all"
	StockFilterLow     = "low"
	StockFilterOut     = "out"
	StockFilterHealthy = "healthy"

	ExpiryFilterAll     = "all"
	ExpiryFilterExpired = "expired"
	ExpiryFilterNear    = "near"
)

type InventoryQuery struct {
	Search   string
	Category string
	Stock    string
	Expiry   string
	Page     int
	PageSize int
}

type InventoryPage struct {
	Items    []StockSummary `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type SellRequest struct {
	Quantity int `json:"quantity"`
}

type DiscountSpec struct {
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
}

type CartItemRequest struct {
	MedicineID string           `json:"medicine_id"`
	Quantity   int              `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
}

type BillItem struct {
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type BillTotalsRequest struct {
	Items      []BillItem   `json:"items"`
	Discount   DiscountSpec `json:"discount"`
	AmountPaid string       `json:"amount_paid"`
}

type BillTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	BalanceDue     decimal.Decimal `json:"balance_due"`
}

type CartQuoteRequest struct {
	Items      []CartItemRequest `json:"items"`
	Discount   DiscountSpec      `json:"discount"`
	AmountPaid string            `json:"amount_paid"`
}

type CartQuote struct {
	Lines  []SaleLine `json:"lines"`
	Totals BillTotals `json:"totals"`
}

type CheckoutRequest struct {
	CustomerID    string            `json:"customer_id"`
	CustomerName  string            `json:"customer_name"`
	Items         []CartItemRequest `json:"items"`
	Discount      DiscountSpec      `json:"discount"`
	AmountPaid    string            `json:"amount_paid"`
	PaymentMethod string            `json:"payment_method"`
}

type CustomerCreateRequest struct {
	Name    string           `json:"name"`
	Phone   string           `json:"phone"`
	Email   string           `json:"email"`
	Address string           `json:"address"`
	Balance *decimal.Decimal `json:"balance"`
}

type CustomerUpdateRequest struct {
	Name    *string          `json:"name"`
	Phone   *string          `json:"phone"`
	Email   *string          `json:"email"`
	Address *string          `json:"address"`
	Balance *decimal.Decimal `json:"balance"`
}

const (
	CustomerSortName    = "name"
	CustomerSortBalance = "balance_desc"
	CustomerSortRecent  = "recent"
)

type CustomerQuery struct {
	Search   string
	Sort     string
	Page     int
	PageSize int
}

type CustomerPage struct {
	Items            []Customer      `json:"items"`
	Total            int             `json:"total"`
	Page             int             `json:"page"`
	PageSize         int             `json:"page_size"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	NewLast30Days    int             `json:"new_last_30_days"`
}

type ExpenseCreateRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

type ExpenseUpdateRequest struct {
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
	Date        *string          `json:"date"`
}

type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

type MonthAmount struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

type ExpenseStats struct {
	Total      decimal.Decimal  `json:"total"`
	ThisMonth  decimal.Decimal  `json:"this_month"`
	ByCategory []CategoryAmount `json:"by_category"`
	Monthly    []MonthAmount    `json:"monthly"`
}

type DailySales struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
	Bills int             `json:"bills"`
}

type CategoryStock struct {
	Category  string `json:"category"`
	Medicines int    `json:"medicines"`
	Stock     int    `json:"stock"`
}

type DashboardStats struct {
	StoreID            string          `json:"store_id"`
	GeneratedAt        time.Time       `json:"generated_at"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	TotalBills         int             `json:"total_bills"`
	TodaySales         decimal.Decimal `json:"today_sales"`
	TodayBills         int             `json:"today_bills"`
	TotalCustomers     int             `json:"total_customers"`
	TotalMedicines     int             `json:"total_medicines"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	TotalExpenses      decimal.Decimal `json:"total_expenses"`
	MonthExpenses      decimal.Decimal `json:"month_expenses"`
	LowStockCount      int             `json:"low_stock_count"`
	NearExpiryCount    int             `json:"near_expiry_count"`
	ExpiredCount       int             `json:"expired_count"`
	LowStock           []StockSummary  `json:"low_stock"`
	NearExpiry         []StockSummary  `json:"near_expiry"`
	SalesLast7Days     []DailySales    `json:"sales_last_7_days"`
	Categories         []CategoryStock `json:"categories"`
}
