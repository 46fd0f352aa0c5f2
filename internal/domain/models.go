package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLowStockThreshold = 10

	// DashboardExpiryWindowDays drives the dashboard alert list.
	DashboardExpiryWindowDays = 60
	// ListingExpiryWindowDays drives the "near" expiry filter of the inventory list.
	ListingExpiryWindowDays = 30

	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	PaymentCash = "cash"
	PaymentCard = "card"
	PaymentUPI  = "upi"
)

const (
	DiscountNone       = ""
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

var ExpenseCategories = []string{
	"Rent",
	"Utilities",
	"Salaries",
	"Inventory Purchase",
	"Maintenance",
	"Marketing",
	"Transportation",
	"Other",
}

type Medicine struct {
	ID                string    `json:"id"`
	StoreID           string    `json:"store_id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Manufacturer      string    `json:"manufacturer"`
	Shelf             string    `json:"shelf"`
	LowStockThreshold *int      `json:"low_stock_threshold,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Threshold returns the low-stock threshold, falling back to the default when unset.
func (m Medicine) Threshold() int {
	if m.LowStockThreshold == nil {
		return DefaultLowStockThreshold
	}
	return *m.LowStockThreshold
}

type Batch struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"store_id"`
	MedicineID    string          `json:"medicine_id"`
	BatchNumber   string          `json:"batch_number"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	ReceivedAt    time.Time       `json:"received_at"`
}

// BatchPatch carries a partial batch update. Nil fields are left unchanged.
type BatchPatch struct {
	BatchNumber   *string
	Quantity      *int
	ExpiryDate    *time.Time
	ClearExpiry   bool
	PurchasePrice *decimal.Decimal
	SellingPrice  *decimal.Decimal
}

// StockSummary is derived from a medicine and its batches and is never persisted.
type StockSummary struct {
	Medicine            Medicine         `json:"medicine"`
	TotalStock          int              `json:"total_stock"`
	NearestExpiry       *time.Time       `json:"nearest_expiry,omitempty"`
	Threshold           int              `json:"low_stock_threshold"`
	BatchCount          int              `json:"batch_count"`
	UnitPrice           *decimal.Decimal `json:"unit_price,omitempty"`
	IsLowStock          bool             `json:"is_low_stock"`
	IsOutOfStock        bool             `json:"is_out_of_stock"`
	IsExpired           bool             `json:"is_expired"`
	IsNearExpiry        bool             `json:"is_near_expiry"`
	IsNearExpiryListing bool             `json:"is_near_expiry_listing"`
}

type Deduction struct {
	BatchID     string `json:"batch_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
}

type SaleLine struct {
	MedicineID   string          `json:"medicine_id"`
	MedicineName string          `json:"medicine_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	Deductions   []Deduction     `json:"deductions"`
}

type Sale struct {
	ID             string          `json:"id"`
	StoreID        string          `json:"store_id"`
	CustomerID     string          `json:"customer_id,omitempty"`
	CustomerName   string          `json:"customer_name,omitempty"`
	Lines          []SaleLine      `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountType   string          `json:"discount_type,omitempty"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	BalanceDue     decimal.Decimal `json:"balance_due"`
	PaymentMethod  string          `json:"payment_method"`
	Cashier        string          `json:"cashier"`
	CreatedAt      time.Time       `json:"created_at"`
}

type SaleFilter struct {
	CustomerID string
	From       time.Time
	To         time.Time
	Limit      int
}

type SaleLineResult struct {
	SaleID       string          `json:"sale_id"`
	MedicineID   string          `json:"medicine_id"`
	MedicineName string          `json:"medicine_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	Deductions   []Deduction     `json:"deductions"`
	Summary      StockSummary    `json:"summary"`
}

type Customer struct {
	ID        string          `json:"id"`
	StoreID   string          `json:"store_id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Email     string          `json:"email"`
	Address   string          `json:"address"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Expense struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"store_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	StoreID    string    `json:"store_id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Settings struct {
	ShopName    string `json:"shop_name"`
	ShopAddress string `json:"shop_address"`
	ShopPhone   string `json:"shop_phone"`
	TaxRate     string `json:"tax_rate"`
}
