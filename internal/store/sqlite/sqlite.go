package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/inventory"
	"medshop/backend/internal/store"
	"medshop/backend/internal/xid"
)

const (
	// fixed width so stored timestamps sort as text
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout      = "2006-01-02"
)

// Store keeps the whole pharmacy in a single SQLite file. One open connection
// serializes writers, so allocations never interleave.
type Store struct {
	db *sqlx.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type medicineRow struct {
	ID                string        `db:"id"`
	StoreID           string        `db:"store_id"`
	Name              string        `db:"name"`
	Category          string        `db:"category"`
	Manufacturer      string        `db:"manufacturer"`
	Shelf             string        `db:"shelf"`
	LowStockThreshold sql.NullInt64 `db:"low_stock_threshold"`
	CreatedAt         string        `db:"created_at"`
	UpdatedAt         string        `db:"updated_at"`
}

func (r medicineRow) toDomain() domain.Medicine {
	m := domain.Medicine{
		ID:           r.ID,
		StoreID:      r.StoreID,
		Name:         r.Name,
		Category:     r.Category,
		Manufacturer: r.Manufacturer,
		Shelf:        r.Shelf,
		CreatedAt:    parseTimestamp(r.CreatedAt),
		UpdatedAt:    parseTimestamp(r.UpdatedAt),
	}
	if r.LowStockThreshold.Valid {
		value := int(r.LowStockThreshold.Int64)
		m.LowStockThreshold = &value
	}
	return m
}

type batchRow struct {
	ID            string          `db:"id"`
	StoreID       string          `db:"store_id"`
	MedicineID    string          `db:"medicine_id"`
	BatchNumber   string          `db:"batch_number"`
	ExpiryDate    sql.NullString  `db:"expiry_date"`
	Quantity      int             `db:"quantity"`
	PurchasePrice decimal.Decimal `db:"purchase_price"`
	SellingPrice  decimal.Decimal `db:"selling_price"`
	ReceivedAt    string          `db:"received_at"`
}

func (r batchRow) toDomain() domain.Batch {
	b := domain.Batch{
		ID:            r.ID,
		StoreID:       r.StoreID,
		MedicineID:    r.MedicineID,
		BatchNumber:   r.BatchNumber,
		Quantity:      r.Quantity,
		PurchasePrice: r.PurchasePrice,
		SellingPrice:  r.SellingPrice,
		ReceivedAt:    parseTimestamp(r.ReceivedAt),
	}
	if r.ExpiryDate.Valid {
		if day, err := time.Parse(dateLayout, r.ExpiryDate.String); err == nil {
			b.ExpiryDate = &day
		}
	}
	return b
}

type saleRow struct {
	ID             string          `db:"id"`
	StoreID        string          `db:"store_id"`
	CustomerID     string          `db:"customer_id"`
	CustomerName   string          `db:"customer_name"`
	Subtotal       decimal.Decimal `db:"subtotal"`
	DiscountType   string          `db:"discount_type"`
	DiscountValue  decimal.Decimal `db:"discount_value"`
	DiscountAmount decimal.Decimal `db:"discount_amount"`
	Tax            decimal.Decimal `db:"tax"`
	Total          decimal.Decimal `db:"total"`
	AmountPaid     decimal.Decimal `db:"amount_paid"`
	BalanceDue     decimal.Decimal `db:"balance_due"`
	PaymentMethod  string          `db:"payment_method"`
	Cashier        string          `db:"cashier"`
	CreatedAt      string          `db:"created_at"`
}

func (r saleRow) toDomain() domain.Sale {
	return domain.Sale{
		ID:             r.ID,
		StoreID:        r.StoreID,
		CustomerID:     r.CustomerID,
		CustomerName:   r.CustomerName,
		Lines:          []domain.SaleLine{},
		Subtotal:       r.Subtotal,
		DiscountType:   r.DiscountType,
		DiscountValue:  r.DiscountValue,
		DiscountAmount: r.DiscountAmount,
		Tax:            r.Tax,
		Total:          r.Total,
		AmountPaid:     r.AmountPaid,
		BalanceDue:     r.BalanceDue,
		PaymentMethod:  r.PaymentMethod,
		Cashier:        r.Cashier,
		CreatedAt:      parseTimestamp(r.CreatedAt),
	}
}

type saleLineRow struct {
	SaleID       string          `db:"sale_id"`
	MedicineID   string          `db:"medicine_id"`
	MedicineName string          `db:"medicine_name"`
	Quantity     int             `db:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price"`
	LineTotal    decimal.Decimal `db:"line_total"`
	Deductions   string          `db:"deductions"`
}

type customerRow struct {
	ID        string          `db:"id"`
	StoreID   string          `db:"store_id"`
	Name      string          `db:"name"`
	Phone     string          `db:"phone"`
	Email     string          `db:"email"`
	Address   string          `db:"address"`
	Balance   decimal.Decimal `db:"balance"`
	CreatedAt string          `db:"created_at"`
	UpdatedAt string          `db:"updated_at"`
}

func (r customerRow) toDomain() domain.Customer {
	return domain.Customer{
		ID:        r.ID,
		StoreID:   r.StoreID,
		Name:      r.Name,
		Phone:     r.Phone,
		Email:     r.Email,
		Address:   r.Address,
		Balance:   r.Balance,
		CreatedAt: parseTimestamp(r.CreatedAt),
		UpdatedAt: parseTimestamp(r.UpdatedAt),
	}
}

type expenseRow struct {
	ID          string          `db:"id"`
	StoreID     string          `db:"store_id"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	Category    string          `db:"category"`
	ExpenseDate string          `db:"expense_date"`
	CreatedAt   string          `db:"created_at"`
}

func (r expenseRow) toDomain() domain.Expense {
	day, _ := time.Parse(dateLayout, r.ExpenseDate)
	return domain.Expense{
		ID:          r.ID,
		StoreID:     r.StoreID,
		Description: r.Description,
		Amount:      r.Amount,
		Category:    r.Category,
		Date:        day,
		CreatedAt:   parseTimestamp(r.CreatedAt),
	}
}

type auditRow struct {
	ID         string `db:"id"`
	StoreID    string `db:"store_id"`
	Actor      string `db:"actor"`
	Action     string `db:"action"`
	EntityType string `db:"entity_type"`
	EntityID   string `db:"entity_id"`
	Detail     string `db:"detail"`
	CreatedAt  string `db:"created_at"`
}

type userRow struct {
	Username  string `db:"username"`
	Password  string `db:"password"`
	Role      string `db:"role"`
	Active    bool   `db:"active"`
	CreatedAt string `db:"created_at"`
}

func (s *Store) CreateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	if strings.TrimSpace(medicine.Name) == "" {
		return nil, store.Invalid("medicine name is required")
	}
	if medicine.ID == "" {
		medicine.ID = xid.New("med")
	}
	now := time.Now().UTC()
	if medicine.CreatedAt.IsZero() {
		medicine.CreatedAt = now
	}
	medicine.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO medicines (id, store_id, name, category, manufacturer, shelf, low_stock_threshold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, medicine.ID, medicine.StoreID, medicine.Name, medicine.Category, medicine.Manufacturer, medicine.Shelf,
		nullInt(medicine.LowStockThreshold), formatTimestamp(medicine.CreatedAt), formatTimestamp(medicine.UpdatedAt))
	if err != nil {
		return nil, mapError("create medicine", err)
	}
	return &medicine, nil
}

func (s *Store) GetMedicine(ctx context.Context, storeID string, medicineID string) (*domain.Medicine, error) {
	var row medicineRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM medicines WHERE store_id = ? AND id = ?`, storeID, medicineID); err != nil {
		return nil, mapError("get medicine", err)
	}
	m := row.toDomain()
	return &m, nil
}

func (s *Store) FindMedicineByName(ctx context.Context, storeID string, name string) (*domain.Medicine, error) {
	var row medicineRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM medicines WHERE store_id = ? AND name = ? ORDER BY created_at LIMIT 1
	`, storeID, strings.TrimSpace(name))
	if err != nil {
		return nil, mapError("find medicine", err)
	}
	m := row.toDomain()
	return &m, nil
}

func (s *Store) ListMedicines(ctx context.Context, storeID string) ([]domain.Medicine, error) {
	var rows []medicineRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM medicines WHERE store_id = ? ORDER BY lower(name), id`, storeID); err != nil {
		return nil, mapError("list medicines", err)
	}
	medicines := make([]domain.Medicine, len(rows))
	for i, row := range rows {
		medicines[i] = row.toDomain()
	}
	return medicines, nil
}

func (s *Store) UpdateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE medicines
		SET name = ?, category = ?, manufacturer = ?, shelf = ?, low_stock_threshold = ?, updated_at = ?
		WHERE store_id = ? AND id = ?
	`, medicine.Name, medicine.Category, medicine.Manufacturer, medicine.Shelf, nullInt(medicine.LowStockThreshold),
		formatTimestamp(time.Now()), medicine.StoreID, medicine.ID)
	if err := expectOneRow("update medicine", res, err); err != nil {
		return nil, err
	}
	return s.GetMedicine(ctx, medicine.StoreID, medicine.ID)
}

func (s *Store) DeleteMedicine(ctx context.Context, storeID string, medicineID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM medicines WHERE store_id = ? AND id = ?`, storeID, medicineID)
	return expectOneRow("delete medicine", res, err)
}

func (s *Store) AddBatch(ctx context.Context, batch domain.Batch) (*domain.Batch, error) {
	if batch.Quantity < 0 {
		return nil, store.Invalid("quantity must not be negative")
	}
	if _, err := s.GetMedicine(ctx, batch.StoreID, batch.MedicineID); err != nil {
		return nil, err
	}
	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	if batch.ExpiryDate != nil {
		day := inventory.Day(*batch.ExpiryDate)
		batch.ExpiryDate = &day
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, store_id, medicine_id, batch_number, expiry_date, quantity, purchase_price, selling_price, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, batch.ID, batch.StoreID, batch.MedicineID, batch.BatchNumber, nullDate(batch.ExpiryDate), batch.Quantity,
		batch.PurchasePrice.String(), batch.SellingPrice.String(), formatTimestamp(batch.ReceivedAt))
	if err != nil {
		return nil, mapError("add batch", err)
	}
	return &batch, nil
}

func (s *Store) GetBatch(ctx context.Context, storeID string, batchID string) (*domain.Batch, error) {
	var row batchRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM batches WHERE store_id = ? AND id = ?`, storeID, batchID); err != nil {
		return nil, mapError("get batch", err)
	}
	b := row.toDomain()
	return &b, nil
}

func (s *Store) UpdateBatch(ctx context.Context, storeID string, batchID string, patch domain.BatchPatch) (*domain.Batch, error) {
	if patch.Quantity != nil && *patch.Quantity < 0 {
		return nil, store.Invalid("quantity must not be negative")
	}
	current, err := s.GetBatch(ctx, storeID, batchID)
	if err != nil {
		return nil, err
	}
	if patch.Quantity != nil {
		current.Quantity = *patch.Quantity
	}
	if patch.BatchNumber != nil {
		current.BatchNumber = strings.TrimSpace(*patch.BatchNumber)
	}
	if patch.ClearExpiry {
		current.ExpiryDate = nil
	} else if patch.ExpiryDate != nil {
		day := inventory.Day(*patch.ExpiryDate)
		current.ExpiryDate = &day
	}
	if patch.PurchasePrice != nil {
		current.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SellingPrice != nil {
		current.SellingPrice = *patch.SellingPrice
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE batches
		SET batch_number = ?, expiry_date = ?, quantity = ?, purchase_price = ?, selling_price = ?
		WHERE store_id = ? AND id = ?
	`, current.BatchNumber, nullDate(current.ExpiryDate), current.Quantity, current.PurchasePrice.String(),
		current.SellingPrice.String(), storeID, batchID)
	if err := expectOneRow("update batch", res, err); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Store) UpdateBatchQuantity(ctx context.Context, storeID string, batchID string, quantity int) (*domain.Batch, error) {
	if quantity < 0 {
		return nil, store.Invalid("quantity must not be negative")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE batches SET quantity = ? WHERE store_id = ? AND id = ?`, quantity, storeID, batchID)
	if err := expectOneRow("update batch quantity", res, err); err != nil {
		return nil, err
	}
	return s.GetBatch(ctx, storeID, batchID)
}

func (s *Store) DeleteBatch(ctx context.Context, storeID string, batchID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE store_id = ? AND id = ?`, storeID, batchID)
	return expectOneRow("delete batch", res, err)
}

func (s *Store) ListBatches(ctx context.Context, storeID string, medicineID string) ([]domain.Batch, error) {
	return selectBatches(ctx, s.db, `
		SELECT * FROM batches WHERE store_id = ? AND medicine_id = ? ORDER BY received_at, id
	`, storeID, medicineID)
}

func (s *Store) ListStoreBatches(ctx context.Context, storeID string) ([]domain.Batch, error) {
	return selectBatches(ctx, s.db, `
		SELECT * FROM batches WHERE store_id = ? ORDER BY medicine_id, received_at, id
	`, storeID)
}

func selectBatches(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]domain.Batch, error) {
	var rows []batchRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, mapError("list batches", err)
	}
	batches := make([]domain.Batch, len(rows))
	for i, row := range rows {
		batches[i] = row.toDomain()
	}
	return batches, nil
}

func (s *Store) Allocate(ctx context.Context, storeID string, medicineID string, quantity int) ([]domain.Deduction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, mapError("begin allocate", err)
	}
	defer tx.Rollback()

	if _, err := medicineName(ctx, tx, storeID, medicineID); err != nil {
		return nil, err
	}
	plan, err := allocateTx(ctx, tx, storeID, medicineID, quantity)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError("commit allocate", err)
	}
	return plan, nil
}

func medicineName(ctx context.Context, tx *sqlx.Tx, storeID string, medicineID string) (string, error) {
	var name string
	if err := tx.GetContext(ctx, &name, `SELECT name FROM medicines WHERE store_id = ? AND id = ?`, storeID, medicineID); err != nil {
		return "", mapError("get medicine", err)
	}
	return name, nil
}

// allocateTx plans against the batches as read inside tx and applies the plan
// with compare-and-set updates. A batch that moved underneath reports a
// conflict.
func allocateTx(ctx context.Context, tx *sqlx.Tx, storeID string, medicineID string, quantity int) ([]domain.Deduction, error) {
	batches, err := selectBatches(ctx, tx, `
		SELECT * FROM batches WHERE store_id = ? AND medicine_id = ? AND quantity > 0
	`, storeID, medicineID)
	if err != nil {
		return nil, err
	}
	plan, err := inventory.PlanFEFO(medicineID, batches, quantity)
	if err != nil {
		return nil, err
	}

	current := make(map[string]int, len(batches))
	for _, batch := range batches {
		current[batch.ID] = batch.Quantity
	}
	for _, deduction := range plan {
		before := current[deduction.BatchID]
		res, err := tx.ExecContext(ctx, `
			UPDATE batches SET quantity = ? WHERE id = ? AND quantity = ?
		`, before-deduction.Quantity, deduction.BatchID, before)
		if err != nil {
			return nil, mapError("deduct batch", err)
		}
		if affected, err := res.RowsAffected(); err != nil || affected != 1 {
			return nil, store.ErrConflict
		}
	}
	return plan, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.Invalid("sale has no lines")
	}
	if sale.ID == "" {
		sale.ID = xid.New("inv")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	lines := make([]domain.SaleLine, len(sale.Lines))
	copy(lines, sale.Lines)
	sale.Lines = lines

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, mapError("begin sale", err)
	}
	defer tx.Rollback()

	if sale.CustomerID != "" {
		var name string
		err := tx.GetContext(ctx, &name, `SELECT name FROM customers WHERE store_id = ? AND id = ?`, sale.StoreID, sale.CustomerID)
		if err != nil {
			return nil, mapError("get customer", err)
		}
		sale.CustomerName = name
	}

	for i := range sale.Lines {
		line := &sale.Lines[i]
		name, err := medicineName(ctx, tx, sale.StoreID, line.MedicineID)
		if err != nil {
			return nil, err
		}
		plan, err := allocateTx(ctx, tx, sale.StoreID, line.MedicineID, line.Quantity)
		if err != nil {
			return nil, err
		}
		line.MedicineName = name
		line.Deductions = plan
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, store_id, customer_id, customer_name, subtotal, discount_type, discount_value,
			discount_amount, tax, total, amount_paid, balance_due, payment_method, cashier, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sale.ID, sale.StoreID, sale.CustomerID, sale.CustomerName, sale.Subtotal.String(), sale.DiscountType,
		sale.DiscountValue.String(), sale.DiscountAmount.String(), sale.Tax.String(), sale.Total.String(),
		sale.AmountPaid.String(), sale.BalanceDue.String(), sale.PaymentMethod, sale.Cashier, formatTimestamp(sale.CreatedAt))
	if err != nil {
		return nil, mapError("insert sale", err)
	}

	for i, line := range sale.Lines {
		deductions, err := json.Marshal(line.Deductions)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, line_no, medicine_id, medicine_name, quantity, unit_price, line_total, deductions)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sale.ID, i+1, line.MedicineID, line.MedicineName, line.Quantity, line.UnitPrice.String(), line.LineTotal.String(), string(deductions))
		if err != nil {
			return nil, mapError("insert sale line", err)
		}
	}

	if sale.CustomerID != "" && sale.BalanceDue.IsPositive() {
		var balance decimal.Decimal
		if err := tx.GetContext(ctx, &balance, `SELECT balance FROM customers WHERE id = ?`, sale.CustomerID); err != nil {
			return nil, mapError("get customer balance", err)
		}
		_, err := tx.ExecContext(ctx, `UPDATE customers SET balance = ?, updated_at = ? WHERE id = ?`,
			balance.Add(sale.BalanceDue).String(), formatTimestamp(sale.CreatedAt), sale.CustomerID)
		if err != nil {
			return nil, mapError("charge customer", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError("commit sale", err)
	}
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, storeID string, saleID string) (*domain.Sale, error) {
	var row saleRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM sales WHERE store_id = ? AND id = ?`, storeID, saleID); err != nil {
		return nil, mapError("get sale", err)
	}
	sales := []domain.Sale{row.toDomain()}
	if err := s.attachLines(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, storeID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := `SELECT * FROM sales WHERE store_id = ?`
	args := []any{storeID}
	if filter.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}
	if !filter.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTimestamp(filter.From))
	}
	if !filter.To.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, formatTimestamp(filter.To))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []saleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError("list sales", err)
	}
	sales := make([]domain.Sale, len(rows))
	for i, row := range rows {
		sales[i] = row.toDomain()
	}
	if err := s.attachLines(ctx, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) attachLines(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, len(sales))
	index := make(map[string]int, len(sales))
	for i, sale := range sales {
		ids[i] = sale.ID
		index[sale.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT sale_id, medicine_id, medicine_name, quantity, unit_price, line_total, deductions
		FROM sale_lines
		WHERE sale_id IN (?)
		ORDER BY sale_id, line_no
	`, ids)
	if err != nil {
		return err
	}
	var rows []saleLineRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return mapError("list sale lines", err)
	}
	for _, row := range rows {
		line := domain.SaleLine{
			MedicineID:   row.MedicineID,
			MedicineName: row.MedicineName,
			Quantity:     row.Quantity,
			UnitPrice:    row.UnitPrice,
			LineTotal:    row.LineTotal,
		}
		if err := json.Unmarshal([]byte(row.Deductions), &line.Deductions); err != nil {
			return fmt.Errorf("decode deductions for sale %s: %w", row.SaleID, err)
		}
		i := index[row.SaleID]
		sales[i].Lines = append(sales[i].Lines, line)
	}
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	now := time.Now().UTC()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, store_id, name, phone, email, address, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, customer.ID, customer.StoreID, customer.Name, customer.Phone, customer.Email, customer.Address,
		customer.Balance.String(), formatTimestamp(customer.CreatedAt), formatTimestamp(customer.UpdatedAt))
	if err != nil {
		return nil, mapError("create customer", err)
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, storeID string, customerID string) (*domain.Customer, error) {
	var row customerRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM customers WHERE store_id = ? AND id = ?`, storeID, customerID); err != nil {
		return nil, mapError("get customer", err)
	}
	c := row.toDomain()
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET name = ?, phone = ?, email = ?, address = ?, balance = ?, updated_at = ?
		WHERE store_id = ? AND id = ?
	`, customer.Name, customer.Phone, customer.Email, customer.Address, customer.Balance.String(),
		formatTimestamp(time.Now()), customer.StoreID, customer.ID)
	if err := expectOneRow("update customer", res, err); err != nil {
		return nil, err
	}
	return s.GetCustomer(ctx, customer.StoreID, customer.ID)
}

func (s *Store) DeleteCustomer(ctx context.Context, storeID string, customerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE store_id = ? AND id = ?`, storeID, customerID)
	return expectOneRow("delete customer", res, err)
}

func (s *Store) ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error) {
	var rows []customerRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM customers WHERE store_id = ? ORDER BY id`, storeID); err != nil {
		return nil, mapError("list customers", err)
	}
	customers := make([]domain.Customer, len(rows))
	for i, row := range rows {
		customers[i] = row.toDomain()
	}
	return customers, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	expense.Date = inventory.Day(expense.Date)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, store_id, description, amount, category, expense_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, expense.ID, expense.StoreID, expense.Description, expense.Amount.String(), expense.Category,
		expense.Date.Format(dateLayout), formatTimestamp(expense.CreatedAt))
	if err != nil {
		return nil, mapError("create expense", err)
	}
	return &expense, nil
}

func (s *Store) GetExpense(ctx context.Context, storeID string, expenseID string) (*domain.Expense, error) {
	var row expenseRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM expenses WHERE store_id = ? AND id = ?`, storeID, expenseID); err != nil {
		return nil, mapError("get expense", err)
	}
	e := row.toDomain()
	return &e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses SET description = ?, amount = ?, category = ?, expense_date = ?
		WHERE store_id = ? AND id = ?
	`, expense.Description, expense.Amount.String(), expense.Category, inventory.Day(expense.Date).Format(dateLayout),
		expense.StoreID, expense.ID)
	if err := expectOneRow("update expense", res, err); err != nil {
		return nil, err
	}
	return s.GetExpense(ctx, expense.StoreID, expense.ID)
}

func (s *Store) DeleteExpense(ctx context.Context, storeID string, expenseID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE store_id = ? AND id = ?`, storeID, expenseID)
	return expectOneRow("delete expense", res, err)
}

func (s *Store) ListExpenses(ctx context.Context, storeID string) ([]domain.Expense, error) {
	var rows []expenseRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM expenses WHERE store_id = ? ORDER BY expense_date DESC, id DESC
	`, storeID)
	if err != nil {
		return nil, mapError("list expenses", err)
	}
	expenses := make([]domain.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = row.toDomain()
	}
	return expenses, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, actor, action, entity_type, entity_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.StoreID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail,
		formatTimestamp(entry.CreatedAt))
	return mapError("create audit log", err)
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM audit_logs
		WHERE (? = '' OR store_id = ?) AND created_at >= ? AND created_at < ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, storeID, storeID, formatTimestamp(from), formatTimestamp(to), limit)
	if err != nil {
		return nil, mapError("list audit logs", err)
	}
	logs := make([]domain.AuditLog, len(rows))
	for i, row := range rows {
		logs[i] = domain.AuditLog{
			ID:         row.ID,
			StoreID:    row.StoreID,
			Actor:      row.Actor,
			Action:     row.Action,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Detail:     row.Detail,
			CreatedAt:  parseTimestamp(row.CreatedAt),
		}
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username and password are required")
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at) VALUES (?, ?, ?, 1, ?)
	`, username, user.Password, user.Role, formatTimestamp(user.CreatedAt))
	if err != nil {
		if errors.Is(mapError("create user", err), store.ErrValidation) {
			return store.Invalid("username already exists")
		}
		return mapError("create user", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM users ORDER BY username`); err != nil {
		return nil, mapError("list users", err)
	}
	users := make([]domain.UserAccount, len(rows))
	for i, row := range rows {
		users[i] = domain.UserAccount{
			Username:  row.Username,
			Password:  row.Password,
			Role:      row.Role,
			Active:    row.Active,
			CreatedAt: parseTimestamp(row.CreatedAt),
		}
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = ? WHERE username = ?`,
		password, strings.ToLower(strings.TrimSpace(username)))
	return expectOneRow("update user password", res, err)
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: %s", store.ErrValidation, sqliteErr.Error())
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %s", store.ErrNotFound, sqliteErr.Error())
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %s", store.ErrConflict, sqliteErr.Error())
		}
	}
	return store.Wrap(op, err)
}

func expectOneRow(op string, res sql.Result, err error) error {
	if err != nil {
		return mapError(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return inventory.Day(*val).Format(dateLayout)
}

func nullInt(val *int) any {
	if val == nil {
		return nil
	}
	return *val
}
