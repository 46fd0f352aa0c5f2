package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/inventory"
	"medshop/backend/internal/store"
	"medshop/backend/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate applies the idempotent schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const medicineColumns = `id, store_id, name, category, manufacturer, shelf, low_stock_threshold, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedicine(row rowScanner) (domain.Medicine, error) {
	var (
		m         domain.Medicine
		threshold sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.StoreID, &m.Name, &m.Category, &m.Manufacturer, &m.Shelf, &threshold, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return m, err
	}
	if threshold.Valid {
		value := int(threshold.Int64)
		m.LowStockThreshold = &value
	}
	return m, nil
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
		INSERT INTO medicines (`+medicineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, medicine.ID, medicine.StoreID, medicine.Name, medicine.Category, medicine.Manufacturer, medicine.Shelf,
		nullInt(medicine.LowStockThreshold), medicine.CreatedAt, medicine.UpdatedAt)
	if err != nil {
		return nil, mapError("create medicine", err)
	}
	return &medicine, nil
}

func (s *Store) GetMedicine(ctx context.Context, storeID string, medicineID string) (*domain.Medicine, error) {
	m, err := scanMedicine(s.db.QueryRowContext(ctx, `
		SELECT `+medicineColumns+` FROM medicines WHERE store_id = $1 AND id = $2
	`, storeID, medicineID))
	if err != nil {
		return nil, mapError("get medicine", err)
	}
	return &m, nil
}

func (s *Store) FindMedicineByName(ctx context.Context, storeID string, name string) (*domain.Medicine, error) {
	m, err := scanMedicine(s.db.QueryRowContext(ctx, `
		SELECT `+medicineColumns+` FROM medicines
		WHERE store_id = $1 AND name = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, storeID, strings.TrimSpace(name)))
	if err != nil {
		return nil, mapError("find medicine", err)
	}
	return &m, nil
}

func (s *Store) ListMedicines(ctx context.Context, storeID string) ([]domain.Medicine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+medicineColumns+` FROM medicines
		WHERE store_id = $1
		ORDER BY lower(name), id
	`, storeID)
	if err != nil {
		return nil, mapError("list medicines", err)
	}
	defer rows.Close()

	medicines := make([]domain.Medicine, 0, 64)
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, mapError("scan medicine", err)
		}
		medicines = append(medicines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list medicines", err)
	}
	return medicines, nil
}

func (s *Store) UpdateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	m, err := scanMedicine(s.db.QueryRowContext(ctx, `
		UPDATE medicines
		SET name = $3, category = $4, manufacturer = $5, shelf = $6, low_stock_threshold = $7, updated_at = now()
		WHERE store_id = $1 AND id = $2
		RETURNING `+medicineColumns,
		medicine.StoreID, medicine.ID, medicine.Name, medicine.Category, medicine.Manufacturer, medicine.Shelf,
		nullInt(medicine.LowStockThreshold)))
	if err != nil {
		return nil, mapError("update medicine", err)
	}
	return &m, nil
}

func (s *Store) DeleteMedicine(ctx context.Context, storeID string, medicineID string) error {
	// batches go with the medicine through ON DELETE CASCADE
	res, err := s.db.ExecContext(ctx, `DELETE FROM medicines WHERE store_id = $1 AND id = $2`, storeID, medicineID)
	return expectOneRow("delete medicine", res, err)
}

const batchColumns = `id, store_id, medicine_id, batch_number, expiry_date, quantity, purchase_price, selling_price, received_at`

func scanBatch(row rowScanner) (domain.Batch, error) {
	var (
		b      domain.Batch
		expiry sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.StoreID, &b.MedicineID, &b.BatchNumber, &expiry, &b.Quantity, &b.PurchasePrice, &b.SellingPrice, &b.ReceivedAt); err != nil {
		return b, err
	}
	if expiry.Valid {
		day := inventory.Day(expiry.Time)
		b.ExpiryDate = &day
	}
	return b, nil
}

func (s *Store) AddBatch(ctx context.Context, batch domain.Batch) (*domain.Batch, error) {
	if batch.Quantity < 0 {
		return nil, store.Invalid("quantity must not be negative")
	}
	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}

	b, err := scanBatch(s.db.QueryRowContext(ctx, `
		INSERT INTO batches (`+batchColumns+`)
		SELECT $1, m.store_id, m.id, $4, $5, $6, $7, $8, $9
		FROM medicines m
		WHERE m.store_id = $2 AND m.id = $3
		RETURNING `+batchColumns,
		batch.ID, batch.StoreID, batch.MedicineID, batch.BatchNumber, nullDate(batch.ExpiryDate), batch.Quantity,
		batch.PurchasePrice, batch.SellingPrice, batch.ReceivedAt))
	if err != nil {
		return nil, mapError("add batch", err)
	}
	return &b, nil
}

func (s *Store) GetBatch(ctx context.Context, storeID string, batchID string) (*domain.Batch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+` FROM batches WHERE store_id = $1 AND id = $2
	`, storeID, batchID))
	if err != nil {
		return nil, mapError("get batch", err)
	}
	return &b, nil
}

func (s *Store) UpdateBatch(ctx context.Context, storeID string, batchID string, patch domain.BatchPatch) (*domain.Batch, error) {
	if patch.Quantity != nil && *patch.Quantity < 0 {
		return nil, store.Invalid("quantity must not be negative")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("begin update batch", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := scanBatch(tx.QueryRowContext(ctx, `
		SELECT `+batchColumns+` FROM batches WHERE store_id = $1 AND id = $2 FOR UPDATE
	`, storeID, batchID))
	if err != nil {
		return nil, mapError("lock batch", err)
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
		current.ExpiryDate = patch.ExpiryDate
	}
	if patch.PurchasePrice != nil {
		current.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SellingPrice != nil {
		current.SellingPrice = *patch.SellingPrice
	}

	updated, err := scanBatch(tx.QueryRowContext(ctx, `
		UPDATE batches
		SET batch_number = $3, expiry_date = $4, quantity = $5, purchase_price = $6, selling_price = $7
		WHERE store_id = $1 AND id = $2
		RETURNING `+batchColumns,
		storeID, batchID, current.BatchNumber, nullDate(current.ExpiryDate), current.Quantity,
		current.PurchasePrice, current.SellingPrice))
	if err != nil {
		return nil, mapError("update batch", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapError("commit update batch", err)
	}
	return &updated, nil
}

func (s *Store) UpdateBatchQuantity(ctx context.Context, storeID string, batchID string, quantity int) (*domain.Batch, error) {
	if quantity < 0 {
		return nil, store.Invalid("quantity must not be negative")
	}
	b, err := scanBatch(s.db.QueryRowContext(ctx, `
		UPDATE batches SET quantity = $3
		WHERE store_id = $1 AND id = $2
		RETURNING `+batchColumns,
		storeID, batchID, quantity))
	if err != nil {
		return nil, mapError("update batch quantity", err)
	}
	return &b, nil
}

func (s *Store) DeleteBatch(ctx context.Context, storeID string, batchID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE store_id = $1 AND id = $2`, storeID, batchID)
	return expectOneRow("delete batch", res, err)
}

func (s *Store) ListBatches(ctx context.Context, storeID string, medicineID string) ([]domain.Batch, error) {
	return s.queryBatches(ctx, `
		SELECT `+batchColumns+` FROM batches
		WHERE store_id = $1 AND medicine_id = $2
		ORDER BY received_at, id
	`, storeID, medicineID)
}

func (s *Store) ListStoreBatches(ctx context.Context, storeID string) ([]domain.Batch, error) {
	return s.queryBatches(ctx, `
		SELECT `+batchColumns+` FROM batches
		WHERE store_id = $1
		ORDER BY medicine_id, received_at, id
	`, storeID)
}

func (s *Store) queryBatches(ctx context.Context, query string, args ...any) ([]domain.Batch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list batches", err)
	}
	defer rows.Close()

	batches := make([]domain.Batch, 0, 32)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, mapError("scan batch", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list batches", err)
	}
	return batches, nil
}

func (s *Store) Allocate(ctx context.Context, storeID string, medicineID string, quantity int) ([]domain.Deduction, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, mapError("begin allocate", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := lockMedicine(ctx, tx, storeID, medicineID); err != nil {
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

// lockMedicine takes a share lock so the medicine cannot be deleted while its
// batches are being drawn down.
func lockMedicine(ctx context.Context, tx *sql.Tx, storeID string, medicineID string) (string, error) {
	var name string
	err := tx.QueryRowContext(ctx, `
		SELECT name FROM medicines WHERE store_id = $1 AND id = $2 FOR SHARE
	`, storeID, medicineID).Scan(&name)
	if err != nil {
		return "", mapError("lock medicine", err)
	}
	return name, nil
}

// allocateTx locks the medicine's stocked batches, plans the FEFO draw and
// applies it. The caller owns the transaction.
func allocateTx(ctx context.Context, tx *sql.Tx, storeID string, medicineID string, quantity int) ([]domain.Deduction, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE store_id = $1 AND medicine_id = $2 AND quantity > 0
		ORDER BY expiry_date ASC NULLS LAST, received_at ASC, id ASC
		FOR UPDATE
	`, storeID, medicineID)
	if err != nil {
		return nil, mapError("lock batches", err)
	}
	batches := make([]domain.Batch, 0, 8)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			_ = rows.Close()
			return nil, mapError("scan batch", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, mapError("lock batches", err)
	}
	_ = rows.Close()

	plan, err := inventory.PlanFEFO(medicineID, batches, quantity)
	if err != nil {
		return nil, err
	}

	for _, deduction := range plan {
		res, err := tx.ExecContext(ctx, `
			UPDATE batches
			SET quantity = quantity - $1
			WHERE id = $2 AND quantity >= $1
		`, deduction.Quantity, deduction.BatchID)
		if err != nil {
			return nil, mapError("deduct batch", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, mapError("deduct batch", err)
		}
		if affected != 1 {
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, mapError("begin sale", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if sale.CustomerID != "" {
		var name string
		err := tx.QueryRowContext(ctx, `
			SELECT name FROM customers WHERE store_id = $1 AND id = $2 FOR UPDATE
		`, sale.StoreID, sale.CustomerID).Scan(&name)
		if err != nil {
			return nil, mapError("lock customer", err)
		}
		sale.CustomerName = name
	}

	// Lock medicines in id order so concurrent multi-line sales cannot deadlock.
	order := make([]int, len(sale.Lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sale.Lines[order[a]].MedicineID < sale.Lines[order[b]].MedicineID
	})
	for _, i := range order {
		line := &sale.Lines[i]
		name, err := lockMedicine(ctx, tx, sale.StoreID, line.MedicineID)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, sale.ID, sale.StoreID, nullIfEmpty(sale.CustomerID), sale.CustomerName, sale.Subtotal, sale.DiscountType,
		sale.DiscountValue, sale.DiscountAmount, sale.Tax, sale.Total, sale.AmountPaid, sale.BalanceDue,
		sale.PaymentMethod, sale.Cashier, sale.CreatedAt)
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
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, sale.ID, i+1, line.MedicineID, line.MedicineName, line.Quantity, line.UnitPrice, line.LineTotal, string(deductions))
		if err != nil {
			return nil, mapError("insert sale line", err)
		}
	}

	if sale.CustomerID != "" && sale.BalanceDue.IsPositive() {
		_, err := tx.ExecContext(ctx, `
			UPDATE customers SET balance = balance + $3, updated_at = $4
			WHERE store_id = $1 AND id = $2
		`, sale.StoreID, sale.CustomerID, sale.BalanceDue, sale.CreatedAt)
		if err != nil {
			return nil, mapError("charge customer", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError("commit sale", err)
	}
	return &sale, nil
}

const saleColumns = `id, store_id, COALESCE(customer_id, ''), customer_name, subtotal, discount_type, discount_value,
	discount_amount, tax, total, amount_paid, balance_due, payment_method, cashier, created_at`

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(&sale.ID, &sale.StoreID, &sale.CustomerID, &sale.CustomerName, &sale.Subtotal, &sale.DiscountType,
		&sale.DiscountValue, &sale.DiscountAmount, &sale.Tax, &sale.Total, &sale.AmountPaid, &sale.BalanceDue,
		&sale.PaymentMethod, &sale.Cashier, &sale.CreatedAt)
	return sale, err
}

func (s *Store) GetSale(ctx context.Context, storeID string, saleID string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE store_id = $1 AND id = $2
	`, storeID, saleID))
	if err != nil {
		return nil, mapError("get sale", err)
	}
	sales := []domain.Sale{sale}
	if err := s.attachLines(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, storeID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE store_id = $1`
	args := []any{storeID}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list sales", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, mapError("scan sale", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list sales", err)
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
		sales[i].Lines = []domain.SaleLine{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, medicine_id, medicine_name, quantity, unit_price, line_total, deductions
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, ids)
	if err != nil {
		return mapError("list sale lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			saleID string
			line   domain.SaleLine
			raw    []byte
		)
		if err := rows.Scan(&saleID, &line.MedicineID, &line.MedicineName, &line.Quantity, &line.UnitPrice, &line.LineTotal, &raw); err != nil {
			return mapError("scan sale line", err)
		}
		if err := json.Unmarshal(raw, &line.Deductions); err != nil {
			return fmt.Errorf("decode deductions for sale %s: %w", saleID, err)
		}
		i := index[saleID]
		sales[i].Lines = append(sales[i].Lines, line)
	}
	if err := rows.Err(); err != nil {
		return mapError("list sale lines", err)
	}
	return nil
}

const customerColumns = `id, store_id, name, phone, email, address, balance, created_at, updated_at`

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Balance, &c.CreatedAt, &c.UpdatedAt)
	return c, err
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
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, customer.ID, customer.StoreID, customer.Name, customer.Phone, customer.Email, customer.Address,
		customer.Balance, customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		return nil, mapError("create customer", err)
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, storeID string, customerID string) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE store_id = $1 AND id = $2
	`, storeID, customerID))
	if err != nil {
		return nil, mapError("get customer", err)
	}
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $3, phone = $4, email = $5, address = $6, balance = $7, updated_at = now()
		WHERE store_id = $1 AND id = $2
		RETURNING `+customerColumns,
		customer.StoreID, customer.ID, customer.Name, customer.Phone, customer.Email, customer.Address, customer.Balance))
	if err != nil {
		return nil, mapError("update customer", err)
	}
	return &c, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, storeID string, customerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE store_id = $1 AND id = $2`, storeID, customerID)
	return expectOneRow("delete customer", res, err)
}

func (s *Store) ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+` FROM customers WHERE store_id = $1 ORDER BY id
	`, storeID)
	if err != nil {
		return nil, mapError("list customers", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, mapError("scan customer", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list customers", err)
	}
	return customers, nil
}

const expenseColumns = `id, store_id, description, amount, category, expense_date, created_at`

func scanExpense(row rowScanner) (domain.Expense, error) {
	var e domain.Expense
	err := row.Scan(&e.ID, &e.StoreID, &e.Description, &e.Amount, &e.Category, &e.Date, &e.CreatedAt)
	e.Date = inventory.Day(e.Date)
	return e, err
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, expense.ID, expense.StoreID, expense.Description, expense.Amount, expense.Category, inventory.Day(expense.Date), expense.CreatedAt)
	if err != nil {
		return nil, mapError("create expense", err)
	}
	return &expense, nil
}

func (s *Store) GetExpense(ctx context.Context, storeID string, expenseID string) (*domain.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses WHERE store_id = $1 AND id = $2
	`, storeID, expenseID))
	if err != nil {
		return nil, mapError("get expense", err)
	}
	return &e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET description = $3, amount = $4, category = $5, expense_date = $6
		WHERE store_id = $1 AND id = $2
		RETURNING `+expenseColumns,
		expense.StoreID, expense.ID, expense.Description, expense.Amount, expense.Category, inventory.Day(expense.Date)))
	if err != nil {
		return nil, mapError("update expense", err)
	}
	return &e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, storeID string, expenseID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE store_id = $1 AND id = $2`, storeID, expenseID)
	return expectOneRow("delete expense", res, err)
}

func (s *Store) ListExpenses(ctx context.Context, storeID string) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE store_id = $1
		ORDER BY expense_date DESC, id DESC
	`, storeID)
	if err != nil {
		return nil, mapError("list expenses", err)
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, mapError("scan expense", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list expenses", err)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.StoreID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return mapError("create audit log", err)
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR store_id = $1) AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, mapError("list audit logs", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.Actor, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, mapError("scan audit log", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list audit logs", err)
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
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1, $2, $3, true, $4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.Invalid("username already exists")
	}
	return mapError("create user", err)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users ORDER BY username
	`)
	if err != nil {
		return nil, mapError("list users", err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, mapError("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list users", err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	return expectOneRow("update user password", res, err)
}

// mapError turns driver errors into the store error kinds.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
		case "23514":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
		case "23503":
			return fmt.Errorf("%w: %s", store.ErrNotFound, pgErr.Message)
		case "23505", "22P02", "22003":
			return fmt.Errorf("%w: %s", store.ErrValidation, pgErr.Message)
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return inventory.Day(*val)
}

func nullInt(val *int) any {
	if val == nil {
		return nil
	}
	return *val
}
