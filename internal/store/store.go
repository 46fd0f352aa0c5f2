package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medshop/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("concurrent stock update")
	ErrPersistence       = errors.New("persistence failure")
)

// InsufficientStockError reports how many units a request was short by.
type InsufficientStockError struct {
	MedicineID string
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for medicine %s: requested %d, available %d (short by %d)",
		e.MedicineID, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PersistenceError wraps a driver or network failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Wrap converts a raw backend error into a PersistenceError. Domain errors pass
// through unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrValidation, ErrInsufficientStock, ErrConflict, ErrPersistence} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type Repository interface {
	CreateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error)
	GetMedicine(ctx context.Context, storeID string, medicineID string) (*domain.Medicine, error)
	FindMedicineByName(ctx context.Context, storeID string, name string) (*domain.Medicine, error)
	ListMedicines(ctx context.Context, storeID string) ([]domain.Medicine, error)
	UpdateMedicine(ctx context.Context, medicine domain.Medicine) (*domain.Medicine, error)
	DeleteMedicine(ctx context.Context, storeID string, medicineID string) error

	AddBatch(ctx context.Context, batch domain.Batch) (*domain.Batch, error)
	GetBatch(ctx context.Context, storeID string, batchID string) (*domain.Batch, error)
	UpdateBatch(ctx context.Context, storeID string, batchID string, patch domain.BatchPatch) (*domain.Batch, error)
	UpdateBatchQuantity(ctx context.Context, storeID string, batchID string, quantity int) (*domain.Batch, error)
	DeleteBatch(ctx context.Context, storeID string, batchID string) error
	ListBatches(ctx context.Context, storeID string, medicineID string) ([]domain.Batch, error)
	ListStoreBatches(ctx context.Context, storeID string) ([]domain.Batch, error)

	// Allocate deducts quantity from the medicine's batches in FEFO order as one
	// atomic unit and returns the applied deductions.
	Allocate(ctx context.Context, storeID string, medicineID string, quantity int) ([]domain.Deduction, error)
	// CreateSale allocates every line, stores the sale and adds its balance due to
	// the customer, all in one transaction. Line deductions are filled in.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, storeID string, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, storeID string, filter domain.SaleFilter) ([]domain.Sale, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, storeID string, customerID string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, storeID string, customerID string) error
	ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	GetExpense(ctx context.Context, storeID string, expenseID string) (*domain.Expense, error)
	UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, storeID string, expenseID string) error
	ListExpenses(ctx context.Context, storeID string) ([]domain.Expense, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
