package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/inventory"
	"medshop/backend/internal/store"
	"medshop/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	medicines       map[string]domain.Medicine
	batches         map[string]domain.Batch
	sales           map[string]domain.Sale
	customers       map[string]domain.Customer
	expenses        map[string]domain.Expense
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
	devCredentials  bool
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store with the seed accounts only.
func New() *Store {
	return &Store{
		medicines:       make(map[string]domain.Medicine),
		batches:         make(map[string]domain.Batch),
		sales:           make(map[string]domain.Sale),
		customers:       make(map[string]domain.Customer),
		expenses:        make(map[string]domain.Expense),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
		devCredentials:  os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "",
	}
}

// UsesDevCredentials reports whether a seed account fell back to its default password.
func (s *Store) UsesDevCredentials() bool {
	return s.devCredentials
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD, falling back to dev defaults.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			panic("memory: hash seed password for " + u.username + ": " + err.Error())
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with a small demo pharmacy for storeID.
func NewSeeded(storeID string) *Store {
	s := New()
	now := time.Now().UTC()
	today := inventory.Day(now)

	type seedBatch struct {
		number  string
		months  int
		qty     int
		cost    string
		selling string
	}
	seeds := []struct {
		name, category, manufacturer, shelf string
		batches                             []seedBatch
	}{
		{"Paracetamol 500mg", "Analgesic", "Cipla", "A1", []seedBatch{{"PCM-2401", 2, 40, "1.20", "2.00"}, {"PCM-2407", 14, 120, "1.10", "2.00"}}},
		{"Amoxicillin 250mg", "Antibiotic", "Sun Pharma", "B2", []seedBatch{{"AMX-2311", 1, 6, "4.50", "7.50"}}},
		{"Cetirizine 10mg", "Antihistamine", "Dr. Reddy's", "A3", []seedBatch{{"CTZ-2402", 9, 80, "0.80", "1.50"}}},
		{"ORS Sachet", "Hydration", "FDC", "C1", []seedBatch{{"ORS-2312", -1, 15, "8.00", "12.00"}, {"ORS-2406", 18, 50, "8.00", "12.00"}}},
		{"Vitamin C 500mg", "Supplement", "Abbott", "D4", nil},
	}

	for i, seed := range seeds {
		medicine := domain.Medicine{
			ID:           xid.New("med"),
			StoreID:      storeID,
			Name:         seed.name,
			Category:     seed.category,
			Manufacturer: seed.manufacturer,
			Shelf:        seed.shelf,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.medicines[medicine.ID] = medicine
		for j, b := range seed.batches {
			expiry := today.AddDate(0, b.months, 0)
			expiry = time.Date(expiry.Year(), expiry.Month(), 1, 0, 0, 0, 0, time.UTC)
			batch := domain.Batch{
				ID:            xid.New("bat"),
				StoreID:       storeID,
				MedicineID:    medicine.ID,
				BatchNumber:   b.number,
				ExpiryDate:    &expiry,
				Quantity:      b.qty,
				PurchasePrice: decimal.RequireFromString(b.cost),
				SellingPrice:  decimal.RequireFromString(b.selling),
				ReceivedAt:    now.Add(-time.Duration(len(seeds)-i) * time.Hour).Add(time.Duration(j) * time.Minute),
			}
			s.batches[batch.ID] = batch
		}
	}

	customer := domain.Customer{
		ID:        xid.New("cus"),
		StoreID:   storeID,
		Name:      "Walk-in Regular",
		Phone:     "9876543210",
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.customers[customer.ID] = customer
	return s
}

func (s *Store) CreateMedicine(_ context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
	s.medicines[medicine.ID] = medicine
	out := medicine
	return &out, nil
}

func (s *Store) GetMedicine(_ context.Context, storeID string, medicineID string) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	medicine, ok := s.medicines[medicineID]
	if !ok || medicine.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	return &medicine, nil
}

func (s *Store) FindMedicineByName(_ context.Context, storeID string, name string) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.TrimSpace(name)
	for _, medicine := range s.medicines {
		if medicine.StoreID == storeID && medicine.Name == name {
			out := medicine
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListMedicines(_ context.Context, storeID string) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Medicine, 0, len(s.medicines))
	for _, medicine := range s.medicines {
		if medicine.StoreID == storeID {
			result = append(result, medicine)
		}
	}
	slices.SortFunc(result, func(a, b domain.Medicine) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) UpdateMedicine(_ context.Context, medicine domain.Medicine) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.medicines[medicine.ID]
	if !ok || existing.StoreID != medicine.StoreID {
		return nil, store.ErrNotFound
	}
	medicine.CreatedAt = existing.CreatedAt
	medicine.UpdatedAt = time.Now().UTC()
	s.medicines[medicine.ID] = medicine
	out := medicine
	return &out, nil
}

func (s *Store) DeleteMedicine(_ context.Context, storeID string, medicineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	medicine, ok := s.medicines[medicineID]
	if !ok || medicine.StoreID != storeID {
		return store.ErrNotFound
	}
	for id, batch := range s.batches {
		if batch.MedicineID == medicineID {
			delete(s.batches, id)
		}
	}
	delete(s.medicines, medicineID)
	return nil
}

func (s *Store) AddBatch(_ context.Context, batch domain.Batch) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	medicine, ok := s.medicines[batch.MedicineID]
	if !ok || medicine.StoreID != batch.StoreID {
		return nil, store.ErrNotFound
	}
	if batch.Quantity < 0 {
		return nil, store.Invalid("quantity must not be negative")
	}
	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	s.batches[batch.ID] = batch
	return cloneBatch(batch), nil
}

func (s *Store) GetBatch(_ context.Context, storeID string, batchID string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.batches[batchID]
	if !ok || batch.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	return cloneBatch(batch), nil
}

func (s *Store) UpdateBatch(_ context.Context, storeID string, batchID string, patch domain.BatchPatch) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchID]
	if !ok || batch.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	updated, err := applyPatch(batch, patch)
	if err != nil {
		return nil, err
	}
	s.batches[batchID] = updated
	return cloneBatch(updated), nil
}

func (s *Store) UpdateBatchQuantity(_ context.Context, storeID string, batchID string, quantity int) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchID]
	if !ok || batch.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	if quantity < 0 {
		return nil, store.Invalid("quantity must not be negative")
	}
	batch.Quantity = quantity
	s.batches[batchID] = batch
	return cloneBatch(batch), nil
}

func (s *Store) DeleteBatch(_ context.Context, storeID string, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[batchID]
	if !ok || batch.StoreID != storeID {
		return store.ErrNotFound
	}
	delete(s.batches, batchID)
	return nil
}

func (s *Store) ListBatches(_ context.Context, storeID string, medicineID string) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.batchesFor(storeID, medicineID), nil
}

func (s *Store) ListStoreBatches(_ context.Context, storeID string) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.batchesFor(storeID, ""), nil
}

func (s *Store) Allocate(_ context.Context, storeID string, medicineID string, quantity int) ([]domain.Deduction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	medicine, ok := s.medicines[medicineID]
	if !ok || medicine.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	batches := s.batchesFor(storeID, medicineID)
	plan, err := inventory.PlanFEFO(medicineID, batches, quantity)
	if err != nil {
		return nil, err
	}
	updated, err := inventory.ApplyDeductions(batches, plan)
	if err != nil {
		return nil, err
	}
	for _, batch := range updated {
		s.batches[batch.ID] = batch
	}
	return plan, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Lines) == 0 {
		return nil, store.Invalid("sale has no lines")
	}
	sale = cloneSale(sale)

	var customer domain.Customer
	if sale.CustomerID != "" {
		existing, ok := s.customers[sale.CustomerID]
		if !ok || existing.StoreID != sale.StoreID {
			return nil, store.ErrNotFound
		}
		customer = existing
		sale.CustomerName = existing.Name
	}

	// Plan every line against a working copy so nothing is written unless all
	// lines can be filled.
	working := make(map[string]domain.Batch)
	for i, line := range sale.Lines {
		medicine, ok := s.medicines[line.MedicineID]
		if !ok || medicine.StoreID != sale.StoreID {
			return nil, store.ErrNotFound
		}
		batches := s.batchesFor(sale.StoreID, line.MedicineID)
		for j, batch := range batches {
			if pending, ok := working[batch.ID]; ok {
				batches[j] = pending
			}
		}
		plan, err := inventory.PlanFEFO(line.MedicineID, batches, line.Quantity)
		if err != nil {
			return nil, err
		}
		updated, err := inventory.ApplyDeductions(batches, plan)
		if err != nil {
			return nil, err
		}
		for _, batch := range updated {
			working[batch.ID] = batch
		}
		sale.Lines[i].MedicineName = medicine.Name
		sale.Lines[i].Deductions = plan
	}

	for id, batch := range working {
		s.batches[id] = batch
	}

	if sale.ID == "" {
		sale.ID = xid.New("inv")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.CustomerID != "" && sale.BalanceDue.IsPositive() {
		customer.Balance = customer.Balance.Add(sale.BalanceDue)
		customer.UpdatedAt = sale.CreatedAt
		s.customers[customer.ID] = customer
	}

	s.sales[sale.ID] = cloneSale(sale)
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, storeID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[saleID]
	if !ok || sale.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, storeID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if sale.StoreID != storeID {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !sale.CreatedAt.Before(filter.To) {
			continue
		}
		result = append(result, cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	now := time.Now().UTC()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now
	s.customers[customer.ID] = customer
	out := customer
	return &out, nil
}

func (s *Store) GetCustomer(_ context.Context, storeID string, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[customerID]
	if !ok || customer.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[customer.ID]
	if !ok || existing.StoreID != customer.StoreID {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = time.Now().UTC()
	s.customers[customer.ID] = customer
	out := customer
	return &out, nil
}

func (s *Store) DeleteCustomer(_ context.Context, storeID string, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[customerID]
	if !ok || customer.StoreID != storeID {
		return store.ErrNotFound
	}
	delete(s.customers, customerID)
	return nil
}

func (s *Store) ListCustomers(_ context.Context, storeID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		if customer.StoreID == storeID {
			result = append(result, customer)
		}
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expenses[expense.ID] = expense
	out := expense
	return &out, nil
}

func (s *Store) GetExpense(_ context.Context, storeID string, expenseID string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expense, ok := s.expenses[expenseID]
	if !ok || expense.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	return &expense, nil
}

func (s *Store) UpdateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expenses[expense.ID]
	if !ok || existing.StoreID != expense.StoreID {
		return nil, store.ErrNotFound
	}
	expense.CreatedAt = existing.CreatedAt
	s.expenses[expense.ID] = expense
	out := expense
	return &out, nil
}

func (s *Store) DeleteExpense(_ context.Context, storeID string, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expense, ok := s.expenses[expenseID]
	if !ok || expense.StoreID != storeID {
		return store.ErrNotFound
	}
	delete(s.expenses, expenseID)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, storeID string) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, 0, len(s.expenses))
	for _, expense := range s.expenses {
		if expense.StoreID == storeID {
			result = append(result, expense)
		}
	}
	slices.SortFunc(result, func(a, b domain.Expense) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username and password are required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.Invalid("username already exists")
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("username and password are required")
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// batchesFor must be called with s.mu held. An empty medicineID returns every
// batch of the store.
func (s *Store) batchesFor(storeID string, medicineID string) []domain.Batch {
	result := make([]domain.Batch, 0, 8)
	for _, batch := range s.batches {
		if batch.StoreID != storeID {
			continue
		}
		if medicineID != "" && batch.MedicineID != medicineID {
			continue
		}
		result = append(result, *cloneBatch(batch))
	}
	slices.SortFunc(result, func(a, b domain.Batch) int {
		if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result
}

func applyPatch(batch domain.Batch, patch domain.BatchPatch) (domain.Batch, error) {
	if patch.Quantity != nil {
		if *patch.Quantity < 0 {
			return batch, store.Invalid("quantity must not be negative")
		}
		batch.Quantity = *patch.Quantity
	}
	if patch.BatchNumber != nil {
		batch.BatchNumber = strings.TrimSpace(*patch.BatchNumber)
	}
	if patch.ClearExpiry {
		batch.ExpiryDate = nil
	} else if patch.ExpiryDate != nil {
		expiry := *patch.ExpiryDate
		batch.ExpiryDate = &expiry
	}
	if patch.PurchasePrice != nil {
		batch.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SellingPrice != nil {
		batch.SellingPrice = *patch.SellingPrice
	}
	return batch, nil
}

func cloneBatch(src domain.Batch) *domain.Batch {
	dup := src
	if src.ExpiryDate != nil {
		expiry := *src.ExpiryDate
		dup.ExpiryDate = &expiry
	}
	return &dup
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	dup.Lines = make([]domain.SaleLine, len(src.Lines))
	for i, line := range src.Lines {
		dup.Lines[i] = line
		dup.Lines[i].Deductions = slices.Clone(line.Deductions)
	}
	return dup
}
