package service

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/store"
)

// customers created within this many days count as new in list stats
const newCustomerWindowDays = 30

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	customer := domain.Customer{
		StoreID:   s.storeID,
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Address:   strings.TrimSpace(req.Address),
		Balance:   decimal.Zero,
		CreatedAt: s.now().UTC(),
	}
	if req.Balance != nil {
		customer.Balance = *req.Balance
	}
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "customer", created.ID, created.Name)
	s.invalidateDashboard(ctx)
	return created, nil
}

func (s *Service) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, s.storeID, customerID)
}

func (s *Service) UpdateCustomer(ctx context.Context, customerID string, req domain.CustomerUpdateRequest) (*domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, s.storeID, customerID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		customer.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		customer.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		customer.Email = strings.TrimSpace(*req.Email)
	}
	if req.Address != nil {
		customer.Address = strings.TrimSpace(*req.Address)
	}
	if req.Balance != nil {
		customer.Balance = *req.Balance
	}
	if err := validateCustomer(*customer); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateCustomer(ctx, *customer)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "customer", updated.ID, "balance "+updated.Balance.StringFixed(2))
	s.invalidateDashboard(ctx)
	return updated, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, customerID string) error {
	if err := s.repo.DeleteCustomer(ctx, s.storeID, customerID); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "customer", customerID, "")
	s.invalidateDashboard(ctx)
	return nil
}

func (s *Service) ListCustomers(ctx context.Context, query domain.CustomerQuery) (domain.CustomerPage, error) {
	sortBy := strings.TrimSpace(query.Sort)
	if sortBy == "" {
		sortBy = domain.CustomerSortName
	}
	if !slices.Contains([]string{domain.CustomerSortName, domain.CustomerSortBalance, domain.CustomerSortRecent}, sortBy) {
		return domain.CustomerPage{}, store.Invalid("unknown sort %q", query.Sort)
	}

	customers, err := s.repo.ListCustomers(ctx, s.storeID)
	if err != nil {
		return domain.CustomerPage{}, err
	}

	search := strings.ToLower(strings.TrimSpace(query.Search))
	matched := make([]domain.Customer, 0, len(customers))
	outstanding := decimal.Zero
	newSince := s.now().UTC().AddDate(0, 0, -newCustomerWindowDays)
	newCount := 0
	for _, customer := range customers {
		if !customer.CreatedAt.Before(newSince) {
			newCount++
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(customer.Name), search) &&
			!strings.Contains(strings.ToLower(customer.Phone), search) &&
			!strings.Contains(strings.ToLower(customer.Email), search) {
			continue
		}
		matched = append(matched, customer)
		if customer.Balance.IsPositive() {
			outstanding = outstanding.Add(customer.Balance)
		}
	}

	slices.SortStableFunc(matched, func(a, b domain.Customer) int {
		switch sortBy {
		case domain.CustomerSortBalance:
			if c := b.Balance.Cmp(a.Balance); c != 0 {
				return c
			}
		case domain.CustomerSortRecent:
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	page, size := normalizePage(query.Page, query.PageSize)
	return domain.CustomerPage{
		Items:            paginate(matched, page, size),
		Total:            len(matched),
		Page:             page,
		PageSize:         size,
		TotalOutstanding: outstanding,
		NewLast30Days:    newCount,
	}, nil
}

// CustomerSales is the purchase history of one customer, newest first.
func (s *Service) CustomerSales(ctx context.Context, customerID string, limit int) ([]domain.Sale, error) {
	if _, err := s.repo.GetCustomer(ctx, s.storeID, customerID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListSales(ctx, s.storeID, domain.SaleFilter{CustomerID: customerID, Limit: limit})
}

func validateCustomer(customer domain.Customer) error {
	if customer.Name == "" {
		return store.Invalid("name is required")
	}
	if customer.Phone == "" {
		return store.Invalid("phone is required")
	}
	if customer.Email != "" && !strings.Contains(customer.Email, "@") {
		return store.Invalid("email %q is not valid", customer.Email)
	}
	if !customer.Balance.Equal(customer.Balance.Round(2)) {
		return store.Invalid("balance must have at most 2 decimal places")
	}
	return nil
}
