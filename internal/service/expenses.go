package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medshop/backend/internal/billing"
	"medshop/backend/internal/domain"
	"medshop/backend/internal/store"
)

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (*domain.Expense, error) {
	date, err := s.expenseDate(req.Date)
	if err != nil {
		return nil, err
	}
	expense := domain.Expense{
		StoreID:     s.storeID,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Category:    strings.TrimSpace(req.Category),
		Date:        date,
	}
	if err := validateExpense(expense); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "expense", created.ID, fmt.Sprintf("%s %s", created.Category, created.Amount.StringFixed(2)))
	s.invalidateDashboard(ctx)
	return created, nil
}

func (s *Service) UpdateExpense(ctx context.Context, expenseID string, req domain.ExpenseUpdateRequest) (*domain.Expense, error) {
	expense, err := s.repo.GetExpense(ctx, s.storeID, expenseID)
	if err != nil {
		return nil, err
	}
	if req.Description != nil {
		expense.Description = strings.TrimSpace(*req.Description)
	}
	if req.Amount != nil {
		expense.Amount = *req.Amount
	}
	if req.Category != nil {
		expense.Category = strings.TrimSpace(*req.Category)
	}
	if req.Date != nil {
		date, err := s.expenseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		expense.Date = date
	}
	if err := validateExpense(*expense); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateExpense(ctx, *expense)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "expense", updated.ID, fmt.Sprintf("%s %s", updated.Category, updated.Amount.StringFixed(2)))
	s.invalidateDashboard(ctx)
	return updated, nil
}

func (s *Service) DeleteExpense(ctx context.Context, expenseID string) error {
	if err := s.repo.DeleteExpense(ctx, s.storeID, expenseID); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "expense", expenseID, "")
	s.invalidateDashboard(ctx)
	return nil
}

// ListExpenses returns expenses newest first, optionally filtered by a search
// over description and category.
func (s *Service) ListExpenses(ctx context.Context, search string) ([]domain.Expense, error) {
	expenses, err := s.repo.ListExpenses(ctx, s.storeID)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return expenses, nil
	}
	matched := make([]domain.Expense, 0, len(expenses))
	for _, expense := range expenses {
		if strings.Contains(strings.ToLower(expense.Description), needle) ||
			strings.Contains(strings.ToLower(expense.Category), needle) {
			matched = append(matched, expense)
		}
	}
	return matched, nil
}

func (s *Service) ExpenseStats(ctx context.Context) (domain.ExpenseStats, error) {
	expenses, err := s.repo.ListExpenses(ctx, s.storeID)
	if err != nil {
		return domain.ExpenseStats{}, err
	}
	return summarizeExpenses(expenses, s.today()), nil
}

// summarizeExpenses computes the totals, the top five categories and the six
// calendar months ending with today's month.
func summarizeExpenses(expenses []domain.Expense, today time.Time) domain.ExpenseStats {
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstMonth := monthStart.AddDate(0, -5, 0)

	stats := domain.ExpenseStats{Total: decimal.Zero, ThisMonth: decimal.Zero}
	byCategory := make(map[string]decimal.Decimal)
	byMonth := make(map[string]decimal.Decimal)
	for _, expense := range expenses {
		stats.Total = stats.Total.Add(expense.Amount)
		if !expense.Date.Before(monthStart) {
			stats.ThisMonth = stats.ThisMonth.Add(expense.Amount)
		}
		byCategory[expense.Category] = byCategory[expense.Category].Add(expense.Amount)
		if !expense.Date.Before(firstMonth) {
			key := expense.Date.Format("2006-01")
			byMonth[key] = byMonth[key].Add(expense.Amount)
		}
	}

	stats.ByCategory = make([]domain.CategoryAmount, 0, len(byCategory))
	for category, amount := range byCategory {
		stats.ByCategory = append(stats.ByCategory, domain.CategoryAmount{Category: category, Amount: amount})
	}
	slices.SortFunc(stats.ByCategory, func(a, b domain.CategoryAmount) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	if len(stats.ByCategory) > 5 {
		stats.ByCategory = stats.ByCategory[:5]
	}

	stats.Monthly = make([]domain.MonthAmount, 0, 6)
	for month := firstMonth; !month.After(monthStart); month = month.AddDate(0, 1, 0) {
		key := month.Format("2006-01")
		amount, ok := byMonth[key]
		if !ok {
			amount = decimal.Zero
		}
		stats.Monthly = append(stats.Monthly, domain.MonthAmount{Month: key, Amount: amount})
	}
	return stats
}

func (s *Service) expenseDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return s.today(), nil
	}
	return parseDay("date", raw)
}

func validateExpense(expense domain.Expense) error {
	if expense.Description == "" {
		return store.Invalid("description is required")
	}
	if !expense.Amount.IsPositive() {
		return store.Invalid("amount must be greater than zero")
	}
	if err := billing.CheckAmount("amount", expense.Amount); err != nil {
		return err
	}
	if !slices.Contains(domain.ExpenseCategories, expense.Category) {
		return store.Invalid("category must be one of %s", strings.Join(domain.ExpenseCategories, ", "))
	}
	return nil
}
