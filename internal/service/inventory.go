package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"medshop/backend/internal/billing"
	"medshop/backend/internal/domain"
	"medshop/backend/internal/inventory"
	"medshop/backend/internal/store"
)

func (s *Service) GetStockSummary(ctx context.Context, medicineID string) (domain.StockSummary, error) {
	medicine, err := s.repo.GetMedicine(ctx, s.storeID, medicineID)
	if err != nil {
		return domain.StockSummary{}, err
	}
	batches, err := s.repo.ListBatches(ctx, s.storeID, medicineID)
	if err != nil {
		return domain.StockSummary{}, err
	}
	return inventory.Summarize(*medicine, batches, s.today()), nil
}

func (s *Service) GetMedicineDetail(ctx context.Context, medicineID string) (domain.MedicineDetail, error) {
	medicine, err := s.repo.GetMedicine(ctx, s.storeID, medicineID)
	if err != nil {
		return domain.MedicineDetail{}, err
	}
	batches, err := s.repo.ListBatches(ctx, s.storeID, medicineID)
	if err != nil {
		return domain.MedicineDetail{}, err
	}
	slices.SortFunc(batches, inventory.CompareFEFO)
	return domain.MedicineDetail{
		Medicine: *medicine,
		Batches:  batches,
		Summary:  inventory.Summarize(*medicine, batches, s.today()),
	}, nil
}

// AddStock receives a delivery. The medicine is matched by exact name and
// created when missing; a new batch is recorded either way.
func (s *Service) AddStock(ctx context.Context, req domain.AddStockRequest) (domain.AddStockResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.AddStockResponse{}, store.Invalid("name is required")
	}
	if err := validateThreshold(req.LowStockThreshold); err != nil {
		return domain.AddStockResponse{}, err
	}
	batch, err := s.batchFromRequest(domain.BatchCreateRequest{
		BatchNumber:   req.BatchNumber,
		ExpiryDate:    req.ExpiryDate,
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
	})
	if err != nil {
		return domain.AddStockResponse{}, err
	}

	created := false
	medicine, err := s.repo.FindMedicineByName(ctx, s.storeID, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		medicine, err = s.repo.CreateMedicine(ctx, domain.Medicine{
			StoreID:           s.storeID,
			Name:              name,
			Category:          strings.TrimSpace(req.Category),
			Manufacturer:      strings.TrimSpace(req.Manufacturer),
			Shelf:             strings.TrimSpace(req.Shelf),
			LowStockThreshold: req.LowStockThreshold,
		})
		if err != nil {
			return domain.AddStockResponse{}, err
		}
		created = true
		s.logAudit(ctx, "create", "medicine", medicine.ID, medicine.Name)
	case err != nil:
		return domain.AddStockResponse{}, err
	}

	batch.MedicineID = medicine.ID
	added, err := s.repo.AddBatch(ctx, batch)
	if err != nil {
		return domain.AddStockResponse{}, err
	}
	s.logAudit(ctx, "add_stock", "batch", added.ID, fmt.Sprintf("%s +%d", medicine.Name, added.Quantity))
	s.invalidateDashboard(ctx)

	summary, err := s.GetStockSummary(ctx, medicine.ID)
	if err != nil {
		return domain.AddStockResponse{}, err
	}
	return domain.AddStockResponse{
		Medicine:        *medicine,
		Batch:           *added,
		MedicineCreated: created,
		Summary:         summary,
	}, nil
}

func (s *Service) AddBatch(ctx context.Context, medicineID string, req domain.BatchCreateRequest) (*domain.Batch, error) {
	batch, err := s.batchFromRequest(req)
	if err != nil {
		return nil, err
	}
	batch.MedicineID = medicineID
	added, err := s.repo.AddBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "batch", added.ID, fmt.Sprintf("medicine %s qty %d", medicineID, added.Quantity))
	s.invalidateDashboard(ctx)
	return added, nil
}

func (s *Service) UpdateBatch(ctx context.Context, batchID string, req domain.BatchUpdateRequest) (*domain.Batch, error) {
	patch := domain.BatchPatch{
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
	}
	if req.BatchNumber != nil {
		number := strings.TrimSpace(*req.BatchNumber)
		patch.BatchNumber = &number
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		return nil, store.Invalid("quantity must not be negative")
	}
	if req.ExpiryDate != nil {
		expiry, err := inventory.ParseExpiry(*req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		if expiry == nil {
			patch.ClearExpiry = true
		}
		patch.ExpiryDate = expiry
	}
	if req.PurchasePrice != nil {
		if err := billing.CheckAmount("purchase_price", *req.PurchasePrice); err != nil {
			return nil, err
		}
	}
	if req.SellingPrice != nil {
		if err := billing.CheckAmount("selling_price", *req.SellingPrice); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.UpdateBatch(ctx, s.storeID, batchID, patch)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "batch", updated.ID, fmt.Sprintf("qty %d expiry %s", updated.Quantity, inventory.FormatDate(updated.ExpiryDate)))
	s.invalidateDashboard(ctx)
	return updated, nil
}

func (s *Service) DeleteBatch(ctx context.Context, batchID string) error {
	if err := s.repo.DeleteBatch(ctx, s.storeID, batchID); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "batch", batchID, "")
	s.invalidateDashboard(ctx)
	return nil
}

// ListBatches returns a medicine's batches in the order a sale would draw them.
func (s *Service) ListBatches(ctx context.Context, medicineID string) ([]domain.Batch, error) {
	if _, err := s.repo.GetMedicine(ctx, s.storeID, medicineID); err != nil {
		return nil, err
	}
	batches, err := s.repo.ListBatches(ctx, s.storeID, medicineID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(batches, inventory.CompareFEFO)
	return batches, nil
}

func (s *Service) UpdateMedicine(ctx context.Context, medicineID string, req domain.MedicineUpdateRequest) (*domain.Medicine, error) {
	medicine, err := s.repo.GetMedicine(ctx, s.storeID, medicineID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, store.Invalid("name must not be empty")
		}
		medicine.Name = name
	}
	if req.Category != nil {
		medicine.Category = strings.TrimSpace(*req.Category)
	}
	if req.Manufacturer != nil {
		medicine.Manufacturer = strings.TrimSpace(*req.Manufacturer)
	}
	if req.Shelf != nil {
		medicine.Shelf = strings.TrimSpace(*req.Shelf)
	}
	switch {
	case req.ResetThreshold:
		medicine.LowStockThreshold = nil
	case req.LowStockThreshold != nil:
		if err := validateThreshold(req.LowStockThreshold); err != nil {
			return nil, err
		}
		threshold := *req.LowStockThreshold
		medicine.LowStockThreshold = &threshold
	}

	updated, err := s.repo.UpdateMedicine(ctx, *medicine)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "medicine", updated.ID, updated.Name)
	s.invalidateDashboard(ctx)
	return updated, nil
}

func (s *Service) DeleteMedicine(ctx context.Context, medicineID string) error {
	if err := s.repo.DeleteMedicine(ctx, s.storeID, medicineID); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "medicine", medicineID, "")
	s.invalidateDashboard(ctx)
	return nil
}

// ListInventory summarizes every medicine and applies the list filters.
func (s *Service) ListInventory(ctx context.Context, query domain.InventoryQuery) (domain.InventoryPage, error) {
	stockFilter := strings.ToLower(strings.TrimSpace(query.Stock))
	if stockFilter == "" {
		stockFilter = domain.StockFilterAll
	}
	if !slices.Contains([]string{domain.StockFilterAll, domain.StockFilterLow, domain.StockFilterOut, domain.StockFilterHealthy}, stockFilter) {
		return domain.InventoryPage{}, store.Invalid("unknown stock filter %q", query.Stock)
	}
	expiryFilter := strings.ToLower(strings.TrimSpace(query.Expiry))
	if expiryFilter == "" {
		expiryFilter = domain.ExpiryFilterAll
	}
	if !slices.Contains([]string{domain.ExpiryFilterAll, domain.ExpiryFilterExpired, domain.ExpiryFilterNear}, expiryFilter) {
		return domain.InventoryPage{}, store.Invalid("unknown expiry filter %q", query.Expiry)
	}

	summaries, err := s.summarizeAll(ctx)
	if err != nil {
		return domain.InventoryPage{}, err
	}

	search := strings.ToLower(strings.TrimSpace(query.Search))
	category := strings.TrimSpace(query.Category)
	matched := make([]domain.StockSummary, 0, len(summaries))
	for _, summary := range summaries {
		if search != "" && !strings.Contains(strings.ToLower(summary.Medicine.Name), search) {
			continue
		}
		if category != "" && !strings.EqualFold(summary.Medicine.Category, category) {
			continue
		}
		if !matchesStock(summary, stockFilter) || !matchesExpiry(summary, expiryFilter) {
			continue
		}
		matched = append(matched, summary)
	}

	page, size := normalizePage(query.Page, query.PageSize)
	return domain.InventoryPage{
		Items:    paginate(matched, page, size),
		Total:    len(matched),
		Page:     page,
		PageSize: size,
	}, nil
}

func matchesStock(summary domain.StockSummary, filter string) bool {
	switch filter {
	case domain.StockFilterOut:
		return summary.TotalStock == 0
	case domain.StockFilterLow:
		return summary.TotalStock > 0 && summary.TotalStock < summary.Threshold
	case domain.StockFilterHealthy:
		return summary.TotalStock >= summary.Threshold
	default:
		return true
	}
}

func matchesExpiry(summary domain.StockSummary, filter string) bool {
	switch filter {
	case domain.ExpiryFilterExpired:
		return summary.IsExpired
	case domain.ExpiryFilterNear:
		return summary.IsNearExpiryListing
	default:
		return true
	}
}

// SuggestMedicines returns up to five names for the billing search box, prefix
// matches first.
func (s *Service) SuggestMedicines(ctx context.Context, query string) ([]domain.StockSummary, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []domain.StockSummary{}, nil
	}
	summaries, err := s.summarizeAll(ctx)
	if err != nil {
		return nil, err
	}

	var prefix, contains []domain.StockSummary
	for _, summary := range summaries {
		name := strings.ToLower(summary.Medicine.Name)
		switch {
		case strings.HasPrefix(name, needle):
			prefix = append(prefix, summary)
		case strings.Contains(name, needle):
			contains = append(contains, summary)
		}
	}
	out := append(prefix, contains...)
	if len(out) > 5 {
		out = out[:5]
	}
	if out == nil {
		out = []domain.StockSummary{}
	}
	return out, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	medicines, err := s.repo.ListMedicines(ctx, s.storeID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, medicine := range medicines {
		if medicine.Category == "" {
			continue
		}
		if _, ok := seen[medicine.Category]; ok {
			continue
		}
		seen[medicine.Category] = struct{}{}
		categories = append(categories, medicine.Category)
	}
	slices.Sort(categories)
	return categories, nil
}

// summarizeAll returns one summary per medicine, sorted by name.
func (s *Service) summarizeAll(ctx context.Context) ([]domain.StockSummary, error) {
	medicines, err := s.repo.ListMedicines(ctx, s.storeID)
	if err != nil {
		return nil, err
	}
	batches, err := s.repo.ListStoreBatches(ctx, s.storeID)
	if err != nil {
		return nil, err
	}
	grouped := inventory.GroupByMedicine(batches)
	today := s.today()

	summaries := make([]domain.StockSummary, 0, len(medicines))
	for _, medicine := range medicines {
		summaries = append(summaries, inventory.Summarize(medicine, grouped[medicine.ID], today))
	}
	slices.SortFunc(summaries, func(a, b domain.StockSummary) int {
		if c := strings.Compare(strings.ToLower(a.Medicine.Name), strings.ToLower(b.Medicine.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Medicine.ID, b.Medicine.ID)
	})
	return summaries, nil
}

func (s *Service) batchFromRequest(req domain.BatchCreateRequest) (domain.Batch, error) {
	if req.Quantity < 0 {
		return domain.Batch{}, store.Invalid("quantity must not be negative")
	}
	if err := billing.CheckAmount("purchase_price", req.PurchasePrice); err != nil {
		return domain.Batch{}, err
	}
	if err := billing.CheckAmount("selling_price", req.SellingPrice); err != nil {
		return domain.Batch{}, err
	}
	expiry, err := inventory.ParseExpiry(req.ExpiryDate)
	if err != nil {
		return domain.Batch{}, err
	}
	return domain.Batch{
		StoreID:       s.storeID,
		BatchNumber:   strings.TrimSpace(req.BatchNumber),
		ExpiryDate:    expiry,
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		SellingPrice:  req.SellingPrice,
		ReceivedAt:    s.now().UTC(),
	}, nil
}

func validateThreshold(threshold *int) error {
	if threshold != nil && *threshold < 0 {
		return store.Invalid("low_stock_threshold must not be negative")
	}
	return nil
}
