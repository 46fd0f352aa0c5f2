package inventory

import (
	"slices"
	"strings"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/store"
)

// PlanFEFO decides which batches a sale of quantity units draws from. Batches are
// drained soonest expiry first; batches without an expiry date go last. The plan
// is all-or-nothing: when stock is short no deductions are returned.
func PlanFEFO(medicineID string, batches []domain.Batch, quantity int) ([]domain.Deduction, error) {
	if quantity <= 0 {
		return nil, store.Invalid("quantity must be greater than zero")
	}

	usable := inStock(batches)
	slices.SortFunc(usable, CompareFEFO)

	remaining := quantity
	deductions := make([]domain.Deduction, 0, len(usable))
	for _, batch := range usable {
		if remaining == 0 {
			break
		}
		take := min(batch.Quantity, remaining)
		deductions = append(deductions, domain.Deduction{
			BatchID:     batch.ID,
			BatchNumber: batch.BatchNumber,
			Quantity:    take,
		})
		remaining -= take
	}

	if remaining > 0 {
		return nil, &store.InsufficientStockError{
			MedicineID: medicineID,
			Requested:  quantity,
			Available:  quantity - remaining,
		}
	}
	return deductions, nil
}

// ApplyDeductions returns copies of batches with the plan subtracted. It fails
// if the plan references an unknown batch or would drive a quantity negative.
func ApplyDeductions(batches []domain.Batch, deductions []domain.Deduction) ([]domain.Batch, error) {
	updated := slices.Clone(batches)
	index := make(map[string]int, len(updated))
	for i, batch := range updated {
		index[batch.ID] = i
	}
	for _, deduction := range deductions {
		i, ok := index[deduction.BatchID]
		if !ok {
			return nil, store.ErrConflict
		}
		if updated[i].Quantity < deduction.Quantity {
			return nil, store.ErrConflict
		}
		updated[i].Quantity -= deduction.Quantity
	}
	return updated, nil
}

func CompareFEFO(a domain.Batch, b domain.Batch) int {
	if a.ExpiryDate == nil && b.ExpiryDate != nil {
		return 1
	}
	if a.ExpiryDate != nil && b.ExpiryDate == nil {
		return -1
	}
	if a.ExpiryDate != nil && b.ExpiryDate != nil {
		if c := a.ExpiryDate.Compare(*b.ExpiryDate); c != 0 {
			return c
		}
	}
	if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func inStock(batches []domain.Batch) []domain.Batch {
	usable := make([]domain.Batch, 0, len(batches))
	for _, batch := range batches {
		if batch.Quantity > 0 {
			usable = append(usable, batch)
		}
	}
	return usable
}
