package inventory

import (
	"slices"
	"time"

	"medshop/backend/internal/domain"
)

// Summarize derives the stock summary of a medicine from its batches. It does
// not mutate its inputs and returns the same result for the same arguments.
func Summarize(medicine domain.Medicine, batches []domain.Batch, today time.Time) domain.StockSummary {
	day := Day(today)
	summary := domain.StockSummary{
		Medicine:   medicine,
		Threshold:  medicine.Threshold(),
		BatchCount: len(batches),
	}

	for _, batch := range batches {
		summary.TotalStock += batch.Quantity
		if batch.Quantity <= 0 || batch.ExpiryDate == nil {
			continue
		}
		if summary.NearestExpiry == nil || batch.ExpiryDate.Before(*summary.NearestExpiry) {
			nearest := Day(*batch.ExpiryDate)
			summary.NearestExpiry = &nearest
		}
	}

	if first, ok := FirstAvailable(batches); ok {
		price := first.SellingPrice
		summary.UnitPrice = &price
	}

	summary.IsOutOfStock = summary.TotalStock == 0
	summary.IsLowStock = summary.TotalStock < summary.Threshold
	summary.IsExpired = summary.NearestExpiry != nil && summary.NearestExpiry.Before(day)
	summary.IsNearExpiry = expiresWithin(summary.NearestExpiry, day, domain.DashboardExpiryWindowDays)
	summary.IsNearExpiryListing = expiresWithin(summary.NearestExpiry, day, domain.ListingExpiryWindowDays)
	return summary
}

// ExpiresWithin reports whether the summary's nearest expiry falls in
// [today, today+days).
func ExpiresWithin(summary domain.StockSummary, today time.Time, days int) bool {
	return expiresWithin(summary.NearestExpiry, Day(today), days)
}

func expiresWithin(expiry *time.Time, day time.Time, days int) bool {
	if expiry == nil {
		return false
	}
	return !expiry.Before(day) && expiry.Before(day.AddDate(0, 0, days))
}

// FirstAvailable returns the batch FEFO would sell from first.
func FirstAvailable(batches []domain.Batch) (domain.Batch, bool) {
	usable := inStock(batches)
	if len(usable) == 0 {
		return domain.Batch{}, false
	}
	return slices.MinFunc(usable, CompareFEFO), true
}

// GroupByMedicine buckets a flat batch list by medicine id.
func GroupByMedicine(batches []domain.Batch) map[string][]domain.Batch {
	grouped := make(map[string][]domain.Batch)
	for _, batch := range batches {
		grouped[batch.MedicineID] = append(grouped[batch.MedicineID], batch)
	}
	return grouped
}
