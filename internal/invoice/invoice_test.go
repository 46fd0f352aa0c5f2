package invoice

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"medshop/backend/internal/domain"
)

func TestRenderProducesPDF(t *testing.T) {
	sale := domain.Sale{
		ID:        "inv-1",
		CreatedAt: time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC),
		Lines: []domain.SaleLine{{
			MedicineName: "Paracetamol 500mg",
			Quantity:     5,
			UnitPrice:    decimal.RequireFromString("2.00"),
			LineTotal:    decimal.RequireFromString("10.00"),
			Deductions:   []domain.Deduction{{BatchID: "bat-1", BatchNumber: "PCM-01", Quantity: 3}, {BatchID: "bat-2", Quantity: 2}},
		}},
		Subtotal:      decimal.RequireFromString("10"),
		Total:         decimal.RequireFromString("10"),
		AmountPaid:    decimal.RequireFromString("4"),
		BalanceDue:    decimal.RequireFromString("6"),
		PaymentMethod: domain.PaymentCash,
	}

	var buf bytes.Buffer
	if err := Render(&buf, domain.Settings{ShopName: "MedShop"}, sale); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected a PDF document, got %q", buf.Bytes()[:min(buf.Len(), 16)])
	}
}

func TestBatchLabelFallsBackToID(t *testing.T) {
	got := batchLabel([]domain.Deduction{{BatchID: "bat-1", BatchNumber: "A1"}, {BatchID: "bat-2"}})
	if got != "A1, bat-2" {
		t.Fatalf("unexpected label %q", got)
	}
}
