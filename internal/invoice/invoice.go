package invoice

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shopspring/decimal"

	"medshop/backend/internal/domain"
)

// Render writes an A4 invoice for sale to w.
func Render(w io.Writer, shop domain.Settings, sale domain.Sale) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetTitle(fmt.Sprintf("Invoice %s", sale.ID), false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, tr(shop.ShopName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	if shop.ShopAddress != "" {
		pdf.CellFormat(190, 5, tr(shop.ShopAddress), "", 1, "C", false, 0, "")
	}
	if shop.ShopPhone != "" {
		pdf.CellFormat(190, 5, tr("Phone: "+shop.ShopPhone), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(95, 7, tr("Invoice: "+sale.ID), "1", 0, "L", true, 0, "")
	pdf.CellFormat(95, 7, "Date: "+sale.CreatedAt.Format("02-Jan-2006 03:04 PM"), "1", 1, "R", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	customer := sale.CustomerName
	if customer == "" {
		customer = "Walk-in"
	}
	pdf.CellFormat(95, 7, tr("Customer: "+customer), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, tr("Payment: "+sale.PaymentMethod), "RB", 1, "R", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(10, 7, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(70, 7, "Medicine", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Batch", "1", 0, "C", true, 0, "")
	pdf.CellFormat(15, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Rate", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Amount", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for i, line := range sale.Lines {
		pdf.CellFormat(10, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 6, tr(truncate(line.MedicineName, 38)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, tr(truncate(batchLabel(line.Deductions), 22)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", line.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, money(line.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, money(line.LineTotal), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	rows := []struct {
		label string
		value decimal.Decimal
	}{
		{"Subtotal", sale.Subtotal},
		{"Discount", sale.DiscountAmount.Neg()},
		{"Incl. tax", sale.Tax},
		{"Total", sale.Total},
		{"Paid", sale.AmountPaid},
	}
	for _, row := range rows {
		pdf.CellFormat(160, 6, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, money(row.value), "", 1, "R", false, 0, "")
	}

	if sale.BalanceDue.IsPositive() {
		pdf.SetFillColor(255, 200, 200)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(190, 9, "Balance Due: Rs. "+sale.BalanceDue.StringFixed(2), "1", 1, "C", true, 0, "")
	} else {
		pdf.SetFillColor(200, 255, 200)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(190, 9, "PAID", "1", 1, "C", true, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(190, 5, "Thank you. Please check expiry dates before use.", "", 1, "C", false, 0, "")

	return pdf.Output(w)
}

func batchLabel(deductions []domain.Deduction) string {
	label := ""
	for i, d := range deductions {
		if i > 0 {
			label += ", "
		}
		if d.BatchNumber != "" {
			label += d.BatchNumber
		} else {
			label += d.BatchID
		}
	}
	return label
}

func money(v decimal.Decimal) string {
	return "Rs. " + v.StringFixed(2)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
