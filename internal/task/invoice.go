package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/phpdave11/gofpdf"
)

// InvoiceItem is one invoice line.
type InvoiceItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// InvoicePayload is the payload for TypeOrderInvoice tasks.
type InvoicePayload struct {
	OrderID     uuid.UUID     `json:"order_id"`
	Email       string        `json:"email"`
	FullName    string        `json:"full_name"`
	Items       []InvoiceItem `json:"items"`
	TotalAmount float64       `json:"total_amount"`
}

// NewInvoiceDefinition builds the invoice-rendering task definition.
// The rendered PDF is written to the spool directory named after the
// order; rendering is deterministic so a single retry is enough to cover
// transient filesystem errors.
func NewInvoiceDefinition(spoolDir string) Definition {
	return Definition{
		Type: TypeOrderInvoice,
		Retry: RetryPolicy{
			MaxAttempts: 2,
		},
		Handler: func(ctx context.Context, payload []byte) error {
			var p InvoicePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("invalid invoice payload: %w", err)
			}
			return renderInvoice(spoolDir, p)
		},
	}
}

// renderInvoice writes the order invoice PDF into the spool directory.
func renderInvoice(spoolDir string, p InvoicePayload) error {
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Invoice")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Order: %s", p.OrderID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Customer: %s <%s>", p.FullName, p.Email))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 7, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Unit price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, item := range p.Items {
		amount := float64(item.Quantity) * item.UnitPrice
		pdf.CellFormat(90, 7, item.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", amount), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(150, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", p.TotalAmount), "1", 1, "R", false, 0, "")

	path := filepath.Join(spoolDir, fmt.Sprintf("invoice-%s.pdf", p.OrderID))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write invoice PDF: %w", err)
	}

	return nil
}
