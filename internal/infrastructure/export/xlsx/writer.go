package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/billed-app/billed/internal/core/domain"
)

const sheetName = "Notes de frais"

var header = []any{"Type", "Nom", "Date", "Montant", "TVA", "%", "Commentaire", "Statut", "Justificatif"}

// Writer renders bills as a single-sheet workbook. It implements ports.BillSheetWriter.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) WriteBills(out io.Writer, bills []domain.Bill) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, bill := range bills {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		row := []any{
			bill.Type,
			bill.Name,
			bill.Date,
			amountCell(bill.Amount),
			bill.VAT,
			bill.Pct,
			bill.Commentary,
			statusLabel(bill.Status),
			bill.FileName,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write bill row %d: %w", i, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "B", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func amountCell(amount *int) any {
	if amount == nil {
		return ""
	}
	return *amount
}

func statusLabel(status domain.BillStatus) string {
	switch status {
	case domain.BillStatusPending:
		return "En attente"
	case domain.BillStatusAccepted:
		return "Accepté"
	case domain.BillStatusRefused:
		return "Refusé"
	default:
		return string(status)
	}
}
