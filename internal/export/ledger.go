package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"didauday/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Ledger"

// LedgerExporter writes ledger entries for a period into an xlsx file
// under the configured export directory.
type LedgerExporter struct {
	dir string
}

func NewLedgerExporter(dir string) *LedgerExporter {
	if dir == "" {
		dir = "exports"
	}
	return &LedgerExporter{dir: dir}
}

// Export returns the path of the written file.
func (e *LedgerExporter) Export(entries []*models.PaymentRecord, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Ledger: %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "F1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"Date", "Kind", "Sender", "Receiver", "Amount", "Payment session"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 3
	var saleTotal, payoutTotal int64
	for _, rec := range entries {
		e.writeRow(f, row, rec)
		switch rec.Kind {
		case models.PaymentKindSale:
			saleTotal += rec.Amount
		case models.PaymentKindPayout:
			payoutTotal += rec.Amount
		}
		row++
	}

	// Итоговая строка
	totalCell, _ := excelize.CoordinatesToCellName(1, row+1)
	_ = f.SetCellValue(sheetName, totalCell, fmt.Sprintf("Sales: %s  Payouts: %s  Retained: %s",
		dollars(saleTotal), dollars(payoutTotal), dollars(saleTotal-payoutTotal)))

	_ = f.SetColWidth(sheetName, "A", "A", 20)
	_ = f.SetColWidth(sheetName, "B", "D", 25)
	_ = f.SetColWidth(sheetName, "E", "F", 18)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("ledger_%s_to_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}

func (e *LedgerExporter) writeRow(f *excelize.File, row int, rec *models.PaymentRecord) {
	values := []interface{}{
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
		rec.Kind,
		rec.SenderEmail,
		rec.ReceiverEmail,
		dollars(rec.Amount),
		rec.PaymentSessionID,
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheetName, cell, v)
	}
}

func dollars(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
