package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	settlement "hivegrid/internal/settlement/domain"
)

// BuildJournalCSV renders journal entries as CSV.
func BuildJournalCSV(entries []settlement.JournalEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"meter", "hive", "slot", "period", "net_amount", "settled_at"}); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		record := []string{
			entry.Meter,
			entry.Hive,
			strconv.Itoa(int(entry.Slot)),
			periodLabel(entry.Slot),
			strconv.FormatInt(entry.Net, 10),
			entry.SettledAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildJournalXLSX renders journal entries as a minimal XLSX workbook.
func BuildJournalXLSX(entries []settlement.JournalEntry) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "journal"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Meter")
	_ = f.SetCellValue(sheet, "B1", "Hive")
	_ = f.SetCellValue(sheet, "C1", "Slot")
	_ = f.SetCellValue(sheet, "D1", "Period")
	_ = f.SetCellValue(sheet, "E1", "Net Amount")
	_ = f.SetCellValue(sheet, "F1", "Settled At")
	for i, entry := range entries {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), entry.Meter)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), entry.Hive)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), int(entry.Slot))
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), periodLabel(entry.Slot))
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), entry.Net)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), entry.SettledAt.Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildJournalPDF renders journal entries as a minimal PDF table.
func BuildJournalPDF(entries []settlement.JournalEntry) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Settlement Journal")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Entries: %d", len(entries)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 8)
	pdf.CellFormat(60, 6, "Meter", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Hive", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Period", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Net Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for _, entry := range entries {
		pdf.CellFormat(60, 6, entry.Meter, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, entry.Hive, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, periodLabel(entry.Slot), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, strconv.FormatInt(entry.Net, 10), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func periodLabel(slot settlement.Slot) string {
	return fmt.Sprintf("%04d-%02d", slot.Year(), int(slot.Month()))
}
