package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-insights/internal/statement"
)

// XLSX renders transactions and the category summary as a two-sheet
// workbook. Amounts are written as numbers so spreadsheet formulas work on
// them directly.
func XLSX(job *statement.Job) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const txSheet = "Transactions"
	f.SetSheetName("Sheet1", txSheet)

	header := []any{"Date", "Description", "Amount", "Type", "Category"}
	if err := f.SetSheetRow(txSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("export: xlsx header: %w", err)
	}
	for i, t := range job.Transactions {
		amount, _ := t.Amount.Round(2).Float64()
		row := []any{t.Date.String(), t.Description, amount, string(t.Type), t.Category}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(txSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("export: xlsx row %d: %w", i+1, err)
		}
	}

	const sumSheet = "Summary"
	if _, err := f.NewSheet(sumSheet); err != nil {
		return nil, fmt.Errorf("export: xlsx summary sheet: %w", err)
	}
	sumHeader := []any{"Category", "Total"}
	if err := f.SetSheetRow(sumSheet, "A1", &sumHeader); err != nil {
		return nil, fmt.Errorf("export: xlsx summary header: %w", err)
	}
	for i, s := range job.Summary {
		total, _ := s.Total.Round(2).Float64()
		row := []any{s.Category, total}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sumSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("export: xlsx summary row %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
