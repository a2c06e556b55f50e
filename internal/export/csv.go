// Package export renders a ready job's transactions as downloadable files.
package export

import (
	"fmt"

	"github.com/gocarina/gocsv"

	"github.com/dvloznov/statement-insights/internal/statement"
)

// csvRow fixes the CSV column set and order. Amounts are signed and always
// carry two decimal places so spreadsheet imports behave.
type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Type        string `csv:"type"`
	Category    string `csv:"category"`
}

// CSV renders transactions in statement order. The output is deterministic:
// the same transactions always produce byte-identical CSV.
func CSV(txs []statement.Transaction) ([]byte, error) {
	rows := make([]csvRow, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, csvRow{
			Date:        t.Date.String(),
			Description: t.Description,
			Amount:      t.Amount.StringFixed(2),
			Type:        string(t.Type),
			Category:    t.Category,
		})
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("export: marshal csv: %w", err)
	}
	return out, nil
}

// Filename derives the download filename for a job's export.
func Filename(jobID, ext string) string {
	return fmt.Sprintf("transactions-%s.%s", jobID, ext)
}
