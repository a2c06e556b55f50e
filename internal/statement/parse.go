package statement

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order when resolving a printed statement date.
// ISO first, then the unambiguous long forms, then day-first numeric (UK
// statements), then month-day without a year.
var dateLayouts = []string{
	"2006-01-02",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02/01/2006",
	"02-01-2006",
	"01/02",
	"Jan 2",
}

// ParseDate resolves a printed date string to a calendar date. Layouts
// without a year use fallbackYear (typically the statement or upload year).
func ParseDate(s string, fallbackYear int) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := civil.DateOf(t)
		if d.Year == 0 {
			d.Year = fallbackYear
		}
		if !d.IsValid() {
			continue
		}
		return d, nil
	}
	return civil.Date{}, fmt.Errorf("unrecognized date format %q", s)
}

// ParseAmount parses a printed amount into a decimal, tolerating thousands
// separators, currency symbols, and parenthesized negatives. It rejects
// values with more than two fractional digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", "£", "", "€", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unparseable amount %q: %w", s, err)
	}
	if d.Exponent() < -2 {
		return decimal.Decimal{}, fmt.Errorf("amount %q has more than 2 fractional digits", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseType normalizes a printed transaction type. Anything that reads as a
// credit ("credit", "cr", "in") maps to TypeCredit; everything else is a
// debit, matching how statements label the common case.
func ParseType(s string) TransactionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "cr", "in", "deposit":
		return TypeCredit
	default:
		return TypeDebit
	}
}

// Summarize aggregates per-category totals over transactions. Categories are
// unique in the result and ordered by descending absolute total, then name,
// so output is deterministic. The totals sum exactly to the sum of the
// transaction amounts.
func Summarize(txs []Transaction) []CategorySummary {
	totals := make(map[string]decimal.Decimal)
	for _, t := range txs {
		cat := strings.TrimSpace(t.Category)
		if cat == "" {
			cat = CategoryUncategorized
		}
		totals[cat] = totals[cat].Add(t.Amount)
	}
	out := make([]CategorySummary, 0, len(totals))
	for cat, total := range totals {
		out = append(out, CategorySummary{Category: cat, Total: total})
	}
	sortSummaries(out)
	return out
}

func sortSummaries(s []CategorySummary) {
	// Descending |total|; name breaks ties.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0; j-- {
			a, b := s[j-1], s[j]
			cmp := a.Total.Abs().Cmp(b.Total.Abs())
			if cmp > 0 || (cmp == 0 && a.Category <= b.Category) {
				break
			}
			s[j-1], s[j] = b, a
		}
	}
}
