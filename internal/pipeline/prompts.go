package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-insights/internal/statement"
)

// maxExtractionInputChars caps how much statement text goes into a single
// extraction prompt. Statements longer than this are truncated; the tail of a
// statement is far more likely to be legal boilerplate than transactions.
const maxExtractionInputChars = 12000

const extractionSystemPrompt = `You are a precise bank statement parser.
You extract transaction rows from raw statement text and output ONLY a JSON array, no prose, no Markdown fences.

Each element must be an object with exactly these fields:
  "date": string, the transaction date as printed (e.g. "2024-03-15" or "15 Mar 2024")
  "description": string, the merchant or transfer description as printed
  "amount": string, the unsigned amount as printed (e.g. "42.50" or "1,500.00")
  "type": string, "debit" for money out or "credit" for money in

Rules:
1. Include ONLY actual transactions. Skip running balances, opening/closing balance lines, page headers, totals, and marketing text.
2. Keep transactions in the order they appear in the statement.
3. If a row shows separate "Money out" and "Money in" columns, the populated column decides the type.
4. If no transactions are present, output [].`

func buildExtractionPrompt(text string) string {
	if len(text) > maxExtractionInputChars {
		text = text[:maxExtractionInputChars]
	}
	return "Statement text follows. Extract the transactions.\n\n" + text
}

const categorizationSystemPrompt = `You categorize bank transactions.
You will receive a numbered list of transactions. Output ONLY a JSON array, no prose, no Markdown fences.

Each element must be an object with exactly these fields:
  "index": number, the transaction's number from the list
  "category": string, exactly one of the allowed categories

Rules:
1. Category must be EXACTLY one of the allowed names (case matters).
2. Use "Transfer" for movements between the customer's own accounts and for person-to-person payments.
3. If you are unsure, use "Uncategorized".`

func buildCategorizationPrompt(txs []statement.Transaction) string {
	var b strings.Builder
	b.WriteString("Allowed categories:\n")
	for _, c := range statement.Categories {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\nTransactions:\n")
	for i, t := range txs {
		fmt.Fprintf(&b, "%d. %s | %s | %s %s\n",
			i+1, t.Date, t.Description, t.Amount.Abs().StringFixed(2), t.Type)
	}
	return b.String()
}
