package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// fakeModel returns canned responses per call.
type fakeModel struct {
	outputs []string
	errs    []error
	calls   int
	reqs    []llm.Request
}

func (f *fakeModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	i := f.calls
	f.calls++
	f.reqs = append(f.reqs, req)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var out string
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	return out, err
}

func (f *fakeModel) Name() string { return "fake" }

const sampleStatementText = `01 Mar 2024  COFFEE SHOP          42.50
15 Mar 2024  SALARY            1,500.00`

func TestExtractTransactions(t *testing.T) {
	m := &fakeModel{outputs: []string{"```json\n[" +
		`{"date":"2024-03-01","description":"COFFEE SHOP","amount":"42.50","type":"debit"},` +
		`{"date":"2024-03-15","description":"SALARY","amount":"1,500.00","type":"credit"},` +
		"]\n```"}}
	e := NewEngine(m, zerolog.Nop())

	txs, dropped, err := e.ExtractTransactions(context.Background(), sampleStatementText, 2024)
	if err != nil {
		t.Fatalf("ExtractTransactions failed: %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}

	if got := txs[0].Amount.String(); got != "-42.5" {
		t.Errorf("debit amount = %s, want -42.5", got)
	}
	if txs[0].Type != statement.TypeDebit {
		t.Errorf("txs[0].Type = %q, want debit", txs[0].Type)
	}
	if got := txs[1].Amount.String(); got != "1500" {
		t.Errorf("credit amount = %s, want 1500", got)
	}
	if d := txs[1].Date; d.Year != 2024 || int(d.Month) != 3 || d.Day != 15 {
		t.Errorf("credit date = %v, want 2024-03-15", d)
	}
}

func TestExtractTransactionsDropsInvalidCandidates(t *testing.T) {
	m := &fakeModel{outputs: []string{"[" +
		`{"date":"2024-03-01","description":"GOOD ROW","amount":"10.00","type":"debit"},` +
		`{"date":"2024-03-02","description":"","amount":"5.00","type":"debit"},` +
		`{"date":"not a date","description":"BAD DATE","amount":"5.00","type":"debit"},` +
		`{"date":"2024-03-03","description":"BAD AMOUNT","amount":"5.001","type":"debit"}` +
		"]"}}
	e := NewEngine(m, zerolog.Nop())

	txs, dropped, err := e.ExtractTransactions(context.Background(), "some text", 2024)
	if err != nil {
		t.Fatalf("ExtractTransactions failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	if dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
	if txs[0].Description != "GOOD ROW" {
		t.Errorf("surviving row = %q, want GOOD ROW", txs[0].Description)
	}
}

func TestExtractTransactionsBlankInput(t *testing.T) {
	e := NewEngine(&fakeModel{}, zerolog.Nop())
	_, _, err := e.ExtractTransactions(context.Background(), "   \n\t", 2024)
	if !statement.IsKind(err, statement.KindNoTransactionsFound) {
		t.Fatalf("expected NoTransactionsFound, got %v", err)
	}
}

func TestExtractTransactionsEmptyArray(t *testing.T) {
	e := NewEngine(&fakeModel{outputs: []string{"[]"}}, zerolog.Nop())
	_, _, err := e.ExtractTransactions(context.Background(), "no transactions here", 2024)
	if !statement.IsKind(err, statement.KindNoTransactionsFound) {
		t.Fatalf("expected NoTransactionsFound, got %v", err)
	}
}

func TestExtractTransactionsMalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"prose only", "I could not find any transactions, sorry."},
		{"broken json", `[{"date": "2024-03-01", "description": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(&fakeModel{outputs: []string{tt.out}}, zerolog.Nop())
			_, _, err := e.ExtractTransactions(context.Background(), "text", 2024)
			if !statement.IsKind(err, statement.KindMalformedModelOutput) {
				t.Fatalf("expected MalformedModelOutput, got %v", err)
			}
		})
	}
}

func TestExtractTransactionsModelError(t *testing.T) {
	e := NewEngine(&fakeModel{errs: []error{errors.New("quota exceeded")}}, zerolog.Nop())
	_, _, err := e.ExtractTransactions(context.Background(), "text", 2024)
	if !statement.IsKind(err, statement.KindMalformedModelOutput) {
		t.Fatalf("expected MalformedModelOutput, got %v", err)
	}
}

func TestExtractTransactionsTruncatesLongInput(t *testing.T) {
	long := make([]byte, maxExtractionInputChars*2)
	for i := range long {
		long[i] = 'x'
	}
	m := &fakeModel{outputs: []string{
		`[{"date":"2024-01-01","description":"ROW","amount":"1.00","type":"debit"}]`}}
	e := NewEngine(m, zerolog.Nop())

	if _, _, err := e.ExtractTransactions(context.Background(), string(long), 2024); err != nil {
		t.Fatalf("ExtractTransactions failed: %v", err)
	}
	prompt := m.reqs[0].Messages[0].Content
	if len(prompt) > maxExtractionInputChars+200 {
		t.Errorf("prompt length %d, want input truncated near %d", len(prompt), maxExtractionInputChars)
	}
}

func TestCategorize(t *testing.T) {
	m := &fakeModel{outputs: []string{`[
		{"index": 1, "category": "dining"},
		{"index": 2, "category": "Salary"}
	]`}}
	c := NewCategorizer(m, zerolog.Nop())

	txs := []statement.Transaction{
		{Description: "COFFEE SHOP", Type: statement.TypeDebit},
		{Description: "SALARY", Type: statement.TypeCredit},
	}
	got, err := c.Categorize(context.Background(), txs)
	if err != nil {
		t.Fatalf("Categorize failed: %v", err)
	}
	if got[0].Category != "Dining" {
		t.Errorf("case-insensitive match: got %q, want Dining", got[0].Category)
	}
	if got[1].Category != statement.CategoryUncategorized {
		t.Errorf("out-of-vocabulary label: got %q, want Uncategorized", got[1].Category)
	}
}

func TestCategorizeModelFailureIsSoft(t *testing.T) {
	c := NewCategorizer(&fakeModel{errs: []error{errors.New("overloaded")}}, zerolog.Nop())

	txs := []statement.Transaction{{Description: "ROW", Type: statement.TypeDebit}}
	got, err := c.Categorize(context.Background(), txs)
	if !statement.IsKind(err, statement.KindCategorizationFailed) {
		t.Fatalf("expected CategorizationFailed, got %v", err)
	}
	if got[0].Category != statement.CategoryUncategorized {
		t.Errorf("got %q, want Uncategorized fallback", got[0].Category)
	}
}

func TestCategorizeMissingIndexFallsBack(t *testing.T) {
	m := &fakeModel{outputs: []string{`[{"index": 2, "category": "Groceries"}]`}}
	c := NewCategorizer(m, zerolog.Nop())

	txs := []statement.Transaction{
		{Description: "UNMATCHED", Type: statement.TypeDebit},
		{Description: "TESCO", Type: statement.TypeDebit},
	}
	got, err := c.Categorize(context.Background(), txs)
	if err != nil {
		t.Fatalf("Categorize failed: %v", err)
	}
	if got[0].Category != statement.CategoryUncategorized {
		t.Errorf("unmatched row: got %q, want Uncategorized", got[0].Category)
	}
	if got[1].Category != "Groceries" {
		t.Errorf("matched row: got %q, want Groceries", got[1].Category)
	}
}
