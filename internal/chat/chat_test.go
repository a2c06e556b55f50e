package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/statement"
)

type fakeModel struct {
	answer  string
	err     error
	lastReq llm.Request
}

func (f *fakeModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.lastReq = req
	return f.answer, f.err
}

func (f *fakeModel) Name() string { return "fake" }

func testJob() *statement.Job {
	txs := []statement.Transaction{{
		Date:        civil.Date{Year: 2024, Month: 3, Day: 1},
		Description: "COFFEE SHOP",
		Amount:      decimal.RequireFromString("-42.50"),
		Type:        statement.TypeDebit,
		Category:    "Dining",
	}}
	return &statement.Job{
		ID:           "job-1",
		Filename:     "march.pdf",
		State:        statement.StateReady,
		Transactions: txs,
		Summary:      statement.Summarize(txs),
	}
}

func TestAskGroundsInTransactions(t *testing.T) {
	m := &fakeModel{answer: "You spent 42.50 on coffee."}
	s := New(m, zerolog.Nop())

	got, err := s.Ask(context.Background(), testJob(), nil, "how much on coffee?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if got != "You spent 42.50 on coffee." {
		t.Errorf("answer = %q", got)
	}
	if !strings.Contains(m.lastReq.System, "COFFEE SHOP") {
		t.Error("system prompt missing transaction data")
	}
	if !strings.Contains(m.lastReq.System, "Dining: -42.50") {
		t.Errorf("system prompt missing category totals:\n%s", m.lastReq.System)
	}
}

func TestAskReplaysHistory(t *testing.T) {
	m := &fakeModel{answer: "ok"}
	s := New(m, zerolog.Nop())

	history := []statement.ChatMessage{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
	}
	if _, err := s.Ask(context.Background(), testJob(), history, "followup"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	msgs := m.lastReq.Messages
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want history + question", len(msgs))
	}
	if msgs[0].Content != "first question" || msgs[1].Role != "assistant" {
		t.Errorf("history not replayed in order: %+v", msgs)
	}
	if msgs[2].Content != "followup" {
		t.Errorf("question must come last, got %q", msgs[2].Content)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	s := New(&fakeModel{}, zerolog.Nop())
	_, err := s.Ask(context.Background(), testJob(), nil, "   ")
	if !statement.IsKind(err, statement.KindValidation) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
}

func TestAskModelFailure(t *testing.T) {
	s := New(&fakeModel{err: errors.New("overloaded")}, zerolog.Nop())
	_, err := s.Ask(context.Background(), testJob(), nil, "anything")
	if !statement.IsKind(err, statement.KindChatModelUnavailable) {
		t.Fatalf("expected ChatModelUnavailable, got %v", err)
	}
	if !statement.Retryable(statement.KindOf(err)) {
		t.Error("chat model failures should be retryable")
	}
}

func TestGroundingTruncatesAtRowBoundary(t *testing.T) {
	job := testJob()
	long := make([]statement.Transaction, 600)
	for i := range long {
		long[i] = statement.Transaction{
			Date:        civil.Date{Year: 2024, Month: 1, Day: 1},
			Description: strings.Repeat("VERY LONG MERCHANT NAME ", 3),
			Amount:      decimal.RequireFromString("-1.00"),
			Type:        statement.TypeDebit,
			Category:    "Other",
		}
	}
	job.Transactions = long

	grounding, err := buildGrounding(job)
	if err != nil {
		t.Fatalf("buildGrounding failed: %v", err)
	}
	if !strings.Contains(grounding, "(transaction list truncated)") {
		t.Error("expected truncation marker")
	}
	// The cap applies to the embedded CSV, not the whole prompt.
	if len(grounding) > maxGroundingChars+2000 {
		t.Errorf("grounding length %d far exceeds cap %d", len(grounding), maxGroundingChars)
	}
}
