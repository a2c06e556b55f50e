// Package chat answers questions about one processed statement. Every
// conversation is grounded in a single job's transactions; history lives with
// the caller and is replayed on each request.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/export"
	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// maxGroundingChars caps the transaction CSV embedded in the system prompt.
// Very large statements are truncated row-wise; the summary always fits.
const maxGroundingChars = 15000

const systemPreamble = `You are a helpful assistant answering questions about one bank statement.
Answer ONLY from the transaction data below. If the data cannot answer the question, say so plainly.
Amounts are signed: negative is money out, positive is money in.`

// Service runs grounded chat over ready jobs.
type Service struct {
	model llm.Client
	log   zerolog.Logger
}

func New(model llm.Client, log zerolog.Logger) *Service {
	return &Service{model: model, log: log}
}

// Ask answers a question about the job. history is the caller's prior turns,
// oldest first; it is replayed verbatim and never stored. Model failures are
// ChatModelUnavailable and safe to retry.
func (s *Service) Ask(ctx context.Context, job *statement.Job,
	history []statement.ChatMessage, question string) (string, error) {

	question = strings.TrimSpace(question)
	if question == "" {
		return "", statement.NewError(statement.KindValidation, "message must not be empty")
	}

	grounding, err := buildGrounding(job)
	if err != nil {
		return "", err
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	for _, h := range history {
		role := "user"
		if h.Role == "assistant" {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: h.Content})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: question})

	answer, err := s.model.Generate(ctx, llm.Request{System: grounding, Messages: msgs})
	if err != nil {
		return "", statement.WrapError(statement.KindChatModelUnavailable,
			"chat model call failed", err)
	}

	s.log.Info().Str("job_id", job.ID).Int("history_turns", len(history)).
		Str("model", s.model.Name()).Msg("chat answered")
	return strings.TrimSpace(answer), nil
}

// buildGrounding renders the job's transactions and summary into the system
// prompt. The CSV is truncated at a row boundary when it exceeds the cap.
func buildGrounding(job *statement.Job) (string, error) {
	csvBytes, err := export.CSV(job.Transactions)
	if err != nil {
		return "", err
	}
	csvText := string(csvBytes)
	truncated := false
	if len(csvText) > maxGroundingChars {
		cut := strings.LastIndexByte(csvText[:maxGroundingChars], '\n')
		if cut <= 0 {
			cut = maxGroundingChars
		}
		csvText = csvText[:cut]
		truncated = true
	}

	var b strings.Builder
	b.WriteString(systemPreamble)
	fmt.Fprintf(&b, "\n\nStatement: %s (%d transactions)\n", job.Filename, len(job.Transactions))
	b.WriteString("\nTransactions (CSV):\n")
	b.WriteString(csvText)
	if truncated {
		b.WriteString("\n(transaction list truncated)")
	}
	if len(job.Summary) > 0 {
		b.WriteString("\n\nTotals by category:\n")
		for _, s := range job.Summary {
			fmt.Fprintf(&b, "  %s: %s\n", s.Category, s.Total.StringFixed(2))
		}
	}
	return b.String(), nil
}
