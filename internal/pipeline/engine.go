package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// Engine turns raw statement text into normalized transactions with one
// structured-extraction model call.
type Engine struct {
	model llm.Client
	log   zerolog.Logger
}

func NewEngine(model llm.Client, log zerolog.Logger) *Engine {
	return &Engine{model: model, log: log}
}

// ExtractTransactions asks the model for the transaction rows in text and
// parses its answer. Invalid candidates are dropped and counted, never
// repaired into guesses. Blank input and a valid-but-empty answer both fail
// with NoTransactionsFound; output that stays unparseable after repair fails
// with MalformedModelOutput.
func (e *Engine) ExtractTransactions(ctx context.Context, text string, fallbackYear int) ([]statement.Transaction, int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, statement.NewError(statement.KindNoTransactionsFound,
			"document contains no text to extract from")
	}

	raw, err := e.model.Generate(ctx, llm.Request{
		System:   extractionSystemPrompt,
		Messages: []llm.Message{{Role: "user", Content: buildExtractionPrompt(text)}},
	})
	if err != nil {
		return nil, 0, statement.WrapError(statement.KindMalformedModelOutput,
			"extraction model call failed", err)
	}

	candidates, err := parseCandidateArray(raw)
	if err != nil {
		return nil, 0, err
	}
	if len(candidates) == 0 {
		return nil, 0, statement.NewError(statement.KindNoTransactionsFound,
			"model found no transactions in the statement text")
	}

	txs := make([]statement.Transaction, 0, len(candidates))
	dropped := 0
	for i, obj := range candidates {
		if err := candidateSchema.Validate(obj); err != nil {
			e.log.Warn().Int("candidate", i+1).Err(err).Msg("dropping malformed candidate")
			dropped++
			continue
		}
		tx, err := candidateToTransaction(obj, fallbackYear)
		if err != nil {
			e.log.Warn().Int("candidate", i+1).Err(err).Msg("dropping invalid candidate")
			dropped++
			continue
		}
		txs = append(txs, tx)
	}

	if len(txs) == 0 {
		return nil, dropped, statement.Errorf(statement.KindNoTransactionsFound,
			"all %d model candidates failed validation", dropped)
	}
	e.log.Info().Int("transactions", len(txs)).Int("dropped", dropped).
		Str("model", e.model.Name()).Msg("extraction finished")
	return txs, dropped, nil
}

// parseCandidateArray runs the repair ladder over raw model output: strip
// fences, isolate the array, and only if plain decoding fails, strip trailing
// commas and try once more.
func parseCandidateArray(raw string) ([]map[string]any, error) {
	cleaned := llm.ExtractJSONArray(llm.CleanModelOutput(raw))
	if cleaned == "" {
		return nil, statement.NewError(statement.KindMalformedModelOutput,
			"model output contains no JSON array")
	}

	var candidates []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &candidates); err != nil {
		repaired := llm.StripTrailingCommas(cleaned)
		if err2 := json.Unmarshal([]byte(repaired), &candidates); err2 != nil {
			return nil, statement.WrapError(statement.KindMalformedModelOutput,
				"model output is not a JSON array of objects", err)
		}
	}
	return candidates, nil
}
