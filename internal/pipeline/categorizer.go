package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// Categorizer assigns a category to each extracted transaction with one
// model call over the whole batch.
type Categorizer struct {
	model llm.Client
	log   zerolog.Logger
}

func NewCategorizer(model llm.Client, log zerolog.Logger) *Categorizer {
	return &Categorizer{model: model, log: log}
}

// Categorize labels txs in place and returns them. Failures are soft: when
// the model call or its output is unusable, every transaction gets
// Uncategorized and the returned error carries CategorizationFailed so the
// caller can record a warning. The transactions themselves always survive.
func (c *Categorizer) Categorize(ctx context.Context, txs []statement.Transaction) ([]statement.Transaction, error) {
	if len(txs) == 0 {
		return txs, nil
	}

	raw, err := c.model.Generate(ctx, llm.Request{
		System:   categorizationSystemPrompt,
		Messages: []llm.Message{{Role: "user", Content: buildCategorizationPrompt(txs)}},
	})
	if err != nil {
		return uncategorized(txs), statement.WrapError(statement.KindCategorizationFailed,
			"categorization model call failed", err)
	}

	assignments, err := parseAssignments(raw)
	if err != nil {
		return uncategorized(txs), statement.WrapError(statement.KindCategorizationFailed,
			"categorization output unusable", err)
	}

	matched := 0
	for i := range txs {
		label, ok := assignments[i+1]
		if !ok {
			txs[i].Category = statement.CategoryUncategorized
			continue
		}
		txs[i].Category = statement.CanonicalCategory(label)
		matched++
	}

	c.log.Info().Int("transactions", len(txs)).Int("matched", matched).
		Str("model", c.model.Name()).Msg("categorization finished")
	return txs, nil
}

func uncategorized(txs []statement.Transaction) []statement.Transaction {
	for i := range txs {
		txs[i].Category = statement.CategoryUncategorized
	}
	return txs
}

// parseAssignments decodes the model's index/category pairs. Elements that
// fail the schema are skipped; their transactions fall back to Uncategorized
// individually.
func parseAssignments(raw string) (map[int]string, error) {
	cleaned := llm.ExtractJSONArray(llm.CleanModelOutput(raw))
	if cleaned == "" {
		return nil, statement.NewError(statement.KindMalformedModelOutput,
			"model output contains no JSON array")
	}

	var elems []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &elems); err != nil {
		repaired := llm.StripTrailingCommas(cleaned)
		if err2 := json.Unmarshal([]byte(repaired), &elems); err2 != nil {
			return nil, statement.WrapError(statement.KindMalformedModelOutput,
				"model output is not a JSON array of objects", err)
		}
	}

	out := make(map[int]string, len(elems))
	for _, obj := range elems {
		if err := categoryAssignmentSchema.Validate(obj); err != nil {
			continue
		}
		idx, err := getIntField(obj, "index")
		if err != nil {
			continue
		}
		label, err := getStringField(obj, "category")
		if err != nil {
			continue
		}
		out[idx] = strings.TrimSpace(label)
	}
	return out, nil
}
