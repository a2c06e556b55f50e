// Package vision transcribes statement pages with a vision-capable model.
// It is a caller-selected alternative to OCR for scanned documents, never a
// silent fallback: cost, latency, and accuracy trade off differently.
package vision

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/extract"
	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/statement"
)

const transcribePrompt = "Extract all text from this bank statement page image. " +
	"Include dates, descriptions, debit/credit amounts, account numbers, and headers. " +
	"Preserve the order and row structure (date, description, amount columns) as closely as possible. " +
	"In transaction tables, include ONLY rows that are actual transactions with a date, a description, " +
	"and a debit or credit amount. Do NOT include running balance columns or balance-only rows; " +
	"if a Balance column exists, omit it from each row. Do not add commentary."

// Adapter sends page images to the model one at a time and aggregates the
// transcriptions.
type Adapter struct {
	model llm.Client
	log   zerolog.Logger
}

func New(model llm.Client, log zerolog.Logger) *Adapter {
	return &Adapter{model: model, log: log}
}

// Transcribe recovers text from page images. Pages that fail are dropped and
// counted; the result is degraded but usable as long as at least one page
// succeeded. When every page fails the whole call fails with
// VisionExtractionFailed.
func (a *Adapter) Transcribe(ctx context.Context, pages [][]byte) (text string, degraded bool, err error) {
	var parts []string
	var lastErr error
	failed := 0

	for i, img := range pages {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		out, err := a.model.Generate(ctx, llm.Request{
			Messages: []llm.Message{{Role: "user", Content: transcribePrompt}},
			Images:   [][]byte{img},
		})
		if err != nil {
			a.log.Warn().Err(err).Int("page", i+1).Msg("vision transcription failed for page")
			lastErr = err
			failed++
			continue
		}
		out = strings.TrimSpace(out)
		if out != "" {
			parts = append(parts, out)
		}
	}

	if len(parts) == 0 {
		return "", false, statement.WrapError(statement.KindVisionExtractionFailed,
			"vision model failed for every page", lastErr)
	}

	a.log.Info().Int("pages", len(pages)).Int("failed", failed).
		Str("model", a.model.Name()).Msg("vision transcription finished")
	return strings.Join(parts, extract.PageBreak), failed > 0, nil
}
