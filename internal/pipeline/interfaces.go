package pipeline

import (
	"context"

	"github.com/dvloznov/statement-insights/internal/extract"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// TextExtractor reads a PDF's text layer and rasterizes pages.
type TextExtractor interface {
	Extract(ctx context.Context, pdf []byte) (*extract.Document, error)
	Rasterize(ctx context.Context, pdf []byte, dpi float64) ([][]byte, error)
}

// Recognizer recovers text from page images with OCR.
type Recognizer interface {
	Recognize(ctx context.Context, pages [][]byte) (string, error)
}

// Transcriber recovers text from page images with a vision model. degraded is
// true when some pages failed but enough survived to continue.
type Transcriber interface {
	Transcribe(ctx context.Context, pages [][]byte) (text string, degraded bool, err error)
}

// Store is the job lifecycle the processor drives. Create registers a
// processing job before any work starts so callers can observe in-flight
// state; exactly one of Complete or Fail follows.
type Store interface {
	Create(filename string) *statement.Job
	Complete(id string, method statement.ExtractionMethod, rawText string,
		txs []statement.Transaction, summary []statement.CategorySummary,
		dropped int, warning string) (*statement.Job, error)
	Fail(id string, kind statement.ErrorKind, detail string) (*statement.Job, error)
}

// Archiver stores the original upload somewhere durable. Best effort; the
// processor logs and continues when archiving fails.
type Archiver interface {
	Archive(ctx context.Context, jobID, filename string, pdf []byte) (string, error)
}

// Sink appends finished transactions to a warehouse. Best effort, like
// Archiver.
type Sink interface {
	Append(ctx context.Context, job *statement.Job) error
}
