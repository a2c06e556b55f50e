// Package pipeline orchestrates statement processing: text recovery,
// structured extraction, categorization, and aggregation, recorded in the
// job store as a single job lifecycle.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/extract"
	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// State is the shared working set passed through the pipeline steps.
type State struct {
	Filename      string
	PDF           []byte
	ScannedMethod statement.ExtractionMethod // caller's hint, MethodOCR or MethodVision

	Document     *extract.Document
	Method       statement.ExtractionMethod
	RawText      string
	Transactions []statement.Transaction
	Dropped      int
	Summary      []statement.CategorySummary
	Warning      string
}

// Step is a single stage of the processing pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// Pipeline executes steps in order, stopping at the first failure.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
	}
	return nil
}

// ReadDocumentStep opens the PDF and reads its text layer.
type ReadDocumentStep struct {
	Extractor TextExtractor
}

func (s *ReadDocumentStep) Execute(ctx context.Context, state *State) error {
	doc, err := s.Extractor.Extract(ctx, state.PDF)
	if err != nil {
		return err
	}
	state.Document = doc
	return nil
}

// RecoverTextStep produces the raw text the extraction model will see. A
// digital document uses its text layer directly; a scanned one goes through
// OCR or the vision model, whichever the caller selected. The service never
// switches strategies on its own.
type RecoverTextStep struct {
	Extractor TextExtractor
	OCR       Recognizer
	Vision    Transcriber
	OCRDPI    float64
	VisionDPI float64
}

func (s *RecoverTextStep) Execute(ctx context.Context, state *State) error {
	if state.Document.Classification == extract.Digital {
		state.Method = statement.MethodDirect
		state.RawText = state.Document.Text()
		return nil
	}

	switch state.ScannedMethod {
	case statement.MethodVision:
		pages, err := s.Extractor.Rasterize(ctx, state.PDF, s.VisionDPI)
		if err != nil {
			return err
		}
		text, degraded, err := s.Vision.Transcribe(ctx, pages)
		if err != nil {
			return err
		}
		state.Method = statement.MethodVision
		if degraded {
			state.Method = statement.MethodVisionDegraded
			state.Warning = "some pages could not be transcribed; results may be incomplete"
		}
		state.RawText = text
	default:
		pages, err := s.Extractor.Rasterize(ctx, state.PDF, s.OCRDPI)
		if err != nil {
			return err
		}
		text, err := s.OCR.Recognize(ctx, pages)
		if err != nil {
			return err
		}
		state.Method = statement.MethodOCR
		state.RawText = text
	}
	return nil
}

// ParseTransactionsStep runs structured extraction over the recovered text.
type ParseTransactionsStep struct {
	Engine *Engine
	Now    func() time.Time
}

func (s *ParseTransactionsStep) Execute(ctx context.Context, state *State) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	txs, dropped, err := s.Engine.ExtractTransactions(ctx, state.RawText, now().Year())
	if err != nil {
		return err
	}
	state.Transactions = txs
	state.Dropped = dropped
	return nil
}

// CategorizeStep labels the extracted transactions. Failure is recorded as a
// warning, never as a job failure.
type CategorizeStep struct {
	Categorizer *Categorizer
	Log         zerolog.Logger
}

func (s *CategorizeStep) Execute(ctx context.Context, state *State) error {
	txs, err := s.Categorizer.Categorize(ctx, state.Transactions)
	state.Transactions = txs
	if err != nil {
		s.Log.Warn().Err(err).Msg("categorization degraded to Uncategorized")
		if state.Warning != "" {
			state.Warning += "; "
		}
		state.Warning += "categorization unavailable, all transactions are Uncategorized"
	}
	return nil
}

// SummarizeStep aggregates per-category totals.
type SummarizeStep struct{}

func (s *SummarizeStep) Execute(ctx context.Context, state *State) error {
	state.Summary = statement.Summarize(state.Transactions)
	return nil
}

// Options configures a Processor.
type Options struct {
	DefaultScannedMethod statement.ExtractionMethod
	OCRDPI               float64
	VisionDPI            float64

	// Archiver and Sink are optional; nil disables them.
	Archiver Archiver
	Sink     Sink
}

// Processor drives one document through the pipeline and the job store.
type Processor struct {
	pipeline *Pipeline
	store    Store
	opts     Options
	log      zerolog.Logger
}

func NewProcessor(extractor TextExtractor, ocr Recognizer, vision Transcriber,
	model llm.Client, store Store, opts Options, log zerolog.Logger) *Processor {
	if opts.DefaultScannedMethod == "" {
		opts.DefaultScannedMethod = statement.MethodOCR
	}
	if opts.OCRDPI == 0 {
		opts.OCRDPI = 300
	}
	if opts.VisionDPI == 0 {
		opts.VisionDPI = 150
	}
	return &Processor{
		pipeline: NewPipeline(
			&ReadDocumentStep{Extractor: extractor},
			&RecoverTextStep{Extractor: extractor, OCR: ocr, Vision: vision,
				OCRDPI: opts.OCRDPI, VisionDPI: opts.VisionDPI},
			&ParseTransactionsStep{Engine: NewEngine(model, log)},
			&CategorizeStep{Categorizer: NewCategorizer(model, log), Log: log},
			&SummarizeStep{},
		),
		store: store,
		opts:  opts,
		log:   log,
	}
}

// Process runs the full pipeline for one uploaded PDF. A processing job is
// registered before any work starts; on return the job is either ready or
// failed. methodHint selects the scanned-document strategy and is ignored for
// digital documents; empty means the configured default.
func (p *Processor) Process(ctx context.Context, filename string, pdf []byte,
	methodHint statement.ExtractionMethod) (*statement.Job, error) {

	job := p.store.Create(filename)
	log := p.log.With().Str("job_id", job.ID).Str("filename", filename).Logger()

	if methodHint == "" {
		methodHint = p.opts.DefaultScannedMethod
	}
	state := &State{Filename: filename, PDF: pdf, ScannedMethod: methodHint}

	if err := p.pipeline.Execute(ctx, state); err != nil {
		kind := statement.KindOf(err)
		if kind == "" {
			kind = statement.KindInternal
		}
		log.Error().Err(err).Str("kind", string(kind)).Msg("processing failed")
		failed, ferr := p.store.Fail(job.ID, kind, err.Error())
		if ferr != nil {
			return nil, ferr
		}
		return failed, err
	}

	done, err := p.store.Complete(job.ID, state.Method, state.RawText,
		state.Transactions, state.Summary, state.Dropped, state.Warning)
	if err != nil {
		return nil, err
	}

	p.export(ctx, done, pdf)

	log.Info().Str("method", string(done.Method)).
		Int("transactions", len(done.Transactions)).
		Int("dropped", done.DroppedCandidates).Msg("processing finished")
	return done, nil
}

// export archives the upload and appends transactions to the warehouse when
// those integrations are configured. Both are best effort.
func (p *Processor) export(ctx context.Context, job *statement.Job, pdf []byte) {
	if p.opts.Archiver != nil {
		if uri, err := p.opts.Archiver.Archive(ctx, job.ID, job.Filename, pdf); err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("archive failed")
		} else {
			p.log.Info().Str("job_id", job.ID).Str("uri", uri).Msg("upload archived")
		}
	}
	if p.opts.Sink != nil {
		if err := p.opts.Sink.Append(ctx, job); err != nil {
			p.log.Warn().Err(err).Str("job_id", job.ID).Msg("warehouse append failed")
		}
	}
}
