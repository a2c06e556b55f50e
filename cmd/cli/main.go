package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/chat"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/export"
	"github.com/dvloznov/statement-insights/internal/extract"
	"github.com/dvloznov/statement-insights/internal/jobstore"
	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/ocr"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/statement"
	"github.com/dvloznov/statement-insights/internal/vision"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "process":
		runProcess(log)
	case "ask":
		runAsk(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  process   Process a local statement PDF and write CSV/XLSX exports")
	fmt.Println("  ask       Process a statement and answer one question about it")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// buildProcessor wires the same stack the API server runs, minus the
// optional cloud integrations.
func buildProcessor(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pipeline.Processor, llm.Client, error) {
	model, err := llm.New(ctx, llm.Options{
		Provider:     cfg.LLMProvider,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		BaseURL:      cfg.OpenAIBaseURL,
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
	})
	if err != nil {
		return nil, nil, err
	}

	store := jobstore.New(0, 0, log)
	extractor := extract.New(cfg.MinTextPerPage)
	recognizer := ocr.New(ocr.Config{
		Tesseract: cfg.TesseractPath,
		Lang:      cfg.TesseractLang,
		PSM:       cfg.TesseractPSM,
	}, log)
	transcriber := vision.New(model, log)

	proc := pipeline.NewProcessor(extractor, recognizer, transcriber, model, store, pipeline.Options{
		DefaultScannedMethod: cfg.DefaultScannedMethod,
		OCRDPI:               cfg.OCRDPI,
		VisionDPI:            cfg.VisionDPI,
	}, log)
	return proc, model, nil
}

func processFile(ctx context.Context, proc *pipeline.Processor, path, method string,
	log zerolog.Logger) *statement.Job {

	pdf, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Cannot read statement file")
	}

	var hint statement.ExtractionMethod
	switch strings.ToLower(method) {
	case "":
	case "ocr":
		hint = statement.MethodOCR
	case "vision":
		hint = statement.MethodVision
	default:
		log.Fatal().Str("method", method).Msg("--scanned-method must be ocr or vision")
	}

	job, err := proc.Process(ctx, filepath.Base(path), pdf, hint)
	if err != nil {
		log.Fatal().Err(err).Msg("Processing failed")
	}
	return job
}

func runProcess(log zerolog.Logger) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	file := fs.String("file", "", "path to the statement PDF")
	method := fs.String("scanned-method", "", "strategy for scanned documents: ocr or vision")
	outDir := fs.String("out", ".", "directory for the exported files")
	xlsx := fs.Bool("xlsx", false, "also write an XLSX workbook")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PipelineTimeout)
	defer cancel()

	proc, _, err := buildProcessor(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build processor")
	}

	job := processFile(ctx, proc, *file, *method, log)

	csvBytes, err := export.CSV(job.Transactions)
	if err != nil {
		log.Fatal().Err(err).Msg("CSV export failed")
	}
	csvPath := filepath.Join(*outDir, export.Filename(job.ID, "csv"))
	if err := os.WriteFile(csvPath, csvBytes, 0o644); err != nil {
		log.Fatal().Err(err).Msg("Cannot write CSV")
	}

	fmt.Printf("Processed %s via %s: %d transactions (%d dropped)\n",
		job.Filename, job.Method, len(job.Transactions), job.DroppedCandidates)
	if job.Warning != "" {
		fmt.Printf("Warning: %s\n", job.Warning)
	}
	fmt.Printf("CSV written to %s\n", csvPath)

	if *xlsx {
		wb, err := export.XLSX(job)
		if err != nil {
			log.Fatal().Err(err).Msg("XLSX export failed")
		}
		xlsxPath := filepath.Join(*outDir, export.Filename(job.ID, "xlsx"))
		if err := os.WriteFile(xlsxPath, wb, 0o644); err != nil {
			log.Fatal().Err(err).Msg("Cannot write XLSX")
		}
		fmt.Printf("XLSX written to %s\n", xlsxPath)
	}

	fmt.Println("\nTotals by category:")
	for _, s := range job.Summary {
		fmt.Printf("  %-15s %12s\n", s.Category, s.Total.StringFixed(2))
	}
}

func runAsk(log zerolog.Logger) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	file := fs.String("file", "", "path to the statement PDF")
	method := fs.String("scanned-method", "", "strategy for scanned documents: ocr or vision")
	question := fs.String("question", "", "question to ask about the statement")
	fs.Parse(os.Args[2:])

	if *file == "" || *question == "" {
		log.Fatal().Msg("Error: --file and --question are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PipelineTimeout)
	defer cancel()

	proc, model, err := buildProcessor(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build processor")
	}

	job := processFile(ctx, proc, *file, *method, log)

	answer, err := chat.New(model, log).Ask(ctx, job, nil, *question)
	if err != nil {
		log.Fatal().Err(err).Msg("Chat failed")
	}
	fmt.Println(answer)
}
