package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/dvloznov/statement-insights/internal/api/handlers"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/archive"
	"github.com/dvloznov/statement-insights/internal/chat"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/extract"
	"github.com/dvloznov/statement-insights/internal/jobstore"
	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/ocr"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/sink"
	"github.com/dvloznov/statement-insights/internal/statement"
	"github.com/dvloznov/statement-insights/internal/vision"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	model, err := llm.New(ctx, llm.Options{
		Provider:     cfg.LLMProvider,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		BaseURL:      cfg.OpenAIBaseURL,
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build LLM client")
	}
	log.Info().Str("provider", cfg.LLMProvider).Str("model", model.Name()).Msg("LLM client ready")

	opts := pipeline.Options{
		DefaultScannedMethod: cfg.DefaultScannedMethod,
		OCRDPI:               cfg.OCRDPI,
		VisionDPI:            cfg.VisionDPI,
	}

	if cfg.ArchiveBucket != "" {
		arch, err := archive.NewGCS(ctx, cfg.ArchiveBucket, cfg.CredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build GCS archiver")
		}
		defer arch.Close()
		opts.Archiver = arch
		log.Info().Str("bucket", cfg.ArchiveBucket).Msg("Upload archival enabled")
	}

	if cfg.BigQueryProject != "" {
		bq, err := sink.NewBigQuery(ctx, cfg.BigQueryProject, cfg.BigQueryDataset, cfg.CredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build BigQuery sink")
		}
		defer bq.Close()
		opts.Sink = bq
		log.Info().Str("project", cfg.BigQueryProject).
			Str("dataset", cfg.BigQueryDataset).Msg("Warehouse sink enabled")
	}

	store := jobstore.New(cfg.JobTTL, cfg.JobMaxCount, log)
	extractor := extract.New(cfg.MinTextPerPage)
	recognizer := ocr.New(ocr.Config{
		Tesseract: cfg.TesseractPath,
		Lang:      cfg.TesseractLang,
		PSM:       cfg.TesseractPSM,
	}, log)
	transcriber := vision.New(model, log)
	processor := pipeline.NewProcessor(extractor, recognizer, transcriber, model, store, opts, log)
	chatSvc := chat.New(model, log)

	// Periodic eviction keeps memory bounded.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SweepSchedule, func() { store.Sweep() }); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("Invalid sweep schedule")
	}
	sweeper.Start()
	defer sweeper.Stop()

	documentsHandler := handlers.NewDocumentsHandler(processor, cfg.MaxFileSize, cfg.PipelineTimeout, log)
	jobsHandler := handlers.NewJobsHandler(store, log)
	chatHandler := handlers.NewChatHandler(store, chatSvc, log)

	mux := http.NewServeMux()

	mux.Handle("/api/process-pdf", middleware.Metrics("/api/process-pdf",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				documentsHandler.ProcessDocument(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed,
					statement.KindValidation, "method not allowed", nil)
			}
		})))

	mux.Handle("/api/jobs/", middleware.Metrics("/api/jobs/{id}",
		http.HandlerFunc(jobsHandler.Route)))

	mux.Handle("/api/chat", middleware.Metrics("/api/chat",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				chatHandler.Chat(w, r)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed,
					statement.KindValidation, "method not allowed", nil)
			}
		})))

	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/metrics", middleware.MetricsHandler())

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(cfg.AllowedOrigins)(mux),
			),
		),
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
		// Long read/write timeouts: processing a scanned statement can take
		// minutes and the response is synchronous.
		ReadTimeout:  cfg.PipelineTimeout + 30*time.Second,
		WriteTimeout: cfg.PipelineTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
