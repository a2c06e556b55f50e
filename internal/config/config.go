package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/statement-insights/internal/statement"
)

// Config is the full environment-driven configuration surface. The pipeline
// itself only sees opaque provider handles built from this; swapping the LLM
// provider or OCR backend never touches pipeline logic.
type Config struct {
	Port string

	// LLMProvider selects the model backend: "gemini" or "openai" (any
	// OpenAI-compatible endpoint, including local servers).
	LLMProvider string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	// DefaultScannedMethod is used when the caller sends no extraction hint
	// for a scanned document.
	DefaultScannedMethod statement.ExtractionMethod

	TesseractPath string
	TesseractLang string
	TesseractPSM  int

	// MinTextPerPage is the average extracted characters per page below
	// which a PDF is classified as scanned.
	MinTextPerPage int
	OCRDPI         float64
	VisionDPI      float64

	MaxFileSize     int64
	PipelineTimeout time.Duration

	// Job retention. Sweep evicts jobs older than JobTTL and trims beyond
	// JobMaxCount, oldest first.
	JobTTL        time.Duration
	JobMaxCount   int
	SweepSchedule string

	AllowedOrigins []string

	// Optional GCS archival of uploads and extracted text.
	ArchiveBucket string
	// Optional BigQuery sink for ready jobs' transactions.
	BigQueryProject string
	BigQueryDataset string

	CredentialsFile string
}

// Load reads configuration from the environment, applying defaults suitable
// for local development.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        envOr("PORT", "8080"),
		LLMProvider: strings.ToLower(envOr("LLM_PROVIDER", "gemini")),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   envOr("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIBaseURL: envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4o-mini"),

		TesseractPath: envOr("TESSERACT_PATH", "tesseract"),
		TesseractLang: envOr("TESSERACT_LANG", "eng"),

		ArchiveBucket:   os.Getenv("ARCHIVE_BUCKET"),
		BigQueryProject: os.Getenv("BQ_PROJECT"),
		BigQueryDataset: envOr("BQ_DATASET", "statements"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		SweepSchedule: envOr("JOB_SWEEP_SCHEDULE", "@every 5m"),
	}

	var err error
	if cfg.TesseractPSM, err = envInt("TESSERACT_PSM", 3); err != nil {
		return nil, err
	}
	if cfg.MinTextPerPage, err = envInt("MIN_TEXT_PER_PAGE", 100); err != nil {
		return nil, err
	}
	if cfg.JobMaxCount, err = envInt("JOB_MAX_COUNT", 200); err != nil {
		return nil, err
	}
	ocrDPI, err := envInt("OCR_DPI", 300)
	if err != nil {
		return nil, err
	}
	cfg.OCRDPI = float64(ocrDPI)
	visionDPI, err := envInt("VISION_DPI", 150)
	if err != nil {
		return nil, err
	}
	cfg.VisionDPI = float64(visionDPI)

	maxMB, err := envInt("MAX_FILE_SIZE_MB", 20)
	if err != nil {
		return nil, err
	}
	cfg.MaxFileSize = int64(maxMB) << 20

	if cfg.PipelineTimeout, err = envDuration("PIPELINE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JobTTL, err = envDuration("JOB_TTL", time.Hour); err != nil {
		return nil, err
	}

	switch strings.ToLower(envOr("DEFAULT_SCANNED_METHOD", "ocr")) {
	case "vision":
		cfg.DefaultScannedMethod = statement.MethodVision
	case "ocr":
		cfg.DefaultScannedMethod = statement.MethodOCR
	default:
		return nil, fmt.Errorf("config: DEFAULT_SCANNED_METHOD must be ocr or vision")
	}

	cfg.AllowedOrigins = splitOrigins(os.Getenv("ALLOWED_ORIGINS"))

	if cfg.LLMProvider != "gemini" && cfg.LLMProvider != "openai" {
		return nil, fmt.Errorf("config: LLM_PROVIDER must be gemini or openai, got %q", cfg.LLMProvider)
	}
	return cfg, nil
}

// splitOrigins parses the comma-separated ALLOWED_ORIGINS value. An empty
// value yields the local development defaults.
func splitOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		}
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
