// Package ocr recognizes text on rasterized statement pages by shelling out
// to Tesseract. Output is noisy plain text; downstream extraction tolerates
// the artifacts.
package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/extract"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// Runner executes an external command and returns stdout/stderr. Injectable
// so tests never need the binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return []byte(out.String()), []byte(errb.String()), err
}

// Config for the adapter.
type Config struct {
	Tesseract string // binary name or absolute path; defaults to "tesseract"
	Lang      string // defaults to "eng"
	PSM       int    // page segmentation mode; 3 = fully automatic
}

// Adapter runs per-page OCR and concatenates results in page order.
type Adapter struct {
	cfg    Config
	runner Runner
	lookup func(string) (string, error)
	log    zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Adapter {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.PSM == 0 {
		cfg.PSM = 3
	}
	return &Adapter{cfg: cfg, runner: execRunner{}, lookup: exec.LookPath, log: log}
}

// Recognize OCRs each page image and joins the results with page-break
// markers. A missing engine fails with OcrUnavailable; per-page errors are
// logged and skipped so one bad render does not sink the document.
func (a *Adapter) Recognize(ctx context.Context, pages [][]byte) (string, error) {
	if _, err := a.lookup(a.cfg.Tesseract); err != nil {
		return "", statement.WrapError(statement.KindOcrUnavailable,
			fmt.Sprintf("OCR engine %q not found on PATH", a.cfg.Tesseract), err)
	}

	tmpDir, err := os.MkdirTemp("", "stmt-ocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var b strings.Builder
	recognized := 0
	for i, img := range pages {
		imgPath := filepath.Join(tmpDir, fmt.Sprintf("page-%03d.jpg", i+1))
		if err := os.WriteFile(imgPath, img, 0o600); err != nil {
			return "", fmt.Errorf("ocr: write page image: %w", err)
		}

		// tesseract <img> stdout -l eng --psm 3
		out, errb, err := a.runner.Run(ctx, a.cfg.Tesseract,
			imgPath, "stdout", "-l", a.cfg.Lang, "--psm", strconv.Itoa(a.cfg.PSM))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			a.log.Warn().Err(err).Int("page", i+1).
				Str("stderr", strings.TrimSpace(string(errb))).
				Msg("OCR failed for page")
			continue
		}
		if b.Len() > 0 {
			b.WriteString(extract.PageBreak)
		}
		b.WriteString(strings.TrimSpace(string(out)))
		recognized++
	}

	a.log.Info().Int("pages", len(pages)).Int("recognized", recognized).
		Int("chars", b.Len()).Msg("OCR finished")
	return b.String(), nil
}
