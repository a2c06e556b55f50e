// Package handlers implements the HTTP surface of the statement service.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/chat"
	"github.com/dvloznov/statement-insights/internal/export"
	"github.com/dvloznov/statement-insights/internal/jobstore"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// DocumentsHandler accepts statement uploads and runs them through the
// pipeline.
type DocumentsHandler struct {
	processor   *pipeline.Processor
	maxFileSize int64
	timeout     time.Duration
	log         zerolog.Logger
}

func NewDocumentsHandler(processor *pipeline.Processor, maxFileSize int64,
	timeout time.Duration, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		processor:   processor,
		maxFileSize: maxFileSize,
		timeout:     timeout,
		log:         log,
	}
}

// ProcessDocument handles POST /api/process-pdf. The request is a multipart
// form with the PDF in "file" and an optional "scanned_method" of "ocr" or
// "vision"; the hint only matters when the document turns out to be scanned.
// Processing is synchronous: the response is the finished job.
func (h *DocumentsHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, statement.KindValidation,
			"multipart form unreadable or file too large", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, statement.KindValidation,
			"form field \"file\" is required", nil)
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		middleware.WriteError(w, http.StatusBadRequest, statement.KindValidation,
			"only PDF uploads are accepted", nil)
		return
	}

	pdf, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, statement.KindValidation,
			"upload could not be read", nil)
		return
	}
	if len(pdf) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, statement.KindValidation,
			"uploaded file is empty", nil)
		return
	}

	var methodHint statement.ExtractionMethod
	switch strings.ToLower(r.FormValue("scanned_method")) {
	case "":
		// configured default applies
	case "ocr":
		methodHint = statement.MethodOCR
	case "vision":
		methodHint = statement.MethodVision
	default:
		middleware.WriteError(w, http.StatusBadRequest, statement.KindValidation,
			"scanned_method must be \"ocr\" or \"vision\"", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	job, err := h.processor.Process(ctx, filepath.Base(header.Filename), pdf, methodHint)
	if err != nil {
		middleware.JobsProcessed.WithLabelValues("failed").Inc()
		middleware.WriteErrorFrom(w, err)
		return
	}

	middleware.JobsProcessed.WithLabelValues("ready").Inc()
	middleware.WriteJSON(w, http.StatusOK, processResponse{
		Job:    job,
		CSVURL: "/api/jobs/" + job.ID + "/csv",
	})
}

// processResponse decorates the finished job with its export location.
type processResponse struct {
	*statement.Job
	CSVURL string `json:"csv_url"`
}

// JobsHandler serves stored jobs and their exports.
type JobsHandler struct {
	store *jobstore.Store
	log   zerolog.Logger
}

func NewJobsHandler(store *jobstore.Store, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// Route dispatches GET /api/jobs/{id}, /api/jobs/{id}/csv, and
// /api/jobs/{id}/xlsx.
func (h *JobsHandler) Route(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, statement.KindValidation,
			"method not allowed", nil)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID, sub, _ := strings.Cut(rest, "/")
	if jobID == "" {
		middleware.WriteError(w, http.StatusBadRequest, statement.KindValidation,
			"job id is required", nil)
		return
	}

	switch sub {
	case "":
		h.GetJob(w, r, jobID)
	case "csv":
		h.ExportCSV(w, r, jobID)
	case "xlsx":
		h.ExportXLSX(w, r, jobID)
	default:
		middleware.WriteError(w, http.StatusNotFound, statement.KindValidation,
			"unknown job resource", nil)
	}
}

// GetJob returns the job in whatever state it is in, failed included.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.Get(jobID)
	if err != nil {
		middleware.WriteErrorFrom(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ExportCSV streams the job's transactions as a CSV download. Only ready
// jobs export; a processing job is a conflict, not an empty file.
func (h *JobsHandler) ExportCSV(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetReady(jobID)
	if err != nil {
		middleware.WriteErrorFrom(w, err)
		return
	}
	out, err := export.CSV(job.Transactions)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("CSV export failed")
		middleware.WriteErrorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(jobID, "csv")+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// ExportXLSX streams the job as a two-sheet workbook.
func (h *JobsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetReady(jobID)
	if err != nil {
		middleware.WriteErrorFrom(w, err)
		return
	}
	out, err := export.XLSX(job)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("XLSX export failed")
		middleware.WriteErrorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(jobID, "xlsx")+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// ChatHandler answers questions about processed statements.
type ChatHandler struct {
	store *jobstore.Store
	chat  *chat.Service
	log   zerolog.Logger
}

func NewChatHandler(store *jobstore.Store, chatSvc *chat.Service, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{store: store, chat: chatSvc, log: log}
}

type chatRequest struct {
	JobID   string                  `json:"job_id"`
	Message string                  `json:"message"`
	History []statement.ChatMessage `json:"history"`
}

// Chat handles POST /api/chat. History is caller-held and replayed on every
// request; the server stores nothing between turns.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, statement.KindValidation,
			"invalid request body", nil)
		return
	}
	if req.JobID == "" {
		middleware.WriteError(w, http.StatusBadRequest, statement.KindValidation,
			"job_id is required", nil)
		return
	}

	job, err := h.store.GetReady(req.JobID)
	if err != nil {
		middleware.WriteErrorFrom(w, err)
		return
	}

	answer, err := h.chat.Ask(r.Context(), job, req.History, req.Message)
	if err != nil {
		middleware.WriteErrorFrom(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"job_id": req.JobID,
		"reply":  answer,
	})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
