package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-insights/internal/chat"
	"github.com/dvloznov/statement-insights/internal/extract"
	"github.com/dvloznov/statement-insights/internal/jobstore"
	"github.com/dvloznov/statement-insights/internal/llm"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/statement"
)

type fakeModel struct {
	outputs []string
	calls   int
}

func (f *fakeModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.outputs) {
		return f.outputs[i], nil
	}
	return "", nil
}

func (f *fakeModel) Name() string { return "fake" }

type fakeExtractor struct{ doc *extract.Document }

func (f *fakeExtractor) Extract(ctx context.Context, pdf []byte) (*extract.Document, error) {
	return f.doc, nil
}

func (f *fakeExtractor) Rasterize(ctx context.Context, pdf []byte, dpi float64) ([][]byte, error) {
	return [][]byte{{1}}, nil
}

type fakeOCR struct{ text string }

func (f *fakeOCR) Recognize(ctx context.Context, pages [][]byte) (string, error) {
	return f.text, nil
}

type fakeVision struct{}

func (f *fakeVision) Transcribe(ctx context.Context, pages [][]byte) (string, bool, error) {
	return "", false, statement.NewError(statement.KindVisionExtractionFailed, "no vision in tests")
}

const extractionOutput = `[
	{"date":"2024-03-01","description":"COFFEE SHOP","amount":"42.50","type":"debit"},
	{"date":"2024-03-15","description":"SALARY","amount":"1500.00","type":"credit"}
]`

const categorizationOutput = `[
	{"index": 1, "category": "Dining"},
	{"index": 2, "category": "Other"}
]`

func newTestStack(t *testing.T, model *fakeModel) (*DocumentsHandler, *JobsHandler, *ChatHandler, *jobstore.Store) {
	t.Helper()
	log := zerolog.Nop()
	store := jobstore.New(0, 0, log)
	doc := &extract.Document{
		Pages:          []extract.Page{{Number: 1, Text: strings.Repeat("statement text ", 20)}},
		Classification: extract.Digital,
	}
	proc := pipeline.NewProcessor(&fakeExtractor{doc: doc}, &fakeOCR{}, &fakeVision{},
		model, store, pipeline.Options{}, log)

	docs := NewDocumentsHandler(proc, 20<<20, time.Minute, log)
	jobs := NewJobsHandler(store, log)
	chatH := NewChatHandler(store, chat.New(model, log), log)
	return docs, jobs, chatH, store
}

func multipartPDF(t *testing.T, field, filename string, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestProcessDocument(t *testing.T) {
	model := &fakeModel{outputs: []string{extractionOutput, categorizationOutput}}
	docs, _, _, store := newTestStack(t, model)

	body, contentType := multipartPDF(t, "file", "march.pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	docs.ProcessDocument(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var job statement.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, statement.StateReady, job.State)
	assert.Equal(t, statement.MethodDirect, job.Method)
	assert.Len(t, job.Transactions, 2)

	stored, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "march.pdf", stored.Filename)
}

func TestProcessDocumentMissingFile(t *testing.T) {
	docs, _, _, _ := newTestStack(t, &fakeModel{})

	body, contentType := multipartPDF(t, "wrong_field", "march.pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	docs.ProcessDocument(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(statement.KindValidation))
}

func TestProcessDocumentRejectsNonPDF(t *testing.T) {
	docs, _, _, _ := newTestStack(t, &fakeModel{})

	body, contentType := multipartPDF(t, "file", "statement.docx", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	docs.ProcessDocument(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessDocumentBadMethodHint(t *testing.T) {
	docs, _, _, _ := newTestStack(t, &fakeModel{})

	body, contentType := multipartPDF(t, "file", "march.pdf",
		map[string]string{"scanned_method": "telepathy"})
	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	docs.ProcessDocument(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	_, jobs, _, _ := newTestStack(t, &fakeModel{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/no-such-id", nil)
	rec := httptest.NewRecorder()
	jobs.Route(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), string(statement.KindJobNotFound))
}

func TestExportCSV(t *testing.T) {
	model := &fakeModel{outputs: []string{extractionOutput, categorizationOutput}}
	docs, jobs, _, _ := newTestStack(t, model)

	body, contentType := multipartPDF(t, "file", "march.pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	docs.ProcessDocument(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var job statement.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID+"/csv", nil)
	rec = httptest.NewRecorder()
	jobs.Route(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), job.ID)

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"date", "description", "amount", "type", "category"}, records[0])
	assert.Equal(t, "-42.50", records[1][2])
}

func TestExportNotReady(t *testing.T) {
	_, jobs, _, store := newTestStack(t, &fakeModel{})
	inflight := store.Create("pending.pdf")

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+inflight.ID+"/csv", nil)
	rec := httptest.NewRecorder()
	jobs.Route(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), string(statement.KindJobNotReady))
}

func TestExportFailedJobSurfacesFailureKind(t *testing.T) {
	_, jobs, _, store := newTestStack(t, &fakeModel{})
	job := store.Create("empty.pdf")
	_, err := store.Fail(job.ID, statement.KindNoTransactionsFound, "nothing there")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID+"/csv", nil)
	rec := httptest.NewRecorder()
	jobs.Route(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), string(statement.KindNoTransactionsFound))
}

func TestChat(t *testing.T) {
	model := &fakeModel{outputs: []string{extractionOutput, categorizationOutput,
		"You spent 42.50 at COFFEE SHOP."}}
	docs, _, chatH, _ := newTestStack(t, model)

	body, contentType := multipartPDF(t, "file", "march.pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	docs.ProcessDocument(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var job statement.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	payload, err := json.Marshal(map[string]any{
		"job_id":  job.ID,
		"message": "how much on coffee?",
		"history": []statement.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	rec = httptest.NewRecorder()
	chatH.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "You spent 42.50 at COFFEE SHOP.", resp["reply"])
}

func TestChatUnknownJob(t *testing.T) {
	_, _, chatH, _ := newTestStack(t, &fakeModel{})

	payload := `{"job_id":"missing","message":"anything"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	chatH.Chat(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
