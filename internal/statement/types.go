package statement

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TypeDebit  TransactionType = "debit"
	TypeCredit TransactionType = "credit"
)

// ExtractionMethod identifies how raw text was recovered from the PDF.
type ExtractionMethod string

const (
	// MethodDirect means the PDF had a usable text layer.
	MethodDirect ExtractionMethod = "direct"
	// MethodOCR means pages were rasterized and run through OCR.
	MethodOCR ExtractionMethod = "ocr"
	// MethodVision means pages were transcribed by a vision model.
	MethodVision ExtractionMethod = "vision"
	// MethodVisionDegraded means the vision path lost some pages but
	// enough survived to continue.
	MethodVisionDegraded ExtractionMethod = "vision-degraded"
)

// JobState is the lifecycle state of a processing job.
type JobState string

const (
	StateProcessing JobState = "processing"
	StateReady      JobState = "ready"
	StateFailed     JobState = "failed"
)

// Transaction is one normalized statement row.
//
// Amount is signed: positive means money in (credit), negative means money
// out (debit). Type is authoritative for direction; normalization applies the
// sign implied by Type to the magnitude the model reported, so the two can
// never disagree.
type Transaction struct {
	Date        civil.Date      `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`

	// Page is the 1-based page the row came from, when the extraction path
	// knows it. Zero when unknown; used only to preserve statement order.
	Page int `json:"-"`
}

// CategorySummary is the aggregated total for one category within a job.
type CategorySummary struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// ChatMessage is a single turn of caller-supplied chat history. Never
// persisted server-side.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Job is one processed document and everything derived from it. A Job is
// immutable once State is StateReady; the store hands out copies.
type Job struct {
	ID        string    `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
	Filename  string    `json:"filename"`

	Method ExtractionMethod `json:"method,omitempty"`
	State  JobState         `json:"state"`

	RawText      string            `json:"-"`
	Transactions []Transaction     `json:"transactions,omitempty"`
	Summary      []CategorySummary `json:"summary_by_category,omitempty"`

	// DroppedCandidates counts model candidates that failed validation and
	// were excluded from Transactions.
	DroppedCandidates int `json:"dropped_candidates,omitempty"`

	// Warning carries a non-fatal degradation note, e.g. categorization
	// falling back to Uncategorized across the board.
	Warning string `json:"warning,omitempty"`

	FailureKind   ErrorKind `json:"failure_kind,omitempty"`
	FailureDetail string    `json:"failure_detail,omitempty"`
}

// Clone returns a deep copy of the job so callers can never mutate stored
// state through a returned pointer.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Transactions != nil {
		cp.Transactions = make([]Transaction, len(j.Transactions))
		copy(cp.Transactions, j.Transactions)
	}
	if j.Summary != nil {
		cp.Summary = make([]CategorySummary, len(j.Summary))
		copy(cp.Summary, j.Summary)
	}
	return &cp
}

// Normalize enforces the sign convention: the amount keeps the magnitude the
// model reported and takes its sign from Type.
func (t *Transaction) Normalize() {
	mag := t.Amount.Abs()
	if t.Type == TypeDebit {
		t.Amount = mag.Neg()
	} else {
		t.Amount = mag
	}
}

// Validate checks the Transaction invariants: non-empty description, a real
// date, and an amount with at most two fractional digits.
func (t *Transaction) Validate() error {
	var fields []string
	if strings.TrimSpace(t.Description) == "" {
		fields = append(fields, "description: must not be empty")
	}
	if !t.Date.IsValid() {
		fields = append(fields, fmt.Sprintf("date: %v is not a valid calendar date", t.Date))
	}
	if t.Amount.Exponent() < -2 {
		fields = append(fields, fmt.Sprintf("amount: %s has more than 2 fractional digits", t.Amount))
	}
	if t.Type != TypeDebit && t.Type != TypeCredit {
		fields = append(fields, fmt.Sprintf("type: %q is not debit or credit", t.Type))
	}
	if len(fields) > 0 {
		return &Error{Kind: KindValidation, Detail: "invalid transaction", Fields: fields}
	}
	return nil
}
