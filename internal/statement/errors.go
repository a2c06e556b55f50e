package statement

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the machine-readable error taxonomy exposed to callers.
type ErrorKind string

const (
	// KindDocumentUnreadable means the PDF could not be opened or parsed.
	KindDocumentUnreadable ErrorKind = "DocumentUnreadable"
	// KindEmptyDocument means the PDF had zero pages.
	KindEmptyDocument ErrorKind = "EmptyDocument"
	// KindOcrUnavailable means the OCR engine is not installed or not runnable.
	KindOcrUnavailable ErrorKind = "OcrUnavailable"
	// KindVisionExtractionFailed means every page of the vision path failed.
	KindVisionExtractionFailed ErrorKind = "VisionExtractionFailed"
	// KindNoTransactionsFound means non-empty input produced zero valid rows.
	KindNoTransactionsFound ErrorKind = "NoTransactionsFound"
	// KindMalformedModelOutput means the model response stayed unparseable
	// after repair attempts.
	KindMalformedModelOutput ErrorKind = "MalformedModelOutput"
	// KindCategorizationFailed means the categorization call itself errored.
	// Non-fatal: the extracted transactions survive uncategorized.
	KindCategorizationFailed ErrorKind = "CategorizationFailed"
	// KindJobNotFound means the job id is unknown (or evicted).
	KindJobNotFound ErrorKind = "JobNotFound"
	// KindJobNotReady means the job exists but the pipeline has not finished.
	KindJobNotReady ErrorKind = "JobNotReady"
	// KindChatModelUnavailable means the chat model call failed upstream.
	KindChatModelUnavailable ErrorKind = "ChatModelUnavailable"
	// KindValidation covers caller-input problems (bad file, bad fields).
	KindValidation ErrorKind = "ValidationFailed"
	// KindInternal covers unexpected failures with no better classification,
	// including pipeline timeouts.
	KindInternal ErrorKind = "Internal"
)

// Error is the error type surfaced at component boundaries. Kind is stable
// and machine-readable; Detail is for humans; Fields carries per-field
// validation messages when there are several.
type Error struct {
	Kind   ErrorKind
	Detail string
	Fields []string
	err    error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Detail, strings.Join(e.Fields, "; "))
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.err }

// NewError builds an Error with the given kind and detail.
func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Errorf builds an Error with a formatted detail string.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error that wraps an underlying cause.
func WrapError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, err: err}
}

// KindOf returns the ErrorKind carried by err, or "" when err has none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the caller may sensibly retry the operation.
// The service itself never retries; retry/backoff policy belongs to the UI.
func Retryable(kind ErrorKind) bool {
	return kind == KindVisionExtractionFailed || kind == KindChatModelUnavailable
}
