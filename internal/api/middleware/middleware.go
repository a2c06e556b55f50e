// Package middleware carries the HTTP cross-cutting concerns and the JSON
// response helpers shared by all handlers.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/statement"
)

// Logger adds structured logging to HTTP requests.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("request_id", GetRequestID(r.Context())).
				Msg("HTTP request")
		})
	}
}

// Recovery recovers from panics and returns a 500 error.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("error", err).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("Panic recovered")

					WriteError(w, http.StatusInternalServerError,
						statement.KindInternal, "internal server error", nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RequestID assigns each request a unique id, honoring one the caller sent.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORS restricts browser access to the configured origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         3600,
	})
	return c.Handler
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Context key for request ID.
type contextKey string

const requestIDKey contextKey = "requestID"

// GetRequestID returns the request id stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Kind   statement.ErrorKind `json:"kind"`
	Detail string              `json:"detail"`
	Fields []string            `json:"fields,omitempty"`
	Retry  bool                `json:"retryable"`
}

// WriteError writes a structured JSON error response.
func WriteError(w http.ResponseWriter, status int, kind statement.ErrorKind, detail string, fields []string) {
	WriteJSON(w, status, map[string]errorBody{"error": {
		Kind:   kind,
		Detail: detail,
		Fields: fields,
		Retry:  statement.Retryable(kind),
	}})
}

// WriteErrorFrom maps a pipeline error to its HTTP response. Unclassified
// errors become 500 Internal.
func WriteErrorFrom(w http.ResponseWriter, err error) {
	var se *statement.Error
	if !errors.As(err, &se) {
		WriteError(w, http.StatusInternalServerError, statement.KindInternal, err.Error(), nil)
		return
	}
	WriteError(w, StatusForKind(se.Kind), se.Kind, se.Detail, se.Fields)
}

// StatusForKind maps the error taxonomy onto HTTP status codes.
func StatusForKind(kind statement.ErrorKind) int {
	switch kind {
	case statement.KindJobNotFound:
		return http.StatusNotFound
	case statement.KindJobNotReady:
		return http.StatusConflict
	case statement.KindValidation:
		return http.StatusBadRequest
	case statement.KindDocumentUnreadable, statement.KindEmptyDocument, statement.KindNoTransactionsFound:
		return http.StatusUnprocessableEntity
	case statement.KindOcrUnavailable, statement.KindChatModelUnavailable:
		return http.StatusServiceUnavailable
	case statement.KindMalformedModelOutput, statement.KindVisionExtractionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
