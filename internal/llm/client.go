// Package llm provides a narrow, provider-agnostic interface to language
// models. The pipeline depends only on Client; Gemini and OpenAI-compatible
// backends are interchangeable behind it.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Message is one chat turn. Role is "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request is a single model invocation. Images, when present, are JPEG page
// renders attached to the last user turn (vision transcription).
type Request struct {
	System   string
	Messages []Message
	Images   [][]byte
}

// Client generates a text completion for a request.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Options configures provider construction.
type Options struct {
	Provider string // "gemini" or "openai"

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// OpenAI-compatible
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
}

// New builds the configured provider.
func New(ctx context.Context, opts Options) (Client, error) {
	switch opts.Provider {
	case "gemini":
		return NewGemini(ctx, opts.GeminiAPIKey, opts.GeminiModel)
	case "openai":
		hc := opts.HTTPClient
		if hc == nil {
			hc = &http.Client{Timeout: 120 * time.Second}
		}
		return NewOpenAI(opts.BaseURL, opts.APIKey, opts.Model, hc), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
}
