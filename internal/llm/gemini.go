package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini is the google.golang.org/genai-backed Client.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini client. When apiKey is empty the SDK falls back
// to the GEMINI_API_KEY / GOOGLE_API_KEY environment variables.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create genai client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini/" + g.model }

// Generate maps the request onto genai contents. The system text rides as
// the first user part, matching how statement prompts were built before
// system instructions existed in the v1 surface.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	var contents []*genai.Content

	for i, m := range req.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		parts := []*genai.Part{}
		if i == 0 && req.System != "" && role == "user" {
			parts = append(parts, &genai.Part{Text: req.System + "\n\n" + m.Content})
		} else {
			parts = append(parts, &genai.Part{Text: m.Content})
		}
		// Attach page images to the final user turn.
		if i == len(req.Messages)-1 && role == "user" {
			for _, img := range req.Images {
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: img},
				})
			}
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("llm: empty request")
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("llm: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("llm: empty response from model")
	}
	return text, nil
}
