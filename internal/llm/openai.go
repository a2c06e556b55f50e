package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAI talks to any OpenAI-compatible chat/completions endpoint, including
// local model servers. Only the base URL, key, and model differ per
// deployment.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewOpenAI(baseURL, apiKey, model string, hc *http.Client) *OpenAI {
	return &OpenAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    hc,
	}
}

func (o *OpenAI) Name() string { return "openai/" + o.model }

type chatContentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImageURL  `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	for i, m := range req.Messages {
		if i == len(req.Messages)-1 && m.Role == "user" && len(req.Images) > 0 {
			parts := []chatContentPart{{Type: "text", Text: m.Content}}
			for _, img := range req.Images {
				url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)
				parts = append(parts, chatContentPart{Type: "image_url", ImageURL: &chatImageURL{URL: url}})
			}
			msgs = append(msgs, chatMessage{Role: m.Role, Content: parts})
			continue
		}
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	body := map[string]any{
		"model":       o.model,
		"temperature": 0,
		"messages":    msgs,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: http error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices in response")
	}
	text := strings.TrimSpace(cc.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("llm: empty response from model")
	}
	return text, nil
}
