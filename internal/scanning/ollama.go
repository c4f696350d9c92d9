package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// Ollama implements the Extractor interface using Ollama structured outputs
type Ollama struct {
	baseURL string
	model   string
	variant Variant
	client  *http.Client
}

// NewOllama creates a new Ollama Extractor instance
// The model must accept images, e.g. llama3.2-vision or qwen2.5vl.
// Requests are bounded by the caller's context.
func NewOllama(baseURL string, modelName string, variant Variant) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llama3.2-vision"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		variant: variant,
		client:  &http.Client{},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   map[string]any  `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Extract sends every page of the document and validates the structured reply
func (o *Ollama) Extract(ctx context.Context, req Request) (*invoice.Extracted, error) {
	images := make([]string, len(req.Pages))
	for i, page := range req.Pages {
		images[i] = base64.StdEncoding.EncodeToString(page.PNG)
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: o.variant.SystemPrompt,
			},
			{
				Role:    "user",
				Content: o.variant.UserPrompt,
				Images:  images,
			},
		},
		Format:  Schema(o.variant).JSONSchema(),
		Options: map[string]any{"temperature": 0},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	slog.Info("model usage",
		"provider", "ollama",
		"path", req.Path,
		"input_tokens", chatResp.PromptEvalCount,
		"output_tokens", chatResp.EvalCount,
	)

	raw, ok := extractJSONObject(chatResp.Message.Content)
	if !ok {
		return nil, &DeclinedError{Provider: "ollama", Reason: truncate(chatResp.Message.Content, 200)}
	}
	return Validate(raw, o.variant)
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
