package scanning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// Gemini implements the Extractor interface using Google Gemini function calling
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	variant Variant
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(apiKey string, modelName string, variant Variant) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(variant.SystemPrompt)},
	}
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        variant.FunctionName,
			Description: variant.FunctionDescription,
			Parameters:  genaiSchema(Schema(variant)),
		}},
	}}

	return &Gemini{
		client:  client,
		model:   model,
		variant: variant,
	}, nil
}

// Extract sends every page of the document and validates the function call
func (g *Gemini) Extract(ctx context.Context, req Request) (*invoice.Extracted, error) {
	// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
	parts := make([]genai.Part, 0, len(req.Pages)+1)
	parts = append(parts, genai.Text(g.variant.UserPrompt))
	for _, page := range req.Pages {
		parts = append(parts, genai.ImageData("png", page.PNG))
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	usage := []any{"provider", "gemini", "path", req.Path, "output_tokens", candidateTokens(resp)}
	if count, err := g.model.CountTokens(ctx, parts...); err != nil {
		slog.Warn("counting input tokens", "path", req.Path, "error", err)
	} else {
		usage = append(usage, "input_tokens", count.TotalTokens)
	}
	slog.Info("model usage", usage...)

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &DeclinedError{Provider: "gemini", Reason: "no candidates in response"}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.FunctionCall:
			return g.validateCall(p)
		case *genai.FunctionCall:
			return g.validateCall(*p)
		case genai.Text:
			text.WriteString(string(p))
		}
	}

	return nil, &DeclinedError{Provider: "gemini", Reason: truncate(text.String(), 200)}
}

func (g *Gemini) validateCall(call genai.FunctionCall) (*invoice.Extracted, error) {
	if call.Name != g.variant.FunctionName {
		return nil, &DeclinedError{Provider: "gemini", Reason: fmt.Sprintf("called unknown function %q", call.Name)}
	}
	raw, err := json.Marshal(call.Args)
	if err != nil {
		return nil, fmt.Errorf("marshaling function arguments: %w", err)
	}
	return Validate(raw, g.variant)
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

func genaiSchema(f Field) *genai.Schema {
	s := &genai.Schema{
		Type:        genaiType(f.Type),
		Description: f.Description,
		Required:    f.Required,
	}
	if len(f.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(f.Properties))
		for _, p := range f.Properties {
			s.Properties[p.Name] = genaiSchema(p)
		}
	}
	if f.Items != nil {
		s.Items = genaiSchema(*f.Items)
	}
	return s
}

func genaiType(t FieldType) genai.Type {
	switch t {
	case TypeNumber:
		return genai.TypeNumber
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}

// candidateTokens sums the output tokens reported per candidate.
func candidateTokens(resp *genai.GenerateContentResponse) int32 {
	var n int32
	for _, c := range resp.Candidates {
		if c != nil {
			n += c.TokenCount
		}
	}
	return n
}

// truncate keeps at most n runes of the trimmed string.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
