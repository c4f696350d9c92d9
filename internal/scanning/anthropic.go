package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// Anthropic implements the Extractor interface using Claude tool use
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	variant   Variant
}

// NewAnthropic creates a new Anthropic Extractor instance. Extra request
// options are passed to the client, e.g. option.WithBaseURL.
func NewAnthropic(apiKey string, modelName string, variant Variant, opts ...option.RequestOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if modelName == "" {
		modelName = "claude-sonnet-4-5"
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     modelName,
		maxTokens: 8192,
		variant:   variant,
	}, nil
}

// Extract sends every page of the document and validates the forced tool call
func (a *Anthropic) Extract(ctx context.Context, req Request) (*invoice.Extracted, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Pages)+1)
	blocks = append(blocks, anthropic.NewTextBlock(a.variant.UserPrompt))
	for _, page := range req.Pages {
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(page.PNG)))
	}

	schema := Schema(a.variant)
	tool := anthropic.ToolParam{
		Name:        a.variant.FunctionName,
		Description: anthropic.String(a.variant.FunctionDescription),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: schema.propertiesJSONSchema(),
			Required:   schema.Required,
		},
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: a.variant.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: a.variant.FunctionName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}

	slog.Info("model usage",
		"provider", "anthropic",
		"path", req.Path,
		"input_tokens", message.Usage.InputTokens,
		"output_tokens", message.Usage.OutputTokens,
	)

	var text strings.Builder
	for _, block := range message.Content {
		switch block.Type {
		case "tool_use":
			if block.Name != a.variant.FunctionName {
				return nil, &DeclinedError{Provider: "anthropic", Reason: fmt.Sprintf("called unknown tool %q", block.Name)}
			}
			return Validate(block.Input, a.variant)
		case "text":
			text.WriteString(block.Text)
		}
	}

	return nil, &DeclinedError{Provider: "anthropic", Reason: truncate(text.String(), 200)}
}

// Close is a no-op; the HTTP client needs no cleanup
func (a *Anthropic) Close() error {
	return nil
}
