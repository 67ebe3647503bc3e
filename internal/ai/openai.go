package ai

import (
	"alcyxob/fitflow/internal/config"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAICollaborator calls any OpenAI-compatible chat completions endpoint.
type OpenAICollaborator struct {
	model   string
	baseURL string
	schema  *jsonschema.Schema // nil unless structured output is enabled
}

// NewOpenAICollaborator configures a collaborator from cfg.
func NewOpenAICollaborator(cfg config.AIConfig, schema *jsonschema.Schema) *OpenAICollaborator {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	c := &OpenAICollaborator{model: model, baseURL: cfg.BaseURL}
	if cfg.StructuredOutput {
		c.schema = schema
	}
	return c
}

func (o *OpenAICollaborator) Complete(ctx context.Context, prompt, credential string) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(credential),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if o.schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "training_plan",
					Description: openai.String("A 7-day gym routine"),
					Schema:      o.schema,
				},
			},
		}
	}

	chat, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned by %s", ErrService, o.model)
	}
	text := strings.TrimSpace(chat.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", ErrService, o.model)
	}
	return text, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", classifyStatus(apiErr.StatusCode), apiErr.StatusCode, apiErr.Message)
	}
	if class, ok := classifyTransport(err); ok {
		return fmt.Errorf("%w: %v", class, err)
	}
	return fmt.Errorf("%w: %v", ErrService, err)
}
