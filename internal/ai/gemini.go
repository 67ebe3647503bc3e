package ai

import (
	"alcyxob/fitflow/internal/config"
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiCollaborator calls the Gemini API with the user's own API key.
type GeminiCollaborator struct {
	model   string
	baseURL string
	jsonOut bool
}

// NewGeminiCollaborator configures a collaborator from cfg.
func NewGeminiCollaborator(cfg config.AIConfig) *GeminiCollaborator {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiCollaborator{model: model, baseURL: cfg.BaseURL, jsonOut: cfg.StructuredOutput}
}

// Complete sends prompt as a single user turn. A client is created per call because
// the key belongs to the user and may change between calls.
func (g *GeminiCollaborator) Complete(ctx context.Context, prompt, credential string) (string, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return "", fmt.Errorf("%w: creating Gemini client: %v", ErrService, err)
	}

	var genCfg *genai.GenerateContentConfig
	if g.jsonOut {
		genCfg = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", classifyGemini(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", ErrService, g.model)
	}
	return text, nil
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s", classifyStatus(apiErr.Code), apiErr.Message)
	}
	if class, ok := classifyTransport(err); ok {
		return fmt.Errorf("%w: %v", class, err)
	}
	return fmt.Errorf("%w: %v", ErrService, err)
}
