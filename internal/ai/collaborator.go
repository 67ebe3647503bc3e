// Package ai talks to the external text-generation services that write training plans.
package ai

import (
	"alcyxob/fitflow/internal/config"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/invopop/jsonschema"
)

// Failure classes reported by every Collaborator.
var (
	ErrAuth    = errors.New("credential rejected by AI service")
	ErrQuota   = errors.New("AI service quota exceeded")
	ErrNetwork = errors.New("AI service unreachable")
	ErrService = errors.New("AI service error")
)

// Collaborator turns a prompt into free text, authorized by the user's credential.
type Collaborator interface {
	Complete(ctx context.Context, prompt, credential string) (string, error)
}

// New builds the collaborator selected by cfg.Provider. schema, when non-nil and
// structured output is enabled, constrains the reply format where the provider supports it.
func New(cfg config.AIConfig, schema *jsonschema.Schema) (Collaborator, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiCollaborator(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAICollaborator(cfg, schema), nil
	}
	return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
}

// classifyStatus maps an HTTP status returned by a provider to a failure class.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusBadRequest:
		// Both providers answer 400 for a malformed or invalid API key.
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return ErrQuota
	default:
		return ErrService
	}
}

// classifyTransport recognizes failures that never reached the provider.
func classifyTransport(err error) (error, bool) {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrNetwork, true
	}
	return nil, false
}
