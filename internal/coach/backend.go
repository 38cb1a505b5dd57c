package coach

import (
	"context"
	"fmt"
)

// Backend runs one single-turn completion against a chat provider. The coach
// only ever sends a system prompt plus the learner's transcript.
type Backend interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type BackendOption func(*backendOptions)

type backendOptions struct {
	baseURL string
}

// WithBaseURL points the provider client at an alternate endpoint.
func WithBaseURL(url string) BackendOption {
	return func(o *backendOptions) {
		o.baseURL = url
	}
}

// NewBackend builds the provider backend named by a coach_model spec.
func NewBackend(provider, model, apiKey string, opts ...BackendOption) (Backend, error) {
	o := &backendOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIBackend(apiKey, model, o)
	case "anthropic":
		return newAnthropicBackend(apiKey, model, o)
	case "gemini":
		return newGeminiBackend(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown coach provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}
