// Package llm provides chat-completion clients for the providers that back
// the policy question answering pipeline.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"metropulse/internal/config"
)

// Client is the interface every completion provider implements.
type Client interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Model returns the model the client completes with.
	Model() string
}

// Provider identifies a completion backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ErrNotConfigured is returned when no provider credentials are available.
var ErrNotConfigured = fmt.Errorf("no LLM provider configured: set llm.api_key, OPENAI_API_KEY, or GEMINI_API_KEY")

// NewClient builds a client from configuration. When the config names no
// provider, the environment decides: OPENAI_API_KEY wins over GEMINI_API_KEY.
func NewClient(cfg config.LLMConfig) (Client, error) {
	provider := Provider(strings.ToLower(strings.TrimSpace(cfg.Provider)))
	apiKey := cfg.APIKey

	if provider == "" {
		switch {
		case os.Getenv("OPENAI_API_KEY") != "":
			provider = ProviderOpenAI
		case os.Getenv("GEMINI_API_KEY") != "":
			provider = ProviderGemini
		default:
			return nil, ErrNotConfigured
		}
	}

	timeout := parseTimeout(cfg.Timeout)

	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, ErrNotConfigured
		}
		oc := DefaultOpenAIConfig(apiKey)
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.MaxTokens > 0 {
			oc.MaxTokens = cfg.MaxTokens
		}
		if timeout > 0 {
			oc.Timeout = timeout
		}
		return NewOpenAIClientWithConfig(oc), nil

	case ProviderGemini:
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, ErrNotConfigured
		}
		gc := DefaultGeminiConfig(apiKey)
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			gc.MaxOutputTokens = cfg.MaxTokens
		}
		if timeout > 0 {
			gc.Timeout = timeout
		}
		return NewGeminiClient(gc)

	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// ProviderOf reports which backend a client talks to.
func ProviderOf(c Client) Provider {
	switch c.(type) {
	case *OpenAIClient:
		return ProviderOpenAI
	case *GeminiClient:
		return ProviderGemini
	default:
		return ""
	}
}

func parseTimeout(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
