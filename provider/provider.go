package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/claimcheck/internal/research"
	"github.com/mohammad-safakhou/claimcheck/provider/gemini"
	openai_provider "github.com/mohammad-safakhou/claimcheck/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
	Groq   Client = "groq"
	Gemini Client = "gemini"
)

var (
	ErrMissingAPIKey       = errors.New("provider api key not set")
	ErrUnsupportedProvider = errors.New("unsupported LLM provider")
)

// Settings configures one completion endpoint.
type Settings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

var defaultModels = map[Client]string{
	OpenAI: "gpt-4o-mini",
	Groq:   "llama-3.3-70b-versatile",
	Gemini: gemini.DefaultModel,
}

// NewCompleter creates a completion client for the named provider.
func NewCompleter(ctx context.Context, client Client, s Settings) (research.Completer, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", client, ErrMissingAPIKey)
	}
	if s.Model == "" {
		s.Model = defaultModels[client]
	}
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
	switch client {
	case OpenAI:
		return openai_provider.NewClient(string(OpenAI), s.APIKey, s.BaseURL, s.Model, s.Temperature, s.MaxTokens, s.Timeout), nil
	case Groq:
		base := s.BaseURL
		if base == "" {
			base = openai_provider.GroqBaseURL
		}
		return openai_provider.NewClient(string(Groq), s.APIKey, base, s.Model, s.Temperature, s.MaxTokens, s.Timeout), nil
	case Gemini:
		c, err := gemini.NewClient(ctx, s.APIKey, s.BaseURL, s.Model, s.Temperature, s.MaxTokens, s.Timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, client)
	}
}

// NewGrounder returns a search-grounded client when the provider supports it.
func NewGrounder(ctx context.Context, client Client, s Settings) (research.Grounder, error) {
	if client != Gemini {
		return nil, fmt.Errorf("%w: %q has no grounded search", ErrUnsupportedProvider, client)
	}
	c, err := NewCompleter(ctx, client, s)
	if err != nil {
		return nil, err
	}
	return c.(*gemini.Client), nil
}
