package web_search

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/claimcheck/tools/web_search/brave"
	"github.com/mohammad-safakhou/claimcheck/tools/web_search/models"
	"github.com/mohammad-safakhou/claimcheck/tools/web_search/serper"
)

type WebSearcher interface {
	Name() string
	Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

const DefaultTimeout = 15 * time.Second

var (
	ErrUnsupportedProvider = errors.New("unsupported web search provider")
	ErrMissingAPIKey       = errors.New("web search api key is required")
)

func NewWebSearcher(provider Provider, apiKey string, timeout time.Duration) (WebSearcher, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey, Client: client}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey, Client: client}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
