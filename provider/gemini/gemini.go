// Package gemini adapts Google's Gemini models to the knowledge and grounded live-search tiers.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mohammad-safakhou/claimcheck/models"
)

const DefaultModel = "gemini-2.5-flash"

var (
	ErrMissingAPIKey = errors.New("gemini: missing api key")
	ErrEmptyResponse = errors.New("gemini: empty response")
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type Client struct {
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	generate    generateFunc
}

func NewClient(ctx context.Context, apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newClient(gc.Models.GenerateContent, model, temperature, maxTokens, timeout), nil
}

func newClient(gen generateFunc, model string, temperature float64, maxTokens int, timeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		model:       model,
		temperature: float32(temperature),
		maxTokens:   int32(maxTokens),
		timeout:     timeout,
		generate:    gen,
	}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) config(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: c.maxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

func (c *Client) call(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.generate(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

// Complete answers from model knowledge in JSON mode.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	cfg := c.config(system)
	cfg.ResponseMIMEType = "application/json"
	resp, err := c.call(ctx, prompt, cfg)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Grounded answers with Google Search grounding and returns the cited web sources.
func (c *Client) Grounded(ctx context.Context, prompt string) (string, []models.SearchResult, error) {
	cfg := c.config("")
	cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	resp, err := c.call(ctx, prompt, cfg)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(resp.Text()), groundingSources(resp), nil
}

// groundingSources lists distinct web chunks in citation order.
func groundingSources(resp *genai.GenerateContentResponse) []models.SearchResult {
	var out []models.SearchResult
	seen := make(map[string]struct{})
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		chunks := cand.GroundingMetadata.GroundingChunks
		for _, ch := range chunks {
			if ch == nil || ch.Web == nil || ch.Web.URI == "" {
				continue
			}
			if _, ok := seen[ch.Web.URI]; ok {
				continue
			}
			seen[ch.Web.URI] = struct{}{}
			title := ch.Web.Title
			if title == "" {
				title = ch.Web.Domain
			}
			out = append(out, models.SearchResult{URL: ch.Web.URI, Title: title, Relevance: 1 - float64(len(out))/float64(len(chunks)+1)})
		}
	}
	return out
}
