package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/tools/web_search/models"
)

const Endpoint = "https://google.serper.dev/search"

type Search struct {
	ApiKey  string
	Client  *http.Client
	BaseURL string
}

func (s Search) Name() string { return "serper" }

func (s Search) Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]models.Result, error) {
	// https://serper.dev/ docs
	if k <= 0 {
		k = 10
	}
	query := q
	if len(sites) > 0 {
		parts := make([]string, 0, len(sites))
		for _, site := range sites {
			parts = append(parts, "site:"+site)
		}
		query += " " + strings.Join(parts, " OR ")
	}
	payload := map[string]any{"q": query, "num": k}
	switch {
	case recency <= 0:
	case recency <= 1:
		payload["tbs"] = "qdr:d"
	case recency <= 7:
		payload["tbs"] = "qdr:w"
	case recency <= 31:
		payload["tbs"] = "qdr:m"
	default:
		payload["tbs"] = "qdr:y"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serper payload: %w", err)
	}
	base := s.BaseURL
	if base == "" {
		base = Endpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	var raw struct {
		Organic []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			Position int    `json:"position"`
		} `json:"organic"`
	}
	if err := helpers.DecodeJSONResponse(resp, &raw); err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}

	var out []models.Result
	for i, it := range raw.Organic {
		if i >= k {
			break
		}
		pos := it.Position
		if pos == 0 {
			pos = i + 1
		}
		out = append(out, models.Result{
			Title: helpers.PlainText(it.Title), URL: it.Link, Snippet: helpers.PlainText(it.Snippet), Position: pos,
		})
	}
	return out, nil
}

func (s Search) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}
