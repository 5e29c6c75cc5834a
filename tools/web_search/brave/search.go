package brave

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/tools/web_search/models"
)

const Endpoint = "https://api.search.brave.com/res/v1/web/search"

type Search struct {
	ApiKey  string
	Client  *http.Client
	BaseURL string
}

func (s Search) Name() string { return "brave" }

func (s Search) Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]models.Result, error) {
	// https://api.search.brave.com/app/documentation/web-search
	if k <= 0 {
		k = 10
	}
	query := q
	if len(sites) > 0 {
		parts := make([]string, 0, len(sites))
		for _, site := range sites {
			parts = append(parts, "site:"+site)
		}
		query += " (" + strings.Join(parts, " OR ") + ")"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(k))
	params.Set("safesearch", "off")
	switch {
	case recency <= 0:
	case recency <= 1:
		params.Set("freshness", "pd")
	case recency <= 7:
		params.Set("freshness", "pw")
	case recency <= 31:
		params.Set("freshness", "pm")
	default:
		params.Set("freshness", "py")
	}

	base := s.BaseURL
	if base == "" {
		base = Endpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := helpers.DecodeJSONResponse(resp, &raw); err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	var out []models.Result
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{
			Title:    helpers.PlainText(r.Title),
			URL:      r.URL,
			Snippet:  helpers.PlainText(r.Snippet),
			Position: i + 1,
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
