// Package httpfetch reads static pages over plain HTTP and extracts their text with goquery.
package httpfetch

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mohammad-safakhou/claimcheck/tools/web_fetch/models"
)

const (
	UserAgent = "claimcheck/1.0 (+https://github.com/mohammad-safakhou/claimcheck)"
	maxBody   = 4 << 20
)

type Fetch struct {
	Client   *http.Client
	MaxChars int
}

var contentSelectors = []string{"article", "main", "[role=main]", "#content", ".content", "body"}

func (f Fetch) Exec(ctx context.Context, rawURL string) (models.Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	t0 := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Result{URL: rawURL, Status: 599, Fetcher: "http", RenderMS: elapsed(t0)}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Result{URL: rawURL, Status: resp.StatusCode, Fetcher: "http", RenderMS: elapsed(t0)}, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return models.Result{URL: rawURL, Status: 599, Fetcher: "http", RenderMS: elapsed(t0)}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.Result{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe").Remove()

	title := strings.TrimSpace(doc.Find("meta[property='og:title']").AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	site := strings.TrimSpace(doc.Find("meta[property='og:site_name']").AttrOr("content", ""))
	byline := strings.TrimSpace(doc.Find("meta[name='author']").AttrOr("content", ""))

	var text string
	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text = paragraphs(node)
		if len(text) >= 200 {
			break
		}
	}
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	sum := sha1.Sum(body)
	return models.Result{
		URL:      rawURL,
		Title:    title,
		Byline:   byline,
		SiteName: site,
		Text:     text,
		HTMLHash: hex.EncodeToString(sum[:]),
		Status:   resp.StatusCode,
		RenderMS: elapsed(t0),
		Fetcher:  "http",
	}, nil
}

// paragraphs joins block-level text under sel, falling back to its whole text.
func paragraphs(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p, h1, h2, h3, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.Join(strings.Fields(sel.Text()), " ")
	}
	return strings.Join(parts, "\n")
}

func elapsed(t0 time.Time) int { return int(time.Since(t0) / time.Millisecond) }
