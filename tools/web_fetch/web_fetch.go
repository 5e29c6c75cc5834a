package web_fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/claimcheck/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/claimcheck/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/claimcheck/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
	// MinRenderedChars is the text length under which the auto fetcher retries with a browser.
	MinRenderedChars = 200
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
	AutoFetcherType     FetcherType = "auto"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	plain := httpfetch.Fetch{Client: &http.Client{Timeout: timeout}, MaxChars: maxChars}
	browser := chromedp.Fetch{Timeout: timeout, MaxChars: maxChars}
	switch fetcherType {
	case HTTPFetcherType, "":
		return plain, nil
	case ChromedpFetcherType:
		return browser, nil
	case AutoFetcherType:
		return Fallback{Primary: plain, Secondary: browser, MinChars: MinRenderedChars}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}

// Fallback renders with Secondary when Primary fails or returns too little text.
type Fallback struct {
	Primary   WebFetcher
	Secondary WebFetcher
	MinChars  int
}

func (f Fallback) Exec(ctx context.Context, url string) (models.Result, error) {
	res, err := f.Primary.Exec(ctx, url)
	if err == nil && res.OK() && len(res.Text) >= f.MinChars {
		return res, nil
	}
	alt, altErr := f.Secondary.Exec(ctx, url)
	if altErr != nil {
		if err != nil {
			return models.Result{}, err
		}
		return res, nil
	}
	if !alt.OK() && err == nil {
		return res, nil
	}
	return alt, nil
}
