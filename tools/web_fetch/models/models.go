package models

// Result is the readable content of one fetched page.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Byline   string `json:"byline"`
	SiteName string `json:"site_name"`
	Text     string `json:"text"`
	HTMLHash string `json:"html_hash"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
	Fetcher  string `json:"fetcher"`
}

// OK reports whether the fetch produced usable text.
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status < 300 && r.Text != ""
}
