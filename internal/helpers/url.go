package helpers

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"gclid":        {},
	"dclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"igshid":       {},
	"ref":          {},
	"ref_src":      {},
}

// ComparableURL reduces a URL to host+path+query for similarity comparison.
// Scheme, "www.", default ports, fragments, tracking parameters, trailing slashes
// and .html/.htm suffixes are dropped; the remaining query is sorted.
// An unparseable input is returned lowercased and trimmed.
func ComparableURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := parseLoose(raw)
	if err != nil || parsed.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	p := parsed.Path
	if p != "" {
		p = path.Clean(p)
	}
	p = strings.ToLower(strings.TrimSuffix(p, "/"))
	for _, ext := range []string{".html", ".htm"} {
		p = strings.TrimSuffix(p, ext)
	}

	query := parsed.Query()
	keys := make([]string, 0, len(query))
	for key := range query {
		if _, drop := trackingQueryParams[strings.ToLower(key)]; drop || strings.HasPrefix(strings.ToLower(key), "utm_") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var q strings.Builder
	for _, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)
		for _, v := range values {
			if q.Len() > 0 {
				q.WriteByte('&')
			}
			q.WriteString(url.QueryEscape(key))
			if v != "" {
				q.WriteByte('=')
				q.WriteString(url.QueryEscape(v))
			}
		}
	}

	out := host + p
	if q.Len() > 0 {
		out += "?" + q.String()
	}
	return out
}

// Domain returns the lowercased host of raw without "www.", or "" when it has none.
func Domain(raw string) string {
	parsed, err := parseLoose(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// MatchesDomainSuffix reports whether domain equals one of suffixes or is a subdomain of one.
// Suffixes starting with "." (".gov") match any domain ending with them.
func MatchesDomainSuffix(domain string, suffixes []string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, ".") {
			if strings.HasSuffix(domain, s) {
				return true
			}
			continue
		}
		if domain == s || strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}

func parseLoose(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if strings.HasPrefix(raw, "//") {
			return url.Parse("https:" + raw)
		}
		return url.Parse("https://" + raw)
	}
	return parsed, nil
}
