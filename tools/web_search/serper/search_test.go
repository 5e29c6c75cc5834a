package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscoverParsesOrganicResults(t *testing.T) {
	var gotQuery map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotQuery)
		_, _ = w.Write([]byte(`{"organic":[
			{"title":"BLS <b>report</b>","link":"https://www.bls.gov/news","snippet":"Unemployment &amp; jobs"},
			{"title":"Second","link":"https://example.com/2","snippet":"two"},
			{"title":"Third","link":"https://example.com/3","snippet":"three"}]}`))
	}))
	defer srv.Close()

	s := Search{ApiKey: "k", BaseURL: srv.URL}
	got, err := s.Discover(context.Background(), "unemployment 3%", 2, []string{"bls.gov"}, 7)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Title != "BLS report" || got[0].Snippet != "Unemployment & jobs" || got[0].Position != 1 {
		t.Fatalf("unexpected first result %+v", got[0])
	}
	if gotQuery["q"] != "unemployment 3% site:bls.gov" || gotQuery["tbs"] != "qdr:w" {
		t.Fatalf("unexpected payload %v", gotQuery)
	}
}

func TestDiscoverReportsUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := (Search{ApiKey: "bad", BaseURL: srv.URL}).Discover(context.Background(), "q", 3, nil, 0); err == nil {
		t.Fatal("expected error for 403")
	}
}
