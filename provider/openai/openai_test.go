package openai_provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
)

func TestCompleteSendsChatRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("authorization = %q", got)
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "llama-3.3-70b-versatile" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected request %#v", req)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json mode")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"status\":\"TRUE\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("groq", "key", srv.URL+"/openai/v1/", "llama-3.3-70b-versatile", 0.1, 512, time.Second)
	got, err := c.Complete(context.Background(), "sys", "prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"status":"TRUE"}` || c.Name() != "groq" {
		t.Fatalf("got %q", got)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"status", http.StatusUnauthorized, `{"error":"bad key"}`, func(err error) bool {
			var se *helpers.StatusError
			return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
		}},
		{"no choices", http.StatusOK, `{"choices":[]}`, func(err error) bool { return errors.Is(err, ErrEmptyCompletion) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			_, err := NewClient("openai", "k", srv.URL, "m", 0, 0, time.Second).WithJSONMode(false).Complete(context.Background(), "", "p")
			if !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}
