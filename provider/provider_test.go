package provider

import (
	"context"
	"errors"
	"testing"
)

func TestNewCompleter(t *testing.T) {
	tests := []struct {
		name    string
		client  Client
		key     string
		want    string
		wantErr error
	}{
		{"groq", Groq, "k", "groq", nil},
		{"openai", OpenAI, "k", "openai", nil},
		{"missing key", Groq, "", "", ErrMissingAPIKey},
		{"unknown", Client("anthropic"), "k", "", ErrUnsupportedProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCompleter(context.Background(), tt.client, Settings{APIKey: tt.key})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCompleter: %v", err)
			}
			if c.Name() != tt.want {
				t.Fatalf("name = %q", c.Name())
			}
		})
	}
}

func TestNewGrounderRequiresGemini(t *testing.T) {
	if _, err := NewGrounder(context.Background(), Groq, Settings{APIKey: "k"}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
