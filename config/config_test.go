package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	p := writeConfig(t, "config.yaml", `
general:
  debug: true
llm:
  providers:
    groq:
      api_key: gk
      model: llama-3.3-70b-versatile
storage:
  driver: sqlite
`)
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HeartbeatInterval != 30*time.Second || cfg.Server.SubscriberBuffer != 64 {
		t.Fatalf("unexpected server defaults %#v", cfg.Server)
	}
	if !cfg.Pipeline.ResearchEnabled || !cfg.Pipeline.CleanupAudio || cfg.Pipeline.StatementDelay != time.Second {
		t.Fatalf("unexpected pipeline defaults %#v", cfg.Pipeline)
	}
	if cfg.Pipeline.DefaultContext != "Political speech or interview" || cfg.Pipeline.TranscriptionModel != "scribe_v1" {
		t.Fatalf("unexpected pipeline text defaults %#v", cfg.Pipeline)
	}
	if cfg.Research.MinWebContent != 100 || cfg.Research.DefaultCountry != "US" || cfg.Research.Primary != "groq" || cfg.Research.Secondary != "gemini" {
		t.Fatalf("unexpected research defaults %#v", cfg.Research)
	}
	if cfg.Pipeline.Extractor != "groq" {
		t.Fatalf("extractor = %q", cfg.Pipeline.Extractor)
	}
	if cfg.Dedupe != (DedupeConfig{Content: 0.8, URL: 0.9, Finding: 0.7}) {
		t.Fatalf("unexpected dedupe %#v", cfg.Dedupe)
	}
	if p, ok := cfg.LLM.Provider("GROQ"); !ok || p.Model != "llama-3.3-70b-versatile" {
		t.Fatalf("groq provider not configured: %#v", p)
	}
	if _, ok := cfg.LLM.Provider("openai"); ok {
		t.Fatal("openai should not count as configured without a key")
	}
	if cfg.Telemetry.MetricsPath != "/metrics" {
		t.Fatalf("metrics path = %q", cfg.Telemetry.MetricsPath)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	p := writeConfig(t, "config.json", `{"research": {"primary": "openai"}}`)
	t.Setenv("CLAIMCHECK_LLM_PROVIDERS_GEMINI_API_KEY", "from-env")
	t.Setenv("CLAIMCHECK_SERVER_ADDRESS", ":9999")
	t.Setenv("CLAIMCHECK_DEDUPE_CONTENT", "1.7")

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Fatalf("address = %q", cfg.Server.Address)
	}
	if g, ok := cfg.LLM.Provider("gemini"); !ok || g.APIKey != "from-env" {
		t.Fatalf("gemini key not read from env: %#v", g)
	}
	if cfg.Dedupe.Content != 0.8 {
		t.Fatalf("out-of-range threshold should fall back, got %v", cfg.Dedupe.Content)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad driver", "storage:\n  driver: mysql\n", "storage.driver"},
		{"postgres without host", "storage:\n  driver: postgres\n", "storage.postgres.host"},
		{"redis without host", "storage:\n  redis:\n    enabled: true\n", "storage.redis.host"},
		{"same knowledge providers", "research:\n  primary: groq\n  secondary: groq\n", "must differ"},
		{"bad search provider", "sources:\n  web_search:\n    provider: bing\n", "web_search.provider"},
		{"bad country", "research:\n  default_country: USA\n", "default_country"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "config.yaml", tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "app", Password: "p@ss", DBName: "claims"}
	if got := p.DSN(); got != "postgres://app:p%40ss@db:5432/claims?sslmode=disable" {
		t.Fatalf("dsn = %q", got)
	}
	p.URL = "postgres://x"
	if p.DSN() != "postgres://x" {
		t.Fatal("explicit url should win")
	}
}
