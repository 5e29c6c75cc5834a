package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the fact-checking service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Research  ResearchConfig  `mapstructure:"research"`
	Dedupe    DedupeConfig    `mapstructure:"dedupe"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Media     MediaConfig     `mapstructure:"media"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and progress stream settings
type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	SubscriberBuffer  int           `mapstructure:"subscriber_buffer"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
}

func (s ServerConfig) Normalize() ServerConfig {
	if strings.TrimSpace(s.Address) == "" {
		s.Address = ":10001"
	}
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = 30 * time.Second
	}
	if s.SubscriberBuffer <= 0 {
		s.SubscriberBuffer = 64
	}
	if s.JobTimeout <= 0 {
		s.JobTimeout = 30 * time.Minute
	}
	return s
}

// PipelineConfig controls the media processing pipeline.
type PipelineConfig struct {
	WorkDir            string        `mapstructure:"work_dir"`
	StatementDelay     time.Duration `mapstructure:"statement_delay"`
	ResearchEnabled    bool          `mapstructure:"research_enabled"`
	CleanupAudio       bool          `mapstructure:"cleanup_audio"`
	DefaultContext     string        `mapstructure:"default_context"`
	DefaultLanguage    string        `mapstructure:"default_language"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	StageTimeout       time.Duration `mapstructure:"stage_timeout"`
	Extractor          string        `mapstructure:"extractor"`
}

func (p PipelineConfig) Normalize() PipelineConfig {
	if strings.TrimSpace(p.WorkDir) == "" {
		p.WorkDir = filepath.Join(os.TempDir(), "claimcheck")
	}
	if p.StatementDelay < 0 {
		p.StatementDelay = 0
	}
	if strings.TrimSpace(p.DefaultContext) == "" {
		p.DefaultContext = "Political speech or interview"
	}
	if strings.TrimSpace(p.DefaultLanguage) == "" {
		p.DefaultLanguage = "en"
	}
	if strings.TrimSpace(p.TranscriptionModel) == "" {
		p.TranscriptionModel = "scribe_v1"
	}
	if p.StageTimeout <= 0 {
		p.StageTimeout = 10 * time.Minute
	}
	return p
}

// ResearchConfig tunes the evidence synthesizer.
type ResearchConfig struct {
	ProviderTimeout      time.Duration `mapstructure:"provider_timeout"`
	ChainTimeout         time.Duration `mapstructure:"chain_timeout"`
	MinWebContent        int           `mapstructure:"min_web_content"`
	DefaultCountry       string        `mapstructure:"default_country"`
	MaxDocuments         int           `mapstructure:"max_documents"`
	OfficialBonus        int           `mapstructure:"official_bonus"`
	GenericBonus         int           `mapstructure:"generic_bonus"`
	ContradictionPenalty int           `mapstructure:"contradiction_penalty"`
	Primary              string        `mapstructure:"primary"`
	Secondary            string        `mapstructure:"secondary"`
	Grounded             string        `mapstructure:"grounded"`
	Documents            string        `mapstructure:"documents"`
	SearchRecencyDays    int           `mapstructure:"search_recency_days"`
	IndexPath            string        `mapstructure:"index_path"`
	IndexRebuildLimit    int           `mapstructure:"index_rebuild_limit"`
}

func (r ResearchConfig) Normalize() ResearchConfig {
	if r.ProviderTimeout <= 0 {
		r.ProviderTimeout = 60 * time.Second
	}
	if r.ChainTimeout <= 0 {
		r.ChainTimeout = 120 * time.Second
	}
	if r.MinWebContent <= 0 {
		r.MinWebContent = 100
	}
	r.DefaultCountry = strings.ToUpper(strings.TrimSpace(r.DefaultCountry))
	if r.DefaultCountry == "" {
		r.DefaultCountry = "US"
	}
	if r.MaxDocuments <= 0 {
		r.MaxDocuments = 5
	}
	r.OfficialBonus = clampInt(r.OfficialBonus, 0, 15, 15)
	r.GenericBonus = clampInt(r.GenericBonus, 0, 5, 5)
	r.ContradictionPenalty = clampInt(r.ContradictionPenalty, 0, 50, 5)
	r.Primary = strings.ToLower(strings.TrimSpace(r.Primary))
	if r.Primary == "" {
		r.Primary = "groq"
	}
	r.Secondary = strings.ToLower(strings.TrimSpace(r.Secondary))
	if r.Secondary == "" {
		r.Secondary = "gemini"
		if r.Primary == "gemini" {
			r.Secondary = "openai"
		}
	}
	r.Grounded = strings.ToLower(strings.TrimSpace(r.Grounded))
	r.Documents = strings.ToLower(strings.TrimSpace(r.Documents))
	if r.Documents == "" {
		r.Documents = r.Primary
	}
	if r.IndexRebuildLimit <= 0 {
		r.IndexRebuildLimit = 1000
	}
	return r
}

func (r ResearchConfig) Validate() error {
	if len(r.DefaultCountry) != 2 {
		return fmt.Errorf("research.default_country must be a two-letter code")
	}
	if r.Primary == r.Secondary {
		return fmt.Errorf("research.primary and research.secondary must differ")
	}
	return nil
}

// DedupeConfig holds the similarity thresholds used when collapsing duplicates.
type DedupeConfig struct {
	Content float64 `mapstructure:"content"`
	URL     float64 `mapstructure:"url"`
	Finding float64 `mapstructure:"finding"`
}

func (d DedupeConfig) Normalize() DedupeConfig {
	d.Content = clampUnit(d.Content, 0.8)
	d.URL = clampUnit(d.URL, 0.9)
	d.Finding = clampUnit(d.Finding, 0.7)
	return d
}

// LLMConfig contains LLM provider configurations keyed by provider name (groq, openai, gemini).
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// Provider returns the named provider, reporting whether it is configured with a key.
func (l LLMConfig) Provider(name string) (LLMProvider, bool) {
	p, ok := l.Providers[strings.ToLower(name)]
	return p, ok && strings.TrimSpace(p.APIKey) != ""
}

func (l LLMConfig) Validate() error {
	for name, p := range l.Providers {
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("llm.providers.%s.temperature must be within [0,2]", name)
		}
		if p.MaxTokens < 0 {
			return fmt.Errorf("llm.providers.%s.max_tokens cannot be negative", name)
		}
		if p.BaseURL != "" {
			if _, err := url.ParseRequestURI(p.BaseURL); err != nil {
				return fmt.Errorf("llm.providers.%s.base_url: %w", name, err)
			}
		}
	}
	return nil
}

// SourcesConfig contains live-search and document fetch settings
type SourcesConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	WebFetch  WebFetchConfig  `mapstructure:"web_fetch"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	Provider     string        `mapstructure:"provider"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func (w WebSearchConfig) Normalize() WebSearchConfig {
	w.Provider = strings.ToLower(strings.TrimSpace(w.Provider))
	if w.Provider == "" {
		w.Provider = "serper"
	}
	if w.MaxResults <= 0 {
		w.MaxResults = 8
	}
	if w.Timeout <= 0 {
		w.Timeout = 15 * time.Second
	}
	return w
}

func (w WebSearchConfig) Validate() error {
	switch w.Provider {
	case "brave", "serper":
		return nil
	default:
		return fmt.Errorf("sources.web_search.provider must be brave or serper")
	}
}

// APIKey returns the key for the configured provider.
func (w WebSearchConfig) APIKey() string {
	if w.Provider == "brave" {
		return w.BraveAPIKey
	}
	return w.SerperAPIKey
}

// WebFetchConfig controls how documents behind search results are fetched.
type WebFetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxChars          int           `mapstructure:"max_chars"`
	RenderWithBrowser bool          `mapstructure:"render_with_browser"`
}

func (w WebFetchConfig) Normalize() WebFetchConfig {
	if w.Timeout <= 0 {
		w.Timeout = 20 * time.Second
	}
	if w.MaxChars <= 0 {
		w.MaxChars = 20000
	}
	return w
}

// MediaConfig contains media acquisition and speech-to-text settings.
type MediaConfig struct {
	YTDLPPath  string           `mapstructure:"ytdlp_path"`
	FFmpegPath string           `mapstructure:"ffmpeg_path"`
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
}

type ElevenLabsConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (m MediaConfig) Normalize() MediaConfig {
	if strings.TrimSpace(m.YTDLPPath) == "" {
		m.YTDLPPath = "yt-dlp"
	}
	if strings.TrimSpace(m.FFmpegPath) == "" {
		m.FFmpegPath = "ffmpeg"
	}
	if m.ElevenLabs.Timeout <= 0 {
		m.ElevenLabs.Timeout = 10 * time.Minute
	}
	return m
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

func (s StorageConfig) Normalize() StorageConfig {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	if s.Driver == "" {
		s.Driver = "sqlite"
	}
	if strings.TrimSpace(s.SQLite.Path) == "" {
		s.SQLite.Path = "claimcheck.db"
	}
	s.Redis = s.Redis.Normalize()
	return s
}

func (s StorageConfig) Validate() error {
	switch s.Driver {
	case "postgres":
		if err := s.Postgres.Validate(); err != nil {
			return err
		}
	case "sqlite", "none":
	default:
		return fmt.Errorf("storage.driver must be postgres, sqlite or none")
	}
	if s.Redis.Enabled {
		return s.Redis.Validate()
	}
	return nil
}

// SQLiteConfig contains embedded database settings
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Stream   string        `mapstructure:"stream"`
	MaxLen   int64         `mapstructure:"maxlen"`
	JobTTL   time.Duration `mapstructure:"job_ttl"`
}

func (r RedisConfig) Normalize() RedisConfig {
	if strings.TrimSpace(r.Port) == "" {
		r.Port = "6379"
	}
	if r.Timeout <= 0 {
		r.Timeout = 5 * time.Second
	}
	if strings.TrimSpace(r.Stream) == "" {
		r.Stream = "claimcheck:progress"
	}
	if r.MaxLen <= 0 {
		r.MaxLen = 10000
	}
	if r.JobTTL <= 0 {
		r.JobTTL = 24 * time.Hour
	}
	return r
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns the connection URL, built from the parts when url is empty.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + port,
		Path:     "/" + p.DBName,
		RawQuery: "sslmode=" + ssl,
	}
	return u.String()
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

func (t TelemetryConfig) Normalize() TelemetryConfig {
	if strings.TrimSpace(t.MetricsPath) == "" {
		t.MetricsPath = "/metrics"
	}
	if !strings.HasPrefix(t.MetricsPath, "/") {
		t.MetricsPath = "/" + t.MetricsPath
	}
	return t
}

// Normalize applies every section's defaults.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.General.LogLevel) == "" {
		c.General.LogLevel = "info"
	}
	c.Server = c.Server.Normalize()
	c.Pipeline = c.Pipeline.Normalize()
	c.Research = c.Research.Normalize()
	c.Pipeline.Extractor = strings.ToLower(strings.TrimSpace(c.Pipeline.Extractor))
	if c.Pipeline.Extractor == "" {
		c.Pipeline.Extractor = c.Research.Primary
	}
	c.Dedupe = c.Dedupe.Normalize()
	c.Sources.WebSearch = c.Sources.WebSearch.Normalize()
	c.Sources.WebFetch = c.Sources.WebFetch.Normalize()
	c.Media = c.Media.Normalize()
	c.Storage = c.Storage.Normalize()
	c.Telemetry = c.Telemetry.Normalize()
}

// Validate checks every section after Normalize.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{c.Research, c.LLM, c.Sources.WebSearch, c.Storage} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.heartbeat_interval", "30s")
	v.SetDefault("server.subscriber_buffer", 64)
	v.SetDefault("server.job_timeout", "30m")
	v.SetDefault("pipeline.statement_delay", "1s")
	v.SetDefault("pipeline.research_enabled", true)
	v.SetDefault("pipeline.cleanup_audio", true)
	v.SetDefault("research.official_bonus", 15)
	v.SetDefault("research.generic_bonus", 5)
	v.SetDefault("research.contradiction_penalty", 5)
	v.SetDefault("dedupe.content", 0.8)
	v.SetDefault("dedupe.url", 0.9)
	v.SetDefault("dedupe.finding", 0.7)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("telemetry.enabled", true)
	// register provider keys so AutomaticEnv can populate them without a config file
	for _, name := range []string{"groq", "openai", "gemini"} {
		v.SetDefault("llm.providers."+name+".api_key", "")
	}
	v.SetDefault("sources.web_search.serper_api_key", "")
	v.SetDefault("sources.web_search.brave_api_key", "")
	v.SetDefault("media.elevenlabs.api_key", "")
}

// LoadConfig loads config from path, or from a file named config in the usual
// locations when path is empty. A missing default file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config") // name of config file (without extension)
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("CLAIMCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match (CLAIMCHECK_*)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func clampInt(v, lo, hi, def int) int {
	if v < lo || v > hi {
		return def
	}
	return v
}

func clampUnit(v, def float64) float64 {
	if v <= 0 || v > 1 {
		return def
	}
	return v
}
