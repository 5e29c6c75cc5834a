// Package elevenlabs transcribes audio with the ElevenLabs speech-to-text API.
package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammad-safakhou/claimcheck/internal/helpers"
	"github.com/mohammad-safakhou/claimcheck/internal/pipeline"
	"github.com/mohammad-safakhou/claimcheck/models"
)

const Endpoint = "https://api.elevenlabs.io/v1/speech-to-text"

var ErrMissingAPIKey = errors.New("elevenlabs: missing api key")

type Transcriber struct {
	ApiKey  string
	BaseURL string
	Client  *http.Client
}

func New(apiKey, baseURL string, timeout time.Duration) *Transcriber {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Transcriber{ApiKey: apiKey, BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string, opts pipeline.TranscribeOptions) (models.Transcript, error) {
	if t.ApiKey == "" {
		return models.Transcript{}, ErrMissingAPIKey
	}
	f, err := os.Open(audioPath)
	if err != nil {
		return models.Transcript{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return models.Transcript{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return models.Transcript{}, fmt.Errorf("read audio: %w", err)
	}
	model := opts.ModelID
	if model == "" {
		model = pipeline.DefaultModel
	}
	_ = w.WriteField("model_id", model)
	if opts.LanguageCode != "" {
		_ = w.WriteField("language_code", opts.LanguageCode)
	}
	_ = w.WriteField("tag_audio_events", "false")
	if err := w.Close(); err != nil {
		return models.Transcript{}, fmt.Errorf("build upload: %w", err)
	}

	base := t.BaseURL
	if base == "" {
		base = Endpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, &body)
	if err != nil {
		return models.Transcript{}, fmt.Errorf("elevenlabs request: %w", err)
	}
	req.Header.Set("xi-api-key", t.ApiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Transcript{}, fmt.Errorf("elevenlabs transcribe: %w", err)
	}
	var out struct {
		LanguageCode        string  `json:"language_code"`
		LanguageProbability float64 `json:"language_probability"`
		Text                string  `json:"text"`
	}
	if err := helpers.DecodeJSONResponse(resp, &out); err != nil {
		return models.Transcript{}, fmt.Errorf("elevenlabs transcribe: %w", err)
	}
	return models.Transcript{
		Text:             strings.TrimSpace(out.Text),
		LanguageCode:     opts.LanguageCode,
		DetectedLanguage: out.LanguageCode,
	}, nil
}
