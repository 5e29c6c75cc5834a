// Package ytdlp acquires online media with the yt-dlp and ffmpeg command-line tools.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mohammad-safakhou/claimcheck/models"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec, folding stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndex(msg, "\n"); i >= 0 {
			msg = msg[i+1:]
		}
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

type Downloader struct {
	YTDLPPath  string
	FFmpegPath string
	Run        Runner
}

func New(ytdlpPath, ffmpegPath string) *Downloader {
	return &Downloader{YTDLPPath: ytdlpPath, FFmpegPath: ffmpegPath}
}

func (d *Downloader) ytdlp() string {
	if d.YTDLPPath == "" {
		return "yt-dlp"
	}
	return d.YTDLPPath
}

func (d *Downloader) ffmpeg() string {
	if d.FFmpegPath == "" {
		return "ffmpeg"
	}
	return d.FFmpegPath
}

func (d *Downloader) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if d.Run != nil {
		return d.Run(ctx, name, args...)
	}
	return ExecRunner(ctx, name, args...)
}

type info struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Channel    string  `json:"channel"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
}

// Probe reads the media metadata without downloading.
func (d *Downloader) Probe(ctx context.Context, rawURL string) (models.MediaArtifact, error) {
	out, err := d.run(ctx, d.ytdlp(), "--dump-single-json", "--no-playlist", "--skip-download", "--no-warnings", rawURL)
	if err != nil {
		return models.MediaArtifact{}, err
	}
	var meta info
	if err := json.Unmarshal(out, &meta); err != nil {
		return models.MediaArtifact{}, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	uploader := meta.Uploader
	if uploader == "" {
		uploader = meta.Channel
	}
	source := meta.WebpageURL
	if source == "" {
		source = rawURL
	}
	return models.MediaArtifact{
		SourceURL:       source,
		Title:           meta.Title,
		Uploader:        uploader,
		DurationSeconds: int(meta.Duration),
	}, nil
}

// Download fetches the best audio stream into dir and returns the final file path.
func (d *Downloader) Download(ctx context.Context, media models.MediaArtifact, dir string) (string, error) {
	out, err := d.run(ctx, d.ytdlp(),
		"--no-playlist", "--no-warnings", "--no-progress",
		"-f", "bestaudio/best",
		"-o", filepath.Join(dir, "source.%(ext)s"),
		"--print", "after_move:filepath",
		media.SourceURL,
	)
	if err != nil {
		return "", err
	}
	path := lastLine(string(out))
	if path == "" {
		return "", errors.New("yt-dlp did not report a downloaded file")
	}
	return path, nil
}

// ExtractAudio re-encodes mediaPath into a mono 16 kHz MP3, the format speech-to-text handles best.
func (d *Downloader) ExtractAudio(ctx context.Context, mediaPath, dir string) (string, error) {
	out := filepath.Join(dir, "audio.mp3")
	_, err := d.run(ctx, d.ffmpeg(), "-y", "-loglevel", "error", "-i", mediaPath, "-vn", "-ac", "1", "-ar", "16000", "-b:a", "64k", out)
	if err != nil {
		return "", err
	}
	return out, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
