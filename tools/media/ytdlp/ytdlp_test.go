package ytdlp

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/claimcheck/models"
)

type call struct {
	name string
	args []string
}

func fakeRunner(calls *[]call, out string, err error) Runner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, call{name, args})
		return []byte(out), err
	}
}

func TestProbeParsesMetadata(t *testing.T) {
	var calls []call
	d := &Downloader{Run: fakeRunner(&calls, `{"id":"abc","title":"Debate","channel":"News 4","duration":612.4,"webpage_url":"https://www.youtube.com/watch?v=abc"}`, nil)}
	got, err := d.Probe(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	want := models.MediaArtifact{SourceURL: "https://www.youtube.com/watch?v=abc", Title: "Debate", Uploader: "News 4", DurationSeconds: 612}
	if got != want {
		t.Fatalf("got %#v want %#v", got, want)
	}
	if calls[0].name != "yt-dlp" || calls[0].args[len(calls[0].args)-1] != "https://youtu.be/abc" {
		t.Fatalf("unexpected call %#v", calls[0])
	}
}

func TestDownloadReturnsPrintedPath(t *testing.T) {
	var calls []call
	d := &Downloader{YTDLPPath: "/opt/yt-dlp", Run: fakeRunner(&calls, "[info] done\n/tmp/job/source.webm\n", nil)}
	path, err := d.Download(context.Background(), models.MediaArtifact{SourceURL: "https://youtu.be/abc"}, "/tmp/job")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if path != "/tmp/job/source.webm" {
		t.Fatalf("path = %q", path)
	}
	if calls[0].name != "/opt/yt-dlp" || !strings.Contains(strings.Join(calls[0].args, " "), filepath.Join("/tmp/job", "source.%(ext)s")) {
		t.Fatalf("unexpected call %#v", calls[0])
	}
}

func TestExtractAudioAndErrors(t *testing.T) {
	var calls []call
	d := &Downloader{Run: fakeRunner(&calls, "", nil)}
	out, err := d.ExtractAudio(context.Background(), "/tmp/job/source.webm", "/tmp/job")
	if err != nil || out != filepath.Join("/tmp/job", "audio.mp3") || calls[0].name != "ffmpeg" {
		t.Fatalf("ExtractAudio: %q %v %#v", out, err, calls)
	}

	d = &Downloader{Run: fakeRunner(&calls, "", errors.New("yt-dlp: exit status 1: ERROR: Video unavailable"))}
	if _, err := d.Probe(context.Background(), "https://youtu.be/x"); err == nil || !strings.Contains(err.Error(), "Video unavailable") {
		t.Fatalf("expected runner error, got %v", err)
	}
	d = &Downloader{Run: fakeRunner(&calls, "   ", nil)}
	if _, err := d.Download(context.Background(), models.MediaArtifact{}, "/tmp"); err == nil {
		t.Fatal("expected error when no path is printed")
	}
}
