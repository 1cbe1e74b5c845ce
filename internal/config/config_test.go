package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"studiorecorder/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STUDIO_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FFmpeg.Command != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg command: %q", cfg.FFmpeg.Command)
	}
	if cfg.Capture.MinWidth != 1280 || cfg.Capture.MaxWidth != 1920 {
		t.Fatalf("unexpected width bounds: %d-%d", cfg.Capture.MinWidth, cfg.Capture.MaxWidth)
	}
	if cfg.Capture.MinHeight != 720 || cfg.Capture.MaxHeight != 1080 {
		t.Fatalf("unexpected height bounds: %d-%d", cfg.Capture.MinHeight, cfg.Capture.MaxHeight)
	}
	if cfg.Recording.BitsPerSecond != 2_500_000 {
		t.Fatalf("unexpected bitrate: %d", cfg.Recording.BitsPerSecond)
	}
	if cfg.Recording.ChunkInterval() != time.Second {
		t.Fatalf("unexpected chunk interval: %v", cfg.Recording.ChunkInterval())
	}
	if cfg.Recording.OutputFormat() != domain.FormatWebMVP9 {
		t.Fatalf("unexpected format: %v", cfg.Recording.OutputFormat())
	}
	if !cfg.Recording.Compositing || !cfg.Recording.HideControl {
		t.Fatalf("compositing and hide_control default on")
	}
	if cfg.Camera.Shape != "circle" || cfg.Camera.Size != "medium" || !cfg.Camera.Visible {
		t.Fatalf("unexpected camera defaults: %+v", cfg.Camera)
	}
	if cfg.Camera.Inset != 20 {
		t.Fatalf("unexpected camera inset: %d", cfg.Camera.Inset)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[ffmpeg]
command = "/opt/ffmpeg/bin/ffmpeg"

[recording]
format = "mp4"
bits_per_second = 4000000
compositing = false

[camera]
size = "large"
inset = 32
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOME", dir)
	t.Setenv("STUDIO_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FFmpeg.Command != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("file value not applied: %q", cfg.FFmpeg.Command)
	}
	if cfg.Recording.OutputFormat() != domain.FormatMP4 {
		t.Fatalf("unexpected format: %v", cfg.Recording.OutputFormat())
	}
	if cfg.Recording.BitsPerSecond != 4_000_000 {
		t.Fatalf("unexpected bitrate: %d", cfg.Recording.BitsPerSecond)
	}
	if cfg.Recording.Compositing {
		t.Fatalf("compositing should be disabled by file")
	}
	if cfg.Camera.Size != "large" || cfg.Camera.Inset != 32 {
		t.Fatalf("camera file values not applied: %+v", cfg.Camera)
	}
	// Untouched sections keep their defaults.
	if cfg.Capture.FrameRate != 30 {
		t.Fatalf("unexpected frame rate: %d", cfg.Capture.FrameRate)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[recording]\nformat = \"mp4\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOME", dir)
	t.Setenv("STUDIO_CONFIG_FILE", path)
	t.Setenv("STUDIO_OUTPUT_FORMAT", "webm-vp8")
	t.Setenv("STUDIO_FRAME_RATE", "60")
	t.Setenv("STUDIO_HIDE_CONTROL", "off")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Recording.OutputFormat() != domain.FormatWebMVP8 {
		t.Fatalf("env should override file, got %v", cfg.Recording.OutputFormat())
	}
	if cfg.Capture.FrameRate != 60 {
		t.Fatalf("unexpected frame rate: %d", cfg.Capture.FrameRate)
	}
	if cfg.Recording.HideControl {
		t.Fatalf("hide_control should be off")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("not toml at all ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOME", dir)
	t.Setenv("STUDIO_CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestClampRepairsBounds(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.Capture.MinWidth = -1
	cfg.Capture.MaxWidth = 100
	cfg.Capture.MinHeight = 0
	cfg.Recording.ChunkIntervalMS = -5
	clamp(&cfg)

	if cfg.Capture.MinWidth != 1280 || cfg.Capture.MaxWidth != 1280 {
		t.Fatalf("width bounds not repaired: %d-%d", cfg.Capture.MinWidth, cfg.Capture.MaxWidth)
	}
	if cfg.Capture.MinHeight != 720 || cfg.Capture.MaxHeight != 720 {
		t.Fatalf("height bounds not repaired: %d-%d", cfg.Capture.MinHeight, cfg.Capture.MaxHeight)
	}
	if cfg.Recording.ChunkIntervalMS != 1000 {
		t.Fatalf("chunk interval not repaired: %d", cfg.Recording.ChunkIntervalMS)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	cases := []struct {
		value    string
		fallback bool
		want     bool
	}{
		{"1", false, true},
		{"yes", false, true},
		{"off", true, false},
		{"FALSE", true, false},
		{"maybe", true, true},
		{"", false, false},
	}
	for _, tc := range cases {
		t.Setenv("STUDIO_TEST_BOOL", tc.value)
		if got := envOrDefaultBool("STUDIO_TEST_BOOL", tc.fallback); got != tc.want {
			t.Fatalf("envOrDefaultBool(%q, %v) = %v, want %v", tc.value, tc.fallback, got, tc.want)
		}
	}
}
