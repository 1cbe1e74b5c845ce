package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"studiorecorder/internal/domain"
)

// Config stores runtime configuration for the recording studio backend.
type Config struct {
	FFmpeg       FFmpegConfig       `toml:"ffmpeg"`
	Capture      CaptureConfig      `toml:"capture"`
	Recording    RecordingConfig    `toml:"recording"`
	Camera       CameraConfig       `toml:"camera"`
	Teleprompter TeleprompterConfig `toml:"teleprompter"`
	Logging      LoggingConfig      `toml:"logging"`
}

type FFmpegConfig struct {
	Command string `toml:"command"`
}

type CaptureConfig struct {
	MinWidth  int `toml:"min_width"`
	MaxWidth  int `toml:"max_width"`
	MinHeight int `toml:"min_height"`
	MaxHeight int `toml:"max_height"`
	FrameRate int `toml:"frame_rate"`
}

type RecordingConfig struct {
	Format          string `toml:"format"`
	BitsPerSecond   int    `toml:"bits_per_second"`
	ChunkIntervalMS int    `toml:"chunk_interval_ms"`
	Compositing     bool   `toml:"compositing"`
	HideControl     bool   `toml:"hide_control"`
}

type CameraConfig struct {
	Shape   string `toml:"shape"`
	Size    string `toml:"size"`
	Visible bool   `toml:"visible"`
	Inset   int    `toml:"inset"`
	Device  string `toml:"device"`
}

type TeleprompterConfig struct {
	ScriptPath string `toml:"script_path"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ChunkInterval returns the recorder chunk cadence.
func (r RecordingConfig) ChunkInterval() time.Duration {
	return time.Duration(r.ChunkIntervalMS) * time.Millisecond
}

// OutputFormat parses the configured format, defaulting to webm-vp9.
func (r RecordingConfig) OutputFormat() domain.OutputFormat {
	switch domain.OutputFormat(r.Format) {
	case domain.FormatWebMVP8:
		return domain.FormatWebMVP8
	case domain.FormatMP4:
		return domain.FormatMP4
	default:
		return domain.FormatWebMVP9
	}
}

// Load resolves configuration from an optional TOML file overlaid with
// environment variables and sensible defaults. The file lives at
// ~/.config/studiorecorder/config.toml unless STUDIO_CONFIG_FILE points
// elsewhere.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := defaults()

	path := strings.TrimSpace(os.Getenv("STUDIO_CONFIG_FILE"))
	if path == "" {
		path = filepath.Join(home, ".config", "studiorecorder", "config.toml")
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if _, decErr := toml.DecodeFile(path, &cfg); decErr != nil {
			return Config{}, fmt.Errorf("failed to parse config file %q: %w", path, decErr)
		}
	}

	applyEnv(&cfg)
	clamp(&cfg)

	return cfg, nil
}

func defaults() Config {
	return Config{
		FFmpeg: FFmpegConfig{Command: "ffmpeg"},
		Capture: CaptureConfig{
			MinWidth:  1280,
			MaxWidth:  1920,
			MinHeight: 720,
			MaxHeight: 1080,
			FrameRate: 30,
		},
		Recording: RecordingConfig{
			Format:          string(domain.FormatWebMVP9),
			BitsPerSecond:   2_500_000,
			ChunkIntervalMS: 1000,
			Compositing:     true,
			HideControl:     true,
		},
		Camera: CameraConfig{
			Shape:   string(domain.CameraShapeCircle),
			Size:    string(domain.CameraSizeMedium),
			Visible: true,
			Inset:   20,
			Device:  "default",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func applyEnv(cfg *Config) {
	cfg.FFmpeg.Command = envOrDefault("STUDIO_FFMPEG_COMMAND", cfg.FFmpeg.Command)
	cfg.Capture.FrameRate = envOrDefaultInt("STUDIO_FRAME_RATE", cfg.Capture.FrameRate)
	cfg.Recording.Format = envOrDefault("STUDIO_OUTPUT_FORMAT", cfg.Recording.Format)
	cfg.Recording.BitsPerSecond = envOrDefaultInt("STUDIO_VIDEO_BITRATE", cfg.Recording.BitsPerSecond)
	cfg.Recording.ChunkIntervalMS = envOrDefaultInt("STUDIO_CHUNK_INTERVAL_MS", cfg.Recording.ChunkIntervalMS)
	cfg.Recording.Compositing = envOrDefaultBool("STUDIO_COMPOSITING", cfg.Recording.Compositing)
	cfg.Recording.HideControl = envOrDefaultBool("STUDIO_HIDE_CONTROL", cfg.Recording.HideControl)
	cfg.Camera.Device = envOrDefault("STUDIO_CAMERA_DEVICE", cfg.Camera.Device)
	cfg.Teleprompter.ScriptPath = envOrDefault("STUDIO_TELEPROMPTER_SCRIPT", cfg.Teleprompter.ScriptPath)
	cfg.Logging.Level = envOrDefault("STUDIO_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = envOrDefault("STUDIO_LOG_FORMAT", cfg.Logging.Format)
}

func clamp(cfg *Config) {
	if cfg.Capture.MinWidth <= 0 {
		cfg.Capture.MinWidth = 1280
	}
	if cfg.Capture.MaxWidth < cfg.Capture.MinWidth {
		cfg.Capture.MaxWidth = cfg.Capture.MinWidth
	}
	if cfg.Capture.MinHeight <= 0 {
		cfg.Capture.MinHeight = 720
	}
	if cfg.Capture.MaxHeight < cfg.Capture.MinHeight {
		cfg.Capture.MaxHeight = cfg.Capture.MinHeight
	}
	if cfg.Capture.FrameRate <= 0 {
		cfg.Capture.FrameRate = 30
	}
	if cfg.Recording.BitsPerSecond <= 0 {
		cfg.Recording.BitsPerSecond = 2_500_000
	}
	if cfg.Recording.ChunkIntervalMS <= 0 {
		cfg.Recording.ChunkIntervalMS = 1000
	}
	if cfg.Camera.Inset < 0 {
		cfg.Camera.Inset = 20
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
