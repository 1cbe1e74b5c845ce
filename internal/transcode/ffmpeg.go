// Package transcode converts finished recordings into other containers by
// invoking ffmpeg as a child process.
package transcode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// FFmpeg transcodes a webm capture into an H.264/AAC mp4 with the moov atom
// relocated for progressive playback. Once started a transcode runs to
// completion or failure; there is no cancellation path.
type FFmpeg struct {
	command string
	log     *slog.Logger
}

func NewFFmpeg(command string, log *slog.Logger) *FFmpeg {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpeg{command: command, log: log}
}

func (t *FFmpeg) Transcode(ctx context.Context, inputPath string, outputPath string) error {
	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, t.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create transcoder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start transcoder: %w", err)
	}

	t.consumeProgress(stdout)

	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("transcode failed: %w: %s", err, msg)
		}
		return fmt.Errorf("transcode failed: %w", err)
	}
	return nil
}

// consumeProgress drains ffmpeg's key=value progress stream, logging the
// encoded timestamp as it advances.
func (t *FFmpeg) consumeProgress(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if value, ok := strings.CutPrefix(line, "out_time="); ok {
			t.log.Debug("transcode progress", "out_time", value)
		}
	}
}
