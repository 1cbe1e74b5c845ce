// Package save persists a finished recording, optionally transcoding the
// captured container into mp4 on the way out.
package save

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studiorecorder/internal/domain"
	"studiorecorder/internal/ports"
)

// CanonicalExtension resolves the output extension from the requested format.
// An mp4 format forces the mp4 extension regardless of the caller's choice;
// every webm variant forces webm. The result is stable under reapplication.
func CanonicalExtension(extension string, format string) string {
	switch domain.OutputFormat(format) {
	case domain.FormatMP4:
		return "mp4"
	case domain.FormatWebMVP9, domain.FormatWebMVP8:
		return "webm"
	}
	if strings.EqualFold(format, "webm") {
		return "webm"
	}

	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
	if ext == "" {
		return "webm"
	}
	return ext
}

// Pipeline writes recordings to user-chosen destinations. Every failure mode
// below this boundary collapses to a false return: callers cannot distinguish
// cancellation from write or transcode failure. That contract is deliberate
// and the individual causes are logged instead.
type Pipeline struct {
	dialog     ports.SaveDialog
	transcoder ports.Transcoder
	log        *slog.Logger

	tempDir string
	now     func() time.Time
}

func NewPipeline(dialog ports.SaveDialog, transcoder ports.Transcoder, log *slog.Logger) *Pipeline {
	return &Pipeline{
		dialog:     dialog,
		transcoder: transcoder,
		log:        log,
		tempDir:    os.TempDir(),
		now:        time.Now,
	}
}

// Save prompts for a destination and writes the buffer, transcoding first
// when the target format is mp4. Returns false on dismissal or any failure.
func (p *Pipeline) Save(ctx context.Context, buffer []byte, extension string, format string) bool {
	ext := CanonicalExtension(extension, format)
	stamp := p.now().UnixMilli()
	defaultName := fmt.Sprintf("recording-%d.%s", stamp, ext)

	path, err := p.dialog.PromptSavePath(ctx, defaultName, ext)
	if err != nil {
		p.log.Error("save dialog failed", "err", err)
		return false
	}
	if path == "" {
		p.log.Info("save dismissed")
		return false
	}

	// The user's chosen extension is rewritten rather than rejected.
	if current := filepath.Ext(path); !strings.EqualFold(current, "."+ext) {
		path = strings.TrimSuffix(path, current) + "." + ext
	}

	if domain.OutputFormat(format) == domain.FormatMP4 {
		return p.saveMP4(ctx, buffer, path, stamp)
	}

	if err := os.WriteFile(path, buffer, 0o644); err != nil {
		p.log.Error("recording write failed", "path", path, "err", err)
		return false
	}
	p.log.Info("recording saved", "path", path, "bytes", len(buffer))
	return true
}

// saveMP4 stages the raw capture in the temp directory, transcodes it to
// H.264/AAC, and removes the staging file whether or not transcoding worked.
func (p *Pipeline) saveMP4(ctx context.Context, buffer []byte, path string, stamp int64) bool {
	tempPath := filepath.Join(p.tempDir, fmt.Sprintf("temp-recording-%d.webm", stamp))
	if err := os.WriteFile(tempPath, buffer, 0o644); err != nil {
		p.log.Error("temp recording write failed", "path", tempPath, "err", err)
		return false
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			p.log.Warn("temp recording cleanup failed", "path", tempPath, "err", err)
		}
	}()

	if err := p.transcoder.Transcode(ctx, tempPath, path); err != nil {
		p.log.Error("transcode failed", "path", path, "err", err)
		return false
	}
	p.log.Info("recording saved", "path", path, "bytes", len(buffer), "format", "mp4")
	return true
}
