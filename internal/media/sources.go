package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"studiorecorder/internal/domain"
)

const (
	portalName       = "org.freedesktop.portal.Desktop"
	portalPath       = "/org/freedesktop/portal/desktop"
	screenCastIface  = "org.freedesktop.portal.ScreenCast"
	propertiesGet    = "org.freedesktop.DBus.Properties.Get"
	enumerateTimeout = 5 * time.Second

	portalSourceMonitor uint32 = 1
	portalSourceWindow  uint32 = 2
)

// SourceProvider enumerates screens and windows for the catalog.
//
// On X11 it shells out to xrandr and wmctrl; under Wayland per-window
// enumeration is not possible, so the provider consults the screen-cast
// portal and offers whole-monitor entries only. On darwin the avfoundation
// device listing provides the screens; on windows only the whole desktop is
// offered, since gdigrab addresses windows by title and no title enumeration
// tool ships with the platform.
type SourceProvider struct {
	command string
	log     *slog.Logger
}

func NewSourceProvider(command string, log *slog.Logger) *SourceProvider {
	if command == "" {
		command = "ffmpeg"
	}
	return &SourceProvider{command: command, log: log}
}

func (p *SourceProvider) Sources(ctx context.Context) ([]domain.CaptureSource, error) {
	ctx, cancel := context.WithTimeout(ctx, enumerateTimeout)
	defer cancel()

	switch runtime.GOOS {
	case "linux":
		if strings.EqualFold(os.Getenv("XDG_SESSION_TYPE"), "wayland") {
			return p.portalSources()
		}
		sources := p.screens(ctx)
		sources = append(sources, p.windows(ctx)...)
		if len(sources) == 0 {
			return nil, fmt.Errorf("no capturable sources found")
		}
		return sources, nil
	case "darwin":
		return p.avfoundationScreens(ctx)
	case "windows":
		return []domain.CaptureSource{{ID: "screen:0", Name: "Entire Screen"}}, nil
	default:
		return nil, fmt.Errorf("source enumeration is not supported on %s", runtime.GOOS)
	}
}

// avfoundationScreens lists the capturable screens through ffmpeg's
// avfoundation device listing. The bracketed device index doubles as the
// capture input index.
func (p *SourceProvider) avfoundationScreens(ctx context.Context) ([]domain.CaptureSource, error) {
	cmd := exec.CommandContext(ctx, p.command,
		"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
	// The listing goes to stderr and the command exits non-zero by design.
	out, _ := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("device listing timeout after %s", enumerateTimeout)
	}

	sources := parseAVFoundationScreens(string(out))
	if len(sources) == 0 {
		return nil, fmt.Errorf("no capturable screen devices found")
	}
	return sources, nil
}

// parseAVFoundationScreens extracts "Capture screen" devices from the
// avfoundation listing, e.g. "[AVFoundation indev @ 0x...] [1] Capture screen 0".
func parseAVFoundationScreens(listing string) []domain.CaptureSource {
	var sources []domain.CaptureSource
	for _, line := range strings.Split(listing, "\n") {
		if !strings.Contains(line, "Capture screen") {
			continue
		}
		open := strings.LastIndex(line, "[")
		if open < 0 {
			continue
		}
		rest := line[open+1:]
		end := strings.Index(rest, "]")
		if end < 0 {
			continue
		}
		index := rest[:end]
		if _, err := strconv.Atoi(index); err != nil {
			continue
		}
		sources = append(sources, domain.CaptureSource{
			ID:   "screen:" + index,
			Name: strings.TrimSpace(rest[end+1:]),
		})
	}
	return sources
}

// portalSources asks the desktop portal which source classes exist. The
// portal never exposes individual window titles, so entries are generic.
func (p *SourceProvider) portalSources() ([]domain.CaptureSource, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("desktop portal unavailable: %w", err)
	}

	obj := conn.Object(portalName, dbus.ObjectPath(portalPath))
	call := obj.Call(propertiesGet, 0, screenCastIface, "AvailableSourceTypes")
	if call.Err != nil {
		return nil, fmt.Errorf("desktop portal unavailable: %w", call.Err)
	}

	var value any
	if err := call.Store(&value); err != nil {
		return nil, fmt.Errorf("desktop portal returned unexpected payload: %w", err)
	}
	types, ok := value.(uint32)
	if !ok {
		return nil, fmt.Errorf("desktop portal returned unexpected type %T", value)
	}

	var sources []domain.CaptureSource
	if types&portalSourceMonitor != 0 {
		sources = append(sources, domain.CaptureSource{ID: "screen:0", Name: "Entire Screen"})
	}
	if types&portalSourceWindow != 0 {
		sources = append(sources, domain.CaptureSource{ID: "window:portal", Name: "Application Window"})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("desktop portal reports no capturable source types")
	}
	return sources, nil
}

// screens lists monitors via `xrandr --listmonitors`, attaching a best-effort
// single-frame thumbnail.
func (p *SourceProvider) screens(ctx context.Context) []domain.CaptureSource {
	out, err := exec.CommandContext(ctx, "xrandr", "--listmonitors").Output()
	if err != nil {
		p.log.Warn("monitor enumeration failed", "err", err)
		return nil
	}

	var sources []domain.CaptureSource
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		// " 0: +*eDP-1 1920/309x1080/174+0+0  eDP-1"
		if len(fields) < 4 || !strings.HasSuffix(fields[0], ":") {
			continue
		}
		index := strings.TrimSuffix(fields[0], ":")
		name := fields[len(fields)-1]
		sources = append(sources, domain.CaptureSource{
			ID:        "screen:" + index,
			Name:      "Screen " + index + " (" + name + ")",
			Thumbnail: p.thumbnail(ctx),
		})
	}
	return sources
}

// windows lists titled X11 windows via `wmctrl -l`.
func (p *SourceProvider) windows(ctx context.Context) []domain.CaptureSource {
	out, err := exec.CommandContext(ctx, "wmctrl", "-l").Output()
	if err != nil {
		p.log.Warn("window enumeration failed", "err", err)
		return nil
	}

	var sources []domain.CaptureSource
	for _, line := range strings.Split(string(out), "\n") {
		// "0x04000007  0 host Window Title"
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		title := strings.Join(fields[3:], " ")
		sources = append(sources, domain.CaptureSource{
			ID:   "window:" + fields[0],
			Name: title,
		})
	}
	return sources
}

// thumbnail grabs one downscaled frame of the display as a PNG data URI.
// Failures are logged and yield an empty thumbnail.
func (p *SourceProvider) thumbnail(ctx context.Context) string {
	display := strings.TrimSpace(os.Getenv("DISPLAY"))
	if display == "" {
		display = ":0"
	}

	cmd := exec.CommandContext(ctx, p.command,
		"-v", "error", "-nostdin",
		"-f", "x11grab", "-i", display,
		"-frames:v", "1",
		"-vf", "scale=320:-1",
		"-f", "image2", "-c:v", "png", "pipe:1",
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		p.log.Debug("thumbnail capture failed", "err", err)
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(stdout.Bytes())
}
