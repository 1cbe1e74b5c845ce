package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"studiorecorder/internal/ports"
)

const acquireProbeTimeout = 5 * time.Second

// Capturer acquires screen and camera streams by validating the ffmpeg input
// before the session starts recording. A failed probe surfaces as an
// acquisition error; the device itself is only opened for a couple of frames.
type Capturer struct {
	command      string
	frameRate    int
	cameraDevice string
	log          *slog.Logger
}

func NewCapturer(command string, frameRate int, cameraDevice string, log *slog.Logger) *Capturer {
	if command == "" {
		command = "ffmpeg"
	}
	if frameRate <= 0 {
		frameRate = 30
	}
	return &Capturer{
		command:      command,
		frameRate:    frameRate,
		cameraDevice: cameraDevice,
		log:          log,
	}
}

// AcquireScreen binds a stream to one capture source at a resolution clamped
// into the given bounds.
func (c *Capturer) AcquireScreen(ctx context.Context, sourceID string, bounds ports.CaptureBounds) (ports.MediaStream, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, errors.New("no capture source selected")
	}

	input, err := screenInput(sourceID, bounds, c.frameRate)
	if err != nil {
		return nil, err
	}
	if err := c.probe(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to acquire screen source %q: %w", sourceID, err)
	}
	return &Stream{inputs: []InputSpec{input}}, nil
}

// AcquireCamera opens the default camera at a square dimension.
func (c *Capturer) AcquireCamera(ctx context.Context, pixels int) (ports.MediaStream, error) {
	if pixels <= 0 {
		pixels = 300
	}
	input := cameraInput(c.cameraDevice, pixels, c.frameRate)
	if err := c.probe(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to acquire camera: %w", err)
	}
	return &Stream{inputs: []InputSpec{input}}, nil
}

// probe opens the input for two frames and discards them, so permission and
// device errors show up during Acquiring instead of mid-recording.
func (c *Capturer) probe(ctx context.Context, input InputSpec) error {
	ctx, cancel := context.WithTimeout(ctx, acquireProbeTimeout)
	defer cancel()

	args := []string{"-v", "error", "-nostdin"}
	args = append(args, input.Args...)
	args = append(args, "-f", input.Format, "-i", input.Source)
	args = append(args, "-frames:v", "2", "-f", "null", "-")

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return fmt.Errorf("device probe timeout after %s", acquireProbeTimeout)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// screenInput maps a catalog source id onto a platform grab input. IDs follow
// the catalog's scheme: "screen:<index>" or "window:<native id>".
func screenInput(sourceID string, bounds ports.CaptureBounds, frameRate int) (InputSpec, error) {
	width, height := clampResolution(bounds)
	size := fmt.Sprintf("%dx%d", width, height)
	rate := strconv.Itoa(frameRate)

	kind, ref, _ := strings.Cut(sourceID, ":")
	switch runtime.GOOS {
	case "darwin":
		index := ref
		if kind != "screen" || index == "" {
			index = "1"
		}
		return InputSpec{
			Format: "avfoundation",
			Source: index + ":none",
			Args:   []string{"-framerate", rate},
		}, nil
	case "windows":
		if kind == "window" {
			return InputSpec{
				Format: "gdigrab",
				Source: "title=" + ref,
				Args:   []string{"-framerate", rate},
			}, nil
		}
		return InputSpec{
			Format: "gdigrab",
			Source: "desktop",
			Args:   []string{"-framerate", rate, "-video_size", size},
		}, nil
	default:
		display := strings.TrimSpace(os.Getenv("DISPLAY"))
		if display == "" {
			display = ":0"
		}
		args := []string{"-framerate", rate}
		if kind == "window" && ref != "" {
			args = append(args, "-window_id", ref)
		} else {
			args = append(args, "-video_size", size)
		}
		return InputSpec{
			Format: "x11grab",
			Source: display,
			Args:   args,
		}, nil
	}
}

func cameraInput(device string, pixels int, frameRate int) InputSpec {
	size := fmt.Sprintf("%dx%d", pixels, pixels)
	rate := strconv.Itoa(frameRate)

	switch runtime.GOOS {
	case "darwin":
		source := device
		if source == "" || source == "default" {
			source = "0"
		}
		return InputSpec{
			Format: "avfoundation",
			Source: source + ":none",
			Args:   []string{"-framerate", rate, "-video_size", size},
		}
	case "windows":
		source := device
		if source == "" || source == "default" {
			source = "video=Integrated Camera"
		} else if !strings.HasPrefix(source, "video=") {
			source = "video=" + source
		}
		return InputSpec{
			Format: "dshow",
			Source: source,
			Args:   []string{"-video_size", size},
		}
	default:
		source := device
		if source == "" || source == "default" {
			source = "/dev/video0"
		}
		return InputSpec{
			Format: "v4l2",
			Source: source,
			Args:   []string{"-framerate", rate, "-video_size", size},
		}
	}
}

// clampResolution picks the largest resolution inside the bounds.
func clampResolution(bounds ports.CaptureBounds) (int, int) {
	width := bounds.MaxWidth
	if width <= 0 {
		width = 1920
	}
	if bounds.MinWidth > 0 && width < bounds.MinWidth {
		width = bounds.MinWidth
	}
	height := bounds.MaxHeight
	if height <= 0 {
		height = 1080
	}
	if bounds.MinHeight > 0 && height < bounds.MinHeight {
		height = bounds.MinHeight
	}
	return width, height
}
