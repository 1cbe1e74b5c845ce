package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const encoderProbeTimeout = 5 * time.Second

// codecEncoders maps a negotiated codec name onto the ffmpeg encoders that
// can produce it, in preference order.
var codecEncoders = map[string][]string{
	"vp9":  {"libvpx-vp9"},
	"vp8":  {"libvpx"},
	"h264": {"h264_nvenc", "h264_videotoolbox", "h264_qsv", "libx264"},
}

// listEncoders parses `ffmpeg -encoders` into the set of available video
// encoder names.
func listEncoders(ctx context.Context, command string) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, encoderProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, "-hide_banner", "-encoders")
	out, err := cmd.Output()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("ffmpeg -encoders timeout after %s", encoderProbeTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -encoders failed: %w", err)
	}

	encoders := make(map[string]struct{})
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) < 2 {
			continue
		}
		// Format is usually " V..... libx264 ...": fields[0] holds the
		// capability flags, fields[1] the encoder name.
		if strings.Contains(fields[0], "V") {
			encoders[fields[1]] = struct{}{}
		}
	}
	return encoders, nil
}

// pickEncoder returns the first available encoder for the codec, or the last
// candidate when the available set is unknown.
func pickEncoder(codec string, available map[string]struct{}) (string, bool) {
	candidates, ok := codecEncoders[codec]
	if !ok || len(candidates) == 0 {
		return "", false
	}
	if len(available) == 0 {
		return candidates[len(candidates)-1], true
	}
	for _, candidate := range candidates {
		if _, ok := available[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}
