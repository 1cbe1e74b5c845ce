package media

import (
	"errors"
	"fmt"

	"studiorecorder/internal/ports"
)

var errNotFFmpegStream = errors.New("stream was not produced by this capture layer")

// DirectComposer records the screen stream untouched. The camera overlay only
// appears in the output when the camera window is natively visible inside the
// captured screen region.
type DirectComposer struct{}

func (DirectComposer) Compose(screen ports.MediaStream, _ ports.MediaStream) (ports.MediaStream, error) {
	if _, ok := screen.(*Stream); !ok {
		return nil, errNotFFmpegStream
	}
	return screen, nil
}

// OverlayComposer bakes the camera feed into the bottom-right corner of the
// screen feed so the overlay survives even when the camera window is not
// visible to the capture source.
type OverlayComposer struct {
	// Inset is the margin between the overlay and the frame edge, in pixels.
	Inset int
}

func (c OverlayComposer) Compose(screen ports.MediaStream, camera ports.MediaStream) (ports.MediaStream, error) {
	screenStream, ok := screen.(*Stream)
	if !ok {
		return nil, errNotFFmpegStream
	}
	if camera == nil {
		// Camera acquisition failed or was skipped; record screen only.
		return screenStream, nil
	}
	cameraStream, ok := camera.(*Stream)
	if !ok {
		return nil, errNotFFmpegStream
	}

	inputs := make([]InputSpec, 0, len(screenStream.inputs)+len(cameraStream.inputs))
	inputs = append(inputs, screenStream.inputs...)
	inputs = append(inputs, cameraStream.inputs...)

	filter := fmt.Sprintf(
		"[0:v][1:v]overlay=main_w-overlay_w-%d:main_h-overlay_h-%d[out]",
		c.Inset, c.Inset,
	)
	return &Stream{inputs: inputs, filter: filter}, nil
}
